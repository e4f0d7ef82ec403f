package command

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/dmitrymomot/chatbridge/core/logger"
)

type exactEntry struct {
	key   string
	token string
	def   Definition
}

type patternEntry struct {
	re  *regexp.Regexp
	def Definition
}

// Registry resolves message bodies into command instances. It is built once
// and safe for concurrent use.
type Registry struct {
	exact    []exactEntry
	patterns []patternEntry
	menu     string
	log      *slog.Logger
}

// Config holds registry settings.
type Config struct {
	Disabled []string `env:"COMMANDS_DISABLED" envSeparator:","`
}

type Option func(*registryOptions)

type registryOptions struct {
	disabled map[string]struct{}
	log      *slog.Logger
}

// WithDisabled skips the given keys at registration.
func WithDisabled(keys ...string) Option {
	return func(o *registryOptions) {
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				o.disabled[strings.ToLower(k)] = struct{}{}
			}
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *registryOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// NewRegistry builds a registry from a static definition table.
func NewRegistry(defs []Definition, opts ...Option) (*Registry, error) {
	o := registryOptions{disabled: map[string]struct{}{}, log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{log: o.log}
	fold := cases.Fold()
	seen := map[string]struct{}{}
	var errs []error

	for _, def := range defs {
		if _, off := o.disabled[strings.ToLower(def.Key)]; off {
			r.log.Info("command disabled", logger.Command(def.Key))
			continue
		}
		if def.Factory == nil {
			errs = append(errs, fmt.Errorf("%w: %q", ErrMissingFactory, def.Key))
			continue
		}
		if def.Group == 0 {
			def.Group = DefaultGroup
		}
		if def.Order == 0 {
			def.Order = DefaultOrder
		}

		if IsPattern(def.Key) {
			re, err := regexp.Compile("(?i)" + def.Key)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, def.Key, err))
				continue
			}
			r.patterns = append(r.patterns, patternEntry{re: re, def: def})
			continue
		}

		key := strings.ToLower(def.Key)
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateKey, key))
			continue
		}
		seen[key] = struct{}{}
		r.exact = append(r.exact, exactEntry{key: key, token: fold.String("#" + key), def: def})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	r.menu = r.buildMenu()
	r.log.Info("command registration complete",
		slog.Int("exact", len(r.exact)),
		slog.Int("pattern", len(r.patterns)))
	return r, nil
}

// Match returns one instance per exact key found in body, followed by one
// per matching pattern, in registration order.
func (r *Registry) Match(body string) []Instance {
	folded := cases.Fold().String(body)

	var out []Instance
	for _, e := range r.exact {
		if strings.Contains(folded, e.token) {
			out = append(out, Instance{Key: e.key, Command: e.def.Factory()})
		}
	}

	for _, p := range r.patterns {
		groups, ok := p.match(body)
		if !ok {
			continue
		}
		cmd := p.def.Factory()
		if pa, ok := cmd.(PatternAware); ok {
			pa.SetMatch(groups)
		}
		key := p.def.Key
		if k, ok := cmd.(Keyed); ok {
			key = k.CommandKey()
		}
		out = append(out, Instance{Key: key, Command: cmd})
	}
	return out
}

// match returns the groups of the first match the definition does not
// exclude.
func (p patternEntry) match(body string) ([]string, bool) {
	if p.def.Exclude == nil {
		m := p.re.FindStringSubmatch(body)
		if m == nil {
			return nil, false
		}
		return m[1:], true
	}
	for _, m := range p.re.FindAllStringSubmatch(body, -1) {
		if !p.def.Exclude(m[1:]) {
			return m[1:], true
		}
	}
	return nil, false
}

// Menu returns the generated main menu.
func (r *Registry) Menu() string { return r.menu }

type menuLine struct {
	text  string
	group int
	order int
}

func (r *Registry) buildMenu() string {
	var lines []menuLine
	for _, e := range r.exact {
		if e.def.ShowInMenu {
			lines = append(lines, menuLine{text: "#" + e.key + " - " + e.def.Description, group: e.def.Group, order: e.def.Order})
		}
	}
	for _, p := range r.patterns {
		if !p.def.ShowInMenu {
			continue
		}
		text := p.def.Description
		if p.def.Example != "" {
			text = p.def.Example + " - " + p.def.Description
		}
		lines = append(lines, menuLine{text: text, group: p.def.Group, order: p.def.Order})
	}

	slices.SortStableFunc(lines, func(a, b menuLine) int {
		return cmp.Or(cmp.Compare(a.group, b.group), cmp.Compare(a.order, b.order), strings.Compare(a.text, b.text))
	})

	var b strings.Builder
	b.WriteString("📋 Main Menu:\n\n")
	for i, l := range lines {
		if i > 0 && l.group != lines[i-1].group {
			b.WriteString("\n")
		}
		b.WriteString(l.text)
		b.WriteString("\n")
	}
	return b.String()
}
