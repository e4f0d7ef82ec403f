// Package order parses and formats order lines of the form
// "{qty}:{CODE}" with an optional " ({mods})" suffix.
package order

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalidFormat   = errors.New("order: invalid item format")
	ErrInvalidCode     = errors.New("order: invalid menu code")
	ErrNegativeAmount  = errors.New("order: negative quantity")
	ErrInvalidModifier = errors.New("order: invalid modification")
)

var (
	codeRe = regexp.MustCompile(`^[A-Z]_[0-9]{1,3}$`)
	itemRe = regexp.MustCompile(`^\s*(\d+)\s*:\s*([A-Za-z]_[0-9]{1,3})\s*(?:\((.*)\))?\s*$`)
	// lineRe finds order entries inside free text such as a chat message.
	lineRe = regexp.MustCompile(`(?is)(\d+)\s*:\s*([A-Z]_[0-9]{1,3})(?:\s*\((.*?)\))?`)
)

// Item is one order line.
type Item struct {
	Quantity      int
	Code          string
	Modifications string
}

// ValidCode reports whether code has the menu code shape, e.g. "A_12".
func ValidCode(code string) bool {
	return codeRe.MatchString(code)
}

// Validate checks the quantity and code.
func (i Item) Validate() error {
	if i.Quantity < 0 {
		return ErrNegativeAmount
	}
	if !ValidCode(i.Code) {
		return fmt.Errorf("%w: %q", ErrInvalidCode, i.Code)
	}
	return nil
}

// String returns the canonical form.
func (i Item) String() string {
	s := strconv.Itoa(i.Quantity) + ":" + i.Code
	if strings.TrimSpace(i.Modifications) != "" {
		s += " (" + i.Modifications + ")"
	}
	return s
}

// Parse reads a single canonical item. Codes are upper-cased and blank
// modifications collapse to "".
func Parse(s string) (Item, error) {
	m := itemRe.FindStringSubmatch(s)
	if m == nil {
		return Item{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	qty, err := strconv.Atoi(m[1])
	if err != nil {
		return Item{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	item := Item{Quantity: qty, Code: strings.ToUpper(m[2])}
	if strings.TrimSpace(m[3]) != "" {
		item.Modifications = m[3]
	}
	return item, nil
}

// ParseLines extracts every item found in free text. Unparseable fragments
// are ignored.
func ParseLines(text string) []Item {
	matches := lineRe.FindAllStringSubmatch(text, -1)
	items := make([]Item, 0, len(matches))
	for _, m := range matches {
		qty, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		item := Item{Quantity: qty, Code: strings.ToUpper(m[2])}
		if strings.TrimSpace(m[3]) != "" {
			item.Modifications = strings.TrimSpace(m[3])
		}
		items = append(items, item)
	}
	return items
}

// Modification is one "+CODE" or "-CODE" token.
type Modification struct {
	Add  bool
	Code string
	Raw  string
}

// ParseModifications splits a comma separated modification list. Invalid
// tokens are returned separately so callers can report them.
func ParseModifications(s string) (mods []Modification, invalid []string) {
	for tok := range strings.SplitSeq(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if len(tok) < 2 || (tok[0] != '+' && tok[0] != '-') {
			invalid = append(invalid, tok)
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(tok[1:]))
		if code == "" {
			invalid = append(invalid, tok)
			continue
		}
		mods = append(mods, Modification{Add: tok[0] == '+', Code: code, Raw: tok})
	}
	return mods, invalid
}

// Lines is the ordered list of items stored on a user.
type Lines []Item

// ParseStored reads the newline separated storage form. Blank and invalid
// lines are skipped.
func ParseStored(s string) Lines {
	var out Lines
	for line := range strings.Lines(s) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		item, err := Parse(line)
		if err != nil {
			continue
		}
		out = append(out, item)
	}
	return out
}

// String is the storage form: one canonical item per line.
func (l Lines) String() string {
	parts := make([]string, len(l))
	for i, item := range l {
		parts[i] = item.String()
	}
	return strings.Join(parts, "\n")
}

// Outcome describes what Apply did with one update.
type Outcome int

const (
	Added Outcome = iota
	Updated
	Removed
	NotFound
)

// Apply merges an update into the lines. A line matches when the code
// compares case-insensitively and the modifications are equal. Quantity 0
// removes the line.
func (l Lines) Apply(u Item) (Lines, Outcome) {
	for idx, cur := range l {
		if !strings.EqualFold(cur.Code, u.Code) || cur.Modifications != u.Modifications {
			continue
		}
		if u.Quantity == 0 {
			out := append(Lines{}, l[:idx]...)
			return append(out, l[idx+1:]...), Removed
		}
		out := append(Lines{}, l...)
		out[idx].Quantity = u.Quantity
		return out, Updated
	}
	if u.Quantity == 0 {
		return l, NotFound
	}
	return append(append(Lines{}, l...), u), Added
}
