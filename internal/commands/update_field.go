package commands

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/core/sanitizer"
	"github.com/dmitrymomot/chatbridge/internal/command"
	"github.com/dmitrymomot/chatbridge/internal/store"
)

// fieldHandler validates a value and writes it onto the user.
type fieldHandler struct {
	name     string
	validate func(v string) string // returns the problem, or ""
	apply    func(u *store.User, v string)
}

var (
	emailRe     = regexp.MustCompile(`(?i)^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	cellStripRe = regexp.MustCompile(`[\s\-()+]`)
)

// fieldHandlers in the order they are listed to the user.
var fieldHandlers = []fieldHandler{
	{
		name: "Name",
		validate: func(v string) string {
			switch n := utf8.RuneCountInString(v); {
			case strings.TrimSpace(v) == "":
				return "Name cannot be empty."
			case n < 2:
				return "Name must be at least 2 characters."
			case n > 100:
				return "Name cannot exceed 100 characters."
			}
			return ""
		},
		apply: func(u *store.User, v string) { u.UserName = v },
	},
	{
		name: "Email",
		validate: func(v string) string {
			if strings.TrimSpace(v) == "" {
				return "Email cannot be empty."
			}
			if !emailRe.MatchString(v) {
				return "Invalid email format."
			}
			return ""
		},
		apply: func(u *store.User, v string) { u.Email = v },
	},
	{
		name: "Social",
		validate: func(v string) string {
			if strings.TrimSpace(v) == "" {
				return "Social media handle cannot be empty."
			}
			if utf8.RuneCountInString(v) > 100 {
				return "Social media handle cannot exceed 100 characters."
			}
			return ""
		},
		apply: func(u *store.User, v string) { u.SocialMedia = v },
	},
	{
		name: "Cell",
		validate: func(v string) string {
			if strings.TrimSpace(v) == "" {
				return "Cell number cannot be empty."
			}
			digits := cellStripRe.ReplaceAllString(v, "")
			if len(digits) < 10 {
				return "Cell number must have at least 10 digits."
			}
			if len(digits) > 15 {
				return "Cell number cannot exceed 15 digits."
			}
			return ""
		},
		apply: func(u *store.User, v string) { u.UserIndicatedCell = v },
	},
	{
		name: "Consent",
		validate: func(v string) string {
			if strings.TrimSpace(v) == "" {
				return "Consent value cannot be empty. Use 'yes' or 'no'."
			}
			if _, ok := parseConsent(v); !ok {
				return "Invalid consent value. Use 'yes' or 'no'."
			}
			return ""
		},
		apply: func(u *store.User, v string) {
			b, _ := parseConsent(v)
			u.Consent = &b
		},
	},
}

func parseConsent(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "yes", "true", "1":
		return true, true
	case "no", "false", "0":
		return false, true
	}
	return false, false
}

func lookupField(name string) (fieldHandler, bool) {
	for _, h := range fieldHandlers {
		if strings.EqualFold(h.name, name) {
			return h, true
		}
	}
	return fieldHandler{}, false
}

func fieldNames() string {
	names := make([]string, len(fieldHandlers))
	for i, h := range fieldHandlers {
		names[i] = h.name
	}
	return strings.Join(names, ", ")
}

// updateField handles "#update <field>: <value>".
type updateField struct {
	deps  Deps
	field string
	value string
}

func (c *updateField) SetMatch(groups []string) {
	if len(groups) > 0 {
		c.field = strings.TrimSpace(groups[0])
	}
	if len(groups) > 1 {
		c.value = sanitizer.Field(groups[1])
	}
}

func (c *updateField) CommandKey() string { return "update:" + c.field }

func (c *updateField) Execute(ctx context.Context, req command.Request) (command.Result, error) {
	if req.User == nil {
		return command.Text(msgUserContextMissing), nil
	}

	h, ok := lookupField(c.field)
	if !ok {
		return command.Text(fmt.Sprintf("❌ Unknown field '%s'.\n\nAvailable fields: %s", c.field, fieldNames())), nil
	}
	if problem := h.validate(c.value); problem != "" {
		return command.Text("❌ " + problem), nil
	}

	updated := *req.User
	h.apply(&updated, c.value)
	if err := c.deps.Users.SaveUserProfile(ctx, &updated); err != nil {
		return command.Result{}, fmt.Errorf("save %s: %w", strings.ToLower(h.name), err)
	}
	*req.User = updated

	c.deps.Logger.InfoContext(ctx, "user field updated",
		slog.String("user_id", req.User.ID),
		slog.String("field", h.name),
		logger.Command(c.CommandKey()))
	return command.Text(fmt.Sprintf("✓ Updated %s successfully.", h.name)), nil
}
