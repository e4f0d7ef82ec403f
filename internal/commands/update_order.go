package commands

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/internal/command"
	"github.com/dmitrymomot/chatbridge/internal/order"
)

// updateOrder adds, changes or removes lines of the user's current order.
type updateOrder struct {
	deps Deps
	data string
}

func (c *updateOrder) SetMatch(groups []string) {
	if len(groups) > 0 {
		c.data = strings.TrimSpace(groups[0])
	}
}

func (c *updateOrder) CommandKey() string { return "update:order" }

func (c *updateOrder) Execute(ctx context.Context, req command.Request) (command.Result, error) {
	if req.User == nil {
		return command.Text(msgUserNotFound), nil
	}
	if !req.Business.Configured() {
		return command.Text(msgBusinessMissing), nil
	}

	updates := order.ParseLines(c.data)
	if len(updates) == 0 {
		return command.Text(msgInvalidOrderFormat), nil
	}

	codes := make([]string, 0, len(updates))
	for _, u := range updates {
		if !slices.Contains(codes, u.Code) {
			codes = append(codes, u.Code)
		}
	}
	known, err := c.deps.Catalog.ExistingMenuCodes(ctx, req.Business.ID, codes)
	if err != nil {
		return command.Result{}, fmt.Errorf("check menu codes: %w", err)
	}
	var invalid []string
	for _, code := range codes {
		if !slices.ContainsFunc(known, func(k string) bool { return strings.EqualFold(k, code) }) {
			invalid = append(invalid, code)
		}
	}
	if len(invalid) > 0 {
		return command.Text("❌ Invalid menu code(s): " + strings.Join(invalid, ", ")), nil
	}

	lines := req.User.CurrentOrder
	results := make([]string, 0, len(updates))
	for _, u := range updates {
		var outcome order.Outcome
		lines, outcome = lines.Apply(u)
		switch outcome {
		case order.Removed:
			results = append(results, fmt.Sprintf("✓ Item %s removed.", u.Code))
		case order.NotFound:
			results = append(results, fmt.Sprintf("⚠️ Item %s not found in order.", u.Code))
		case order.Updated:
			results = append(results, fmt.Sprintf("✓ Item %s updated to %d.", u.Code, u.Quantity))
		case order.Added:
			results = append(results, fmt.Sprintf("✓ Item %s added with amount %d.", u.Code, u.Quantity))
		}
	}

	if err := c.deps.Users.SaveCurrentOrder(ctx, req.User.ID, lines); err != nil {
		return command.Result{}, fmt.Errorf("save current order: %w", err)
	}
	req.User.CurrentOrder = lines

	c.deps.Logger.InfoContext(ctx, "order updated",
		slog.String("user_id", req.User.ID),
		slog.Int("changes", len(results)),
		logger.Command(c.CommandKey()))
	return command.Text(strings.Join(results, "\n")), nil
}
