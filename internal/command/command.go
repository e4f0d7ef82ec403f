// Package command defines chat commands and the registry that matches them
// against message bodies.
package command

import (
	"context"
	"strings"

	"github.com/dmitrymomot/chatbridge/internal/chat"
	"github.com/dmitrymomot/chatbridge/internal/store"
)

// Result is what a command replies with.
type Result struct {
	Body        string
	MediaHandle string
}

// Text is a plain text reply.
func Text(body string) Result { return Result{Body: body} }

// Media is a reply that sends an existing media handle with a caption.
func Media(body, handle string) Result { return Result{Body: body, MediaHandle: handle} }

// IsMedia reports whether the result carries a media handle.
func (r Result) IsMedia() bool { return strings.TrimSpace(r.MediaHandle) != "" }

// Update converts the result into an outbound chat update.
func (r Result) Update(channel chat.Channel, recipient string) chat.Update {
	u := chat.Update{Sender: recipient, Body: r.Body, Channel: channel, Type: chat.MessageText}
	if r.IsMedia() {
		u.Type = chat.MessageImage
		u.MediaHandle = r.MediaHandle
		u.Caption = r.Body
	}
	return u
}

// Business is the tenant a message is handled for. ID is zero when no
// business is configured for the number.
type Business struct {
	ID           int64
	Name         string
	BaseURL      string
	Menu         string
	Footer       string
	Preamble     string
	GreetingCold string
	GreetingWarm string
	Listings     []store.Listing
}

// Configured reports whether a business record was found.
func (b Business) Configured() bool { return b.ID != 0 }

// FullMenu is the command menu followed by the sign-up footer.
func (b Business) FullMenu() string {
	if strings.TrimSpace(b.Footer) == "" {
		return b.Menu
	}
	return b.Menu + "\n\n" + b.Footer
}

// PriceList renders one listing per line.
func (b Business) PriceList() string {
	lines := make([]string, len(b.Listings))
	for i, l := range b.Listings {
		name := l.Name
		if name == "" {
			name = l.MenuCode
		}
		lines[i] = l.MenuCode + " - " + name + " R" + l.Price.StringFixed(2)
	}
	return strings.Join(lines, "\n")
}

// Request is everything a command may read about the message it handles.
type Request struct {
	User        *store.User
	IsNew       bool
	Sender      string
	Body        string
	MediaHandle string
	Caption     string
	Channel     chat.Channel
	Business    Business
}

// Command executes one matched command.
type Command interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// PatternAware commands receive the regexp capture groups of their match,
// without the whole-match group.
type PatternAware interface {
	SetMatch(groups []string)
}

// Keyed commands report their own key once matched, e.g. "update:email".
type Keyed interface {
	CommandKey() string
}

// Func adapts a function to Command.
type Func func(ctx context.Context, req Request) (Result, error)

func (f Func) Execute(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

// Default menu placement for definitions that leave Group or Order at zero.
const (
	DefaultGroup = 99
	DefaultOrder = 999
)

// Definition registers a command under a key. Keys containing "*", "(" or
// `\s` are regular expressions matched case-insensitively; others are exact
// and match when "#key" occurs anywhere in the body.
type Definition struct {
	Key         string
	Description string
	Example     string
	ShowInMenu  bool
	Group       int
	Order       int
	Factory     func() Command
	// Exclude discards a pattern match, e.g. to keep "#update order" away
	// from the generic field updater.
	Exclude func(groups []string) bool
}

// IsPattern reports whether key is a regular expression.
func IsPattern(key string) bool {
	return strings.Contains(key, "*") || strings.Contains(key, "(") || strings.Contains(key, `\s`)
}

// Instance is a command created for one match.
type Instance struct {
	Key     string
	Command Command
}
