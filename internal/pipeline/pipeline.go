// Package pipeline turns one inbound envelope into the replies to dispatch:
// it loads the sender and the business, greets new users, resolves commands
// through the registry and runs them one by one.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/internal/chat"
	"github.com/dmitrymomot/chatbridge/internal/command"
	"github.com/dmitrymomot/chatbridge/internal/store"
)

// Built-in texts used when the business does not configure its own.
const (
	DefaultGreetingCold = "Hello there, I'm ShakeApp, very nice to meet you. For the Main Menu please send: #menu"
	DefaultGreetingWarm = "Have we met before?\nYou seem to know your way around, but just in case for the Main Menu please send: #menu"
	DefaultPreamble     = "Welcome to the ShakeApp shop!"
	NoCommandsFound     = "No commands found in message. For the Main Menu please send: #menu"
)

var (
	ErrInvalidEnvelope = errors.New("pipeline: invalid envelope")
	ErrCommandPanic    = errors.New("pipeline: command panicked")
)

// Config locates the host business.
type Config struct {
	// HostBusinessCell selects the business all messages are handled for.
	// When empty the sender's number is used.
	HostBusinessCell string `env:"HOST_BUSINESS_CELL"`
	BaseURL          string `env:"HOST_BUSINESS_BASE_URL"`
	SignUpURL        string `env:"SIGNUP_URL" envDefault:"https://shakeapptest1-6b90e88bf538.herokuapp.com/signup"`
}

// Users finds or registers the sender.
type Users interface {
	GetOrCreate(ctx context.Context, cell string) (*store.User, bool, error)
}

// Businesses loads the tenant and its price list.
type Businesses interface {
	BusinessByCell(ctx context.Context, cell int64) (store.Business, error)
	Listings(ctx context.Context, businessID int64) ([]store.Listing, error)
}

// Resolver matches message bodies to command instances.
type Resolver interface {
	Match(body string) []command.Instance
	Menu() string
}

// Pipeline executes commands for inbound messages. It holds no per-message
// state and is safe for concurrent use.
type Pipeline struct {
	cfg        Config
	resolver   Resolver
	users      Users
	businesses Businesses
	log        *slog.Logger
}

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func New(cfg Config, resolver Resolver, users Users, businesses Businesses, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		resolver:   resolver,
		users:      users,
		businesses: businesses,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process returns the replies for env, in send order. Per-command failures
// become replies; only cancellation and failures to load the sender or the
// business are returned as errors.
func (p *Pipeline) Process(ctx context.Context, env chat.Envelope) ([]chat.Envelope, error) {
	in := env.Update()
	if err := in.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidEnvelope, err)
	}
	if strings.TrimSpace(in.Body) == "" {
		return nil, errors.Join(ErrInvalidEnvelope, chat.ErrEmptyBody)
	}

	user, created, err := p.users.GetOrCreate(ctx, in.Sender)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load user: %w", err)
	}
	biz, err := p.business(ctx, in.Sender)
	if err != nil {
		return nil, err
	}

	log := p.log.With(
		logger.CorrelationID(env.CorrelationID().String()),
		logger.Channel(in.Channel.String()),
		logger.Sender(in.Sender))

	instances := p.resolver.Match(in.Body)
	var out []chat.Envelope
	reply := func(body string, tags map[string]string) {
		r := chat.NewEnvelope(command.Text(body).Update(in.Channel, in.Sender), env.CorrelationID(), tags)
		if biz.Configured() {
			r = r.WithBusinessID(biz.ID)
		}
		out = append(out, r)
	}

	if created {
		greeting, kind := p.greeting(biz, len(instances) > 0)
		reply(greeting, map[string]string{
			chat.TagType:         "greeting",
			chat.TagGreetingType: kind,
			chat.TagStatus:       chat.StatusOK,
		})
	}
	if len(instances) == 0 {
		if !created {
			reply(NoCommandsFound, map[string]string{chat.TagStatus: chat.StatusNoop})
		}
		log.DebugContext(ctx, "no commands matched")
		return out, nil
	}

	req := command.Request{
		User:        user,
		IsNew:       created,
		Sender:      in.Sender,
		Body:        in.Body,
		MediaHandle: in.MediaHandle,
		Caption:     in.Caption,
		Channel:     in.Channel,
		Business:    biz,
	}
	for _, inst := range instances {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := run(ctx, inst.Command, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && isCancellation(err) {
				return nil, ctxErr
			}
			exception := exceptionName(err)
			log.ErrorContext(ctx, "command failed",
				logger.Command(inst.Key),
				slog.String("exception", exception),
				logger.Error(err))
			reply(fmt.Sprintf("❌ Failed to execute `%s`", inst.Key), map[string]string{
				chat.TagCommand:   inst.Key,
				chat.TagStatus:    chat.StatusError,
				chat.TagException: exception,
			})
			continue
		}

		r := chat.NewEnvelope(res.Update(in.Channel, in.Sender), env.CorrelationID(), map[string]string{
			chat.TagCommand: inst.Key,
			chat.TagStatus:  chat.StatusOK,
		})
		if biz.Configured() {
			r = r.WithBusinessID(biz.ID)
		}
		out = append(out, r)
		log.DebugContext(ctx, "command executed", logger.Command(inst.Key))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) greeting(biz command.Business, matched bool) (string, string) {
	if matched {
		if strings.TrimSpace(biz.GreetingWarm) != "" {
			return biz.GreetingWarm, "warm"
		}
		return DefaultGreetingWarm, "warm"
	}
	if strings.TrimSpace(biz.GreetingCold) != "" {
		return biz.GreetingCold, "cold"
	}
	return DefaultGreetingCold, "cold"
}

// business builds the command view of the host business. A missing record
// yields an unconfigured business that still carries the menu.
func (p *Pipeline) business(ctx context.Context, sender string) (command.Business, error) {
	cell := strings.TrimSpace(p.cfg.HostBusinessCell)
	if cell == "" {
		p.log.WarnContext(ctx, "host business cell not configured, using sender")
		cell = sender
	}
	num, err := strconv.ParseInt(cell, 10, 64)
	if err != nil {
		return command.Business{}, fmt.Errorf("pipeline: business lookup %q: %w", cell, store.ErrInvalidCell)
	}

	out := command.Business{BaseURL: p.cfg.BaseURL, Menu: p.resolver.Menu()}
	rec, err := p.businesses.BusinessByCell(ctx, num)
	if errors.Is(err, store.ErrNotFound) {
		p.log.WarnContext(ctx, "no business for cell, using defaults", slog.String("cell", cell))
		return out, nil
	}
	if err != nil {
		return command.Business{}, fmt.Errorf("pipeline: load business: %w", err)
	}

	listings, err := p.businesses.Listings(ctx, rec.ID)
	if err != nil {
		return command.Business{}, fmt.Errorf("pipeline: load price list: %w", err)
	}

	out.ID = rec.ID
	out.Name = rec.Name
	out.Listings = listings
	out.Preamble = rec.PriceListPreamble
	if strings.TrimSpace(out.Preamble) == "" {
		out.Preamble = DefaultPreamble
	}
	out.GreetingCold = rec.GreetingCold
	out.GreetingWarm = rec.GreetingWarm
	if strings.TrimSpace(rec.Name) != "" && p.cfg.SignUpURL != "" {
		out.Footer = "📝 New here? Sign up: " + p.cfg.SignUpURL + "?FirstSignedUpWith=" + escape(rec.Name)
	}
	return out, nil
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// run executes one command and turns a panic into an error.
func run(ctx context.Context, cmd command.Command, req command.Request) (res command.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCommandPanic, r)
		}
	}()
	return cmd.Execute(ctx, req)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// exceptionName reports the type of the innermost wrapped error. For joined
// errors the last one is followed, since errors.Join(ErrX, cause) puts the
// cause last.
func exceptionName(err error) string {
	if errors.Is(err, ErrCommandPanic) {
		return "panic"
	}
	for {
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) == 0 || errs[len(errs)-1] == nil {
				return logger.TypeName(err)
			}
			err = errs[len(errs)-1]
		case interface{ Unwrap() error }:
			next := u.Unwrap()
			if next == nil {
				return logger.TypeName(err)
			}
			err = next
		default:
			return logger.TypeName(err)
		}
	}
}
