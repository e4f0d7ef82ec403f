// Package commands holds the chat commands the bot understands and the
// static table that registers them.
package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/internal/bus"
	"github.com/dmitrymomot/chatbridge/internal/order"
	"github.com/dmitrymomot/chatbridge/internal/payfast"
	"github.com/dmitrymomot/chatbridge/internal/pricing"
	"github.com/dmitrymomot/chatbridge/internal/store"
)

// UserStore persists user changes made by commands.
type UserStore interface {
	SaveUserProfile(ctx context.Context, user *store.User) error
	SaveCurrentOrder(ctx context.Context, userID string, lines order.Lines) error
}

// Catalog prices menu codes and checks which of them a business sells.
type Catalog interface {
	pricing.Catalog
	ExistingMenuCodes(ctx context.Context, businessID int64, codes []string) ([]string, error)
}

// SaleStore records a checkout. It assigns sale.ID and payment.ID and
// links the payment to the sale.
type SaleStore interface {
	CreateSale(ctx context.Context, sale *store.Sale, payment *store.Payment) error
}

// PaymentGateway starts a hosted payment and returns its URL.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req payfast.PaymentRequest) (string, error)
	ItemName(saleID int64) string
}

// TokenIssuer signs claims into a bearer token.
type TokenIssuer interface {
	Generate(claims any) (string, error)
}

// ImageStore records images received through chat.
type ImageStore interface {
	CreateUserIDImage(ctx context.Context, img *store.UserIDImage) error
	CreateCampaignImage(ctx context.Context, img *store.CampaignImage) error
}

// ImagePublisher hands ID images to the image processor.
type ImagePublisher interface {
	PublishImageJob(ctx context.Context, job bus.ImageJob) error
}

// DriverConfig configures driver login tokens.
type DriverConfig struct {
	SigningKey string        `env:"JWT_SIGNING_KEY"`
	Issuer     string        `env:"JWT_ISSUER"`
	Audience   []string      `env:"JWT_AUDIENCE" envSeparator:","`
	TTL        time.Duration `env:"JWT_TOKEN_TTL" envDefault:"60m"`
}

// Deps are the collaborators commands are built with. Every command gets
// them through its factory; nothing is resolved at run time.
type Deps struct {
	Users     UserStore
	Catalog   Catalog
	Sales     SaleStore
	Payments  PaymentGateway
	Tokens    TokenIssuer
	Images    ImageStore
	ImageJobs ImagePublisher
	Driver    DriverConfig
	Now       func() time.Time
	Logger    *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return d
}

func (d Deps) now() time.Time { return d.Now().UTC() }
