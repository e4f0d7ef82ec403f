package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/chatbridge/internal/order"
)

// User is a chat participant, identified by the cell number (or Telegram
// chat id) they message from.
type User struct {
	ID                string
	UserName          string
	Email             string
	SocialMedia       string
	CellNumber        string
	UserIndicatedCell string
	Consent           *bool
	Joined            *time.Time
	IsVerified        bool
	Role              string
	CurrentOrder      order.Lines
}

// Business is a tenant: the shop a chat number belongs to.
type Business struct {
	ID                int64
	Name              string
	CellNumber        string
	PriceListPreamble string
	GreetingCold      string
	GreetingWarm      string
}

// Listing is one line of a business price list.
type Listing struct {
	MenuCode string
	Name     string
	Price    decimal.Decimal
}

// Sale is a checkout attempt.
type Sale struct {
	ID          int64
	UserID      string
	ItemCount   int
	Total       decimal.Decimal
	RequestedAt time.Time
	CompletedAt *time.Time
}

// Payment belongs to a sale.
type Payment struct {
	ID          int64
	SaleID      int64
	SenderEmail string
	Amount      decimal.Decimal
	Currency    string
	InitiatedAt time.Time
	PFPaymentID *int64
	SucceededAt *time.Time
}

// Image processing states.
const (
	ImagePending    = "Pending"
	ImageProcessing = "Processing"
	ImageCompleted  = "Completed"
	ImageFailed     = "Failed"
)

// UserIDImage is an identity document photo sent by a user.
type UserIDImage struct {
	ID           int64
	UserID       string
	ImageType    string
	MediaHandle  string
	Platform     string
	Status       string
	StoragePath  string
	StorageType  string
	FileSize     int64
	ErrorMessage string
	UploadedAt   time.Time
	ProcessedAt  *time.Time
}

// CampaignImage is a broadcast image uploaded through chat.
type CampaignImage struct {
	ID          int64
	BusinessID  int64
	UserID      string
	MediaHandle string
	Caption     string
	Platform    string
	UploadedAt  time.Time
	Active      bool
}
