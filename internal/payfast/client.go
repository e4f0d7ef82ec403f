package payfast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/chatbridge/core/logger"
)

// PaymentRequest is what checkout knows about the buyer and the sale.
type PaymentRequest struct {
	SaleID    int64
	Amount    decimal.Decimal
	ItemName  string
	FirstName string
	Cell      string
	Email     string
}

// Client submits payment requests.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client. Redirect following is always
// disabled on the client that is used.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cp := *c
			cl.http = &cp
		}
	}
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) {
		if l != nil {
			cl.log = l
		}
	}
}

func NewClient(cfg Config, opts ...ClientOption) *Client {
	if cfg.HostURL == "" {
		cfg.HostURL = DefaultHostURL
	}
	if cfg.ItemNamePrefix == "" {
		cfg.ItemNamePrefix = "Order_"
	}
	c := &Client{cfg: cfg, http: &http.Client{}, log: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	c.http.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// ItemName returns the configured item name for a sale, e.g. "Order_42".
func (c *Client) ItemName(saleID int64) string {
	return c.cfg.ItemNamePrefix + strconv.FormatInt(saleID, 10)
}

// Params builds the signed parameter list for a request.
func (c *Client) Params(req PaymentRequest) Params {
	var p Params
	p = p.Add("merchant_id", c.cfg.MerchantID)
	p = p.Add("merchant_key", c.cfg.MerchantKey)
	p = p.Add("return_url", c.cfg.ReturnURL)
	p = p.Add("cancel_url", c.cfg.CancelURL)
	p = p.Add("notify_url", c.cfg.NotifyURL)
	p = p.Add("name_first", req.FirstName)
	p = p.Add("name_last", req.Cell)
	p = p.Add("email_address", req.Email)
	p = p.Add("cell_number", req.Cell)
	p = p.Add("m_payment_id", strconv.FormatInt(req.SaleID, 10))
	p = p.Add("amount", req.Amount.StringFixed(2))
	p = p.Add("item_name", req.ItemName)
	return append(p, Param{Key: fieldSignature, Value: Sign(p, c.cfg.Passphrase)})
}

// CreatePayment posts the request and returns the payment page URL taken
// from the redirect PayFast answers with.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (string, error) {
	if !req.Amount.IsPositive() {
		return "", ErrInvalidAmount
	}
	if req.ItemName == "" {
		req.ItemName = c.ItemName(req.SaleID)
	}
	params := c.Params(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.HostURL, strings.NewReader(params.Form().Encode()))
	if err != nil {
		return "", errors.Join(ErrPaymentInitFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", errors.Join(ErrPaymentInitFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if loc := resp.Header.Get("Location"); strings.TrimSpace(loc) != "" {
			return loc, nil
		}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	c.log.WarnContext(ctx, "unexpected payfast response",
		slog.Int64("sale_id", req.SaleID),
		logger.StatusCode(resp.StatusCode),
		slog.String("body", string(body)))
	return "", fmt.Errorf("%w: status %d", ErrPaymentInitFailed, resp.StatusCode)
}
