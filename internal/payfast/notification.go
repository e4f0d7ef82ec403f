package payfast

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// StatusComplete is the payment_status of a settled payment.
const StatusComplete = "COMPLETE"

// Notification is the subset of an ITN the service acts on.
type Notification struct {
	SaleID      int64
	PFPaymentID string
	Status      string
	AmountGross string
}

// Complete reports whether the payment settled.
func (n Notification) Complete() bool {
	return strings.EqualFold(n.Status, StatusComplete)
}

// PFPaymentIDInt returns pf_payment_id as an integer when it is one.
func (n Notification) PFPaymentIDInt() (int64, bool) {
	id, err := strconv.ParseInt(n.PFPaymentID, 10, 64)
	return id, err == nil
}

// ParseNotification reads the ITN fields. m_payment_id must be an integer.
func ParseNotification(form url.Values) (Notification, error) {
	saleID, err := strconv.ParseInt(strings.TrimSpace(form.Get("m_payment_id")), 10, 64)
	if err != nil {
		return Notification{}, ErrInvalidPaymentID
	}
	return Notification{
		SaleID:      saleID,
		PFPaymentID: form.Get("pf_payment_id"),
		Status:      form.Get("payment_status"),
		AmountGross: form.Get("amount_gross"),
	}, nil
}

// Resolver is the part of net.Resolver used for source checks.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// SourceValidator checks that an ITN came from a PayFast address.
type SourceValidator struct {
	hosts    []string
	resolver Resolver
}

// NewSourceValidator uses net.DefaultResolver when resolver is nil.
func NewSourceValidator(hosts []string, resolver Resolver) *SourceValidator {
	if len(hosts) == 0 {
		hosts = DefaultValidHosts
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &SourceValidator{hosts: hosts, resolver: resolver}
}

// Valid resolves every host and reports whether ip is among the results.
// Hosts that fail to resolve are skipped.
func (v *SourceValidator) Valid(ctx context.Context, ip string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return false
	}
	for _, host := range v.hosts {
		addrs, err := v.resolver.LookupHost(ctx, host)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if addr == ip {
				return true
			}
		}
	}
	return false
}
