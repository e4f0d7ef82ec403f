package payfast_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatbridge/internal/payfast"
)

func TestParseNotification(t *testing.T) {
	t.Parallel()

	n, err := payfast.ParseNotification(notificationForm())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n.SaleID)
	assert.True(t, n.Complete())
	id, ok := n.PFPaymentIDInt()
	assert.True(t, ok)
	assert.Equal(t, int64(1089250), id)

	_, err = payfast.ParseNotification(url.Values{"m_payment_id": {"abc"}})
	assert.ErrorIs(t, err, payfast.ErrInvalidPaymentID)
	_, err = payfast.ParseNotification(url.Values{})
	assert.ErrorIs(t, err, payfast.ErrInvalidPaymentID)
}

type fakeResolver map[string][]string

func (f fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	addrs, ok := f[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	return addrs, nil
}

func TestSourceValidator(t *testing.T) {
	t.Parallel()

	v := payfast.NewSourceValidator(
		[]string{"www.payfast.co.za", "broken.payfast.co.za", "sandbox.payfast.co.za"},
		fakeResolver{
			"www.payfast.co.za":     {"197.97.145.144"},
			"sandbox.payfast.co.za": {"197.110.64.127"},
		},
	)
	ctx := context.Background()
	assert.True(t, v.Valid(ctx, "197.110.64.127"))
	assert.False(t, v.Valid(ctx, "10.0.0.1"))
	assert.False(t, v.Valid(ctx, ""))
}
