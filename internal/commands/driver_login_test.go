package commands_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatbridge/internal/command"
	"github.com/dmitrymomot/chatbridge/internal/commands"
	"github.com/dmitrymomot/chatbridge/internal/store"
	"github.com/dmitrymomot/chatbridge/pkg/jwt"
)

func TestDriverLogin(t *testing.T) {
	t.Parallel()

	svc, err := jwt.NewFromString("driver-signing-key")
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	deps := baseDeps()
	deps.Now = func() time.Time { return now }
	deps.Tokens = svc
	deps.Driver = commands.DriverConfig{Issuer: "chatbridge", Audience: []string{"drivers"}, TTL: 30 * time.Minute}

	t.Run("deep link", func(t *testing.T) {
		t.Parallel()
		u := &store.User{ID: "u1", Role: "Driver"}
		res := execute(t, deps, "#driverlogin", command.Request{User: u, Sender: "27825551234", Business: testBusiness()})

		prefix := "https://drivers.example.com/app?jwt="
		require.True(t, strings.HasPrefix(res.Body, prefix), res.Body)
		link, err := url.Parse(res.Body)
		require.NoError(t, err)
		assert.Equal(t, "view", link.Query().Get("action"))
		assert.Equal(t, "deep", link.Query().Get("type"))
		assert.Equal(t, "drivers.example.com", link.Host)

		var claims commands.DriverClaims
		require.NoError(t, svc.Parse(link.Query().Get("jwt"), &claims))
		assert.Equal(t, "u1", claims.Subject)
		assert.Equal(t, "27825551234", claims.Phone)
		assert.Equal(t, "Driver", claims.Role)
		assert.Equal(t, "chatbridge", claims.Issuer)
		assert.Equal(t, []string{"drivers"}, claims.Audience)
		assert.Equal(t, now.Add(30*time.Minute).Unix(), claims.ExpiresAt)
	})

	failures := []struct {
		name string
		deps commands.Deps
		req  command.Request
	}{
		{"no role", deps, command.Request{User: &store.User{ID: "u1"}, Business: testBusiness()}},
		{"no user", deps, command.Request{Business: testBusiness()}},
		{"no base url", deps, command.Request{User: &store.User{ID: "u1", Role: "Driver"}}},
		{"no token config", baseDeps(), command.Request{User: &store.User{ID: "u1", Role: "Driver"}, Business: testBusiness()}},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := execute(t, tt.deps, "#driver login", tt.req)
			assert.Equal(t, "❌ Driver login failed. Please contact support.", res.Body)
		})
	}
}
