package commands

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/dmitrymomot/chatbridge/core/logger"
	"github.com/dmitrymomot/chatbridge/internal/command"
	"github.com/dmitrymomot/chatbridge/pkg/jwt"
)

// DriverClaims are carried by the driver login token.
type DriverClaims struct {
	jwt.StandardClaims
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

// driverLogin replies with a deep link into the driver app that carries a
// short-lived token.
type driverLogin struct {
	deps Deps
}

func (c *driverLogin) Execute(ctx context.Context, req command.Request) (command.Result, error) {
	link, reason := c.link(req)
	if reason != "" {
		c.deps.Logger.WarnContext(ctx, "driver login failed",
			slog.String("reason", reason),
			logger.Sender(req.Sender))
		return command.Text(msgDriverLoginFailed), nil
	}
	c.deps.Logger.InfoContext(ctx, "driver login initiated", logger.Sender(req.Sender))
	return command.Text(link), nil
}

func (c *driverLogin) link(req command.Request) (string, string) {
	cfg := c.deps.Driver
	switch {
	case c.deps.Tokens == nil || cfg.Issuer == "" || len(cfg.Audience) == 0:
		return "", "missing token configuration"
	case req.User == nil || req.User.ID == "":
		return "", "user not found"
	case req.User.Role == "":
		return "", "user has no role"
	case strings.TrimSpace(req.Business.BaseURL) == "":
		return "", "base url is empty"
	}

	now := c.deps.now()
	token, err := c.deps.Tokens.Generate(DriverClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   req.User.ID,
			Issuer:    cfg.Issuer,
			Audience:  cfg.Audience,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(cfg.TTL).Unix(),
		},
		Phone: req.Sender,
		Role:  req.User.Role,
	})
	if err != nil {
		return "", "sign token: " + err.Error()
	}
	return req.Business.BaseURL + "?jwt=" + url.QueryEscape(token) + "&action=view&type=deep", ""
}
