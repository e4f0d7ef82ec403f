package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrymomot/chatbridge/internal/command"
	"github.com/dmitrymomot/chatbridge/internal/store"
)

func showMenu(_ context.Context, req command.Request) (command.Result, error) {
	return command.Text(req.Business.FullMenu()), nil
}

func showShop(_ context.Context, req command.Request) (command.Result, error) {
	list := req.Business.PriceList()
	if strings.TrimSpace(list) == "" {
		return command.Text(msgShopUnavailable), nil
	}
	return command.Text(req.Business.Preamble + "\n\n" + list), nil
}

func showUserInfo(_ context.Context, req command.Request) (command.Result, error) {
	if req.User == nil {
		return command.Text(msgNoUserInfo), nil
	}
	return command.Text(UserInfo(req.User)), nil
}

// UserInfo renders the profile summary a user sees for #userinfo.
func UserInfo(u *store.User) string {
	joined := "Not specified"
	if u.Joined != nil {
		joined = u.Joined.Format("2006-01-02 15:04:05")
	}
	cell := u.UserIndicatedCell
	if strings.TrimSpace(cell) == "" {
		cell = "Not provided"
	}
	consent := ""
	if u.Consent != nil {
		consent = yesNo(*u.Consent)
	}
	return fmt.Sprintf("Date Time Joined: %s\nYour Name: %s\nYour Email: %s\nSocial: %s\nCell: %s\nIsVerified: %s\nConsent: %s\n(needed to store & process your personal data)",
		joined, u.UserName, u.Email, u.SocialMedia, cell, yesNo(u.IsVerified), consent)
}

func yesNo(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func showCurrentOrder(_ context.Context, req command.Request) (command.Result, error) {
	if req.User == nil {
		return command.Text(msgUserNotFound), nil
	}
	lines := req.User.CurrentOrder
	if len(lines) == 0 {
		return command.Text(msgOrderEmpty), nil
	}

	out := make([]string, 0, len(lines)+5)
	out = append(out, "📋 *Your Current Order:*", "")
	qty := 0
	for _, it := range lines {
		out = append(out, it.String())
		qty += it.Quantity
	}
	out = append(out, "",
		"Total items: "+strconv.Itoa(len(lines)),
		"Total quantity: "+strconv.Itoa(qty))
	return command.Text(strings.Join(out, "\n")), nil
}
