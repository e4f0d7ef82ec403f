package commands

import (
	"strings"

	"github.com/dmitrymomot/chatbridge/internal/command"
)

const fieldExamples = "#update name: <name>\n#update email: <email>\n#update social: <social>\n#update cell: <cell>\n#update consent: <yes/no>"

// Table is the static command registration table.
func Table(deps Deps) []command.Definition {
	d := deps.withDefaults()

	menu := func() command.Command { return command.Func(showMenu) }
	shop := func() command.Command { return command.Func(showShop) }
	userInfo := func() command.Command { return command.Func(showUserInfo) }
	current := func() command.Command { return command.Func(showCurrentOrder) }
	driver := func() command.Command { return &driverLogin{deps: d} }

	return []command.Definition{
		{Key: KeyMenu, Description: "Show this menu", ShowInMenu: true, Group: 1, Order: 1, Factory: menu},
		{Key: KeyShop, Description: "Show shop details", ShowInMenu: true, Group: 1, Order: 2, Factory: shop},
		{Key: KeyUserInfo, Description: "Show user information", ShowInMenu: true, Group: 1, Order: 3, Factory: userInfo},
		{Key: KeyUserInfoAlias, Description: "Show user information", Group: 1, Order: 3, Factory: userInfo},
		{Key: KeyDriverLogin, Description: "Driver login", ShowInMenu: true, Group: 1, Order: 4, Factory: driver},
		{Key: KeyDriverAlias, Description: "Driver login", Group: 1, Order: 4, Factory: driver},
		{Key: KeyCurrentOrder, Description: "Show your current order", ShowInMenu: true, Group: 1, Order: 5, Factory: current},
		{Key: KeyCurrentAlias, Description: "Show your current order", Group: 3, Order: 1, Factory: current},
		{
			Key:         KeyCheckout,
			Description: "Checkout and pay for your current order",
			ShowInMenu:  true,
			Group:       1,
			Order:       6,
			Factory:     func() command.Command { return newCheckout(d) },
		},
		{
			Key:         KeyIDFront,
			Description: "Send a photo of the front of your ID",
			ShowInMenu:  true,
			Group:       2,
			Order:       1,
			Factory:     func() command.Command { return &idImage{deps: d, side: "front"} },
		},
		{
			Key:         KeyIDBack,
			Description: "Send a photo of the back of your ID",
			ShowInMenu:  true,
			Group:       2,
			Order:       2,
			Factory:     func() command.Command { return &idImage{deps: d, side: "back"} },
		},
		{
			Key:         KeyCampaignImage,
			Description: "Save the attached image as a campaign image",
			Group:       4,
			Order:       1,
			Factory:     func() command.Command { return &campaignImage{deps: d} },
		},
		{
			Key:         KeyUpdateOrder,
			Description: "#update order: <Quantity:MenuCode (modifications)>",
			ShowInMenu:  true,
			Group:       3,
			Order:       2,
			Factory:     func() command.Command { return &updateOrder{deps: d} },
		},
		{
			Key:         KeyUpdateField,
			Description: fieldExamples,
			ShowInMenu:  true,
			Group:       3,
			Order:       2,
			Factory:     func() command.Command { return &updateField{deps: d} },
			Exclude: func(groups []string) bool {
				return len(groups) > 0 && strings.EqualFold(strings.TrimSpace(groups[0]), "order")
			},
		},
	}
}
