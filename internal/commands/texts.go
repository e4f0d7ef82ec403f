package commands

// Replies shared by several commands.
const (
	msgUserNotFound       = "❌ User not found."
	msgUserContextMissing = "❌ User context is missing."
	msgBusinessMissing    = "❌ Business context missing."
	msgBusinessNotSet     = "❌ Business not configured."
	msgNoUserInfo         = "No user info found."
	msgShopUnavailable    = "Shop information unavailable."
	msgOrderEmpty         = "📋 Your order is empty.\n\nUse #update order to add items!"
	msgCheckoutEmpty      = "📋 Your order is empty.\n\nUse #update order to add items first!"
	msgInvalidOrderFormat = "❌ Invalid order update format. Use: #update order quantity:MenuCode [(modifications)]"
	msgDriverLoginFailed  = "❌ Driver login failed. Please contact support."
	msgPaymentFailed      = "❌ Payment initiation failed. Please try again or contact support."
	msgCampaignNoImage    = "❌ Please attach an image to use #campaignimage."
	msgCampaignSaved      = "✓ Campaign image saved."
)

// Command keys.
const (
	KeyMenu          = "menu"
	KeyShop          = "shop"
	KeyUserInfo      = "userinfo"
	KeyUserInfoAlias = "user info"
	KeyDriverLogin   = "driverlogin"
	KeyDriverAlias   = "driver login"
	KeyCurrentOrder  = "currentorder"
	KeyCurrentAlias  = "current order"
	KeyCheckout      = "checkout"
	KeyCampaignImage = "campaignimage"
	KeyIDFront       = "idfront"
	KeyIDBack        = "idback"
	KeyUpdateOrder   = `update\s+order\s*:\s*(.+)`
	KeyUpdateField   = `#update\s+(\w+):\s*(.+)`
)
