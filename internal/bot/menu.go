package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-chat-orders/internal/gateway"
	"github.com/ariefcatur/go-chat-orders/internal/orders"
	"github.com/ariefcatur/go-chat-orders/internal/stats"
)

// Reply menu labels. Incoming text equal to a label selects that entry.
const (
	btnOrder      = "🛍 Order a product"
	btnMyOrders   = "📦 My orders"
	btnInfo       = "ℹ️ Info"
	btnAdminPanel = "👨‍💼 Admin panel"
	btnAddProduct = "➕ Add product"
	btnStats      = "📊 Statistics"
	btnSummary    = "🔢 Summary"
	btnBack       = "🔙 Back"
	btnSharePhone = "📞 Share phone number"
)

const (
	msgNotFound        = "❌ Not found."
	msgProductNotFound = "❌ Product not found!"
	msgCancelled       = "❌ Cancelled"
	msgMainMenu        = "🏠 Main menu"
	msgAskProductID    = "🔍 Enter the product ID (G1, G2, ...):"
	msgNoOrders        = "📭 You have no orders yet."
	msgNotSubscribed   = "❌ You have not joined the channel yet!"
	msgSubConfirmed    = "✅ Subscription confirmed!"
	msgAskPhone        = "📱 Please share your phone number:"

	msgAskPhoto       = "📸 Send the product photo:\n\n/cancel - Cancel"
	msgNeedPhoto      = "❌ Please send a photo!\n\n/cancel - Cancel"
	msgNeedName       = "❌ Please enter the product name as text.\n\n/cancel - Cancel"
	msgNeedPrice      = "❌ Digits only!\n\n/cancel - Cancel"
	msgNeedDesc       = "❌ Please describe the product as text.\n\n/cancel - Cancel"
	msgNeedReason     = "❌ Please write the reason as text.\n\n/cancel - Cancel"
	msgPhotoReceived  = "✅ Photo received!\n\n📝 Enter the product name:"
	msgStatsEmpty     = "📊 <b>Statistics</b>\n\nNo orders yet."
	msgAdminPanel     = "👨‍💼 Admin panel"
	msgAlreadyOrdered = "ℹ️ This order was already placed."
	msgConfirmAgain   = "⚠️ Please open the product again and confirm from its card."
)

const (
	historyLimit = 10
	statsTopN    = 5
)

func (c *Controller) mainMenu(userID int64) *gateway.Keyboard {
	rows := [][]string{
		{btnOrder},
		{btnMyOrders, btnInfo},
	}
	if c.svc.IsAdmin(userID) {
		rows = append(rows, []string{btnAdminPanel})
	}
	return &gateway.Keyboard{Reply: rows}
}

func adminMenu() *gateway.Keyboard {
	return &gateway.Keyboard{Reply: [][]string{
		{btnAddProduct},
		{btnStats, btnSummary},
		{btnBack},
	}}
}

func phoneKeyboard() *gateway.Keyboard {
	return &gateway.Keyboard{Reply: [][]string{{btnSharePhone}}, RequestContact: true}
}

func (c *Controller) subscribePrompt() (string, *gateway.Keyboard) {
	text := fmt.Sprintf("🔐 Please join our channel to use the bot!\n\nChannel: %s", html.EscapeString(c.gate.Channel()))
	kb := &gateway.Keyboard{Inline: [][]gateway.Button{
		{{Text: "📢 Join the channel", URL: c.gate.JoinURL()}},
		{{Text: "✅ Check subscription", Token: gateway.Token(gateway.ActionCheckSub, "")}},
	}}
	return text, kb
}

func greetText(name string) string {
	return fmt.Sprintf("👋 Hello, %s!\n\n%s", html.EscapeString(name), msgAskPhone)
}

func welcomeText(name string) string {
	return fmt.Sprintf("🎉 Welcome, %s!\n\n🛒 Send a product ID or pick from the menu:", html.EscapeString(name))
}

const registeredText = "✅ You are registered!\n\n🛍 Send a product ID:"

func (c *Controller) productCard(p orders.Product) (string, *gateway.Keyboard) {
	text := fmt.Sprintf(
		"🛍 <b>%s</b>\n\n"+
			"💰 Price: <b>%s</b>\n\n"+
			"📝 Details:\n%s\n\n"+
			"🤖 Bot: @%s\n"+
			"🆔 ID: %s",
		html.EscapeString(p.Name), orders.FormatPrice(p.Price),
		html.EscapeString(p.Description), html.EscapeString(c.botUsername), p.ID,
	)
	return text, gateway.InlineRow(gateway.Button{Text: "🛒 Order", Token: gateway.Token(gateway.ActionOrder, p.ID)})
}

func confirmPrompt(p orders.Product) (string, *gateway.Keyboard) {
	text := fmt.Sprintf("❓ Confirm your order for <b>%s</b> (%s)?", html.EscapeString(p.Name), orders.FormatPrice(p.Price))
	return text, gateway.InlineRow(
		gateway.Button{Text: "✅ Yes, confirm", Token: gateway.Token(gateway.ActionConfirm, p.ID)},
		gateway.Button{Text: "❌ Cancel", Token: gateway.Token(gateway.ActionCancel, p.ID)},
	)
}

func placedText(o orders.Order) string {
	return fmt.Sprintf("✅ Your order %s has been received! An admin will review it.", o.ID)
}

func (c *Controller) infoText() string {
	return fmt.Sprintf(
		"ℹ️ <b>About</b>\n\n"+
			"🤖 Bot: @%s\n"+
			"📢 Channel: %s\n\n"+
			"📝 <b>How to order:</b>\n"+
			"1️⃣ Enter the product ID\n"+
			"2️⃣ Check the details\n"+
			"3️⃣ Place the order\n"+
			"4️⃣ Confirm it\n\n"+
			"🎁 <b>Promo:</b> a BONUS for every %d orders!",
		html.EscapeString(c.botUsername), html.EscapeString(c.gate.Channel()), orders.BonusEvery,
	)
}

func statusLabel(s orders.Status) (emoji, label string) {
	switch s {
	case orders.StatusAccepted:
		return "✅", "Accepted"
	case orders.StatusRejected:
		return "❌", "Rejected"
	default:
		return "⏳", "Pending"
	}
}

func historyText(views []orders.OrderView) string {
	var b strings.Builder
	b.WriteString("📦 <b>Your orders:</b>\n\n")
	for _, v := range views {
		emoji, label := statusLabel(v.Order.Status)
		fmt.Fprintf(&b, "%s <b>%s</b> (%s)\n   Status: %s\n", emoji, html.EscapeString(v.ProductName), v.Order.ID, label)
		if v.Order.Status == orders.StatusRejected {
			fmt.Fprintf(&b, "   Reason: %s\n", html.EscapeString(v.Order.RejectReason))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func statsText(rep stats.Report) string {
	if len(rep.Top) == 0 {
		return msgStatsEmpty
	}
	var b strings.Builder
	b.WriteString("📊 <b>Statistics</b>\n\n🏆 <b>Top products:</b>\n\n")
	for _, r := range rep.Top {
		fmt.Fprintf(&b, "%d. %s - %d pcs\n", r.Rank, html.EscapeString(r.Name), r.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}

func summaryText(s stats.Summary) string {
	return fmt.Sprintf(
		"🔢 <b>Summary</b>\n\n"+
			"📥 Total: %d\n"+
			"✅ Accepted: %d\n"+
			"❌ Rejected: %d\n"+
			"⏳ Pending: %d\n\n"+
			"📊 Acceptance: %.1f%%",
		s.Total, s.Accepted, s.Rejected, s.Pending, s.AcceptanceRate*100,
	)
}

func nameSavedText(name string) string {
	return fmt.Sprintf("✅ Name: <b>%s</b>\n\n💰 Enter the price (digits only):", html.EscapeString(name))
}

func priceSavedText(price int64) string {
	return fmt.Sprintf("✅ Price: <b>%s</b>\n\n📄 Describe the product:", orders.FormatPrice(price))
}

func productAddedText(p orders.Product) string {
	return fmt.Sprintf("✅ Product added!\n\n🆔 ID: <b>%s</b>\n🛍 Name: %s\n💰 Price: %s",
		p.ID, html.EscapeString(p.Name), orders.FormatPrice(p.Price))
}

func askReasonText(orderID string) string {
	return fmt.Sprintf("📝 Write the reason for rejecting %s:\n\n/cancel - Cancel", orderID)
}

func adjudicatedText(o orders.Order) string {
	if o.Status == orders.StatusRejected {
		return fmt.Sprintf("✅ Order %s rejected!", o.ID)
	}
	return fmt.Sprintf("✅ Order %s accepted!", o.ID)
}

func alreadyHandledText(o orders.Order) string {
	_, label := statusLabel(o.Status)
	return fmt.Sprintf("ℹ️ Order %s was already handled: %s.", o.ID, label)
}

// parsePrice accepts digits with spaces or commas as group separators.
func parsePrice(text string) (int64, bool) {
	s := strings.NewReplacer(" ", "", ",", "").Replace(strings.TrimSpace(text))
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
