package orders

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// BonusEvery is the order count step that earns a bonus notice.
const BonusEvery = 5

// FormatPrice renders an amount with comma thousands separators: 50000 -> "50,000".
func FormatPrice(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func adminNotice(o Order, p Product, u User, buyerName string) string {
	phone := u.Phone
	if phone == "" {
		phone = "unknown"
	}
	return fmt.Sprintf(
		"🔔 <b>New order!</b>\n\n"+
			"👤 Customer: %s\n"+
			"📱 Phone: %s\n"+
			"🆔 User ID: %d\n\n"+
			"🛍 Product: %s\n"+
			"💰 Price: %s\n"+
			"🆔 Product ID: %s\n\n"+
			"📦 Order ID: %s",
		html.EscapeString(buyerName), html.EscapeString(phone), u.ID,
		html.EscapeString(p.Name), FormatPrice(p.Price), p.ID, o.ID,
	)
}

func acceptedNotice(o Order) string {
	return fmt.Sprintf("✅ Your order %s has been accepted!\n\n📞 We will contact you soon.", o.ID)
}

func rejectedNotice(o Order) string {
	return fmt.Sprintf("❌ Your order %s was rejected.\n\n📝 Reason: %s", o.ID, html.EscapeString(o.RejectReason))
}

func bonusNotice(count int) string {
	return fmt.Sprintf("🎉 CONGRATULATIONS!\n\nYou have placed %d orders!\n🎁 You have earned a bonus!", count)
}
