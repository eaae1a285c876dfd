package router

import (
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Presentation helpers: pure functions turning API payloads into HTML chat
// text. Payloads are the decoded JSON values the merchant client returns;
// absent fields render as an em dash rather than erroring.

var statusNames = map[string]string{
	"pending":   "Pending payment",
	"paid":      "Paid",
	"underpaid": "Underpaid",
	"expired":   "Expired",
	"closed":    "Closed",
	"error":     "Error",
}

// StatusName renders a payment status for display. Unknown statuses pass
// through lowercased; an absent status is "Unknown".
func StatusName(status any) string {
	if status == nil || status == "" {
		return "Unknown"
	}
	s := strings.ToLower(fmt.Sprint(status))
	if name, ok := statusNames[s]; ok {
		return name
	}
	return s
}

// FormatSummary renders the merchant/info payload as the account summary.
func FormatSummary(payload any) string {
	m, _ := payload.(map[string]any)

	balance := 0.0
	if v, ok := m["balance"]; ok {
		balance, _ = strconv.ParseFloat(fmt.Sprint(v), 64)
	}

	return fmt.Sprintf(
		"💵 Balance: <b>%.4f USDT</b>\n\n"+
			"📅 Paid payments today: <b>%s</b>\n"+
			"✅ Paid payments all time: <b>%s</b>",
		balance,
		fieldOr(m, "paid_payments_today", "Available later."),
		fieldOr(m, "paid_payments_total", "Available later."),
	)
}

// FormatHistory renders the payments/history payload. The second return is
// false when the payload carries no payments.
func FormatHistory(payload any) (string, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	items, ok := m["payments"].([]any)
	if !ok || len(items) == 0 {
		return "", false
	}

	var blocks []string
	for _, item := range items {
		if p, ok := item.(map[string]any); ok {
			blocks = append(blocks, formatPaymentBlock(p))
		}
	}
	if len(blocks) == 0 {
		return "", false
	}

	return fmt.Sprintf("Last %s payments (excluding closed):\n\n%s",
		fieldOr(m, "count", "?"), strings.Join(blocks, "\n\n")), true
}

func formatPaymentBlock(p map[string]any) string {
	lines := []string{
		fmt.Sprintf("<i>ID</i>: <code>%s</code>", htmlEscape(fieldOr(p, "id", "—"))),
		fmt.Sprintf("<i>Status</i>: <b>%s</b>", StatusName(p["status"])),
		fmt.Sprintf("<i>Address</i>: <code>%s</code>", htmlEscape(fieldOr(p, "tron_address", "—"))),
		fmt.Sprintf("<i>Created</i>: <b>%s</b>  •  Until: <b>%s</b>", shortTime(p["created_at"]), shortTime(p["expires_at"])),
		fmt.Sprintf("Amount: <b>%s</b>  •  <i>To pay</i>: <b>%s</b>  •  <i>Paid</i>: <b>%s</b>",
			fieldOr(p, "amount", "-"), fieldOr(p, "amount_to_pay", "-"), fieldOr(p, "amount_paid", "-")),
	}
	return strings.Join(lines, "\n")
}

// FormatPaymentDetails renders a single payment lookup result. Closed
// payments render as just their status.
func FormatPaymentDetails(payload any) string {
	p, ok := payload.(map[string]any)
	if !ok {
		return htmlEscape(fmt.Sprint(payload))
	}
	if s, _ := p["status"].(string); s == "closed" {
		return "Payment is <b>closed</b>"
	}

	var sb strings.Builder
	sb.WriteString("<b>Payment</b>\n")
	fmt.Fprintf(&sb, "<i>ID</i>: <code>%s</code>\n", htmlEscape(fieldOr(p, "id", "—")))
	fmt.Fprintf(&sb, "<i>Status</i>: <b>%s</b>\n", StatusName(p["status"]))
	fmt.Fprintf(&sb, "<i>Address</i>: <code>%s</code>\n", htmlEscape(fieldOr(p, "tron_address", "—")))
	fmt.Fprintf(&sb, "⏱️ <i>Created</i>: <b>%s</b>\n", shortTime(p["created_at"]))
	fmt.Fprintf(&sb, "⌛️ <i>Expires</i>: <b>%s</b>\n", shortTime(p["expires_at"]))
	if v, ok := p["amount"]; ok && v != nil {
		fmt.Fprintf(&sb, "<i>Amount</i>: <b>%s</b>\n", htmlEscape(fmt.Sprint(v)))
	}
	if v, ok := p["amount_to_pay"]; ok && v != nil {
		fmt.Fprintf(&sb, "<i>To pay</i>: <b>%s</b>\n", htmlEscape(fmt.Sprint(v)))
	}
	if v, ok := p["amount_paid"]; ok && v != nil {
		fmt.Fprintf(&sb, "<i>Paid</i>: <b>%s</b>\n", htmlEscape(fmt.Sprint(v)))
	}
	fmt.Fprintf(&sb, "<i>Metadata</i>: <code>%s</code>\n\n", metadataText(p["metadata"]))

	deposits, _ := p["deposits"].([]any)
	fmt.Fprintf(&sb, "📥 <b>Deposits (%d)</b>\n", len(deposits))
	sb.WriteString(depositsText(deposits))
	return sb.String()
}

func metadataText(v any) string {
	switch m := v.(type) {
	case nil:
		return "—"
	case map[string]any:
		if len(m) == 0 {
			return "—"
		}
		var parts []string
		for k, val := range m {
			parts = append(parts, fmt.Sprintf("%s=%v", k, val))
		}
		// Map order is random; keep output stable.
		sort.Strings(parts)
		return htmlEscape(strings.Join(parts, ", "))
	default:
		return htmlEscape(fmt.Sprint(v))
	}
}

func depositsText(deposits []any) string {
	var lines []string
	for _, item := range deposits {
		d, ok := item.(map[string]any)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf(
			"• <i>ID</i>: <code>%s</code>  •    ⏱️: <b>%s</b>\n"+
				"  💵: <b>%s USDT</b>\n"+
				"  <i>TXID</i>: <code>%s</code>",
			htmlEscape(fieldOr(d, "id", "—")),
			shortTime(d["created_at"]),
			htmlEscape(fieldOr(d, "amount", "—")),
			htmlEscape(fieldOr(d, "txid", "—")),
		))
	}
	if len(lines) == 0 {
		return "—"
	}
	return strings.Join(lines, "\n")
}

// FormatDepositNotification renders the push-notification text for one
// incoming deposit.
func FormatDepositNotification(address, amount, newStatus string) string {
	return fmt.Sprintf(
		"💸 New deposit.\n\n"+
			"Address: <code><b>%s</b></code>\n"+
			"Amount: <b><i>%s</i></b>\n\n"+
			"Payment status: %s",
		htmlEscape(address), htmlEscape(amount), StatusName(newStatus))
}

// shortTime renders an RFC 3339 timestamp as "02.01 15:04"; anything
// unparseable passes through, absent values render as an em dash.
func shortTime(v any) string {
	if v == nil || v == "" {
		return "—"
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v)
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("02.01 15:04")
		}
	}
	return s
}

// fieldOr renders a payload field, or fallback when absent or nil.
func fieldOr(m map[string]any, key, fallback string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	return fmt.Sprint(v)
}

func htmlEscape(s string) string {
	return html.EscapeString(s)
}
