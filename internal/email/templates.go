package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/model"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// LowStock describes a product whose stock fell to the alert threshold.
type LowStock struct {
	ProductID   string
	ProductName string
	Stock       int
	Threshold   int
}

const pageStart = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">`

const pageEnd = `
		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This message was sent automatically. Please contact support if you have any questions.
		</p>
	</div>
</body>
</html>`

func page(title, content string) string {
	return pageStart + html.EscapeString(title) + `</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">` +
		content + pageEnd
}

func orderNumberBox(orderID string) string {
	return fmt.Sprintf(`
		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
		</div>`, html.EscapeString(orderID))
}

// BuildOrderConfirmationBody builds the HTML body for order confirmation email
func BuildOrderConfirmationBody(orderID string, total decimal.Decimal, items []OrderItem) string {
	var itemsHTML strings.Builder
	for _, item := range items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		itemsHTML.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
			</tr>`,
			html.EscapeString(name),
			item.Quantity,
			formatMoney(item.Price),
			formatMoney(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))),
		))
	}

	content := `
		<p style="margin-top: 0;">Thank you for your order. Payment is collected on delivery.</p>` +
		orderNumberBox(orderID) + fmt.Sprintf(`

		<h2 style="font-size: 18px; border-bottom: 2px solid #667eea; padding-bottom: 10px;">Order details</h2>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left; font-weight: 600;">Product</th>
					<th style="padding: 12px; text-align: center; font-weight: 600;">Qty</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Unit price</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 14px; color: #666;">Total</span>
			<span style="font-size: 24px; font-weight: bold; color: #667eea; margin-left: 10px;">%s</span>
		</div>`, itemsHTML.String(), formatMoney(total))

	return page("Thank you for your order", content)
}

// BuildStatusUpdateBody builds the HTML body for an order status change.
func BuildStatusUpdateBody(orderID string, status model.OrderStatus) string {
	content := fmt.Sprintf(`
		<p style="margin-top: 0;">%s</p>`, html.EscapeString(statusMessage(status))) +
		orderNumberBox(orderID)
	return page("Order "+string(status), content)
}

func statusMessage(status model.OrderStatus) string {
	switch status {
	case model.OrderProcessing:
		return "We are preparing your order."
	case model.OrderShipped:
		return "Your order is on its way."
	case model.OrderCompleted:
		return "Your order has been delivered."
	case model.OrderCancelled:
		return "Your order has been cancelled."
	default:
		return "Your order status is now " + string(status) + "."
	}
}

// BuildLowStockBody builds the HTML body for a low stock alert.
func BuildLowStockBody(alert LowStock) string {
	content := fmt.Sprintf(`
		<p style="margin-top: 0;"><strong>%s</strong> has %d unit(s) left (alert threshold %d).</p>
		<p style="font-size: 14px; color: #666; font-family: monospace;">%s</p>`,
		html.EscapeString(alert.ProductName), alert.Stock, alert.Threshold, html.EscapeString(alert.ProductID))
	return page("Low stock alert", content)
}

// formatMoney renders an amount with two decimals and comma separators
func formatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	intPart, frac, _ := strings.Cut(d.Abs().StringFixed(2), ".")

	var result strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return sign + "$" + result.String() + "." + frac
}
