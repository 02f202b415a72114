package email

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-storefront/internal/domain/model"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestService(sent *[]sentMail, err error) *Service {
	s := NewService("mail.local", "1025", "shop@example.com")
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		if err != nil {
			return err
		}
		*sent = append(*sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return s
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"19.9", "$19.90"},
		{"999.99", "$999.99"},
		{"1000", "$1,000.00"},
		{"1234567.505", "$1,234,567.51"},
		{"-42.5", "-$42.50"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMoney(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestBuildOrderConfirmationBody(t *testing.T) {
	body := BuildOrderConfirmationBody("order-123", decimal.RequireFromString("44.98"), []OrderItem{
		{ProductID: "p1", Name: "Lamp <deluxe>", Quantity: 2, Price: decimal.RequireFromString("19.99")},
		{ProductID: "p2", Quantity: 1, Price: decimal.RequireFromString("5.00")},
	})

	assert.Contains(t, body, "order-123")
	assert.Contains(t, body, "Lamp &lt;deluxe&gt;")
	assert.Contains(t, body, "$39.98")
	assert.Contains(t, body, ">p2<")
	assert.Contains(t, body, "$44.98")
	assert.NotContains(t, body, "%!")
}

func TestService_SendOrderConfirmation(t *testing.T) {
	var sent []sentMail
	s := newTestService(&sent, nil)

	err := s.SendOrderConfirmation("ann@example.com", "0123456789abcdef", decimal.NewFromInt(10), nil)

	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "mail.local:1025", sent[0].addr)
	assert.Equal(t, "shop@example.com", sent[0].from)
	assert.Equal(t, []string{"ann@example.com"}, sent[0].to)
	assert.Contains(t, sent[0].msg, "Subject: Order confirmation (order 01234567)\r\n")
	assert.True(t, strings.Contains(sent[0].msg, "Content-Type: text/html; charset=UTF-8"))
}

func TestService_SendStatusUpdateAndLowStock(t *testing.T) {
	var sent []sentMail
	s := newTestService(&sent, nil)

	require.NoError(t, s.SendStatusUpdate("ann@example.com", "order-1", model.OrderShipped))
	require.NoError(t, s.SendLowStockAlert("ops@example.com", LowStock{ProductID: "p1", ProductName: "Lamp", Stock: 2, Threshold: 5}))

	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].msg, "Subject: Your order order-1 is now Shipped")
	assert.Contains(t, sent[0].msg, "on its way")
	assert.Contains(t, sent[1].msg, "Subject: Low stock: Lamp (2 left)")
	assert.Contains(t, sent[1].msg, "alert threshold 5")
}

func TestService_SendError(t *testing.T) {
	var sent []sentMail
	s := newTestService(&sent, errors.New("connection refused"))

	err := s.SendStatusUpdate("ann@example.com", "order-1", model.OrderCancelled)

	assert.ErrorContains(t, err, "connection refused")
	assert.Empty(t, sent)
}
