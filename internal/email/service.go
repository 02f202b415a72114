package email

import (
	"fmt"
	"net/smtp"

	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/model"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
	send sendFunc
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
		send: smtp.SendMail,
	}
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(to, orderID string, total decimal.Decimal, items []OrderItem) error {
	subject := fmt.Sprintf("Order confirmation (order %s)", shortID(orderID))
	return s.deliver(to, subject, BuildOrderConfirmationBody(orderID, total, items))
}

// SendStatusUpdate tells the customer their order moved to a new status.
func (s *Service) SendStatusUpdate(to, orderID string, status model.OrderStatus) error {
	subject := fmt.Sprintf("Your order %s is now %s", shortID(orderID), status)
	return s.deliver(to, subject, BuildStatusUpdateBody(orderID, status))
}

// SendLowStockAlert warns the back office that a product is running out.
func (s *Service) SendLowStockAlert(to string, alert LowStock) error {
	subject := fmt.Sprintf("Low stock: %s (%d left)", alert.ProductName, alert.Stock)
	return s.deliver(to, subject, BuildLowStockBody(alert))
}

func (s *Service) deliver(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := s.send(addr, nil, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
