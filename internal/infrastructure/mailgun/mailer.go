package mailgun

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"

	"github.com/go-otp-auth/internal/domain"
)

const sendTimeout = 10 * time.Second

// Mailer sends plain-text mail through the Mailgun API.
type Mailer struct {
	client *mg.MailgunImpl
}

// NewMailer returns a Mailer for the sending domain. apiBase overrides the API endpoint when set.
func NewMailer(sendingDomain, apiKey, apiBase string) *Mailer {
	client := mg.NewMailgun(sendingDomain, apiKey)
	if apiBase != "" {
		client.SetAPIBase(apiBase)
	}
	return &Mailer{client: client}
}

func (m *Mailer) Send(ctx context.Context, msg domain.Message) error {
	message := m.client.NewMessage(formatAddress(msg.From), msg.Subject, msg.Text, formatAddress(msg.To))

	c, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if _, _, err := m.client.Send(c, message); err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	return nil
}

func formatAddress(a domain.Address) string {
	if a.Name == "" {
		return a.Email
	}
	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}
