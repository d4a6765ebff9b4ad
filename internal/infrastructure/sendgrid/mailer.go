package sendgrid

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/go-otp-auth/internal/domain"
)

const sendEndpoint = "/v3/mail/send"

// Mailer sends plain-text mail through the SendGrid v3 API.
type Mailer struct {
	apiKey string
	host   string
}

// NewMailer returns a Mailer for apiKey. host is the API origin, e.g. https://api.sendgrid.com.
func NewMailer(apiKey, host string) *Mailer {
	return &Mailer{apiKey: apiKey, host: host}
}

func (m *Mailer) Send(ctx context.Context, msg domain.Message) error {
	from := mail.NewEmail(msg.From.Name, msg.From.Email)
	to := mail.NewEmail(msg.To.Name, msg.To.Email)
	body := mail.GetRequestBody(mail.NewSingleEmail(from, msg.Subject, to, msg.Text, ""))

	req := sg.GetRequest(m.apiKey, sendEndpoint, m.host)
	req.Method = rest.Post
	req.Body = body

	resp, err := sg.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid responded %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
