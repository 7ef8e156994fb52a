package mail

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	DefaultHost  = "https://api.sendgrid.com"
	sendEndpoint = "/v3/mail/send"
	senderName   = "Loja do Clube"
)

// SendGridSender delivers HTML emails through the SendGrid v3 API.
type SendGridSender struct {
	apiKey string
	host   string
	from   *sgmail.Email
}

func NewSendGridSender(apiKey, fromAddress, host string) *SendGridSender {
	if host == "" {
		host = DefaultHost
	}
	return &SendGridSender{
		apiKey: apiKey,
		host:   host,
		from:   sgmail.NewEmail(senderName, fromAddress),
	}
}

func (s *SendGridSender) Send(ctx context.Context, recipient, subject, body string) error {
	message := sgmail.NewSingleEmail(s.from, subject, sgmail.NewEmail("", recipient), subject, body)

	request := sendgrid.GetRequest(s.apiKey, sendEndpoint, s.host)
	request.Method = "POST"
	request.Body = sgmail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return errors.Wrap(err, "failed to call sendgrid")
	}
	if response.StatusCode >= 400 {
		return errors.Errorf("sendgrid rejected message with status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}
