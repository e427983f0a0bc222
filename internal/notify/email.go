package notify

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/wneessen/go-mail"

	"github.com/sells-group/watchtracker/internal/config"
)

// Email sends notifications over SMTP.
type Email struct {
	cfg  config.EmailConfig
	send func(ctx context.Context, msg *mail.Msg) error
}

// NewEmail creates an Email notifier that dials cfg.Host for every message.
func NewEmail(cfg config.EmailConfig) *Email {
	e := &Email{cfg: cfg}
	e.send = e.dialAndSend
	return e
}

// Name implements Notifier.
func (e *Email) Name() string { return "email" }

// Notify implements Notifier.
func (e *Email) Notify(ctx context.Context, n Notification) error {
	msg, err := e.buildMessage(n)
	if err != nil {
		return err
	}
	return e.send(ctx, msg)
}

func (e *Email) buildMessage(n Notification) (*mail.Msg, error) {
	body, err := renderHTML(n)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(e.cfg.From); err != nil {
		return nil, eris.Wrap(err, "email: from address")
	}
	if err := msg.To(e.cfg.To...); err != nil {
		return nil, eris.Wrap(err, "email: to address")
	}
	msg.Subject(subject(n))
	msg.SetBodyString(mail.TypeTextHTML, body)
	return msg, nil
}

func (e *Email) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(e.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if e.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.cfg.Username),
			mail.WithPassword(e.cfg.Password),
		)
	}

	client, err := mail.NewClient(e.cfg.Host, opts...)
	if err != nil {
		return eris.Wrap(err, "email: create client")
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return eris.Wrap(err, "email: send")
	}
	return nil
}
