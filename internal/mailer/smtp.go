package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/DannyIGuesss/el-frijolito-site/internal/config"
)

type SMTPSender struct {
	client *mail.Client
}

func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Port),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPSender{client: client}, nil
}

// Send dials, delivers msgs and disconnects.
func (s *SMTPSender) Send(ctx context.Context, msgs ...*mail.Msg) error {
	return s.client.DialAndSendWithContext(ctx, msgs...)
}

func (s *SMTPSender) Close() error {
	return s.client.Close()
}
