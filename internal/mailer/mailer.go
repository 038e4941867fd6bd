// Package mailer delivers the rendered report over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"vtreporter/internal/recipients"
	logx "vtreporter/pkg/logx"
)

type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

type Mailer struct {
	cfg  Config
	list *recipients.Store
	log  logx.Logger

	now func() time.Time
}

func New(cfg Config, list *recipients.Store, log logx.Logger) *Mailer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Mailer{cfg: cfg, list: list, log: log, now: time.Now}
}

// Send mails the HTML report with the CSV attached. The recipient and BCC
// lists are read at call time, not at job-schedule time, so admin edits take
// effect on the next run. Transport errors propagate to the caller.
func (m *Mailer) Send(ctx context.Context, html string, csvData []byte) error {
	list := m.list.Get()
	if len(list.Recipients) == 0 && len(list.BCC) == 0 {
		return errors.New("no recipients configured")
	}

	ts := m.now().Format("2006-01-02 15:04")
	subject := "Video Transcoding Report - " + ts
	if len(csvData) > 0 {
		subject = "Video Transcoding Report (CSV attached) - " + ts
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if len(list.Recipients) > 0 {
		if err := msg.To(list.Recipients...); err != nil {
			return fmt.Errorf("mail to: %w", err)
		}
	}
	if len(list.BCC) > 0 {
		if err := msg.Bcc(list.BCC...); err != nil {
			return fmt.Errorf("mail bcc: %w", err)
		}
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)

	if len(csvData) > 0 {
		if err := msg.AttachReader(AttachmentName(ts), bytes.NewReader(csvData)); err != nil {
			return fmt.Errorf("attach csv: %w", err)
		}
	}

	client, err := mail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send report mail: %w", err)
	}

	m.log.Info("report email sent",
		logx.String("subject", subject),
		logx.Int("recipients", len(list.Recipients)),
		logx.Int("bcc", len(list.BCC)),
	)
	return nil
}

// clientOptions authenticates only when credentials are configured, so an
// open relay that does not advertise AUTH still accepts the send.
func (m *Mailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.User),
			mail.WithPassword(m.cfg.Pass),
		)
	}
	return opts
}

// AttachmentName derives the CSV filename from the subject timestamp,
// replacing the characters mail clients dislike.
func AttachmentName(ts string) string {
	r := strings.NewReplacer(":", "-", " ", "-")
	return "video-transcoding-report-" + r.Replace(ts) + ".csv"
}
