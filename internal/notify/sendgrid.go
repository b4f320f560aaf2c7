package notify

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"github.com/voxrelay/voxrelay-backend/internal/config"
)

// Dispatcher delivers the call summary to the recipient. Delivery failures
// are reported as errors but callers treat them as terminal-but-contained:
// they must never abort the completion pipeline.
type Dispatcher interface {
	SendSummary(recipientEmail, summaryText, sessionID string) error
}

// SendGridDispatcher sends templated summary emails through SendGrid.
type SendGridDispatcher struct {
	cfg    config.SendGridConfig
	logger *logrus.Logger
}

func NewSendGridDispatcher(cfg config.SendGridConfig, logger *logrus.Logger) *SendGridDispatcher {
	return &SendGridDispatcher{cfg: cfg, logger: logger}
}

// SendSummary renders the dynamic template and sends it. An unconfigured
// dispatcher logs a warning and succeeds so pipelines still complete in
// environments without email credentials.
func (d *SendGridDispatcher) SendSummary(recipientEmail, summaryText, sessionID string) error {
	if d.cfg.APIKey == "" || d.cfg.FromEmail == "" || d.cfg.TemplateID == "" {
		d.logger.WithField("session_id", sessionID).Warn("Summary email config missing, skipping notification")
		return nil
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail("", d.cfg.FromEmail))
	m.SetTemplateID(d.cfg.TemplateID)

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", recipientEmail))
	p.SetDynamicTemplateData("summary", summaryText)
	p.SetDynamicTemplateData("session_id", sessionID)
	m.AddPersonalizations(p)

	client := sendgrid.NewSendClient(d.cfg.APIKey)
	resp, err := client.Send(m)
	if err != nil {
		return fmt.Errorf("summary email send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("summary email rejected with status %d: %s", resp.StatusCode, resp.Body)
	}

	d.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"status":     resp.StatusCode,
	}).Info("Summary email sent")
	return nil
}
