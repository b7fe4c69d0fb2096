// Package notification dispatches escalation emails for overdue faults and
// keeps an audit row per attempt.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"golang.org/x/time/rate"

	"github.com/sitewatch/inspection-engine/internal/config"
	"github.com/sitewatch/inspection-engine/internal/database"
)

const channelEmail = "email"

// AuditStore records notification attempts. Implemented by
// database.NotificationRepository.
type AuditStore interface {
	Create(ctx context.Context, n *database.Notification) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, sendErr error) error
}

// Dispatcher sends escalation emails through the configured provider,
// rate limited so a large overdue backlog cannot flood the mail gateway.
type Dispatcher struct {
	config   config.EmailConfig
	logger   *slog.Logger
	audit    AuditStore
	limiter  *rate.Limiter
	sendgrid *sendgrid.Client
}

// NewDispatcher creates an email dispatcher.
func NewDispatcher(cfg config.EmailConfig, audit AuditStore, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		config:  cfg,
		logger:  logger,
		audit:   audit,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMin)/60.0), cfg.RateLimitPerMin),
	}
	if cfg.Provider == "sendgrid" {
		d.sendgrid = sendgrid.NewSendClient(cfg.SendGridAPIKey)
	}
	return d
}

// SendEscalation emails every configured recipient about an overdue fault.
// Each recipient gets its own audit row; a partial failure is reported but
// does not stop the remaining recipients.
func (d *Dispatcher) SendEscalation(ctx context.Context, fault *database.Fault, now time.Time) error {
	if !d.config.Enabled {
		d.logger.Debug("Email disabled, skipping escalation dispatch", "fault_id", fault.ID)
		return nil
	}
	if len(d.config.Recipients) == 0 {
		return fmt.Errorf("no escalation recipients configured")
	}

	subject := d.subject(fault)
	body := d.body(fault, now)

	var firstErr error
	for _, recipient := range d.config.Recipients {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		record := &database.Notification{
			ID:        uuid.NewString(),
			FaultID:   fault.ID,
			Channel:   channelEmail,
			Recipient: recipient,
			Subject:   subject,
			Content:   body,
			Status:    database.NotificationPending,
		}
		if err := d.audit.Create(ctx, record); err != nil {
			return err
		}

		if err := d.send(ctx, recipient, subject, body); err != nil {
			d.logger.Error("Escalation email failed",
				"fault_id", fault.ID, "recipient", recipient, "error", err)
			if markErr := d.audit.MarkFailed(ctx, record.ID, err); markErr != nil {
				d.logger.Error("Failed to record notification failure",
					"notification_id", record.ID, "error", markErr)
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if err := d.audit.MarkSent(ctx, record.ID, time.Now()); err != nil {
			d.logger.Error("Failed to record notification sent",
				"notification_id", record.ID, "error", err)
		}
		d.logger.Info("Escalation email sent", "fault_id", fault.ID, "recipient", recipient)
	}

	return firstErr
}

func (d *Dispatcher) subject(fault *database.Fault) string {
	severity := "Fault"
	if fault.IsCritical {
		severity = "CRITICAL fault"
	}
	return fmt.Sprintf("[sitewatch] %s still open on site %s (%s)", severity, fault.Site, fault.Type)
}

func (d *Dispatcher) body(fault *database.Fault, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fault %s on site %s has been open for %d hour(s).\n\n",
		fault.ID, fault.Site, int(now.Sub(fault.ReportedTime).Hours()))
	fmt.Fprintf(&b, "Type:        %s\n", fault.Type)
	if fault.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", fault.Description)
	}
	fmt.Fprintf(&b, "Status:      %s\n", fault.Status)
	fmt.Fprintf(&b, "Reported by: %s at %s\n", fault.ReportedBy, fault.ReportedTime.Format(time.RFC3339))
	if fault.Technician != nil {
		fmt.Fprintf(&b, "Technician:  %s\n", *fault.Technician)
	}
	return b.String()
}

func (d *Dispatcher) send(ctx context.Context, recipient, subject, body string) error {
	switch d.config.Provider {
	case "sendgrid":
		return d.sendViaSendGrid(ctx, recipient, subject, body)
	case "smtp":
		return d.sendViaSMTP(recipient, subject, body)
	default:
		return fmt.Errorf("unknown email provider %q", d.config.Provider)
	}
}

func (d *Dispatcher) sendViaSendGrid(ctx context.Context, recipient, subject, body string) error {
	from := mail.NewEmail(d.config.FromName, d.config.FromAddress)
	to := mail.NewEmail("", recipient)
	message := mail.NewSingleEmail(from, subject, to, body, "")

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	response, err := d.sendgrid.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}
	return nil
}

func (d *Dispatcher) sendViaSMTP(recipient, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", d.config.SMTPHost, d.config.SMTPPort)
	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		d.config.FromName, d.config.FromAddress, recipient, subject, body)

	var auth smtp.Auth
	if d.config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", d.config.SMTPUsername, d.config.SMTPPassword, d.config.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, d.config.FromAddress, []string{recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}
