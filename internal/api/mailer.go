package api

import (
	"context"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/config"
	"dairyfarm/backend/internal/finance"
)

// Mailer sends a plain-text message to one recipient.
type Mailer interface {
	Send(toEmail, subject, plainBody string) error
}

type smtpMailer struct {
	host     string
	port     string
	username string
	password string
	fromName string
	fromAddr string
}

// NewSMTPMailer returns nil when cfg is incomplete, which leaves reminders
// switched off.
func NewSMTPMailer(cfg config.SMTPConfig) Mailer {
	if !cfg.Enabled() {
		return nil
	}
	return &smtpMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		fromName: strings.TrimSpace(cfg.FromName),
		fromAddr: cfg.FromAddr,
	}
}

func (m *smtpMailer) Send(toEmail, subject, plainBody string) error {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return fmt.Errorf("missing recipient")
	}

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	fromHeader := m.fromAddr
	if m.fromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", m.fromName, m.fromAddr)
	}
	msg := strings.Join([]string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", toEmail),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		plainBody,
	}, "\r\n")

	return smtp.SendMail(m.host+":"+m.port, auth, m.fromAddr, []string{toEmail}, []byte(msg))
}

func reminderMessage(inv finance.Invoice, c finance.Customer, company string, today time.Time) (string, string) {
	subject := fmt.Sprintf("Payment reminder: invoice %s", inv.InvoiceNumber)
	due := fmt.Sprintf("was due on %s", finance.FormatLongDate(inv.DueDate))
	if finance.IsOverdue(inv, today) {
		days := int(today.Sub(inv.DueDate).Hours() / 24)
		due = fmt.Sprintf("%s and is %d %s overdue", due, days, plural(days, "day", "days"))
		subject = fmt.Sprintf("Overdue: invoice %s", inv.InvoiceNumber)
	} else {
		due = fmt.Sprintf("is due on %s", finance.FormatLongDate(inv.DueDate))
	}

	greeting := strings.TrimSpace(c.ContactPerson)
	if greeting == "" {
		greeting = c.Name
	}
	body := strings.Join([]string{
		fmt.Sprintf("Dear %s,", greeting),
		"",
		fmt.Sprintf("Invoice %s dated %s for %s %s.", inv.InvoiceNumber, finance.FormatLongDate(inv.Date), finance.FormatINR(inv.Amount), due),
		"Please arrange payment at your earliest convenience. If you have already paid, kindly ignore this message.",
		"",
		"Regards,",
		company,
	}, "\n")
	return subject, body
}

// handleInvoiceReminder emails the customer about one unpaid invoice.
func (s *Server) handleInvoiceReminder(w http.ResponseWriter, r *http.Request) {
	if s.mailer == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "email is not configured"})
		return
	}
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		respondError(w, r, err, "failed to load invoice")
		return
	}
	if !inv.Status.Unpaid() {
		respondError(w, r, fmt.Errorf("%w: invoice is %s", apperr.ErrConflict, inv.Status), "")
		return
	}
	customer, err := s.store.GetCustomer(ctx, inv.CustomerID)
	if err != nil {
		respondError(w, r, err, "failed to load customer")
		return
	}
	if !emailRe.MatchString(strings.TrimSpace(customer.Email)) {
		respondError(w, r, apperr.Invalid("email", "customer has no valid email address"), "")
		return
	}

	subject, body := reminderMessage(inv, customer, s.settings.CompanyName, s.today())
	if err := s.mailer.Send(customer.Email, subject, body); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("invoice", inv.InvoiceNumber).Msg("reminder send failed")
		respondJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to send reminder"})
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("invoice", inv.InvoiceNumber).Int64("customer_id", customer.ID).Msg("reminder sent")
	respondJSON(w, http.StatusOK, map[string]any{"sent": true, "to": customer.Email})
}
