package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jordan-wright/email"

	"github.com/arcosum/arcobot/internal/messaging"
	"github.com/arcosum/arcobot/internal/models"
)

// LeadTemplateName is the pre-approved WhatsApp template for seller alerts.
const LeadTemplateName = "notificacion_lead_calificado"

// LeadTemplateLanguage is the template locale.
const LeadTemplateLanguage = "es_MX"

// Seller is one sales contact for a division.
type Seller struct {
	Phone string
	Email string
}

// SMTPConfig carries the outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c SMTPConfig) configured() bool {
	return c.Host != "" && c.From != ""
}

func (c SMTPConfig) addr() string {
	port := c.Port
	if port == 0 {
		port = 587
	}
	return c.Host + ":" + strconv.Itoa(port)
}

// Notifier fans a qualified lead out to the division's sellers over
// WhatsApp and email.
type Notifier struct {
	msg     messaging.Service
	smtp    SMTPConfig
	sellers map[models.Division][]Seller
	// sendMail is swappable for tests.
	sendMail func(e *email.Email, addr string, auth smtp.Auth) error
}

// Opts holds notifier configuration.
type Opts struct {
	SMTP    SMTPConfig
	Sellers map[models.Division][]Seller
}

// Option configures the notifier.
type Option func(*Opts)

// WithSMTP enables email alerts.
func WithSMTP(cfg SMTPConfig) Option {
	return func(o *Opts) { o.SMTP = cfg }
}

// WithSellers overrides the seller directory loaded from the environment.
func WithSellers(sellers map[models.Division][]Seller) Option {
	return func(o *Opts) { o.Sellers = sellers }
}

// NewNotifier creates a notifier. Without WithSellers the directory is
// read from SELLER_PHONES_<DIVISION> / SELLER_EMAILS_<DIVISION>.
func NewNotifier(msg messaging.Service, opts ...Option) *Notifier {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Sellers == nil {
		cfg.Sellers = SellersFromEnv()
	}
	return &Notifier{
		msg:     msg,
		smtp:    cfg.SMTP,
		sellers: cfg.Sellers,
		sendMail: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SellersFromEnv reads the seller directory from the environment.
// Phones and emails are comma-separated and paired by position.
func SellersFromEnv() map[models.Division][]Seller {
	out := make(map[models.Division][]Seller)
	for _, division := range []models.Division{models.DivisionTechos, models.DivisionRolados, models.DivisionSuministros, models.DivisionOtros} {
		suffix := strings.ToUpper(string(division))
		phones := splitList(os.Getenv("SELLER_PHONES_" + suffix))
		emails := splitList(os.Getenv("SELLER_EMAILS_" + suffix))
		sellers := make([]Seller, 0, len(phones))
		for i, phone := range phones {
			s := Seller{Phone: phone}
			if i < len(emails) {
				s.Email = emails[i]
			}
			sellers = append(sellers, s)
		}
		if len(sellers) > 0 {
			out[division] = sellers
		}
	}
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// NotifyQualifiedLead alerts every seller assigned to the lead's division.
// WhatsApp delivery is attempted first with the approved template, then a
// detailed free-form message; email goes out when SMTP is configured.
func (n *Notifier) NotifyQualifiedLead(ctx context.Context, analysis *models.LeadAnalysis) error {
	sellers := n.sellers[analysis.Division]
	if len(sellers) == 0 {
		sellers = n.sellers[models.DivisionOtros]
	}
	if len(sellers) == 0 {
		slog.Warn("Notifier has no sellers for division", "division", analysis.Division)
		return nil
	}

	detail := leadDetailMessage(analysis)
	params := templateParams(analysis)
	var firstErr error
	for _, seller := range sellers {
		if seller.Phone != "" {
			if err := n.msg.SendTemplate(ctx, seller.Phone, LeadTemplateName, LeadTemplateLanguage, params); err != nil {
				slog.Warn("Notifier template send failed, falling back to text", "error", err, "seller", seller.Phone)
			}
			if err := n.msg.SendText(ctx, seller.Phone, detail); err != nil {
				slog.Error("Notifier WhatsApp alert failed", "error", err, "seller", seller.Phone)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			slog.Info("Notifier WhatsApp alert sent", "seller", seller.Phone, "phone", analysis.PhoneNumber, "score", analysis.LeadScore)
		}
		if seller.Email != "" && n.smtp.configured() {
			if err := n.sendEmail(seller.Email, analysis); err != nil {
				slog.Error("Notifier email alert failed", "error", err, "seller", seller.Email)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			slog.Info("Notifier email alert sent", "seller", seller.Email, "phone", analysis.PhoneNumber)
		}
	}
	return firstErr
}

func templateParams(analysis *models.LeadAnalysis) []string {
	return []string{
		analysis.PhoneNumber,
		strconv.Itoa(analysis.LeadScore),
		string(analysis.LeadType),
		analysis.Division.DisplayName(),
		analysis.Summary,
		analysis.NextAction,
	}
}

// leadDetailMessage renders the seller-facing WhatsApp alert.
func leadDetailMessage(analysis *models.LeadAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 *NUEVO LEAD CALIFICADO - Score: %d/10*\n\n", analysis.LeadScore)
	fmt.Fprintf(&b, "📱 *Cliente:* %s\n", analysis.PhoneNumber)
	fmt.Fprintf(&b, "🏢 *División:* %s\n", analysis.Division.DisplayName())
	fmt.Fprintf(&b, "🏷️ *Tipo:* %s\n\n", analysis.LeadType)
	fmt.Fprintf(&b, "📋 *Resumen:* %s\n", analysis.Summary)
	if analysis.NextAction != "" {
		fmt.Fprintf(&b, "➡️ *Siguiente paso:* %s\n", analysis.NextAction)
	}
	if len(analysis.ProjectInfo) > 0 {
		b.WriteString("\n📝 *Datos del proyecto:*\n")
		for _, key := range sortedKeys(analysis.ProjectInfo) {
			fmt.Fprintf(&b, "• %s: %s\n", key, analysis.ProjectInfo[key])
		}
	}
	fmt.Fprintf(&b, "\n💬 Responder: https://wa.me/%s", strings.TrimPrefix(analysis.PhoneNumber, "+"))
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sendEmail delivers the HTML + plain-text alert to one seller.
func (n *Notifier) sendEmail(to string, analysis *models.LeadAnalysis) error {
	e := email.NewEmail()
	e.From = n.smtp.From
	e.To = []string{to}
	e.Subject = fmt.Sprintf("🔔 Nuevo Lead Calificado - Score: %d/10", analysis.LeadScore)
	e.Text = []byte(leadDetailMessage(analysis))
	e.HTML = []byte(leadEmailHTML(analysis))

	var auth smtp.Auth
	if n.smtp.Username != "" {
		auth = smtp.PlainAuth("", n.smtp.Username, n.smtp.Password, n.smtp.Host)
	}
	if err := n.sendMail(e, n.smtp.addr(), auth); err != nil {
		return fmt.Errorf("failed to send lead email to %s: %w", to, err)
	}
	return nil
}

func leadEmailHTML(analysis *models.LeadAnalysis) string {
	var b strings.Builder
	b.WriteString("<h2>🔔 Nuevo Lead Calificado</h2>")
	fmt.Fprintf(&b, "<p><b>Score:</b> %d/10</p>", analysis.LeadScore)
	fmt.Fprintf(&b, "<p><b>Cliente:</b> %s</p>", analysis.PhoneNumber)
	fmt.Fprintf(&b, "<p><b>División:</b> %s</p>", analysis.Division.DisplayName())
	fmt.Fprintf(&b, "<p><b>Tipo:</b> %s</p>", analysis.LeadType)
	fmt.Fprintf(&b, "<p><b>Resumen:</b> %s</p>", analysis.Summary)
	if analysis.NextAction != "" {
		fmt.Fprintf(&b, "<p><b>Siguiente paso:</b> %s</p>", analysis.NextAction)
	}
	if len(analysis.ProjectInfo) > 0 {
		b.WriteString("<h3>Datos del proyecto</h3><ul>")
		for _, key := range sortedKeys(analysis.ProjectInfo) {
			fmt.Fprintf(&b, "<li><b>%s:</b> %s</li>", key, analysis.ProjectInfo[key])
		}
		b.WriteString("</ul>")
	}
	fmt.Fprintf(&b, `<p><a href="https://wa.me/%s">Responder por WhatsApp</a></p>`, strings.TrimPrefix(analysis.PhoneNumber, "+"))
	return b.String()
}
