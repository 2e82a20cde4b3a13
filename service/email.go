package service

import (
	"fmt"
	"html"
	"strings"

	"expensight/analytics"
	"expensight/config"

	"gopkg.in/gomail.v2"
)

// EmailService sends budget alert mail
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService creates the mail service
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendBudgetAlert mails the over-budget lines of snap to the configured recipient.
func (s *EmailService) SendBudgetAlert(userID uint, snap *analytics.Snapshot) error {
	if !s.cfg.Enabled {
		return fmt.Errorf("email disabled, set EXPENSIGHT_EMAIL_ENABLED=true")
	}
	if s.cfg.To == "" {
		return fmt.Errorf("email recipient not configured")
	}
	if len(snap.Budget.OverBudget) == 0 {
		return nil
	}

	subject := fmt.Sprintf("[Expensight] %d categories over budget for %s",
		len(snap.Budget.OverBudget), snap.Budget.Month)
	if len(snap.Budget.OverBudget) == 1 {
		subject = fmt.Sprintf("[Expensight] %s is over budget for %s",
			snap.Budget.OverBudget[0], snap.Budget.Month)
	}
	return s.sendEmail(s.cfg.To, subject, s.generateBudgetAlertBody(userID, snap))
}

// generateBudgetAlertBody renders the alert as HTML
func (s *EmailService) generateBudgetAlertBody(userID uint, snap *analytics.Snapshot) string {
	var rows strings.Builder
	for _, name := range snap.Budget.OverBudget {
		line, ok := snap.Budget.Line(name)
		if !ok {
			continue
		}
		fmt.Fprintf(&rows, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%.0f%%</td></tr>`,
			html.EscapeString(line.Category),
			analytics.FormatMoney(line.Spent, snap.Currency),
			analytics.FormatMoney(line.Budget, snap.Currency),
			line.UsedPercent)
		rows.WriteString("\n")
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; box-shadow: 0 4px 20px rgba(0,0,0,0.1); }
        .header { background: linear-gradient(135deg, #dc2626, #b91c1c); color: white; padding: 30px; text-align: center; }
        .header h1 { margin: 0; font-size: 24px; }
        .content { padding: 30px; }
        .content p { color: #333; line-height: 1.8; margin: 0 0 20px; }
        table { width: 100%%; border-collapse: collapse; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid #eee; }
        .footer { background: #f8f9fa; padding: 20px 30px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Budget alert</h1>
        </div>
        <div class="content">
            <p>%s</p>
            <p>Spending for <strong>%s</strong> (account #%d):</p>
            <table>
                <tr><th>Category</th><th>Spent</th><th>Budget</th><th>Used</th></tr>
%s            </table>
        </div>
        <div class="footer">
            <p>This message was sent automatically, please do not reply.</p>
            <p>Reference %.12s</p>
        </div>
    </div>
</body>
</html>
`, html.EscapeString(snap.Insight.Headline), snap.Budget.Month, userID, rows.String(), snap.Signature)
}

// sendEmail delivers one HTML message
func (s *EmailService) sendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.From, "Expensight"))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}
