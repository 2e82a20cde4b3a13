package service

import (
	"testing"

	"expensight/analytics"
	"expensight/config"

	"github.com/stretchr/testify/assert"
)

func newTestEmailService() *EmailService {
	return NewEmailService(&config.EmailConfig{})
}

func overBudgetSnapshot() *analytics.Snapshot {
	return &analytics.Snapshot{
		Currency:  "USD",
		Signature: "0123456789abcdef",
		Insight:   analytics.Insight{Headline: "You spent <more> this period."},
		Budget: analytics.BudgetComparison{
			Month: analytics.NewMonth(2024, 6),
			Lines: []analytics.BudgetLine{
				{Category: "Food", Spent: 450, Budget: 400, UsedPercent: 112.4, OverBudget: true},
				{Category: "Transport", Spent: 20, Budget: 200, UsedPercent: 10},
			},
			OverBudget: []string{"Food"},
		},
	}
}

func TestGenerateBudgetAlertBody(t *testing.T) {
	s := newTestEmailService()
	body := s.generateBudgetAlertBody(3, overBudgetSnapshot())

	assert.Contains(t, body, "<td>Food</td>")
	assert.Contains(t, body, "$450.00")
	assert.Contains(t, body, "$400.00")
	assert.Contains(t, body, "112%")
	assert.Contains(t, body, "2024-06")
	assert.Contains(t, body, "account #3")
	assert.Contains(t, body, "Reference 0123456789ab")
	assert.NotContains(t, body, "Transport")
	// headline is escaped
	assert.Contains(t, body, "&lt;more&gt;")
}

func TestSendBudgetAlert_Disabled(t *testing.T) {
	s := newTestEmailService()
	err := s.SendBudgetAlert(1, overBudgetSnapshot())
	assert.ErrorContains(t, err, "email disabled")
}

func TestSendBudgetAlert_NoRecipient(t *testing.T) {
	s := NewEmailService(&config.EmailConfig{Enabled: true})
	err := s.SendBudgetAlert(1, overBudgetSnapshot())
	assert.ErrorContains(t, err, "recipient")
}

func TestSendBudgetAlert_NothingOver(t *testing.T) {
	s := NewEmailService(&config.EmailConfig{Enabled: true, To: "me@example.com"})
	assert.NoError(t, s.SendBudgetAlert(1, &analytics.Snapshot{}))
}
