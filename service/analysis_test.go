package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"expensight/analytics"
	"expensight/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	expenses []analytics.RawExpense
	book     analytics.BudgetBook
	version  string
	loads    int
	err      error
}

func (f *fakeSource) ListExpenses(ctx context.Context, userID uint) ([]analytics.RawExpense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.expenses, nil
}

func (f *fakeSource) ListCategories(ctx context.Context, userID uint) ([]analytics.Category, error) {
	return analytics.DefaultCategories(), nil
}

func (f *fakeSource) BudgetBook(ctx context.Context, userID uint, month analytics.Month, lookback int) (analytics.BudgetBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.book, nil
}

func (f *fakeSource) DataVersion(ctx context.Context, userID uint) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version, nil
}

func (f *fakeSource) set(version string, expenses ...analytics.RawExpense) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version = version
	f.expenses = expenses
}

func raw(id, date string, amount float64, category string) analytics.RawExpense {
	return analytics.RawExpense{
		ID:          analytics.FlexString(id),
		Date:        analytics.FlexString(date),
		TotalAmount: analytics.Num(amount),
		Category:    analytics.FlexString(category),
		Currency:    "USD",
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*SnapshotEvent
}

func (p *fakePublisher) PublishSnapshotChanged(ctx context.Context, evt *SnapshotEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeAlerter struct {
	sent chan string
}

func (a *fakeAlerter) SendBudgetAlert(userID uint, snap *analytics.Snapshot) error {
	a.sent <- snap.Signature
	return nil
}

func testAnalyticsConfig() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		LookbackMonths:   24,
		LeaderboardLimit: 5,
		Timezone:         "UTC",
		CacheSize:        16,
		CacheTTL:         time.Minute,
		DefaultBudgets:   map[string]float64{"food": 400, "transport": 200},
	}
}

func juneRequest() AnalysisRequest {
	return AnalysisRequest{
		Selection: analytics.Selection{Ambient: analytics.DateRange{Start: "2024-06-01", End: "2024-06-30"}},
		Mood:      analytics.MoodNeutral,
	}
}

func TestAnalysisService_Snapshot(t *testing.T) {
	src := &fakeSource{}
	src.set("v1",
		raw("1", "2024-06-03", 120, "Food"),
		raw("2", "2024-06-04", 30, "Transport"),
		raw("3", "2024-05-10", 100, "Food"),
	)
	svc := NewAnalysisService(src, testAnalyticsConfig())

	snap, err := svc.Snapshot(context.Background(), 1, juneRequest())
	require.NoError(t, err)
	assert.Equal(t, 150.0, snap.Total)
	assert.Equal(t, 2, snap.ExpenseCount)
	assert.True(t, snap.Comparison.Available)
	assert.NotEmpty(t, snap.Signature)

	line, ok := snap.Budget.Line("Food")
	require.True(t, ok)
	assert.Equal(t, 400.0, line.Budget)
	assert.Equal(t, analytics.BudgetDefault, snap.Budget.Origin)
}

func TestAnalysisService_Memoizes(t *testing.T) {
	src := &fakeSource{}
	src.set("v1", raw("1", "2024-06-03", 10, "Food"))
	svc := NewAnalysisService(src, testAnalyticsConfig())
	ctx := context.Background()

	first, err := svc.Snapshot(ctx, 1, juneRequest())
	require.NoError(t, err)
	second, err := svc.Snapshot(ctx, 1, juneRequest())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, src.loads)

	// another user does not share the entry
	_, err = svc.Snapshot(ctx, 2, juneRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, src.loads)

	// mood is part of the key
	playful := juneRequest()
	playful.Mood = analytics.MoodPlayful
	_, err = svc.Snapshot(ctx, 1, playful)
	require.NoError(t, err)
	assert.Equal(t, 3, src.loads)
}

func TestAnalysisService_VersionChangeRecomputes(t *testing.T) {
	src := &fakeSource{}
	src.set("v1", raw("1", "2024-06-03", 10, "Food"))
	svc := NewAnalysisService(src, testAnalyticsConfig())
	ctx := context.Background()

	first, err := svc.Snapshot(ctx, 1, juneRequest())
	require.NoError(t, err)

	src.set("v2", raw("1", "2024-06-03", 10, "Food"), raw("2", "2024-06-05", 5, "Food"))
	second, err := svc.Snapshot(ctx, 1, juneRequest())
	require.NoError(t, err)
	assert.Equal(t, 15.0, second.Total)
	assert.NotEqual(t, first.Signature, second.Signature)
}

func TestAnalysisService_Invalidate(t *testing.T) {
	src := &fakeSource{}
	src.set("v1", raw("1", "2024-06-03", 10, "Food"))
	svc := NewAnalysisService(src, testAnalyticsConfig())
	ctx := context.Background()

	_, err := svc.Snapshot(ctx, 1, juneRequest())
	require.NoError(t, err)
	svc.Invalidate(1)
	_, err = svc.Snapshot(ctx, 1, juneRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, src.loads)
}

func TestAnalysisService_SourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	svc := NewAnalysisService(src, testAnalyticsConfig())

	_, err := svc.Snapshot(context.Background(), 1, juneRequest())
	assert.EqualError(t, err, "db down")
}

func TestAnalysisService_PublishesOnSignatureChange(t *testing.T) {
	src := &fakeSource{}
	src.set("v1", raw("1", "2024-06-03", 10, "Food"))
	pub := &fakePublisher{}
	svc := NewAnalysisService(src, testAnalyticsConfig())
	svc.SetPublisher(pub)
	ctx := context.Background()

	first, err := svc.Snapshot(ctx, 1, juneRequest())
	require.NoError(t, err)

	// same numbers under a new version: no event
	src.set("v2", raw("1", "2024-06-03", 10, "Food"))
	_, err = svc.Snapshot(ctx, 1, juneRequest())
	require.NoError(t, err)

	src.set("v3", raw("1", "2024-06-03", 25, "Food"))
	second, err := svc.Snapshot(ctx, 1, juneRequest())
	require.NoError(t, err)

	require.Len(t, pub.events, 2)
	assert.Equal(t, first.Signature, pub.events[0].Signature)
	assert.Empty(t, pub.events[0].Previous)
	assert.Equal(t, second.Signature, pub.events[1].Signature)
	assert.Equal(t, first.Signature, pub.events[1].Previous)
	assert.Equal(t, 25.0, pub.events[1].Total)
}

func TestAnalysisService_AlertsOncePerSignature(t *testing.T) {
	src := &fakeSource{}
	src.set("v1", raw("1", "2024-06-03", 450, "Food"))
	alerter := &fakeAlerter{sent: make(chan string, 4)}
	svc := NewAnalysisService(src, testAnalyticsConfig())
	svc.SetAlerter(alerter)
	ctx := context.Background()

	snap, err := svc.Snapshot(ctx, 1, juneRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"Food"}, snap.Budget.OverBudget)

	select {
	case sig := <-alerter.sent:
		assert.Equal(t, snap.Signature, sig)
	case <-time.After(time.Second):
		t.Fatal("alert not sent")
	}

	src.set("v2", raw("1", "2024-06-03", 450, "Food"))
	svc.Invalidate(1)
	_, err = svc.Snapshot(ctx, 1, juneRequest())
	require.NoError(t, err)

	select {
	case <-alerter.sent:
		t.Fatal("alert repeated for unchanged numbers")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAnalysisService_ChangeTrackingIsBounded(t *testing.T) {
	src := &fakeSource{}
	src.set("v1", raw("1", "2024-06-03", 10, "Food"))
	cfg := testAnalyticsConfig()
	cfg.CacheSize = 2
	svc := NewAnalysisService(src, cfg)
	ctx := context.Background()

	for day := 1; day <= 20; day++ {
		req := AnalysisRequest{Selection: analytics.Selection{Ambient: analytics.DateRange{
			Start: "2024-06-01",
			End:   fmt.Sprintf("2024-06-%02d", day),
		}}}
		_, err := svc.Snapshot(ctx, uint(day), req)
		require.NoError(t, err)
	}
	assert.Equal(t, trackedKeys(cfg.CacheSize), svc.signatures.Len())
	assert.LessOrEqual(t, svc.alerted.Len(), trackedKeys(cfg.CacheSize))
}

func TestAnalysisService_ResolveBudget(t *testing.T) {
	src := &fakeSource{book: analytics.BudgetBook{}}
	src.book.Set(analytics.NewMonth(2024, time.March), "Food", 250)
	svc := NewAnalysisService(src, testAnalyticsConfig())

	rb, err := svc.ResolveBudget(context.Background(), 1, analytics.NewMonth(2024, time.June))
	require.NoError(t, err)
	assert.Equal(t, analytics.BudgetInherited, rb.Origin)
	require.NotNil(t, rb.SourceMonth)
	assert.Equal(t, "2024-03", rb.SourceMonth.String())
	assert.Equal(t, 250.0, rb.Amounts["Food"])
}

func TestCanonicalBudgets(t *testing.T) {
	out := canonicalBudgets(map[string]float64{"food": 400, "pets": 30}, analytics.DefaultCategories())
	assert.Equal(t, map[string]float64{"Food": 400, "pets": 30}, out)
}
