package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"expensight/analytics"
	"expensight/cache"
	"expensight/config"
)

// DataSource is the persistence the analysis service reads from.
type DataSource interface {
	ListExpenses(ctx context.Context, userID uint) ([]analytics.RawExpense, error)
	ListCategories(ctx context.Context, userID uint) ([]analytics.Category, error)
	BudgetBook(ctx context.Context, userID uint, month analytics.Month, lookback int) (analytics.BudgetBook, error)
	DataVersion(ctx context.Context, userID uint) (string, error)
}

// BudgetAlerter notifies a user about categories over budget.
type BudgetAlerter interface {
	SendBudgetAlert(userID uint, snap *analytics.Snapshot) error
}

// AnalysisRequest selects what to analyze.
type AnalysisRequest struct {
	Selection analytics.Selection
	Mood      analytics.Mood
}

// AnalysisService loads a user's data, runs the engine and memoizes snapshots until the
// user's data version changes.
type AnalysisService struct {
	source DataSource
	engine *analytics.Engine
	cache  *cache.LRU[*analytics.Snapshot]

	publisher Publisher
	alerter   BudgetAlerter

	mu         sync.Mutex
	signatures *cache.LRU[string] // user:range -> last signature
	alerted    *cache.LRU[string] // user -> signature last alerted for
}

// NewAnalysisService builds the service from the analytics config.
func NewAnalysisService(source DataSource, cfg config.AnalyticsConfig) *AnalysisService {
	engine := analytics.NewEngine()
	engine.Lookback = cfg.LookbackMonths
	engine.LeaderboardLimit = cfg.LeaderboardLimit
	engine.Location = cfg.Location()
	if len(cfg.DefaultBudgets) > 0 {
		engine.DefaultBudgets = canonicalBudgets(cfg.DefaultBudgets, engine.Categories)
	}
	return &AnalysisService{
		source:     source,
		engine:     engine,
		cache:      cache.New[*analytics.Snapshot](cfg.CacheSize, cfg.CacheTTL),
		signatures: cache.New[string](trackedKeys(cfg.CacheSize), 0),
		alerted:    cache.New[string](trackedKeys(cfg.CacheSize), 0),
	}
}

// trackedKeys bounds the change-detection state. A range evicted from it publishes again
// the next time it is analyzed.
func trackedKeys(cacheSize int) int {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	return cacheSize * 4
}

// canonicalBudgets restores category casing lost by the config loader, which lowercases
// map keys.
func canonicalBudgets(in map[string]float64, categories []analytics.Category) map[string]float64 {
	cats := analytics.NewCategorySet(categories)
	out := make(map[string]float64, len(in))
	for name, amount := range in {
		if canon, ok := cats.Canonical(name); ok {
			name = canon
		}
		out[name] += amount
	}
	return out
}

// SetPublisher enables snapshot change events.
func (s *AnalysisService) SetPublisher(p Publisher) { s.publisher = p }

// SetAlerter enables over-budget alerts.
func (s *AnalysisService) SetAlerter(a BudgetAlerter) { s.alerter = a }

// Engine exposes the configured engine.
func (s *AnalysisService) Engine() *analytics.Engine { return s.engine }

// Cache exposes the snapshot cache for the janitor.
func (s *AnalysisService) Cache() *cache.LRU[*analytics.Snapshot] { return s.cache }

func userPrefix(userID uint) string {
	return fmt.Sprintf("u%d:", userID)
}

// Snapshot returns the analysis of the user's data for req. Results are shared between
// callers and must not be modified.
func (s *AnalysisService) Snapshot(ctx context.Context, userID uint, req AnalysisRequest) (*analytics.Snapshot, error) {
	version, err := s.source.DataVersion(ctx, userID)
	if err != nil {
		return nil, err
	}

	r := req.Selection.Effective()
	month := s.engine.BudgetMonth(r)
	key := userPrefix(userID) + month.String() + ":" + analytics.InputKey(analytics.Input{
		Selection: req.Selection,
		Mood:      req.Mood,
		Version:   version,
	})
	if snap, ok := s.cache.Get(key); ok {
		return snap, nil
	}

	expenses, err := s.source.ListExpenses(ctx, userID)
	if err != nil {
		return nil, err
	}
	categories, err := s.source.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		categories = nil
	}
	book, err := s.source.BudgetBook(ctx, userID, month, s.engine.Lookback)
	if err != nil {
		return nil, err
	}

	snap := s.engine.Analyze(analytics.Input{
		Expenses:   expenses,
		Categories: categories,
		Selection:  req.Selection,
		Budgets:    book,
		Mood:       req.Mood,
	})
	s.cache.Set(key, snap)
	s.observe(ctx, userID, snap)
	return snap, nil
}

// Signature returns only the signature of the analysis for req.
func (s *AnalysisService) Signature(ctx context.Context, userID uint, req AnalysisRequest) (string, error) {
	snap, err := s.Snapshot(ctx, userID, req)
	if err != nil {
		return "", err
	}
	return snap.Signature, nil
}

// ResolveBudget returns the budget that applies to month, with its source.
func (s *AnalysisService) ResolveBudget(ctx context.Context, userID uint, month analytics.Month) (analytics.ResolvedBudget, error) {
	book, err := s.source.BudgetBook(ctx, userID, month, s.engine.Lookback)
	if err != nil {
		return analytics.ResolvedBudget{}, err
	}
	return analytics.ResolveBudget(book, month, s.engine.Lookback, s.engine.DefaultBudgets), nil
}

// Invalidate drops every memoized snapshot of the user.
func (s *AnalysisService) Invalidate(userID uint) {
	s.cache.DeletePrefix(userPrefix(userID))
}

// observe publishes a change event when the signature for a range moves, and sends one
// alert per signature while any category is over budget.
func (s *AnalysisService) observe(ctx context.Context, userID uint, snap *analytics.Snapshot) {
	rangeKey := fmt.Sprintf("%d:%s", userID, snap.Range)

	s.mu.Lock()
	previous, seen := s.signatures.Get(rangeKey)
	changed := !seen || previous != snap.Signature
	s.signatures.Set(rangeKey, snap.Signature)
	alertKey := fmt.Sprint(userID)
	last, _ := s.alerted.Get(alertKey)
	alert := s.alerter != nil && len(snap.Budget.OverBudget) > 0 && last != snap.Signature
	if alert {
		s.alerted.Set(alertKey, snap.Signature)
	}
	s.mu.Unlock()

	if changed && s.publisher != nil {
		evt := NewSnapshotEvent(userID, previous, snap)
		if err := s.publisher.PublishSnapshotChanged(ctx, evt); err != nil {
			log.Printf("publish snapshot event for user %d: %v", userID, err)
		}
	}
	if alert {
		go func() {
			if err := s.alerter.SendBudgetAlert(userID, snap); err != nil {
				log.Printf("budget alert for user %d: %v", userID, err)
			}
		}()
	}
}
