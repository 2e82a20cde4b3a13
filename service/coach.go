package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"expensight/analytics"
	"expensight/config"
	"expensight/models"
	"expensight/store"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrCoachDisabled is returned when no narrative endpoint is configured.
	ErrCoachDisabled = errors.New("coach disabled")
	// ErrStaleNarrative means the numbers changed while the narrative was being written.
	ErrStaleNarrative = errors.New("narrative is stale")
)

// SnapshotSource produces the current analysis for a user.
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID uint, req AnalysisRequest) (*analytics.Snapshot, error)
}

// NarrativeStore persists coach results.
type NarrativeStore interface {
	SaveCoachNarrative(ctx context.Context, n *models.CoachNarrative) error
	LatestCoachNarrative(ctx context.Context, userID uint) (*models.CoachNarrative, error)
}

type coachState struct {
	pending   bool
	requestID string
	panelOpen bool
	unread    bool
	lastError string
}

// CoachStatus is what the client polls.
type CoachStatus struct {
	Pending   bool                   `json:"pending"`
	RequestID string                 `json:"request_id,omitempty"`
	PanelOpen bool                   `json:"panel_open"`
	Unread    bool                   `json:"unread"`
	LastError string                 `json:"last_error,omitempty"`
	Stale     bool                   `json:"stale"`
	Narrative *models.CoachNarrative `json:"narrative,omitempty"`
}

// CoachService asks an OpenAI-compatible endpoint to narrate a snapshot. At most one
// request per user is outstanding; results computed from outdated numbers are dropped.
type CoachService struct {
	cfg       config.CoachConfig
	analysis  SnapshotSource
	narrative NarrativeStore
	client    *http.Client

	group singleflight.Group

	mu     sync.Mutex
	states map[uint]*coachState
}

// NewCoachService creates the coach.
func NewCoachService(cfg config.CoachConfig, analysis SnapshotSource, narratives NarrativeStore) *CoachService {
	return &CoachService{
		cfg:       cfg,
		analysis:  analysis,
		narrative: narratives,
		client:    &http.Client{Timeout: cfg.Timeout},
		states:    make(map[uint]*coachState),
	}
}

// state must be called with mu held.
func (c *CoachService) state(userID uint) *coachState {
	st, ok := c.states[userID]
	if !ok {
		st = &coachState{}
		c.states[userID] = st
	}
	return st
}

// Request starts a narrative in the background and returns its request ID. When one is
// already outstanding for the user, its ID is returned and started is false.
func (c *CoachService) Request(userID uint, req AnalysisRequest) (requestID string, started bool, err error) {
	if !c.cfg.Enabled {
		return "", false, ErrCoachDisabled
	}

	c.mu.Lock()
	st := c.state(userID)
	if st.pending {
		id := st.requestID
		c.mu.Unlock()
		return id, false, nil
	}
	st.pending = true
	st.requestID = uuid.NewString()
	st.lastError = ""
	id := st.requestID
	c.mu.Unlock()

	go func() {
		ctx := context.Background()
		if c.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
		}
		if _, err := c.Generate(ctx, userID, req); err != nil {
			log.Printf("coach request %s for user %d: %v", id, userID, err)
		}
	}()
	return id, true, nil
}

// Generate writes a narrative synchronously. Concurrent calls for the same user share one
// upstream request.
func (c *CoachService) Generate(ctx context.Context, userID uint, req AnalysisRequest) (*models.CoachNarrative, error) {
	if !c.cfg.Enabled {
		return nil, ErrCoachDisabled
	}

	c.mu.Lock()
	st := c.state(userID)
	if !st.pending {
		st.pending = true
		st.requestID = uuid.NewString()
	}
	requestID := st.requestID
	c.mu.Unlock()

	v, err, _ := c.group.Do(fmt.Sprintf("coach:%d", userID), func() (interface{}, error) {
		return c.generate(ctx, userID, requestID, req)
	})

	c.mu.Lock()
	st = c.state(userID)
	st.pending = false
	if err != nil {
		st.lastError = err.Error()
	} else if !st.panelOpen {
		st.unread = true
	}
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return v.(*models.CoachNarrative), nil
}

func (c *CoachService) generate(ctx context.Context, userID uint, requestID string, req AnalysisRequest) (*models.CoachNarrative, error) {
	snap, err := c.analysis.Snapshot(ctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	text, err := c.complete(ctx, snap)
	if err != nil {
		return nil, err
	}

	current, err := c.analysis.Snapshot(ctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if current.Signature != snap.Signature {
		return nil, ErrStaleNarrative
	}

	n := &models.CoachNarrative{
		UserID:    userID,
		RequestID: requestID,
		Signature: snap.Signature,
		StartDate: snap.Range.Start,
		EndDate:   snap.Range.End,
		Model:     c.cfg.Model,
		Result:    text,
	}
	if err := c.narrative.SaveCoachNarrative(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const coachSystemPrompt = `You are a friendly personal-finance coach. You receive a JSON summary of the user's spending: totals per category, budget usage, a comparison with the previous period, the top merchants and items, and a daily trend. Write a short narrative (at most 150 words) with two or three concrete, actionable suggestions. Use only the numbers given.`

// buildPrompt renders the snapshot for the model.
func buildPrompt(snap *analytics.Snapshot) (string, error) {
	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return fmt.Sprintf("Period: %s\nCurrency: %s\nSummary: %s\n\nSnapshot:\n%s",
		snap.Range, snap.Currency, snap.Insight.Headline, body), nil
}

// complete calls the chat completions endpoint and returns the first choice.
func (c *CoachService) complete(ctx context.Context, snap *analytics.Snapshot) (string, error) {
	prompt, err := buildPrompt(snap)
	if err != nil {
		return "", err
	}
	jsonData, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: coachSystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("coach request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("coach returned %d: %s", resp.StatusCode, string(body))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode coach response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errors.New("coach returned no content")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// Status reports the user's coach state with the latest narrative. When signature is
// non-empty the narrative is flagged stale if it was written for different numbers.
func (c *CoachService) Status(ctx context.Context, userID uint, signature string) (CoachStatus, error) {
	c.mu.Lock()
	st := c.state(userID)
	status := CoachStatus{
		Pending:   st.pending,
		RequestID: st.requestID,
		PanelOpen: st.panelOpen,
		Unread:    st.unread,
		LastError: st.lastError,
	}
	c.mu.Unlock()

	n, err := c.narrative.LatestCoachNarrative(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return status, err
	}
	if n != nil {
		status.Narrative = n
		status.Stale = signature != "" && n.Signature != signature
	}
	return status, nil
}

// MarkRead clears the unread flag.
func (c *CoachService) MarkRead(userID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state(userID).unread = false
}

// SetPanel records whether the user's results panel is open. Opening it marks the
// narrative read.
func (c *CoachService) SetPanel(userID uint, open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state(userID)
	st.panelOpen = open
	if open {
		st.unread = false
	}
}
