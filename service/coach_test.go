package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"expensight/analytics"
	"expensight/config"
	"expensight/models"
	"expensight/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshots struct {
	mu   sync.Mutex
	sigs []string // returned in order, the last one repeats
	n    int
}

func (f *fakeSnapshots) Snapshot(ctx context.Context, userID uint, req AnalysisRequest) (*analytics.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.n
	if i >= len(f.sigs) {
		i = len(f.sigs) - 1
	}
	f.n++
	return &analytics.Snapshot{
		Range:     req.Selection.Effective(),
		Currency:  "USD",
		Total:     42,
		Signature: f.sigs[i],
	}, nil
}

type fakeNarratives struct {
	mu    sync.Mutex
	saved []*models.CoachNarrative
}

func (f *fakeNarratives) SaveCoachNarrative(ctx context.Context, n *models.CoachNarrative) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, n)
	return nil
}

func (f *fakeNarratives) LatestCoachNarrative(ctx context.Context, userID uint) (*models.CoachNarrative, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return nil, store.ErrNotFound
	}
	return f.saved[len(f.saved)-1], nil
}

func chatServer(t *testing.T, release <-chan struct{}, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		if assert.Len(t, body.Messages, 2) {
			assert.Contains(t, body.Messages[1].Content, "2024-06-01 to 2024-06-30")
		}

		if release != nil {
			<-release
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Spend less on coffee.  "}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testCoachConfig(baseURL string) config.CoachConfig {
	return config.CoachConfig{
		Enabled: true,
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	}
}

func waitIdle(c *CoachService, userID uint) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		pending := c.state(userID).pending
		c.mu.Unlock()
		if !pending {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestCoach_Generate(t *testing.T) {
	var calls int32
	srv := chatServer(t, nil, &calls)
	narratives := &fakeNarratives{}
	coach := NewCoachService(testCoachConfig(srv.URL), &fakeSnapshots{sigs: []string{"sig-1"}}, narratives)

	n, err := coach.Generate(context.Background(), 1, juneRequest())
	require.NoError(t, err)
	assert.Equal(t, "Spend less on coffee.", n.Result)
	assert.Equal(t, "sig-1", n.Signature)
	assert.Equal(t, "2024-06-01", n.StartDate)
	assert.Equal(t, "test-model", n.Model)
	assert.NotEmpty(t, n.RequestID)
	require.Len(t, narratives.saved, 1)

	status, err := coach.Status(context.Background(), 1, "sig-1")
	require.NoError(t, err)
	assert.False(t, status.Pending)
	assert.True(t, status.Unread)
	assert.False(t, status.Stale)
	assert.Equal(t, n, status.Narrative)

	status, err = coach.Status(context.Background(), 1, "sig-2")
	require.NoError(t, err)
	assert.True(t, status.Stale)
}

func TestCoach_DiscardsStaleResult(t *testing.T) {
	var calls int32
	srv := chatServer(t, nil, &calls)
	narratives := &fakeNarratives{}
	coach := NewCoachService(testCoachConfig(srv.URL), &fakeSnapshots{sigs: []string{"before", "after"}}, narratives)

	_, err := coach.Generate(context.Background(), 1, juneRequest())
	assert.True(t, errors.Is(err, ErrStaleNarrative))
	assert.Empty(t, narratives.saved)

	status, err := coach.Status(context.Background(), 1, "")
	require.NoError(t, err)
	assert.False(t, status.Unread)
	assert.Nil(t, status.Narrative)
	assert.Equal(t, ErrStaleNarrative.Error(), status.LastError)
}

func TestCoach_RequestSuppressesDuplicates(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := chatServer(t, release, &calls)
	narratives := &fakeNarratives{}
	coach := NewCoachService(testCoachConfig(srv.URL), &fakeSnapshots{sigs: []string{"sig-1"}}, narratives)

	id1, started, err := coach.Request(1, juneRequest())
	require.NoError(t, err)
	assert.True(t, started)

	id2, started, err := coach.Request(1, juneRequest())
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, id1, id2)

	status, err := coach.Status(context.Background(), 1, "")
	require.NoError(t, err)
	assert.True(t, status.Pending)
	assert.Equal(t, id1, status.RequestID)

	close(release)
	require.True(t, waitIdle(coach, 1))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.Len(t, narratives.saved, 1)
	assert.Equal(t, id1, narratives.saved[0].RequestID)

	// a new request is accepted once idle
	_, started, err = coach.Request(1, juneRequest())
	require.NoError(t, err)
	assert.True(t, started)
	require.True(t, waitIdle(coach, 1))
}

func TestCoach_PanelOpenKeepsRead(t *testing.T) {
	var calls int32
	srv := chatServer(t, nil, &calls)
	coach := NewCoachService(testCoachConfig(srv.URL), &fakeSnapshots{sigs: []string{"sig-1"}}, &fakeNarratives{})

	coach.SetPanel(1, true)
	_, err := coach.Generate(context.Background(), 1, juneRequest())
	require.NoError(t, err)

	status, err := coach.Status(context.Background(), 1, "")
	require.NoError(t, err)
	assert.True(t, status.PanelOpen)
	assert.False(t, status.Unread)

	coach.SetPanel(1, false)
	_, err = coach.Generate(context.Background(), 1, juneRequest())
	require.NoError(t, err)
	status, _ = coach.Status(context.Background(), 1, "")
	assert.True(t, status.Unread)

	coach.MarkRead(1)
	status, _ = coach.Status(context.Background(), 1, "")
	assert.False(t, status.Unread)
}

func TestCoach_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	coach := NewCoachService(testCoachConfig(srv.URL), &fakeSnapshots{sigs: []string{"sig-1"}}, &fakeNarratives{})

	_, err := coach.Generate(context.Background(), 1, juneRequest())
	assert.ErrorContains(t, err, "429")
}

func TestCoach_Disabled(t *testing.T) {
	coach := NewCoachService(config.CoachConfig{}, &fakeSnapshots{sigs: []string{"x"}}, &fakeNarratives{})

	_, _, err := coach.Request(1, juneRequest())
	assert.True(t, errors.Is(err, ErrCoachDisabled))
	_, err = coach.Generate(context.Background(), 1, juneRequest())
	assert.True(t, errors.Is(err, ErrCoachDisabled))
}
