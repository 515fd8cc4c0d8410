package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crackgov/srs/internal/domain"
	"github.com/crackgov/srs/internal/review"
	"github.com/crackgov/srs/internal/storage"
)

func newTestServer(t *testing.T, limiter *RateLimiter) *Server {
	t.Helper()
	db, err := storage.Open(storage.DriverSQLite, filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewServer(db, review.NewService(db, review.NewValidator()), limiter)
}

func do(t *testing.T, h http.Handler, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createCard(t *testing.T, h http.Handler, owner string) domain.Flashcard {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/flashcards", owner, map[string]string{
		"front": "Article 21 protects?",
		"back":  "Life and personal liberty",
		"topic": "Polity",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Flashcard](t, rec)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingOwnerIsUnauthorized(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/flashcards", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndReview(t *testing.T) {
	s := newTestServer(t, nil)
	card := createCard(t, s, "alice")
	assert.Equal(t, 0, card.RetentionLevel)

	rec := do(t, s, http.MethodPost, "/api/flashcards/"+card.ID+"/review", "alice", map[string]any{
		"result":    "correct",
		"timeSpent": 12,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Flashcard map[string]any `json:"flashcard"`
		Review    map[string]any `json:"review"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.EqualValues(t, 1, out.Flashcard["difficulty"])
	assert.EqualValues(t, 1, out.Flashcard["reviewCount"])
	assert.EqualValues(t, 1, out.Flashcard["correctCount"])
	assert.NotNil(t, out.Flashcard["lastReviewed"])
	assert.Equal(t, "correct", out.Review["result"])
	assert.EqualValues(t, 12, out.Review["timeSpent"])

	rec = do(t, s, http.MethodPost, "/api/flashcards/"+card.ID+"/review", "alice", map[string]any{
		"result":    "hard",
		"timeSpent": 12.5,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.EqualValues(t, 13, out.Review["timeSpent"])

	rec = do(t, s, http.MethodGet, "/api/flashcards/"+card.ID+"/reviews", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.ReviewEvent](t, rec), 2)
}

func TestReviewValidationErrors(t *testing.T) {
	s := newTestServer(t, nil)
	card := createCard(t, s, "alice")

	rec := do(t, s, http.MethodPost, "/api/flashcards/"+card.ID+"/review", "alice", map[string]any{"result": "easy"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, rec)
	assert.Contains(t, body.Fields, "result")

	rec = do(t, s, http.MethodPost, "/api/flashcards/"+card.ID+"/review", "alice", map[string]any{"result": "hard", "timeSpent": -0.5})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, rec)
	assert.Equal(t, "min=0", body.Fields["timeSpent"])

	rec = do(t, s, http.MethodPost, "/api/flashcards/"+card.ID+"/review", "alice", map[string]any{"result": "correct", "bonus": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec = do(t, s, http.MethodGet, "/api/flashcards/"+card.ID+"/reviews", "alice", nil)
	assert.Empty(t, decode[[]domain.ReviewEvent](t, rec))
}

func TestOtherOwnersCardsAreNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	card := createCard(t, s, "alice")

	testCases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/flashcards/" + card.ID, nil},
		{http.MethodPost, "/api/flashcards/" + card.ID + "/review", map[string]string{"result": "correct"}},
		{http.MethodGet, "/api/flashcards/" + card.ID + "/reviews", nil},
		{http.MethodDelete, "/api/flashcards/" + card.ID, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := do(t, s, tc.method, tc.path, "bob", tc.body)
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}

	rec := do(t, s, http.MethodGet, "/api/flashcards/"+card.ID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[domain.Flashcard](t, rec).ReviewCount)
}

func TestDeleteFlashcard(t *testing.T) {
	s := newTestServer(t, nil)
	card := createCard(t, s, "alice")

	rec := do(t, s, http.MethodDelete, "/api/flashcards/"+card.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/flashcards/"+card.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/flashcards/"+card.ID+"/review", "alice", map[string]string{"result": "hard"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDueAndStats(t *testing.T) {
	s := newTestServer(t, nil)
	first := createCard(t, s, "alice")
	createCard(t, s, "alice")
	createCard(t, s, "bob")

	rec := do(t, s, http.MethodGet, "/api/flashcards/due", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Flashcard](t, rec), 2)

	rec = do(t, s, http.MethodPost, "/api/flashcards/"+first.ID+"/review", "alice", map[string]string{"result": "correct"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/flashcards/due?limit=5", "alice", nil)
	due := decode[[]domain.Flashcard](t, rec)
	require.Len(t, due, 1)
	assert.NotEqual(t, first.ID, due[0].ID)

	rec = do(t, s, http.MethodGet, "/api/flashcards/due?limit=-1", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/stats", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[domain.Stats](t, rec)
	assert.Equal(t, 2, stats.TotalCards)
	assert.Equal(t, 1, stats.DueCards)
	assert.Equal(t, 1, stats.TotalReviews)
	assert.Equal(t, 1, stats.StreakDays)

	rec = do(t, s, http.MethodGet, "/api/flashcards", "bob", nil)
	assert.Len(t, decode[[]domain.Flashcard](t, rec), 1)
}

func TestLongReviewHistory(t *testing.T) {
	s := newTestServer(t, nil)
	card := createCard(t, s, "alice")

	for i := range 160 {
		rec := do(t, s, http.MethodPost, "/api/flashcards/"+card.ID+"/review", "alice", map[string]string{"result": "correct"})
		require.Equal(t, http.StatusOK, rec.Code, "review %d: %s", i+1, rec.Body.String())
		require.NotEmpty(t, rec.Body.String(), "review %d", i+1)
	}

	rec := do(t, s, http.MethodGet, "/api/flashcards/"+card.ID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[domain.Flashcard](t, rec)
	assert.Equal(t, 160, got.ReviewCount)
	assert.Equal(t, 5, got.RetentionLevel)
	assert.Less(t, got.NextReview.Year(), 10000)

	rec = do(t, s, http.MethodGet, "/api/flashcards", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]domain.Flashcard](t, rec), 1)

	rec = do(t, s, http.MethodGet, "/api/flashcards/due", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[[]domain.Flashcard](t, rec))
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, NewRateLimiter(0.001, 2, 10))

	for range 2 {
		rec := do(t, s, http.MethodGet, "/api/flashcards", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, s, http.MethodGet, "/api/flashcards", "alice", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = do(t, s, http.MethodGet, "/api/flashcards", "bob", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per owner")
}

type brokenRepo struct{}

func (brokenRepo) CreateFlashcard(context.Context, *domain.Flashcard) error {
	return errors.New("disk I/O error")
}

func (brokenRepo) GetFlashcard(_ context.Context, id, ownerID string) (*domain.Flashcard, error) {
	return &domain.Flashcard{ID: id, OwnerID: ownerID, NextReview: time.Now()}, nil
}

func (brokenRepo) RecordReview(context.Context, *domain.Flashcard, *domain.ReviewEvent) error {
	return errors.New("database is locked")
}

func TestStorageFailureIsUnavailable(t *testing.T) {
	db, err := storage.Open(storage.DriverSQLite, filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewServer(db, review.NewService(brokenRepo{}, review.NewValidator()), nil)

	rec := do(t, s, http.MethodPost, "/api/flashcards/c1/review", "alice", map[string]string{"result": "correct"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = do(t, s, http.MethodPost, "/api/flashcards", "alice", map[string]string{"front": "q", "back": "a"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
