package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/crackgov/srs/internal/domain"
	"github.com/crackgov/srs/internal/review"
)

// OwnerHeader carries the authenticated user's ID, set by the auth proxy in
// front of this service.
const OwnerHeader = "X-User-ID"

// Store is the read/delete side of persistence the handlers use directly.
type Store interface {
	ListFlashcards(ctx context.Context, ownerID string) ([]domain.Flashcard, error)
	ListDueFlashcards(ctx context.Context, ownerID string, now time.Time, limit int) ([]domain.Flashcard, error)
	GetFlashcard(ctx context.Context, id, ownerID string) (*domain.Flashcard, error)
	DeleteFlashcard(ctx context.Context, id, ownerID string) error
	ListReviewEvents(ctx context.Context, flashcardID, ownerID string) ([]domain.ReviewEvent, error)
	Stats(ctx context.Context, ownerID string, now time.Time) (*domain.Stats, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	store   Store
	reviews *review.Service
	limiter *RateLimiter
	router  *http.ServeMux
	now     func() time.Time
}

// NewServer creates and configures a new server. A nil limiter disables rate
// limiting.
func NewServer(store Store, reviews *review.Service, limiter *RateLimiter) *Server {
	s := &Server{
		store:   store,
		reviews: reviews,
		limiter: limiter,
		router:  http.NewServeMux(),
		now:     time.Now,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logRequests(s.router).ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Handle("POST /api/flashcards", s.owned(s.handleCreateFlashcard()))
	s.router.Handle("GET /api/flashcards", s.owned(s.handleListFlashcards()))
	s.router.Handle("GET /api/flashcards/due", s.owned(s.handleListDue()))
	s.router.Handle("GET /api/flashcards/{id}", s.owned(s.handleGetFlashcard()))
	s.router.Handle("DELETE /api/flashcards/{id}", s.owned(s.handleDeleteFlashcard()))
	s.router.Handle("POST /api/flashcards/{id}/review", s.owned(s.handlePostReview()))
	s.router.Handle("GET /api/flashcards/{id}/reviews", s.owned(s.handleListReviews()))
	s.router.Handle("GET /api/stats", s.owned(s.handleStats()))
}

type ownerKey struct{}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

// owned rejects requests without an owner and applies the per-owner rate limit.
func (s *Server) owned(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(OwnerHeader)
		if owner == "" {
			writeError(w, http.StatusUnauthorized, "missing "+OwnerHeader+" header")
			return
		}
		if s.limiter != nil && !s.limiter.Allow(owner) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

// handleCreateFlashcard adds a new card to the caller's deck.
func (s *Server) handleCreateFlashcard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req review.CreateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		card, err := s.reviews.Create(r.Context(), ownerFrom(r.Context()), req)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, card)
	}
}

func (s *Server) handleListFlashcards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := s.store.ListFlashcards(r.Context(), ownerFrom(r.Context()))
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cards)
	}
}

// handleListDue returns the caller's due cards, most overdue first.
func (s *Server) handleListDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}

		cards, err := s.store.ListDueFlashcards(r.Context(), ownerFrom(r.Context()), s.now(), limit)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cards)
	}
}

func (s *Server) handleGetFlashcard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, err := s.store.GetFlashcard(r.Context(), r.PathValue("id"), ownerFrom(r.Context()))
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

// handleDeleteFlashcard removes a card along with its review history.
func (s *Server) handleDeleteFlashcard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := s.store.DeleteFlashcard(r.Context(), id, ownerFrom(r.Context())); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		slog.Info("flashcard deleted", "owner_id", ownerFrom(r.Context()), "flashcard_id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePostReview records a review and returns the rescheduled card.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req review.Request
		if !decodeJSON(w, r, &req) {
			return
		}
		out, err := s.reviews.Review(r.Context(), ownerFrom(r.Context()), r.PathValue("id"), req)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleListReviews() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := r.PathValue("id")
		if _, err := s.store.GetFlashcard(ctx, id, ownerFrom(ctx)); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		events, err := s.store.ListReviewEvents(ctx, id, ownerFrom(ctx))
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.store.Stats(r.Context(), ownerFrom(r.Context()), s.now())
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// writeDomainError maps service and storage errors onto HTTP responses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			msg := fe.Tag()
			if fe.Param() != "" {
				msg += "=" + fe.Param()
			}
			fields[fe.Field()] = msg
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": fields})
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "flashcard not found")
	case errors.Is(err, domain.ErrUnavailable):
		slog.Error("storage unavailable", "method", r.Method, "path", r.URL.Path, "error", err)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, please retry")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeJSON encodes v before writing the status so an encoding failure
// becomes a 500 rather than an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Internal Server Error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
