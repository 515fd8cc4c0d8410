// Package review validates review and card-creation requests, runs the
// scheduler and persists the outcome.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/crackgov/srs/internal/domain"
	"github.com/crackgov/srs/internal/knol"
	"github.com/crackgov/srs/internal/scheduler"
)

// Repository is the persistence the service needs.
type Repository interface {
	CreateFlashcard(ctx context.Context, card *domain.Flashcard) error
	GetFlashcard(ctx context.Context, id, ownerID string) (*domain.Flashcard, error)
	// RecordReview must write the schedule and the event atomically.
	RecordReview(ctx context.Context, card *domain.Flashcard, event *domain.ReviewEvent) error
}

// Request is a single review submitted by the card's owner. TimeSpent is in
// seconds, at most a day, and is stored rounded to the nearest whole second.
type Request struct {
	Result    domain.ReviewResult `json:"result" validate:"required,oneof=correct incorrect hard"`
	TimeSpent *float64            `json:"timeSpent" validate:"omitempty,min=0,max=86400"`
}

// CreateRequest describes a new flashcard.
type CreateRequest struct {
	Front string `json:"front" validate:"required,max=2000"`
	Back  string `json:"back" validate:"required,max=4000"`
	Topic string `json:"topic" validate:"max=200"`
}

// Outcome is what a successful review returns.
type Outcome struct {
	Flashcard *domain.Flashcard   `json:"flashcard"`
	Review    *domain.ReviewEvent `json:"review"`
}

// Service runs reviews against a Repository.
type Service struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a new review service.
func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{
		repo:     repo,
		validate: validate,
		now:      time.Now,
	}
}

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewFlashcard builds a card that is due immediately.
func NewFlashcard(ownerID string, content domain.CardContent, now time.Time) *domain.Flashcard {
	return &domain.Flashcard{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Front:       content.Front,
		Back:        content.Back,
		Topic:       content.Topic,
		ContentHash: knol.Hash(content),
		NextReview:  now,
		CreatedAt:   now,
	}
}

// Create validates and stores a new flashcard for ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, req CreateRequest) (*domain.Flashcard, error) {
	req.Front = strings.TrimSpace(req.Front)
	req.Back = strings.TrimSpace(req.Back)
	req.Topic = strings.TrimSpace(req.Topic)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	card := NewFlashcard(ownerID, domain.CardContent{Front: req.Front, Back: req.Back, Topic: req.Topic}, s.now())
	if err := s.repo.CreateFlashcard(ctx, card); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	slog.Info("flashcard created", "owner_id", ownerID, "flashcard_id", card.ID)
	return card, nil
}

// Review applies a review to the owner's flashcard. Invalid requests are
// rejected before the card is loaded, and a card that is missing or owned by
// someone else yields domain.ErrNotFound without recording anything.
func (s *Service) Review(ctx context.Context, ownerID, flashcardID string, req Request) (*Outcome, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	card, err := s.repo.GetFlashcard(ctx, flashcardID, ownerID)
	if err != nil {
		return nil, persistenceError(err)
	}

	now := s.now()
	next := scheduler.Next(scheduler.StateOf(card), req.Result, now)
	scheduler.Apply(card, next, now)

	event := &domain.ReviewEvent{
		ID:          uuid.NewString(),
		FlashcardID: card.ID,
		OwnerID:     ownerID,
		Result:      req.Result,
		TimeSpent:   wholeSeconds(req.TimeSpent),
		CreatedAt:   now,
	}
	if err := s.repo.RecordReview(ctx, card, event); err != nil {
		return nil, persistenceError(err)
	}

	slog.Info("flashcard reviewed",
		"owner_id", ownerID,
		"flashcard_id", card.ID,
		"result", req.Result,
		"difficulty", card.RetentionLevel,
		"interval_days", next.IntervalDays,
	)
	return &Outcome{Flashcard: card, Review: event}, nil
}

func wholeSeconds(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}

func persistenceError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
}
