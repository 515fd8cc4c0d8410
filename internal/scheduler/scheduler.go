// Package scheduler computes flashcard review intervals from a card's rolled-up
// review state.
package scheduler

import (
	"math"
	"time"

	"github.com/crackgov/srs/internal/domain"
)

const (
	MinRetention = 0
	MaxRetention = 5

	// growthEvery is how many reviews it takes for the interval multiplier to
	// grow by another growthFactor.
	growthEvery  = 5
	growthFactor = 1.5

	// MaxIntervalDays caps the interval so next review dates stay within the
	// four-digit years that storage and JSON can represent.
	MaxIntervalDays = 36500
)

// baseIntervals holds the base interval in days for each retention level.
var baseIntervals = [...]int{1, 2, 4, 7, 14, 30}

// State is the scheduling state stored on a flashcard.
type State struct {
	RetentionLevel int
	ReviewCount    int
	CorrectCount   int
}

// Schedule is the result of a review: the new state and when the card is due next.
type Schedule struct {
	State
	NextReview   time.Time
	IntervalDays int
}

// StateOf extracts the scheduling state from a flashcard.
func StateOf(card *domain.Flashcard) State {
	return State{
		RetentionLevel: card.RetentionLevel,
		ReviewCount:    card.ReviewCount,
		CorrectCount:   card.CorrectCount,
	}
}

// Next computes the state after a review with the given result, processed at now.
// It never fails; the returned retention level is always within
// [MinRetention, MaxRetention] even if the input is not.
func Next(current State, result domain.ReviewResult, now time.Time) Schedule {
	next := State{
		ReviewCount:  current.ReviewCount + 1,
		CorrectCount: current.CorrectCount,
	}

	switch result {
	case domain.ResultCorrect:
		next.CorrectCount++
		next.RetentionLevel = current.RetentionLevel + 1
	case domain.ResultHard:
		next.RetentionLevel = current.RetentionLevel - 1
	default:
		next.RetentionLevel = current.RetentionLevel - 2
	}
	next.RetentionLevel = clamp(next.RetentionLevel, MinRetention, MaxRetention)

	days := IntervalDays(next.RetentionLevel, next.ReviewCount)
	return Schedule{
		State:        next,
		NextReview:   now.AddDate(0, 0, days),
		IntervalDays: days,
	}
}

// IntervalDays returns the whole number of days until the next review for a card
// at the given retention level that has been reviewed reviewCount times, at
// most MaxIntervalDays.
func IntervalDays(retentionLevel, reviewCount int) int {
	base := baseIntervals[clamp(retentionLevel, 0, len(baseIntervals)-1)]
	multiplier := math.Pow(growthFactor, float64(max(reviewCount, 0)/growthEvery))
	days := math.Floor(float64(base) * multiplier)
	if days >= MaxIntervalDays {
		return MaxIntervalDays
	}
	return int(days)
}

// Apply writes a schedule back onto a flashcard, stamping the review time.
func Apply(card *domain.Flashcard, s Schedule, reviewedAt time.Time) {
	card.RetentionLevel = s.RetentionLevel
	card.ReviewCount = s.ReviewCount
	card.CorrectCount = s.CorrectCount
	card.NextReview = s.NextReview
	card.LastReviewed = &reviewedAt
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
