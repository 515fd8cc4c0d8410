package domain

import "time"

// CardContent is the question/answer/topic text of a card as it appears in a
// markdown deck.
type CardContent struct {
	Front string
	Back  string
	Topic string
}

// Flashcard is a user-owned card together with its review schedule.
//
// RetentionLevel is the card's memory-strength score in [0,5]. It is exposed
// as "difficulty" on the wire; higher means better retained.
type Flashcard struct {
	ID             string     `db:"id" json:"id"`
	OwnerID        string     `db:"owner_id" json:"ownerId"`
	Front          string     `db:"front" json:"front"`
	Back           string     `db:"back" json:"back"`
	Topic          string     `db:"topic" json:"topic"`
	ContentHash    string     `db:"content_hash" json:"contentHash"`
	RetentionLevel int        `db:"retention_level" json:"difficulty"`
	ReviewCount    int        `db:"review_count" json:"reviewCount"`
	CorrectCount   int        `db:"correct_count" json:"correctCount"`
	NextReview     time.Time  `db:"next_review" json:"nextReview"`
	LastReviewed   *time.Time `db:"last_reviewed" json:"lastReviewed"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
}

// ReviewResult is the outcome a user reports for a single review.
type ReviewResult string

const (
	ResultCorrect   ReviewResult = "correct"
	ResultIncorrect ReviewResult = "incorrect"
	ResultHard      ReviewResult = "hard"
)

// ReviewEvent records a single review of a flashcard. Events are append-only.
// TimeSpent is in seconds.
type ReviewEvent struct {
	ID          string       `db:"id" json:"id"`
	FlashcardID string       `db:"flashcard_id" json:"flashcardId"`
	OwnerID     string       `db:"owner_id" json:"ownerId"`
	Result      ReviewResult `db:"result" json:"result"`
	TimeSpent   *int         `db:"time_spent" json:"timeSpent,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
}

// Stats summarises an owner's deck.
type Stats struct {
	TotalCards    int `json:"totalCards"`
	DueCards      int `json:"dueCards"`
	NewCards      int `json:"newCards"`
	MasteredCards int `json:"masteredCards"`
	TotalReviews  int `json:"totalReviews"`
	CorrectCount  int `json:"correctCount"`
	Accuracy      int `json:"accuracy"` // percentage
	StreakDays    int `json:"streakDays"`
}
