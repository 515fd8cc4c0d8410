// Package knol derives a stable identity for card content so the same card
// imported twice, or typed in again through the API, is recognised.
package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/crackgov/srs/internal/domain"
)

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Normalize renders card content in the canonical form that is hashed: each
// field lowercased, with runs of spaces and tabs inside a line collapsed and
// surrounding blank space removed. Fields are joined with newlines in front,
// back, topic order.
func Normalize(card domain.CardContent) string {
	var b strings.Builder
	for i, field := range [...]string{card.Front, card.Back, card.Topic} {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(normalizeField(field))
	}
	return b.String()
}

func normalizeField(s string) string {
	lines := strings.Split(lineEndings.Replace(strings.ToLower(s)), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Hash returns the hex SHA-256 of the card's normalized content.
func Hash(card domain.CardContent) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:])
}
