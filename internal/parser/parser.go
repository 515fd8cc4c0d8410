// Package parser reads flashcards from markdown decks.
//
// A card starts at a line beginning with "Q:" and may carry an "A:" answer and
// a "C:" topic. Lines without a prefix continue the current field. A line of
// "---" ends the current card.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/crackgov/srs/internal/domain"
)

const (
	frontPrefix = "Q:"
	backPrefix  = "A:"
	topicPrefix = "C:"
	separator   = "---"
)

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.CardContent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. Cards without a
// question are dropped.
func Parse(r io.Reader) ([]domain.CardContent, error) {
	var (
		cards   []domain.CardContent
		current domain.CardContent
		field   *string // field receiving the lines in block, nil while seeking
		block   []string
	)

	flushField := func() {
		if field != nil && len(block) > 0 {
			*field = strings.TrimRight(strings.Join(block, "\n"), "\n ")
		}
		block = nil
	}
	finishCard := func() {
		flushField()
		if current.Front != "" {
			cards = append(cards, current)
		}
		current = domain.CardContent{}
		field = nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if line == separator {
			finishCard()
			continue
		}

		prefix, target := matchPrefix(line, &current)
		if target == nil {
			if field != nil {
				block = append(block, line)
			}
			continue
		}

		if prefix == frontPrefix && field != nil {
			// A new question always starts a new card.
			finishCard()
			target = &current.Front
		} else {
			flushField()
		}
		field = target
		block = append(block, strings.TrimPrefix(line[len(prefix):], " "))
	}
	finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

func matchPrefix(line string, card *domain.CardContent) (string, *string) {
	switch {
	case strings.HasPrefix(line, frontPrefix):
		return frontPrefix, &card.Front
	case strings.HasPrefix(line, backPrefix):
		return backPrefix, &card.Back
	case strings.HasPrefix(line, topicPrefix):
		return topicPrefix, &card.Topic
	}
	return "", nil
}
