package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectedCards int
		expectedFront string
		expectedBack  string
		expectedTopic string
	}{
		{
			name:          "Simple Q&A",
			input:         "Q: Which article abolishes untouchability?\nA: Article 17",
			expectedCards: 1,
			expectedFront: "Which article abolishes untouchability?",
			expectedBack:  "Article 17",
		},
		{
			name:          "Q, A and topic",
			input:         "Q: What is 15% of 240?\nA: 36\nC: Quantitative aptitude",
			expectedCards: 1,
			expectedFront: "What is 15% of 240?",
			expectedBack:  "36",
			expectedTopic: "Quantitative aptitude",
		},
		{
			name: "Multiline answer",
			input: `
Q: Name the three organs of the state.
A: Legislature
Executive
Judiciary
`,
			expectedCards: 1,
			expectedFront: "Name the three organs of the state.",
			expectedBack:  "Legislature\nExecutive\nJudiciary",
		},
		{
			name: "Trailing blank lines are trimmed",
			input: `Q: Capital of Sikkim?
A: Gangtok


Q: Capital of Mizoram?
A: Aizawl
`,
			expectedCards: 2,
		},
		{
			name:          "Separator ends a card",
			input:         "Q: First\nA: One\n---\nstray text\nQ: Second\nA: Two",
			expectedCards: 2,
		},
		{
			name:          "Answer without question is dropped",
			input:         "A: orphan answer\nC: nowhere",
			expectedCards: 0,
		},
		{
			name:          "No cards, just text",
			input:         "This file has no questions.",
			expectedCards: 0,
		},
		{
			name:          "Prefixes with no space",
			input:         "Q:Question\nA:Answer",
			expectedCards: 1,
			expectedFront: "Question",
			expectedBack:  "Answer",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cards, err := Parse(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}

			if len(cards) != tc.expectedCards {
				t.Fatalf("Expected %d cards, but got %d", tc.expectedCards, len(cards))
			}

			if tc.expectedCards == 1 {
				card := cards[0]
				if card.Front != tc.expectedFront {
					t.Errorf("Expected Front to be '%s', but got '%s'", tc.expectedFront, card.Front)
				}
				if card.Back != tc.expectedBack {
					t.Errorf("Expected Back to be '%s', but got '%s'", tc.expectedBack, card.Back)
				}
				if card.Topic != tc.expectedTopic {
					t.Errorf("Expected Topic to be '%s', but got '%s'", tc.expectedTopic, card.Topic)
				}
			}
		})
	}
}

func TestParseTrimsBetweenCards(t *testing.T) {
	cards, err := Parse(strings.NewReader("Q: Capital of Sikkim?\nA: Gangtok\n\n\nQ: Capital of Mizoram?\nA: Aizawl"))
	if err != nil {
		t.Fatalf("Parse() returned an unexpected error: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("Expected 2 cards, but got %d", len(cards))
	}
	if cards[0].Back != "Gangtok" {
		t.Errorf("Expected first answer 'Gangtok', but got %q", cards[0].Back)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.md")
	if err := os.WriteFile(path, []byte("# Economy\n\nQ: Who publishes the CPI?\nA: NSO\nC: Economy\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cards, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() returned an unexpected error: %v", err)
	}
	if len(cards) != 1 || cards[0].Topic != "Economy" {
		t.Errorf("Unexpected cards: %+v", cards)
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
