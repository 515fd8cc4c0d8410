// Package importer loads markdown decks into an owner's flashcards.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crackgov/srs/internal/domain"
	"github.com/crackgov/srs/internal/gitsource"
	"github.com/crackgov/srs/internal/knol"
	"github.com/crackgov/srs/internal/parser"
	"github.com/crackgov/srs/internal/review"
)

// Store is the persistence the importer needs.
type Store interface {
	FindFlashcardByHash(ctx context.Context, ownerID, hash string) (*domain.Flashcard, error)
	CreateFlashcard(ctx context.Context, card *domain.Flashcard) error
}

// Report summarises one import run.
type Report struct {
	Files   int
	Parsed  int
	Created int
	Skipped int
	Errors  []error
}

// Importer reconciles deck sources with an owner's flashcards. Cards are
// only ever added; editing a card in a deck produces a new card.
type Importer struct {
	store    Store
	reposDir string
	now      func() time.Time
}

// New creates an importer that checks git sources out under reposDir.
func New(store Store, reposDir string) *Importer {
	return &Importer{store: store, reposDir: reposDir, now: time.Now}
}

// Import reads every .md file under source, which is either a local directory
// or a git URL, and creates the cards ownerID does not already have.
// Per-card failures are collected in the report; the returned error is for
// failures that stop the whole run.
func (im *Importer) Import(ctx context.Context, ownerID, source string) (*Report, error) {
	dir := source
	if gitsource.IsRemote(source) {
		if err := os.MkdirAll(im.reposDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create repos directory: %w", err)
		}
		localPath, err := gitsource.LocalPath(im.reposDir, source)
		if err != nil {
			return nil, err
		}
		if err := gitsource.Sync(ctx, source, localPath); err != nil {
			return nil, err
		}
		dir = localPath
	}

	slog.Info("importing deck", "owner_id", ownerID, "source", source, "path", dir)
	report := &Report{}
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		report.Files++
		cards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		for _, content := range cards {
			report.Parsed++
			im.importCard(ctx, ownerID, content, report)
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("failed to walk %s: %w", dir, walkErr)
	}

	slog.Info("import complete",
		"owner_id", ownerID,
		"source", source,
		"files", report.Files,
		"parsed_cards", report.Parsed,
		"created", report.Created,
		"skipped", report.Skipped,
		"errors", len(report.Errors),
	)
	return report, nil
}

func (im *Importer) importCard(ctx context.Context, ownerID string, content domain.CardContent, report *Report) {
	if content.Back == "" {
		report.Errors = append(report.Errors, fmt.Errorf("card %q has no answer", content.Front))
		return
	}

	hash := knol.Hash(content)
	existing, err := im.store.FindFlashcardByHash(ctx, ownerID, hash)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("db check for %s: %w", hash, err))
		return
	}
	if existing != nil {
		report.Skipped++
		return
	}

	card := review.NewFlashcard(ownerID, content, im.now())
	if err := im.store.CreateFlashcard(ctx, card); err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("db insert for %s: %w", hash, err))
		return
	}
	slog.Debug("new card found, inserted", "owner_id", ownerID, "hash", hash, "flashcard_id", card.ID)
	report.Created++
}
