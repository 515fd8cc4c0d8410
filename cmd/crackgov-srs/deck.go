package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/crackgov/srs/internal/importer"
)

func (a *app) importCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "import <dir|git-url>",
		Short: "Import markdown decks as new flashcards for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			report, err := importer.New(db, a.cfg.Import.ReposDir).Import(cmd.Context(), owner, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %d cards in %d files: %d created, %d already present, %d errors.\n",
				report.Parsed, report.Files, report.Created, report.Skipped, len(report.Errors))
			if len(report.Errors) > 0 {
				fmt.Fprintln(out, "\nErrors:")
				for _, e := range report.Errors {
					fmt.Fprintf(out, "- %s\n", e)
				}
				return errors.New("import finished with errors")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "ID of the user who will own the cards")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func (a *app) dueCmd() *cobra.Command {
	var (
		owner string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List an owner's flashcards that are due for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			now := time.Now()
			cards, err := db.ListDueFlashcards(cmd.Context(), owner, now, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTOPIC\tDIFFICULTY\tREVIEWS\tOVERDUE\tFRONT")
			for _, c := range cards {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
					c.ID, c.Topic, c.RetentionLevel, c.ReviewCount,
					now.Sub(c.NextReview).Truncate(time.Minute), firstLine(c.Front))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "ID of the user whose queue to show")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of cards to list (0 for all)")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
