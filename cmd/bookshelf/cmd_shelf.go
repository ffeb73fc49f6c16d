package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bookshelf/internal/catalog"
	"bookshelf/pkg/models"
)

var shelfCmd = &cobra.Command{
	Use:   "shelf",
	Short: "List and update your shelf",
}

var shelfStatus string

var shelfListCmd = &cobra.Command{
	Use:   "list",
	Short: "List shelf entries, newest first",
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		if _, err := a.requireUser(); err != nil {
			return err
		}
		status := models.StatusAll
		if shelfStatus != "" {
			if status = models.ParseStatus(shelfStatus); status == "" {
				return fmt.Errorf("unknown status %q", shelfStatus)
			}
		}
		if err := a.shelf.SetFilter(ctx, status); err != nil {
			return err
		}
		printShelf(cmd.OutOrStdout(), a.shelf.Entries())
		return nil
	}),
}

var shelfAddPick int

var shelfAddCmd = &cobra.Command{
	Use:   "add <query...>",
	Short: "Search the catalog and shelve a result as want to read",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		userID, err := a.requireUser()
		if err != nil {
			return err
		}
		docs, err := a.searcher.Search(ctx, strings.Join(args, " "), catalog.DefaultLimit)
		if err != nil {
			return fmt.Errorf("failed to search books: %w", err)
		}
		if shelfAddPick < 1 || shelfAddPick > len(docs) {
			printDocs(cmd.OutOrStdout(), docs)
			return fmt.Errorf("--pick must be between 1 and %d", len(docs))
		}
		doc := docs[shelfAddPick-1]

		ub, err := a.ingester.AddToShelf(ctx, userID, doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "📚 added %q to your shelf (%s)\n", doc.Title, ub.ID)
		return nil
	}),
}

var shelfSetStatusCmd = &cobra.Command{
	Use:   "status <entry-id> <want_to_read|reading|read|dnf>",
	Short: "Change an entry's reading status",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		if _, err := a.requireUser(); err != nil {
			return err
		}
		status := models.ParseStatus(args[1])
		if !status.Valid() {
			return fmt.Errorf("unknown status %q", args[1])
		}
		if err := a.shelf.UpdateStatus(ctx, args[0], status); err != nil {
			return err
		}
		printShelf(cmd.OutOrStdout(), a.shelf.Entries())
		return nil
	}),
}

var shelfProgressCmd = &cobra.Command{
	Use:   "progress <entry-id> <0-100>",
	Short: "Record reading progress as a percentage",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		if _, err := a.requireUser(); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 || n > 100 {
			return errors.New("progress must be a number between 0 and 100")
		}
		if err := a.shelf.UpdateProgress(ctx, args[0], n); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ progress %d%%\n", n)
		return nil
	}),
}

var shelfRateCmd = &cobra.Command{
	Use:   "rate <entry-id> <1-5>",
	Short: "Rate a book from 1 to 5 stars",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		if _, err := a.requireUser(); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 || n > 5 {
			return errors.New("rating must be a number between 1 and 5")
		}
		if err := a.shelf.UpdateRating(ctx, args[0], n); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "⭐ %s\n", strings.Repeat("★", n)+strings.Repeat("☆", 5-n))
		return nil
	}),
}

var shelfReviewCmd = &cobra.Command{
	Use:   "review <entry-id> <text...>",
	Short: "Write a short review",
	Args:  cobra.MinimumNArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		if _, err := a.requireUser(); err != nil {
			return err
		}
		if err := a.shelf.UpdateReview(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✅ review saved")
		return nil
	}),
}

func printShelf(w io.Writer, entries []models.ShelfEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "your shelf is empty")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tSTATUS\tPROGRESS\tRATING")
	for _, e := range entries {
		rating := "-"
		if e.Rating != nil {
			rating = strconv.Itoa(*e.Rating)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d%%\t%s\n", e.ID, e.Book.Title, e.Book.Author, e.Status, e.Progress, rating)
	}
	_ = tw.Flush()
}

func init() {
	shelfListCmd.Flags().StringVar(&shelfStatus, "status", "", "only entries with this status")
	shelfAddCmd.Flags().IntVar(&shelfAddPick, "pick", 1, "which search result to add (1-based)")
	shelfCmd.AddCommand(shelfListCmd, shelfAddCmd, shelfSetStatusCmd, shelfProgressCmd, shelfRateCmd, shelfReviewCmd)
}
