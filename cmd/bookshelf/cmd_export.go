package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"bookshelf/pkg/models"
)

var exportOut string

var shelfExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write your whole shelf to a CSV file",
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		if _, err := a.requireUser(); err != nil {
			return err
		}
		if err := a.shelf.SetFilter(ctx, models.StatusAll); err != nil {
			return err
		}
		entries := a.shelf.Entries()

		if exportOut == "-" {
			return writeShelfCSV(cmd.OutOrStdout(), entries)
		}
		if err := os.MkdirAll(filepath.Dir(exportOut), 0o755); err != nil {
			return err
		}
		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := writeShelfCSV(f, entries); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ exported %d entries to %s\n", len(entries), exportOut)
		return nil
	}),
}

var shelfCSVHeader = []string{
	"id", "title", "author", "isbn", "status", "progress", "rating", "review", "start_date", "finish_date", "updated_at",
}

func writeShelfCSV(out io.Writer, entries []models.ShelfEntry) error {
	w := csv.NewWriter(out)
	if err := w.Write(shelfCSVHeader); err != nil {
		return err
	}
	for _, e := range entries {
		rating := ""
		if e.Rating != nil {
			rating = strconv.Itoa(*e.Rating)
		}
		if err := w.Write([]string{
			e.ID,
			e.Book.Title,
			e.Book.Author,
			csvField(e.Book.ISBN),
			string(e.Status),
			strconv.Itoa(e.Progress),
			rating,
			csvField(e.Review),
			formatDate(e.StartDate),
			formatDate(e.FinishDate),
			e.UpdatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// csvField leaves missing values blank so they never collide with real text.
func csvField(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func init() {
	shelfExportCmd.Flags().StringVarP(&exportOut, "out", "o", "bookshelf.csv", "output CSV path, - for stdout")
	shelfCmd.AddCommand(shelfExportCmd)
}
