package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"bookshelf/internal/catalog"
	"bookshelf/pkg/models"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search the Open Library catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		docs, err := a.searcher.Search(ctx, strings.Join(args, " "), searchLimit)
		if err != nil {
			return fmt.Errorf("failed to search books: %w", err)
		}
		printDocs(cmd.OutOrStdout(), docs)
		return nil
	}),
}

func printDocs(w io.Writer, docs []models.SearchDoc) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for i, d := range docs {
		author := "Unknown"
		if len(d.AuthorName) > 0 {
			author = d.AuthorName[0]
		}
		year := ""
		if d.FirstPublishYear != nil {
			year = fmt.Sprintf(" (%d)", *d.FirstPublishYear)
		}
		isbn := catalog.LookupISBN(d)
		if isbn == "" {
			isbn = "no isbn"
		}
		fmt.Fprintf(w, "%2d. %s by %s%s [%s]\n", i+1, d.Title, author, year, isbn)
	}
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", catalog.DefaultLimit, "maximum results")
}
