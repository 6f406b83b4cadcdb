/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/obbywatch/internal/config"
	"github.com/josephgoksu/obbywatch/internal/patterns"
	"github.com/josephgoksu/obbywatch/internal/semanticindex"
	"github.com/josephgoksu/obbywatch/internal/store"
)

var statusSearchQuery string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a one-shot snapshot of the watched project's state",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusSearchQuery, "search", "", "search the living note instead of printing status")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := config.GetProjectContext()
	layout := config.ResolveLayout(ctx.RootPath)

	st, err := store.Open(layout.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	matcher := patterns.New(layout.Root, layout.WatchFile, layout.IgnoreFile)

	if statusSearchQuery != "" {
		return runStatusSearch(st, statusSearchQuery)
	}

	events, err := st.RecentEvents(5)
	if err != nil {
		return fmt.Errorf("recent events: %w", err)
	}

	fmt.Printf("Project root:  %s\n", layout.Root)
	fmt.Printf("Database:      %s\n", layout.DatabasePath)
	fmt.Printf("Strict mode:   %v (watch list empty)\n", matcher.StrictModeEmpty())
	fmt.Printf("Recent events: %d\n", len(events))
	for _, e := range events {
		fmt.Printf("  [%s] %s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Type, e.Path)
	}
	return nil
}

func runStatusSearch(st *store.Store, query string) error {
	idx := semanticindex.New(st)
	results, err := idx.Search(query, 10, "")
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, r := range results {
		fmt.Printf("[%.2f] %s — %s (%s)\n", r.Score, r.Entry.Date, r.Entry.Summary, r.Entry.Type)
	}
	return nil
}
