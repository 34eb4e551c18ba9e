// Package main runs the terminal viewer for cardinality statistics tables.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fidde/cardinality_explorer/internal/tui"
	"github.com/fidde/cardinality_explorer/pkg/models"
)

func main() {
	apiURL := flag.String("api", getEnv("CARDINALITY_API", "http://localhost:8080"), "explorer API base URL")
	kind := flag.String("kind", string(models.KindMetrics), "initial table: metrics, labels, label_values or pairs")
	snapshot := flag.String("snapshot", "", "snapshot to show (default: live)")
	compare := flag.String("compare", "", "snapshot to compare with (default: newest older snapshot)")
	focus := flag.String("focus", "", "label name to focus the pairs table on")
	minSeverity := flag.String("min-severity", "", "hide rows that grew less than this: info, warning or critical")
	paging := flag.Bool("paging", true, "page the table instead of loading every row")
	pageSize := flag.Int("page-size", 50, "rows per page")
	refresh := flag.Duration("refresh", 0, "reload interval, 0 disables")
	flag.Parse()

	k, err := models.ParseKind(*kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	if *minSeverity != "" {
		if _, err := models.ParseSeverity(*minSeverity); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
	}

	m := tui.NewModel(tui.NewClient(*apiURL), tui.Options{
		Kind:        k,
		Snapshot:    *snapshot,
		CompareTo:   *compare,
		Focus:       *focus,
		MinSeverity: *minSeverity,
		Paging:      *paging,
		PageSize:    *pageSize,
		Refresh:     *refresh,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// getEnv gets an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
