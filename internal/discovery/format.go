// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discovery

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pdiddy/paperflow/pkg/types"
)

// FormatTable writes a channel snapshot as a human-readable table to w.
func FormatTable(snap Snapshot, w io.Writer) {
	if len(snap.Papers) == 0 {
		fmt.Fprintln(w, "No papers found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-6s  %-14s  %s\n",
		"Rank", "Title", "Authors", "Year", "Score", "Source", "PDF")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for i, p := range snap.Papers {
		title := truncate(p.Title, 60)
		pdf := ""
		if p.PDFURL != "" {
			pdf = "yes"
			if p.IsOpenAccess {
				pdf = "open"
			}
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-6.2f  %-14s  %s\n",
			i+1, title, formatAuthors(p.Authors), formatYear(p.Year),
			p.RelevanceScore, truncate(p.Source, 14), pdf)
	}

	fmt.Fprintf(w, "\n%d papers", len(snap.Papers))
	if snap.SearchDuration > 0 {
		fmt.Fprintf(w, " in %s", snap.SearchDuration.Round(10*time.Millisecond))
	}
	fmt.Fprintln(w)
}

// FormatJSON writes the snapshot's papers as indented JSON to w.
func FormatJSON(snap Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap.Papers)
}

// FormatSummary writes an ingestion summary line to w. Nothing is written
// until the summary has been verified against the backend.
func FormatSummary(sum types.IngestionSummary, w io.Writer) {
	if !sum.Verified {
		return
	}
	fmt.Fprintf(w, "Ingestion: %d succeeded, %d failed, %d without PDF, %d pending\n",
		sum.Success, sum.Failed, sum.NoPDF, sum.Pending)
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 14) + " et al."
	}
}

func formatYear(year int) string {
	if year == 0 {
		return ""
	}
	return fmt.Sprintf("%d", year)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
