package output

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ccollicutt/matchlog/pkg/repository"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	switch {
	case report.Ingest != nil:
		if f.opts.Quiet {
			return f.formatIngestQuiet(report.Ingest, w)
		}
		return f.formatIngest(report.Ingest, w)
	case report.Games != nil:
		return f.formatGames(report.Games, w)
	case report.Categories != nil:
		return f.formatCategories(report.Categories, w)
	case report.Filters != nil:
		return f.formatFilters(report.Filters, w)
	case report.Players != nil:
		return f.formatPlayers(report.Players, w)
	case report.Setting != nil:
		return f.formatSetting(report.Setting, w)
	}
	return nil
}

func (f *TextFormatter) formatIngestQuiet(r *IngestReport, w io.Writer) error {
	_, err := fmt.Fprintf(w, "matchlog: %d ingested, %d errors, %d total\n", r.Ingested, r.Errors, r.Total)
	return err
}

func (f *TextFormatter) formatIngest(r *IngestReport, w io.Writer) error {
	// Header
	fmt.Fprintln(w, "=== matchlog Ingestion Report ===")
	fmt.Fprintln(w)

	if r.Source != "" {
		fmt.Fprintf(w, "Source: %s\n", r.Source)
	}
	fmt.Fprintf(w, "New match logs: %d (already recorded: %d)\n", r.Total-r.Skipped, r.Skipped)
	if r.MainPlayer != "" {
		fmt.Fprintf(w, "Main player: %s\n", r.MainPlayer)
	}
	if r.PersistFailures > 0 {
		fmt.Fprintf(w, "WARNING: %d snapshot write(s) failed; data since the last successful write is held in memory only\n",
			r.PersistFailures)
	}

	if len(r.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Failed: %d file(s)\n", len(r.Failures))
		for _, fl := range r.Failures {
			if f.opts.Verbose {
				fmt.Fprintf(w, "  - %s (%s): %s\n", fl.File, fl.Stage, fl.Error)
			} else {
				fmt.Fprintf(w, "  - %s (%s)\n", fl.File, fl.Stage)
			}
		}
	}

	// Summary
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d ingested, %d errors, %d total\n", r.Ingested, r.Errors, r.Total)

	if f.opts.Verbose {
		fmt.Fprintf(w, "Parse warnings: %d\n", r.Warnings)
		fmt.Fprintf(w, "Names backfilled: %d\n", r.NamesBackfilled)
		fmt.Fprintf(w, "Duration: %s\n", r.Duration.Round(time.Millisecond))
	}

	return nil
}

func (f *TextFormatter) formatGames(games []repository.Game, w io.Writer) error {
	if f.opts.Quiet {
		_, err := fmt.Fprintf(w, "%d games\n", len(games))
		return err
	}
	if len(games) == 0 {
		_, err := fmt.Fprintln(w, "No games match the query")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tMISSION\tDIFFICULTY\tMODIFIER\tRESULT\tDURATION\tPLAYERS")
	for _, g := range games {
		modifier := g.Modifier
		if modifier == "" {
			modifier = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%d\n",
			g.Time.Format("2006-01-02 15:04"),
			g.MissionName,
			g.Difficulty,
			modifier,
			g.Result,
			(time.Duration(g.DurationSeconds) * time.Second).String(),
			len(g.Roster))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !f.opts.Verbose {
		return nil
	}
	for _, g := range games {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "[%s] %s\n", g.Filename, g.MissionName)
		for _, player := range sortedKeys(g.Roster) {
			marker := ""
			if g.Quitters[player] {
				marker = " (left)"
			}
			fmt.Fprintf(w, "  %s%s\n", g.Roster[player], marker)
			scores := g.Scores[player]
			for _, prop := range sortedKeys(scores) {
				fmt.Fprintf(w, "    %s: %g\n", prop, scores[prop])
			}
		}
	}
	return nil
}

func (f *TextFormatter) formatCategories(categories []repository.Category, w io.Writer) error {
	if len(categories) == 0 {
		_, err := fmt.Fprintln(w, "No properties recorded")
		return err
	}
	for _, c := range categories {
		fmt.Fprintf(w, "[%s] %s\n", c.ID, c.Name)
		for _, p := range c.Properties {
			if !p.Visible && !f.opts.Verbose {
				continue
			}
			indent := strings.Repeat("  ", p.Depth+1)
			fmt.Fprintf(w, "%s%s (%s, %s)", indent, p.DisplayName, p.ID, p.SortDirection)
			if !p.Visible {
				fmt.Fprint(w, " hidden")
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}

func (f *TextFormatter) formatFilters(filters *repository.Filters, w io.Writer) error {
	fmt.Fprintln(w, "Missions:")
	for _, m := range filters.Missions {
		fmt.Fprintf(w, "  %s (%s)\n", m.Name, m.ID)
	}
	fmt.Fprintln(w, "Difficulties:")
	for _, d := range filters.Difficulties {
		fmt.Fprintf(w, "  %d: %s\n", d.Value, d.Name)
	}
	fmt.Fprintln(w, "Modifiers:")
	for _, m := range filters.Modifiers {
		fmt.Fprintf(w, "  %s\n", m)
	}
	if filters.Span != nil {
		fmt.Fprintf(w, "Span: %s to %s\n",
			filters.Span.From.Format(time.RFC3339), filters.Span.To.Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "Span: no games recorded")
	}
	return nil
}

func (f *TextFormatter) formatPlayers(players []repository.Player, w io.Writer) error {
	if len(players) == 0 {
		_, err := fmt.Fprintln(w, "No players recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLABEL\tCOLOR\tGAMES\tFLAGS")
	for _, p := range players {
		var flags []string
		if p.IsMain {
			flags = append(flags, "main")
		}
		if p.IsBot {
			flags = append(flags, "bot")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Name, dash(p.CustomName), dash(p.Color), p.Games, dash(strings.Join(flags, ",")))
	}
	return tw.Flush()
}

func (f *TextFormatter) formatSetting(s *Setting, w io.Writer) error {
	if !s.Found {
		_, err := fmt.Fprintf(w, "%s is not set\n", s.Key)
		return err
	}
	_, err := fmt.Fprintf(w, "%s = %s\n", s.Key, s.Value)
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
