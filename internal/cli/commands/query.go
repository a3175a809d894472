package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/matchlog/pkg/output"
	"github.com/ccollicutt/matchlog/pkg/repository"
)

// GamesOptions holds command-line options for the games command.
type GamesOptions struct {
	Properties   []string
	Result       string
	Difficulties []int
	Missions     []string
	Modifiers    []string
	Since        string
	Until        string
	TimeRange    string
	Last         int
}

// NewGamesCommand creates the games command.
func NewGamesCommand(global *GlobalOptions) *cobra.Command {
	opts := &GamesOptions{}

	cmd := &cobra.Command{
		Use:   "games",
		Short: "List recorded games with their scores",
		Long: `List recorded games in ascending time order.

Scores are returned for the properties named with --property, or for every
recorded property when none is named. Filters combine: a game is listed when
it matches all of them.

Result filters:
  all            every game
  won            wins only
  lost           losses only
  won_long_lost  wins and losses longer than query.long_loss_threshold`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGames(cmd, global, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Properties, "property", "p", nil, "Return scores for property id(s) (default all)")
	cmd.Flags().StringVar(&opts.Result, "result", string(repository.ResultAll), "Result filter (all|won|lost|won_long_lost)")
	cmd.Flags().IntSliceVar(&opts.Difficulties, "difficulty", nil, "Only games at these difficulty level(s)")
	cmd.Flags().StringSliceVar(&opts.Missions, "mission", nil, "Only games of these mission id(s)")
	cmd.Flags().StringSliceVar(&opts.Modifiers, "modifier", nil, "Only games with these modifier(s)")
	cmd.Flags().StringVar(&opts.Since, "since", "", "Only games at or after this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Until, "until", "", "Only games at or before this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.TimeRange, "time-range", "", "Only games within this window before now (e.g., 24h, 168h)")
	cmd.Flags().IntVar(&opts.Last, "last", 0, "Only the N most recent matching games (ignores time bounds)")

	return cmd
}

func runGames(cmd *cobra.Command, global *GlobalOptions, opts *GamesOptions) error {
	ctx := commandContext(cmd)

	q, err := opts.query(time.Now())
	if err != nil {
		return err
	}

	a, err := openApp(ctx, global)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(q.Properties) == 0 {
		categories, err := a.repo.GetProperties(ctx)
		if err != nil {
			return fmt.Errorf("loading properties: %w", err)
		}
		for _, c := range categories {
			for _, p := range c.Properties {
				q.Properties = append(q.Properties, p.ID)
			}
		}
	}

	games, err := a.repo.GetGames(ctx, q)
	if err != nil {
		return fmt.Errorf("querying games: %w", err)
	}
	return render(cmd, global, &output.Report{Games: games})
}

// query converts the flags into a repository query relative to now.
func (o *GamesOptions) query(now time.Time) (repository.GameQuery, error) {
	q := repository.GameQuery{
		Properties:   o.Properties,
		Result:       repository.ResultFilter(o.Result),
		Difficulties: o.Difficulties,
		Missions:     o.Missions,
		Modifiers:    o.Modifiers,
		Last:         o.Last,
	}

	var err error
	if o.Since != "" {
		if q.Since, err = parseTimeFlag(o.Since, false); err != nil {
			return q, fmt.Errorf("invalid --since %q: %w", o.Since, err)
		}
	}
	if o.Until != "" {
		if q.Until, err = parseTimeFlag(o.Until, true); err != nil {
			return q, fmt.Errorf("invalid --until %q: %w", o.Until, err)
		}
	}
	if o.TimeRange != "" {
		if o.Since != "" {
			return q, fmt.Errorf("--time-range and --since cannot be combined")
		}
		d, err := time.ParseDuration(o.TimeRange)
		if err != nil {
			return q, fmt.Errorf("invalid time-range %q: %w", o.TimeRange, err)
		}
		q.Since = now.Add(-d)
	}
	return q, nil
}

// parseTimeFlag accepts RFC 3339 or a local calendar date. A date used as an
// upper bound covers the whole day.
func parseTimeFlag(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Second)
	}
	return t, nil
}

// NewPropertiesCommand creates the properties command.
func NewPropertiesCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "properties",
		Short: "List score properties grouped by category",
		Long: `List every recorded score property, grouped by category in display order.
Child properties are listed under their parent. Hidden properties are shown
with --verbose.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := openApp(ctx, global)
			if err != nil {
				return err
			}
			defer a.Close()

			categories, err := a.repo.GetProperties(ctx)
			if err != nil {
				return fmt.Errorf("loading properties: %w", err)
			}
			if categories == nil {
				categories = []repository.Category{}
			}
			return render(cmd, global, &output.Report{Categories: categories})
		},
	}
}

// NewFiltersCommand creates the filters command.
func NewFiltersCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List the missions, difficulties and modifiers present in recorded games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := openApp(ctx, global)
			if err != nil {
				return err
			}
			defer a.Close()

			filters, err := a.repo.GetFilters(ctx)
			if err != nil {
				return fmt.Errorf("loading filters: %w", err)
			}
			return render(cmd, global, &output.Report{Filters: filters})
		},
	}
}

// NewPlayersCommand creates the players command.
func NewPlayersCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "List known players",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := openApp(ctx, global)
			if err != nil {
				return err
			}
			defer a.Close()

			players, err := a.repo.GetPlayers(ctx)
			if err != nil {
				return fmt.Errorf("loading players: %w", err)
			}
			if players == nil {
				players = []repository.Player{}
			}
			return render(cmd, global, &output.Report{Players: players})
		},
	}
}
