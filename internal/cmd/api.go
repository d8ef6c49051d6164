package cmd

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/ignite/internal/errors"
	"github.com/felixgeelhaar/ignite/internal/platform"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Call authenticated API endpoints",
	Long: `Call authenticated endpoints of the Ignite API with the stored session.

Expired access tokens are renewed transparently and the request is replayed.

Examples:
  ignite api groups
  ignite api exercises costas
  ignite api history
  ignite api history add 7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var apiGroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List muscle groups",
	Args:  cobra.NoArgs,
	RunE:  withApp(runAPIGroups),
}

var apiExercisesCmd = &cobra.Command{
	Use:   "exercises <group>",
	Short: "List the exercises of a muscle group",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runAPIExercises),
}

var apiHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the exercise history",
	Args:  cobra.NoArgs,
	RunE:  withApp(runAPIHistory),
}

var apiHistoryAddCmd = &cobra.Command{
	Use:   "add <exercise-id>",
	Short: "Mark an exercise as done",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runAPIHistoryAdd),
}

var apiBurstCmd = &cobra.Command{
	Use:   "burst",
	Short: "Issue concurrent history requests",
	Long: `Issue concurrent history requests with the stored session.

When the access token has expired every request fails at once, yet only one
refresh reaches the server and all requests are replayed with the new token.`,
	Args: cobra.NoArgs,
	RunE: withApp(runAPIBurst),
}

func init() {
	apiHistoryCmd.AddCommand(apiHistoryAddCmd)

	apiCmd.AddCommand(apiGroupsCmd)
	apiCmd.AddCommand(apiExercisesCmd)
	apiCmd.AddCommand(apiHistoryCmd)
	apiCmd.AddCommand(apiBurstCmd)

	apiBurstCmd.Flags().IntP("requests", "n", 5, "number of concurrent requests")

	rootCmd.AddCommand(apiCmd)
}

type exercisesResult []platform.Exercise

func (r exercisesResult) Text() string {
	if len(r) == 0 {
		return "No exercises."
	}
	var b strings.Builder
	for _, e := range r {
		fmt.Fprintf(&b, "%-6s %-32s %d x %s\n", e.ID, e.Name, e.Series, e.Repetitions)
	}
	return b.String()
}

type historyResult []platform.HistoryDay

func (r historyResult) Text() string {
	if len(r) == 0 {
		return "No exercises done yet."
	}
	var b strings.Builder
	for _, day := range r {
		b.WriteString(day.Title)
		b.WriteString("\n")
		for _, e := range day.Data {
			fmt.Fprintf(&b, "  %s  %-32s %s\n", e.Hour, e.Name, e.Group)
		}
	}
	return b.String()
}

type burstResult struct {
	Requests  int           `json:"requests" yaml:"requests"`
	Succeeded int64         `json:"succeeded" yaml:"succeeded"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
}

func (r burstResult) Text() string {
	return fmt.Sprintf("%d/%d requests succeeded in %s", r.Succeeded, r.Requests, r.Elapsed.Round(time.Millisecond))
}

func runAPIGroups(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	groups, err := a.client.Groups(ctx)
	if err != nil {
		return err
	}
	return a.out.Format(groups)
}

func runAPIExercises(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	exercises, err := a.client.ExercisesByGroup(ctx, args[0])
	if err != nil {
		return err
	}
	return a.out.Format(exercisesResult(exercises))
}

func runAPIHistory(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	days, err := a.client.History(ctx)
	if err != nil {
		return err
	}
	return a.out.Format(historyResult(days))
}

func runAPIHistoryAdd(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	if err := a.client.RegisterHistory(ctx, args[0]); err != nil {
		return err
	}
	return a.out.Format(fmt.Sprintf("Exercise %s marked as done.", args[0]))
}

func runAPIBurst(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	n, _ := cmd.Flags().GetInt("requests")
	if n < 1 {
		return errors.NewInvalidInputError("--requests must be at least 1")
	}
	if err := a.requireSession(ctx); err != nil {
		return err
	}

	var succeeded int64
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if _, err := a.client.History(gctx); err != nil {
				return err
			}
			atomic.AddInt64(&succeeded, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return a.out.Format(burstResult{Requests: n, Succeeded: atomic.LoadInt64(&succeeded), Elapsed: time.Since(start)})
}
