package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ignite/internal/health"
	"github.com/felixgeelhaar/ignite/internal/tui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the API connection, credential store and session",
	Long: `Run diagnostics for the API connection, the credential store and the
stored session. Exits non-zero when a check is unhealthy.`,
	Args: cobra.NoArgs,
	RunE: withApp(runDoctor),
}

func init() {
	doctorCmd.Flags().Duration("timeout", health.DefaultTimeout, "timeout of each check")

	rootCmd.AddCommand(doctorCmd)
}

type doctorResult struct {
	Status health.Status   `json:"status" yaml:"status"`
	Checks []health.Report `json:"checks" yaml:"checks"`
}

func (r doctorResult) Text() string {
	styles := tui.DefaultStyles()
	var b strings.Builder
	for _, c := range r.Checks {
		style, icon := styles.Success, "✓"
		switch c.Result.Status {
		case health.StatusDegraded:
			style, icon = styles.Warning, "!"
		case health.StatusUnhealthy:
			style, icon = styles.Error, "✗"
		}
		b.WriteString(tui.RenderNotice(style, icon, fmt.Sprintf("%-18s %s", c.Name, c.Result.Message)))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nOverall: %s\n", r.Status)
	return b.String()
}

func runDoctor(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")

	m := health.NewManager(timeout,
		health.NewAPIChecker(a.transport, a.cfg.API.URL),
		health.NewStoreChecker(a.store, a.cfg.Store.Type),
		health.NewSessionChecker(a.session.Snapshot, time.Now),
	)
	reports := m.Check(ctx)
	res := doctorResult{Status: health.Overall(reports), Checks: reports}

	if err := a.out.Format(res); err != nil {
		return err
	}
	if res.Status == health.StatusUnhealthy {
		return fmt.Errorf("doctor found unhealthy checks")
	}
	return nil
}
