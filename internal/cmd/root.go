package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ignite/internal/config"
	"github.com/felixgeelhaar/ignite/internal/exitcode"
)

// Persistent flag names
const (
	flagConfig      = "config"
	flagAPIURL      = "api-url"
	flagStore       = "store"
	flagStoreDir    = "store-dir"
	flagLogLevel    = "log-level"
	flagLogFormat   = "log-format"
	flagMetricsAddr = "metrics-addr"
	flagOutput      = "output"
)

// flagBindings maps configuration keys to the flags that override them.
var flagBindings = map[string]string{
	config.KeyAPIURL:      flagAPIURL,
	config.KeyStoreType:   flagStore,
	config.KeyStoreDir:    flagStoreDir,
	config.KeyLogLevel:    flagLogLevel,
	config.KeyLogFormat:   flagLogFormat,
	config.KeyMetricsAddr: flagMetricsAddr,
}

var rootCmd = &cobra.Command{
	Use:   "ignite",
	Short: "Session-aware client for the Ignite workout API",
	Long: `ignite signs in to the Ignite workout API, keeps the session on disk and
renews expired access tokens transparently.

Concurrent requests that hit an expired token share a single refresh and are
replayed with the new token. A rejected refresh signs the session out.

Configuration is read from ~/.ignite/config.yaml, IGNITE_* environment
variables and flags, in increasing precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt by main.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// exitCodeHelp renders the exit code table shown in the root help.
func exitCodeHelp() string {
	var b strings.Builder
	b.WriteString("Exit codes:")
	for _, code := range exitcode.All {
		fmt.Fprintf(&b, "\n  %-4d %s", code, exitcode.Describe(code))
	}
	return b.String()
}

func init() {
	rootCmd.Long += "\n\n" + exitCodeHelp()

	pf := rootCmd.PersistentFlags()
	pf.String(flagConfig, "", "config file (default is $HOME/.ignite/config.yaml)")
	pf.String(flagAPIURL, "", "API base URL")
	pf.String(flagStore, "", "credential store: file or memory")
	pf.String(flagStoreDir, "", "directory of the file credential store")
	pf.String(flagLogLevel, "", "log level: debug, info, warn, error")
	pf.String(flagLogFormat, "", "log format: text or json")
	pf.String(flagMetricsAddr, "", "serve Prometheus metrics on this address while the command runs")
	pf.StringP(flagOutput, "o", "text", "output format: text, json, yaml")
}
