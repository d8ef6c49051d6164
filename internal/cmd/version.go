package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ignite/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

func init() {
	versionCmd.Flags().BoolP("verbose", "v", false, "show detailed version information")

	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.GetInfo()

	out, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	if format, _ := cmd.Flags().GetString(flagOutput); format != "text" {
		return out.Format(info)
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return out.Format(info.String())
	}
	return out.Format(fmt.Sprintf("ignite %s", info.Short()))
}
