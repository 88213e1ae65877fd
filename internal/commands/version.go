package commands

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout(), version)
		},
	}
}

func printVersion(w io.Writer, version string) {
	fmt.Fprintf(w, "fetch version %s\n", version)
	fmt.Fprintf(w, "Built with %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
