package commands

import (
	"fmt"
	"runtime"

	"github.com/leapstack-labs/leapmix/internal/cli/output"
	"github.com/spf13/cobra"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	if info.GoVersion == "" {
		info.GoVersion = runtime.Version()
	}
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display leapmix version and build information.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := NewCommandContextWithoutEngine(cmd).Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "leapmix v%s\n", info.Version)
			_, _ = fmt.Fprintf(out, "commit %s, built %s, %s\n", info.GitCommit, info.BuildDate, info.GoVersion)
			return nil
		},
	}
}
