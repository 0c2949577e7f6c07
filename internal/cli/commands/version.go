package commands

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the beamline version, the Go toolchain and the VCS revision it was built from.`,
		Run: func(cmd *cobra.Command, _ []string) {
			info, _ := debug.ReadBuildInfo()
			writeVersion(cmd.OutOrStdout(), version, info)
		},
	}
}

func writeVersion(w io.Writer, version string, info *debug.BuildInfo) {
	_, _ = fmt.Fprintf(w, "beamline v%s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if info == nil {
		return
	}
	var revision, modified string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		}
	}
	if revision == "" {
		return
	}
	if modified == "true" {
		revision += "-dirty"
	}
	_, _ = fmt.Fprintf(w, "revision %s\n", revision)
}
