package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	version   = "" // This will be set by build flags
	buildTime = "" // This will be set by build flags
	gitCommit = "" // This will be set by build flags
)

// getVersion returns the version string.
// Priority: ldflags > debug.ReadBuildInfo > "(devel)"
func getVersion() string {
	if version != "" {
		return version
	}
	if buildInfo, ok := debug.ReadBuildInfo(); ok && buildInfo.Main.Version != "" {
		return buildInfo.Main.Version
	}
	return "(devel)"
}

// getCommit returns the short commit hash, or "unknown"
func getCommit() string {
	if gitCommit != "" {
		return gitCommit
	}
	if value := buildSetting("vcs.revision"); value != "" {
		if len(value) > 7 {
			return value[:7]
		}
		return value
	}
	return "unknown"
}

// getBuildTime returns the build date, or "unknown"
func getBuildTime() string {
	if buildTime != "" {
		return buildTime
	}
	if value := buildSetting("vcs.time"); value != "" {
		return value
	}
	return "unknown"
}

func buildSetting(key string) string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range buildInfo.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "PDF Forensics\n")
			fmt.Fprintf(out, "Version: %s\n", getVersion())
			fmt.Fprintf(out, "Build Time: %s\n", getBuildTime())
			fmt.Fprintf(out, "Git Commit: %s\n", getCommit())
			fmt.Fprintf(out, "Built with: %s\n", runtime.Version())
		},
	}
}
