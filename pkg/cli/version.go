package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/getmockd/stubd/pkg/cli/internal/output"
	"github.com/spf13/cobra"
)

// VersionOutput represents JSON output format
type VersionOutput struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show stubd version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := versionOutput(a.info)
			w := cmd.OutOrStdout()
			if a.jsonOutput {
				return output.JSON(w, out)
			}

			v := out.Version
			if len(v) > 0 && v[0] != 'v' && v != "dev" && v != "(devel)" {
				v = "v" + v
			}
			fmt.Fprintf(w, "stubd %s (%s, %s)\n", v, out.Commit, out.Date)
			fmt.Fprintf(w, "%s %s/%s\n", out.Go, out.OS, out.Arch)
			return nil
		},
	}
}

// versionOutput fills unset build info from the module build metadata.
func versionOutput(info BuildInfo) VersionOutput {
	out := VersionOutput{
		Version: orDefault(info.Version, "dev"),
		Commit:  orDefault(info.Commit, "none"),
		Date:    orDefault(info.BuildDate, "unknown"),
		Go:      runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if out.Version == "dev" && bi.Main.Version != "" {
			out.Version = bi.Main.Version
		}
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				if out.Commit == "none" {
					out.Commit = setting.Value
				}
			case "vcs.time":
				if out.Date == "unknown" {
					out.Date = setting.Value
				}
			case "vcs.modified":
				if setting.Value == "true" {
					out.Commit += "-dirty"
				}
			}
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
