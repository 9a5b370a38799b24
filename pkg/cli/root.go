package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/getmockd/stubd/internal/cliconfig"
	"github.com/spf13/cobra"
)

// BuildInfo is injected by main from build-time variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// app holds the state shared by all subcommands of one root command.
type app struct {
	info BuildInfo

	// Persistent flags available to all subcommands
	jsonOutput bool
	flags      cliconfig.Settings

	// workDir is where .stubdrc.yaml is looked up.
	workDir string
}

// NewRootCommand builds the stubd command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	return newRootCmd(&app{info: info})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "stubd",
		Short: "stubd serves HTTP stubs selected by request matching",
		Long: `stubd serves HTTP resources declared in configuration files. Each request is
matched against the declared resources, the most specific one wins, and
values can be captured into named stores for use by later requests.

Settings can be provided via flags, STUBD_* environment variables, or a
.stubdrc.yaml file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true, // We handle errors in Execute()
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&a.jsonOutput, "json", false, "Output command results in JSON format")
	pf.StringSliceVarP(&a.flags.ConfigDirs, "config-dir", "c", nil, "Directory or file to load resources from (repeatable)")
	pf.StringVar(&a.flags.LogLevel, "log-level", cliconfig.DefaultLogLevel, "Log level (debug, info, warn, error)")
	pf.StringVar(&a.flags.LogFormat, "log-format", cliconfig.DefaultLogFormat, "Log format (text, json)")
	pf.StringSliceVar(&a.flags.EphemeralStores, "ephemeral-stores", cliconfig.DefaultEphemeralStores, "Stores that only live for one request")

	root.AddCommand(
		newServeCmd(a),
		newValidateCmd(a),
		newMatchCmd(a),
		newVersionCmd(a),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(info BuildInfo) int {
	return run(NewRootCommand(info), os.Args[1:], os.Stderr)
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
