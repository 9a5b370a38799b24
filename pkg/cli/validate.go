package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/getmockd/stubd/pkg/cli/internal/output"
	"github.com/getmockd/stubd/pkg/config"
	"github.com/getmockd/stubd/pkg/engine"
	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/store"
	"github.com/spf13/cobra"
)

var errInvalidConfig = errors.New("configuration is invalid")

// ValidateOutput is the JSON form of a validate run.
type ValidateOutput struct {
	Valid     bool             `json:"valid"`
	Files     []string         `json:"files,omitempty"`
	Resources []resourceOutput `json:"resources,omitempty"`
	Stores    []string         `json:"stores,omitempty"`
	Errors    []string         `json:"errors,omitempty"`
}

type resourceOutput struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

func newValidateCmd(a *app) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate resource configuration without starting the server",
		Long: `Validate resource configuration without starting the server.

This command checks:
  - YAML/JSON syntax
  - Schema validation (required fields, valid operators)
  - Regular expressions, JSONPath and XPath queries
  - Captures that would write response values into ephemeral stores
  - Route templates`,
		Example: `  # Validate resources in the current directory
  stubd validate

  # Validate a specific directory and list every resource
  stubd validate -c ./mocks --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings(cmd)
			if err != nil {
				return err
			}

			out := ValidateOutput{Valid: true}
			bundle, err := config.Load(s.ConfigDirs...)
			if err == nil {
				stores := store.NewEngine(store.NewMemoryBackend(), store.WithEphemeralStores(s.EphemeralStores...))
				e := engine.New(engine.WithStores(stores), engine.WithLogger(logging.Nop()))
				err = e.Load(bundle.Resources)
				_ = e.Close()
			}
			if err != nil {
				out.Valid = false
				out.Errors = errorLines(err)
			} else {
				for _, f := range bundle.Files {
					out.Files = append(out.Files, f.Path)
				}
				for _, r := range bundle.Resources {
					out.Resources = append(out.Resources, resourceOutput{Index: r.Index, Name: r.Name(), Source: r.Source})
				}
				for name := range bundle.Stores {
					out.Stores = append(out.Stores, name)
				}
				sort.Strings(out.Stores)
			}

			w := cmd.OutOrStdout()
			if a.jsonOutput {
				if err := output.JSON(w, out); err != nil {
					return err
				}
			} else {
				printValidation(cmd, out, verbose)
			}
			if !out.Valid {
				return errInvalidConfig
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "List every loaded resource")
	return cmd
}

func printValidation(cmd *cobra.Command, out ValidateOutput, verbose bool) {
	w := cmd.OutOrStdout()
	if !out.Valid {
		fmt.Fprintln(w, "Configuration is invalid:")
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		return
	}

	fmt.Fprintf(w, "Configuration is valid: %d file(s), %d resource(s), %d preloaded store(s)\n",
		len(out.Files), len(out.Resources), len(out.Stores))
	if !verbose {
		return
	}
	tw := output.Table(w)
	fmt.Fprintln(tw, "INDEX\tRESOURCE\tSOURCE")
	for _, r := range out.Resources {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Index, r.Name, r.Source)
	}
	_ = tw.Flush()
}

// errorLines splits validation results into one line per problem.
func errorLines(err error) []string {
	var vr *config.ValidationResult
	if errors.As(err, &vr) {
		lines := make([]string, 0, len(vr.Errors))
		for _, e := range vr.Errors {
			lines = append(lines, e.Error())
		}
		return lines
	}
	return []string{err.Error()}
}
