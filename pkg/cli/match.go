package cli

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/getmockd/stubd/internal/matching"
	"github.com/getmockd/stubd/pkg/cli/internal/output"
	"github.com/getmockd/stubd/pkg/cli/internal/parse"
	"github.com/getmockd/stubd/pkg/config"
	"github.com/getmockd/stubd/pkg/expression"
	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/metrics"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/store"
	"github.com/spf13/cobra"
)

var errNoMatch = errors.New("no resource matches the request")

// MatchOutput is one ranked candidate of a match run.
type MatchOutput struct {
	Rank       int               `json:"rank"`
	Resource   string            `json:"resource"`
	Source     string            `json:"source,omitempty"`
	Index      int               `json:"index"`
	Matched    bool              `json:"matched"`
	Exact      bool              `json:"exact"`
	Score      int               `json:"score"`
	PathParams map[string]string `json:"pathParams,omitempty"`
	Results    []ResultOutput    `json:"results,omitempty"`
}

// ResultOutput is the verdict of one condition.
type ResultOutput struct {
	Condition string `json:"condition"`
	Verdict   string `json:"verdict"`
	Weight    int    `json:"weight"`
}

type matchFlags struct {
	method  string
	headers []string
	query   []string
	body    string
	all     bool
	verbose bool
}

func newMatchCmd(a *app) *cobra.Command {
	var mf matchFlags

	cmd := &cobra.Command{
		Use:   "match PATH",
		Short: "Show which resource would serve a request",
		Long: `Evaluate a synthetic request against the configured resources without
starting the server. Candidates are printed best first; the first matched
candidate is the one the server would select.

Stores are seeded from the configured preload data in memory only, so
evaluations that read stores see the preloaded values.`,
		Example: `  # Which resource serves GET /pets/42?
  stubd match /pets/42

  # POST with a header and a JSON body, showing every condition verdict
  stubd match -X POST -H 'Content-Type: application/json' -d '{"name":"rex"}' /pets --verbose

  # Include candidates whose route matched but whose conditions failed
  stubd match /pets/42?limit=5 --all`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings(cmd)
			if err != nil {
				return err
			}
			req, err := buildRequest(args[0], &mf)
			if err != nil {
				return err
			}

			bundle, err := config.Load(s.ConfigDirs...)
			if err != nil {
				return err
			}
			e := newEngine(s, store.NewMemoryBackend(), logging.Nop(), metrics.Nop())
			defer e.Close()
			if err := e.Load(bundle.Resources); err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := e.Preload(ctx, bundle.Stores); err != nil {
				return err
			}
			e.Expressions().SetServer(expression.ServerInfo{Port: s.Port, URL: s.BaseURL()})

			scope := e.Stores().NewScope()
			defer scope.Discard()
			outcomes := e.Evaluate(store.WithScope(ctx, scope), req)

			out := matchOutputs(outcomes, mf.all, mf.verbose || a.jsonOutput)
			w := cmd.OutOrStdout()
			if a.jsonOutput {
				if err := output.JSON(w, out); err != nil {
					return err
				}
			} else {
				printMatches(cmd, out, mf.verbose)
			}
			if len(out) == 0 || !out[0].Matched {
				return errNoMatch
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&mf.method, "method", "X", http.MethodGet, "Request method")
	f.StringArrayVarP(&mf.headers, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	f.StringArrayVarP(&mf.query, "query", "q", nil, "Query parameter as name=value (repeatable)")
	f.StringVarP(&mf.body, "body", "d", "", "Request body")
	f.BoolVar(&mf.all, "all", false, "Include candidates that did not match")
	f.BoolVar(&mf.verbose, "verbose", false, "Show the verdict of every condition")
	return cmd
}

// buildRequest turns the command line into the request the server would
// have parsed.
func buildRequest(target string, mf *matchFlags) (*request.Request, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", target, err)
	}
	if !strings.HasPrefix(u.Path, "/") {
		return nil, fmt.Errorf("invalid path %q: must start with /", target)
	}

	query := u.Query()
	extra, err := parse.Values(mf.query)
	if err != nil {
		return nil, err
	}
	for k, vs := range extra {
		query[k] = append(query[k], vs...)
	}
	u.RawQuery = query.Encode()

	headers, err := parse.Headers(mf.headers)
	if err != nil {
		return nil, err
	}

	hreq, err := http.NewRequest(strings.ToUpper(mf.method), u.String(), strings.NewReader(mf.body))
	if err != nil {
		return nil, err
	}
	hreq.Header = headers
	return request.FromHTTPWithBody(hreq, []byte(mf.body)), nil
}

func matchOutputs(outcomes []matching.Outcome, all, withResults bool) []MatchOutput {
	out := make([]MatchOutput, 0, len(outcomes))
	for _, o := range outcomes {
		if !all && !o.Matched {
			continue
		}
		m := MatchOutput{
			Rank:       len(out) + 1,
			Index:      o.Index,
			Matched:    o.Matched,
			Exact:      o.Exact,
			Score:      o.Score,
			PathParams: o.PathParams,
		}
		if o.Resource != nil {
			m.Resource = o.Resource.Name()
			m.Source = o.Resource.Source
		}
		if withResults {
			for _, r := range o.Results {
				m.Results = append(m.Results, ResultOutput{Condition: r.Condition, Verdict: r.Kind.String(), Weight: r.Weight})
			}
		}
		out = append(out, m)
	}
	return out
}

func printMatches(cmd *cobra.Command, out []MatchOutput, verbose bool) {
	w := cmd.OutOrStdout()
	if len(out) == 0 {
		fmt.Fprintln(w, "No candidate resources.")
		return
	}

	tw := output.Table(w)
	fmt.Fprintln(tw, "RANK\tRESOURCE\tMATCHED\tEXACT\tSCORE\tSOURCE")
	for _, m := range out {
		fmt.Fprintf(tw, "%d\t%s\t%t\t%t\t%d\t%s\n", m.Rank, m.Resource, m.Matched, m.Exact, m.Score, m.Source)
		if !verbose {
			continue
		}
		for _, r := range m.Results {
			fmt.Fprintf(tw, "\t  %s\t%s\t\t%d\t\n", r.Condition, r.Verdict, r.Weight)
		}
	}
	_ = tw.Flush()
}
