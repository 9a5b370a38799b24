package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/getmockd/stubd/internal/cliconfig"
	"github.com/getmockd/stubd/pkg/cli/internal/output"
	"github.com/getmockd/stubd/pkg/config"
	"github.com/getmockd/stubd/pkg/engine"
	"github.com/getmockd/stubd/pkg/metrics"
	"github.com/spf13/cobra"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var printSettings bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the stub server (foreground)",
		Long: `Start the stub server. Resources are loaded from the config directories
(every *-config.yaml, *-config.yml and *-config.json below them) and
reloaded on SIGHUP. SIGINT or SIGTERM stop the server gracefully.

Durable stores live in the selected store driver: memory (default),
redis, sqlite or file.`,
		Example: `  # Serve resources from ./mocks on port 3000
  stubd serve -c ./mocks --port 3000

  # Keep store contents in Redis, isolated per tenant
  stubd serve -c ./mocks --store-driver redis --redis-addr localhost:6379 --key-prefix tenant-a.

  # Persist stores to a SQLite database
  stubd serve -c ./mocks --store-driver sqlite --sqlite-path ./stubd.db

  # Show resolved settings and where each value came from
  stubd serve --print-settings`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings(cmd)
			if err != nil {
				return err
			}
			if printSettings {
				return a.printSettings(cmd, s)
			}
			return a.serve(cmd, s)
		},
	}

	f := cmd.Flags()
	f.StringVar(&a.flags.Host, "host", "", "Interface to listen on (default all)")
	f.IntVarP(&a.flags.Port, "port", "p", cliconfig.DefaultPort, "HTTP server port")
	f.StringVar(&a.flags.ServerURL, "server-url", "", "Public base URL reported by system.server.url")
	f.IntVar(&a.flags.ReadTimeout, "read-timeout", cliconfig.DefaultReadTimeout, "Read timeout in seconds")
	f.IntVar(&a.flags.WriteTimeout, "write-timeout", cliconfig.DefaultWriteTimeout, "Write timeout in seconds")

	// Store flags
	f.StringVar(&a.flags.StoreDriver, "store-driver", cliconfig.DefaultStoreDriver, "Durable store driver (memory, redis, sqlite, file)")
	f.StringVar(&a.flags.KeyPrefix, "key-prefix", "", "Prefix applied to every durable store key")
	f.StringVar(&a.flags.RedisAddr, "redis-addr", cliconfig.DefaultRedisAddr, "Redis address for the redis driver")
	f.StringVar(&a.flags.SQLitePath, "sqlite-path", cliconfig.DefaultSQLitePath, "Database path for the sqlite driver")
	f.StringVar(&a.flags.FileDir, "file-dir", cliconfig.DefaultFileDir, "Data directory for the file driver")

	f.BoolVar(&printSettings, "print-settings", false, "Print resolved settings and exit")
	return cmd
}

func (a *app) serve(cmd *cobra.Command, s *cliconfig.Settings) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger(cmd, s)
	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	backend, err := openBackend(ctx, s, log)
	if err != nil {
		return fmt.Errorf("opening %s store backend: %w", s.StoreDriver, err)
	}
	e := newEngine(s, backend, log, m)
	defer func() {
		if err := e.Close(); err != nil {
			log.Error("closing stores", "error", err)
		}
	}()

	bundle, err := config.Load(s.ConfigDirs...)
	if err != nil {
		return err
	}
	if err := e.Load(bundle.Resources); err != nil {
		return err
	}
	if err := e.Preload(ctx, bundle.Stores); err != nil {
		return err
	}

	srv := engine.NewServer(e,
		engine.WithAddr(s.Addr()),
		engine.WithServerURL(s.ServerURL),
		engine.WithTimeouts(time.Duration(s.ReadTimeout)*time.Second, time.Duration(s.WriteTimeout)*time.Second),
		engine.WithHandlerOptions(engine.WithMetricsHandler(metrics.Handler(reg))),
	)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	log.Info("stubd started",
		"version", a.info.Version,
		"files", len(bundle.Files),
		"resources", len(bundle.Resources),
		"storeDriver", backend.Name())

	go srv.ReloadOnSignal(ctx, func() ([]*config.Resource, error) {
		return loadResources(s)
	})

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stopping server: %w", err)
	}
	return nil
}

type settingOutput struct {
	Key    string `json:"key"`
	Value  any    `json:"value"`
	Source string `json:"source"`
}

func (a *app) printSettings(cmd *cobra.Command, s *cliconfig.Settings) error {
	values := map[string]any{
		"host":            s.Host,
		"port":            s.Port,
		"serverUrl":       s.BaseURL(),
		"readTimeout":     s.ReadTimeout,
		"writeTimeout":    s.WriteTimeout,
		"configDirs":      s.ConfigDirs,
		"logLevel":        s.LogLevel,
		"logFormat":       s.LogFormat,
		"storeDriver":     s.StoreDriver,
		"keyPrefix":       s.KeyPrefix,
		"ephemeralStores": s.EphemeralStores,
		"redisAddr":       s.RedisAddr,
		"sqlitePath":      s.SQLitePath,
		"fileDir":         s.FileDir,
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]settingOutput, 0, len(keys))
	for _, k := range keys {
		src := s.Sources[k]
		if src == "" {
			src = cliconfig.SourceDefault
		}
		out = append(out, settingOutput{Key: k, Value: values[k], Source: src})
	}

	w := cmd.OutOrStdout()
	if a.jsonOutput {
		return output.JSON(w, out)
	}
	tw := output.Table(w)
	fmt.Fprintln(tw, "SETTING\tVALUE\tSOURCE")
	for _, o := range out {
		fmt.Fprintf(tw, "%s\t%v\t%s\n", o.Key, o.Value, o.Source)
	}
	return tw.Flush()
}
