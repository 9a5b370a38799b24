package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/getmockd/stubd/internal/cliconfig"
	"github.com/getmockd/stubd/pkg/config"
	"github.com/getmockd/stubd/pkg/engine"
	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/metrics"
	"github.com/getmockd/stubd/pkg/store"
	"github.com/getmockd/stubd/pkg/store/file"
	"github.com/getmockd/stubd/pkg/store/redis"
	"github.com/getmockd/stubd/pkg/store/sqlite"
	"github.com/spf13/cobra"
)

// flagKeys maps flag names to Settings keys.
var flagKeys = map[string]string{
	"host":             "host",
	"port":             "port",
	"server-url":       "serverUrl",
	"read-timeout":     "readTimeout",
	"write-timeout":    "writeTimeout",
	"config-dir":       "configDirs",
	"log-level":        "logLevel",
	"log-format":       "logFormat",
	"store-driver":     "storeDriver",
	"key-prefix":       "keyPrefix",
	"ephemeral-stores": "ephemeralStores",
	"redis-addr":       "redisAddr",
	"sqlite-path":      "sqlitePath",
	"file-dir":         "fileDir",
}

// settings resolves defaults, .stubdrc.yaml, the environment and the flags
// the user actually set on cmd, in that order.
func (a *app) settings(cmd *cobra.Command) (*cliconfig.Settings, error) {
	dir := a.workDir
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	s, err := cliconfig.Load(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(flagKeys))
	for name := range flagKeys {
		names = append(names, name)
	}
	sort.Strings(names)

	var set []string
	for _, name := range names {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			set = append(set, flagKeys[name])
		}
	}
	cliconfig.Merge(s, &a.flags, set, cliconfig.SourceFlag)

	if len(s.ConfigDirs) == 0 {
		s.ConfigDirs = []string{"."}
	}
	return s, nil
}

func newLogger(cmd *cobra.Command, s *cliconfig.Settings) *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(s.LogLevel),
		Format: logging.ParseFormat(s.LogFormat),
		Output: cmd.ErrOrStderr(),
	})
}

// openBackend creates the durable store backend selected by the settings.
func openBackend(ctx context.Context, s *cliconfig.Settings, log *slog.Logger) (store.Backend, error) {
	switch s.StoreDriver {
	case cliconfig.DriverMemory, "":
		return store.NewMemoryBackend(), nil
	case cliconfig.DriverRedis:
		return redis.New(ctx, redis.Options{Addr: s.RedisAddr, Logger: log})
	case cliconfig.DriverSQLite:
		return sqlite.Open(s.SQLitePath, log)
	case cliconfig.DriverFile:
		return file.New(file.Config{Dir: s.FileDir, Logger: log})
	default:
		return nil, fmt.Errorf("unknown store driver %q (want %s, %s, %s or %s)", s.StoreDriver,
			cliconfig.DriverMemory, cliconfig.DriverRedis, cliconfig.DriverSQLite, cliconfig.DriverFile)
	}
}

// newEngine wires a store engine on backend into a request engine.
func newEngine(s *cliconfig.Settings, backend store.Backend, log *slog.Logger, m *metrics.Metrics) *engine.Engine {
	stores := store.NewEngine(backend,
		store.WithKeyPrefix(s.KeyPrefix),
		store.WithEphemeralStores(s.EphemeralStores...),
		store.WithLogger(log),
		store.WithMetrics(m),
	)
	return engine.New(
		engine.WithStores(stores),
		engine.WithLogger(log),
		engine.WithMetrics(m),
	)
}

func loadResources(s *cliconfig.Settings) ([]*config.Resource, error) {
	b, err := config.Load(s.ConfigDirs...)
	if err != nil {
		return nil, err
	}
	return b.Resources, nil
}
