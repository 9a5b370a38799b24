package cliconfig

// Defaults.
const (
	DefaultPort         = 8080
	DefaultReadTimeout  = 30
	DefaultWriteTimeout = 30
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultStoreDriver  = DriverMemory
	DefaultRedisAddr    = "localhost:6379"
	DefaultSQLitePath   = "stubd.db"
	DefaultFileDir      = "stubd-data"
)

// DefaultEphemeralStores are the stores that live for one exchange only.
var DefaultEphemeralStores = []string{"request"}

// NewDefault creates Settings with default values.
func NewDefault() *Settings {
	s := &Settings{
		Port:            DefaultPort,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		StoreDriver:     DefaultStoreDriver,
		EphemeralStores: append([]string(nil), DefaultEphemeralStores...),
		RedisAddr:       DefaultRedisAddr,
		SQLitePath:      DefaultSQLitePath,
		FileDir:         DefaultFileDir,
		Sources:         make(map[string]string),
	}
	for _, key := range []string{
		"port", "readTimeout", "writeTimeout", "logLevel", "logFormat",
		"storeDriver", "ephemeralStores", "redisAddr", "sqlitePath", "fileDir",
	} {
		s.Sources[key] = SourceDefault
	}
	return s
}
