package cliconfig

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names
const (
	EnvHost            = "STUBD_HOST"
	EnvPort            = "STUBD_PORT"
	EnvServerURL       = "STUBD_SERVER_URL"
	EnvReadTimeout     = "STUBD_READ_TIMEOUT"
	EnvWriteTimeout    = "STUBD_WRITE_TIMEOUT"
	EnvConfigDir       = "STUBD_CONFIG_DIR"
	EnvLogLevel        = "STUBD_LOG_LEVEL"
	EnvLogFormat       = "STUBD_LOG_FORMAT"
	EnvStoreDriver     = "STUBD_STORE_DRIVER"
	EnvKeyPrefix       = "STUBD_STORE_KEY_PREFIX"
	EnvEphemeralStores = "STUBD_EPHEMERAL_STORES"
	EnvRedisAddr       = "STUBD_REDIS_ADDR"
	EnvSQLitePath      = "STUBD_SQLITE_PATH"
	EnvFileDir         = "STUBD_FILE_DIR"
)

// LoadEnv applies environment variables to s. Only variables that are set
// are applied; unparseable numbers are ignored.
func LoadEnv(s *Settings) {
	LoadEnvFrom(s, os.LookupEnv)
}

// LoadEnvFrom is LoadEnv with an injectable lookup, for tests.
func LoadEnvFrom(s *Settings, lookup func(string) (string, bool)) {
	str := func(name, key string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
			s.setSource(key, SourceEnv)
		}
	}
	num := func(name, key string, dst *int) {
		if v, ok := lookup(name); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
				s.setSource(key, SourceEnv)
			}
		}
	}
	list := func(name, key string, dst *[]string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = SplitList(v)
			s.setSource(key, SourceEnv)
		}
	}

	str(EnvHost, "host", &s.Host)
	num(EnvPort, "port", &s.Port)
	str(EnvServerURL, "serverUrl", &s.ServerURL)
	num(EnvReadTimeout, "readTimeout", &s.ReadTimeout)
	num(EnvWriteTimeout, "writeTimeout", &s.WriteTimeout)
	list(EnvConfigDir, "configDirs", &s.ConfigDirs)
	str(EnvLogLevel, "logLevel", &s.LogLevel)
	str(EnvLogFormat, "logFormat", &s.LogFormat)
	str(EnvStoreDriver, "storeDriver", &s.StoreDriver)
	str(EnvKeyPrefix, "keyPrefix", &s.KeyPrefix)
	list(EnvEphemeralStores, "ephemeralStores", &s.EphemeralStores)
	str(EnvRedisAddr, "redisAddr", &s.RedisAddr)
	str(EnvSQLitePath, "sqlitePath", &s.SQLitePath)
	str(EnvFileDir, "fileDir", &s.FileDir)
}

// SplitList splits a comma-separated list, dropping empty items.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
