package cliconfig

import "strconv"

// Settings holds everything needed to start a server. Resource definitions
// live in the config directories and are loaded by pkg/config.
type Settings struct {
	// Server settings
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	ServerURL    string `yaml:"serverUrl" json:"serverUrl"`
	ReadTimeout  int    `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout" json:"writeTimeout"`

	// ConfigDirs are scanned recursively for *-config.{yaml,yml,json}.
	ConfigDirs []string `yaml:"configDirs" json:"configDirs"`

	// Logging settings
	LogLevel  string `yaml:"logLevel" json:"logLevel"`
	LogFormat string `yaml:"logFormat" json:"logFormat"`

	// Store settings
	StoreDriver     string   `yaml:"storeDriver" json:"storeDriver"`
	KeyPrefix       string   `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
	EphemeralStores []string `yaml:"ephemeralStores" json:"ephemeralStores"`
	RedisAddr       string   `yaml:"redisAddr" json:"redisAddr"`
	SQLitePath      string   `yaml:"sqlitePath" json:"sqlitePath"`
	FileDir         string   `yaml:"fileDir" json:"fileDir"`

	// Sources tracks where each value came from
	Sources map[string]string `yaml:"-" json:"-"`
}

// Setting sources.
const (
	SourceDefault = "default"
	SourceEnv     = "env"
	SourceLocal   = "local"
	SourceFlag    = "flag"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
	DriverFile   = "file"
)

// Addr returns the listen address.
func (s *Settings) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// BaseURL returns ServerURL, or a localhost URL for the configured port.
func (s *Settings) BaseURL() string {
	if s.ServerURL != "" {
		return s.ServerURL
	}
	host := s.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + host + ":" + strconv.Itoa(s.Port)
}

func (s *Settings) setSource(key, source string) {
	if s.Sources == nil {
		s.Sources = make(map[string]string)
	}
	s.Sources[key] = source
}
