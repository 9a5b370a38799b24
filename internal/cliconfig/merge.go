package cliconfig

import "slices"

// Merge copies the keys listed in set from source into target and records
// sourceType for them. Keys use the YAML names of Settings fields.
func Merge(target, source *Settings, set []string, sourceType string) {
	if source == nil {
		return
	}
	for _, key := range set {
		if !apply(target, source, key) {
			continue
		}
		target.setSource(key, sourceType)
	}
}

func apply(t, s *Settings, key string) bool {
	switch key {
	case "host":
		t.Host = s.Host
	case "port":
		t.Port = s.Port
	case "serverUrl":
		t.ServerURL = s.ServerURL
	case "readTimeout":
		t.ReadTimeout = s.ReadTimeout
	case "writeTimeout":
		t.WriteTimeout = s.WriteTimeout
	case "configDirs":
		t.ConfigDirs = slices.Clone(s.ConfigDirs)
	case "logLevel":
		t.LogLevel = s.LogLevel
	case "logFormat":
		t.LogFormat = s.LogFormat
	case "storeDriver":
		t.StoreDriver = s.StoreDriver
	case "keyPrefix":
		t.KeyPrefix = s.KeyPrefix
	case "ephemeralStores":
		t.EphemeralStores = slices.Clone(s.EphemeralStores)
	case "redisAddr":
		t.RedisAddr = s.RedisAddr
	case "sqlitePath":
		t.SQLitePath = s.SQLitePath
	case "fileDir":
		t.FileDir = s.FileDir
	default:
		return false
	}
	return true
}
