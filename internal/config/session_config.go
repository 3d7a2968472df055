package config

import (
	"os"
	"path/filepath"
)

type StoreBackend string

const (
	StoreFile   StoreBackend = "file"
	StoreMemory StoreBackend = "memory"
	StoreRedis  StoreBackend = "redis"
)

type SessionConfig interface {
	GetStoreBackend() StoreBackend
	GetSessionDir() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetStoreBackend() StoreBackend {
	switch backend := StoreBackend(GetEnv("TWOFA_SESSION_STORE", string(StoreFile))); backend {
	case StoreFile, StoreMemory, StoreRedis:
		return backend
	default:
		return StoreFile
	}
}

// GetSessionDir is where the file store keeps the token and user entries.
func (Session) GetSessionDir() string {
	if dir := os.Getenv("TWOFA_SESSION_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return ".twofa"
	}
	return filepath.Join(base, "twofa")
}

func (Session) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Session) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Session) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

func (Session) GetRedisKeyPrefix() string {
	return GetEnv("REDIS_KEY_PREFIX", "twofa")
}
