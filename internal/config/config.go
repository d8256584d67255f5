// Package config loads deployment settings for the service adapters.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Settings holds the connection and sizing knobs for the pluggable backends.
type Settings struct {
	RedisAddr     string `json:"redis_addr"`
	RedisDB       int    `json:"redis_db"`
	DispatchQueue string `json:"dispatch_queue"`

	MinIOEndpoint  string `json:"minio_endpoint"`
	MinIOAccessKey string `json:"minio_access_key"`
	MinIOSecretKey string `json:"minio_secret_key"`
	MinIOSecure    bool   `json:"minio_secure"`

	LocalStoragePath string `json:"local_storage_path"`
	SQLitePath       string `json:"sqlite_path"`

	PoolSize  int `json:"pool_size"`
	QueueSize int `json:"queue_size"`
}

// Default returns the default settings.
func Default() *Settings {
	return &Settings{
		RedisAddr:        "localhost:6379",
		RedisDB:          0,
		DispatchQueue:    "conveyor:dispatch",
		MinIOEndpoint:    "localhost:9000",
		LocalStoragePath: "/tmp/conveyor_storage",
		SQLitePath:       "conveyor_jobs.db",
		PoolSize:         4,
		QueueSize:        64,
	}
}

// Load returns settings from defaults, an optional JSON file, and environment
// overrides, in that order. An empty path skips the file.
func Load(path string) (*Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := json.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	s.applyEnv()
	return s, nil
}

func (s *Settings) applyEnv() {
	if v := os.Getenv("CONVEYOR_REDIS_ADDR"); v != "" {
		s.RedisAddr = v
	}
	if v := os.Getenv("CONVEYOR_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			s.RedisDB = db
		}
	}
	if v := os.Getenv("CONVEYOR_DISPATCH_QUEUE"); v != "" {
		s.DispatchQueue = v
	}
	if v := os.Getenv("CONVEYOR_MINIO_ENDPOINT"); v != "" {
		s.MinIOEndpoint = v
	}
	if v := os.Getenv("CONVEYOR_MINIO_ACCESS_KEY"); v != "" {
		s.MinIOAccessKey = v
	}
	if v := os.Getenv("CONVEYOR_MINIO_SECRET_KEY"); v != "" {
		s.MinIOSecretKey = v
	}
	if os.Getenv("CONVEYOR_MINIO_SECURE") == "true" {
		s.MinIOSecure = true
	}
	if v := os.Getenv("CONVEYOR_STORAGE_PATH"); v != "" {
		s.LocalStoragePath = v
	}
	if v := os.Getenv("CONVEYOR_SQLITE_PATH"); v != "" {
		s.SQLitePath = v
	}
	if v := os.Getenv("CONVEYOR_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.PoolSize = n
		}
	}
	if v := os.Getenv("CONVEYOR_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.QueueSize = n
		}
	}
}
