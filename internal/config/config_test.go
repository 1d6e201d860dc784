package config_test

import (
	"os"
	"testing"

	"treadmill/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		for _, prefix := range []string{"TM_"} {
			if len(kv) > len(prefix) && kv[:len(prefix)] == prefix {
				key := kv[:indexByte(kv, '=')]
				old, had := os.LookupEnv(key)
				os.Unsetenv(key)
				if had {
					t.Cleanup(func() { os.Setenv(key, old) })
				}
			}
		}
	}
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return len(s)
}

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		old, had := os.LookupEnv(k)
		os.Setenv(k, v)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

func requiredVars() map[string]string {
	return map[string]string{
		"TM_HOST_WORKSPACE_ROOT": "/var/treadmill/workspace",
		"TM_S3FS_ROOT":           "/mnt/s3fs",
		"TM_KAFKA_BROKERS":       "broker1:9092,broker2:9092",
	}
}

func TestLoad_DevProfileUsesDefaults(t *testing.T) {
	clearEnv(t)
	setEnv(t, requiredVars())
	setEnv(t, map[string]string{"TM_CONFIG": "dev"})

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIEndpoint == "" {
		t.Error("expected dev profile to supply a default API endpoint")
	}
	if cfg.RedisPort != 6379 {
		t.Errorf("RedisPort = %d, want default 6379", cfg.RedisPort)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Kafka.Brokers = %v, want 2 entries", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.RejudgeWeight >= cfg.Kafka.NormalWeight {
		t.Error("rejudge queue must be weighted lower than normal (spec §4.12)")
	}
}

func TestLoad_ProdProfileRequiresAPIEndpoint(t *testing.T) {
	clearEnv(t)
	setEnv(t, requiredVars())
	setEnv(t, map[string]string{
		"TM_CONFIG":          "prod",
		"TM_API_SECRET_KEY":  "secret",
		"TM_REDIS_HOST":      "redis.internal",
		"TM_BUILDER_IMAGE_CPP": "registry/builder-cpp:1",
		"TM_BUILDER_IMAGE_GO": "registry/builder-go:1",
		"TM_BUILDER_IMAGE_JAVA": "registry/builder-java:1",
		"TM_SANDBOX_IMAGE_CPP": "registry/sandbox-cpp:1",
		"TM_SANDBOX_IMAGE_GO":  "registry/sandbox-go:1",
		"TM_SANDBOX_IMAGE_JAVA": "registry/sandbox-java:1",
		"TM_SANDBOX_IMAGE_PYTHON3": "registry/sandbox-py3:1",
	})

	if _, err := config.Load(); err == nil {
		t.Fatal("expected Load() to fail without TM_API_ENDPOINT in prod profile")
	}

	setEnv(t, map[string]string{"TM_API_ENDPOINT": "https://api.example.com"})
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error after supplying TM_API_ENDPOINT = %v", err)
	}
	if cfg.Images.BuilderImage["cpp"] != "registry/builder-cpp:1" {
		t.Errorf("BuilderImage[cpp] = %v", cfg.Images.BuilderImage["cpp"])
	}
}

func TestLoad_MissingWorkspaceRootFails(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{
		"TM_CONFIG":        "dev",
		"TM_S3FS_ROOT":     "/mnt/s3fs",
		"TM_KAFKA_BROKERS": "broker1:9092",
	})

	if _, err := config.Load(); err == nil {
		t.Fatal("expected Load() to fail without TM_HOST_WORKSPACE_ROOT")
	}
}
