// Package config loads the worker's environment-variable configuration,
// grounded on original_source/treadmill/config.py's BaseConfig/DevConfig/
// TestConfig pattern (TREADMILL_ prefix there, TM_ here per spec §6) rather
// than the teacher's goctl YAML profile (judge_service/internal/config):
// the worker has no REST admin surface to scaffold a YAML profile for, and
// the original already expresses this exact concern as env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"treadmill/internal/afp"
	"treadmill/internal/model"

	"treadmill/pkg/errors"
)

// Profile selects which set of env-var defaults apply, mirroring
// DevConfig/TestConfig/(implicit prod) in the original.
type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

// KafkaConfig is the queue-fabric wiring for internal/worker's three
// logical queues (spec §4.12): brokers plus topic names and relative
// fetch weights, rejudge and retry weighted lower than normal.
type KafkaConfig struct {
	Brokers       []string
	ClientID      string
	ConsumerGroup string

	NormalTopic  string
	RejudgeTopic string
	RetryTopic   string

	NormalWeight  int
	RejudgeWeight int
	RetryWeight   int
}

// MinIOConfig is the secondary ObjectStorage backend (spec's primary
// source resolution path is the TM_S3FS_ROOT mount; MinIO covers the gap
// when a key is absent from it). Endpoint empty means the backend is not
// wired.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// WorkerConfig sizes the per-process concurrency: how many requests may be
// in flight at once, each owning its own workspace and containers (spec §5).
type WorkerConfig struct {
	Concurrency int
	// FetchLimit bounds concurrent weighted-queue fetches, passed to
	// mq.NewTokenLimiter; defaults to Concurrency.
	FetchLimit int
}

// Config is the fully-resolved worker configuration for one process.
type Config struct {
	Profile Profile

	APIEndpoint  string
	APISecretKey string

	RedisHost string
	RedisPort int

	// HTTPAddr is the listen address for the status-polling surface
	// (spec §6's "a minimal HTTP surface for health checks and quick
	// status polling").
	HTTPAddr string

	// StatusCacheTTL bounds how long a cached JudgeResult answers a
	// status poll before falling back to the front-office API.
	StatusCacheTTL time.Duration

	SentryDSN string // optional; empty disables telemetry capture

	Roots afp.Roots

	Kafka  KafkaConfig
	MinIO  MinIOConfig
	Images model.ImageRefs
	Worker WorkerConfig
}

// devDefaults mirrors the original's DevConfig/TestConfig class
// attributes: a handful of fields have a checked-in default for local
// development so a fresh checkout can run without a secrets file.
var devDefaults = map[string]string{
	"TM_API_ENDPOINT":  "http://localhost:8000/api",
	"TM_API_SECRET_KEY": "dev-only-insecure-secret-key",
	"TM_REDIS_HOST":    "localhost",
}

// Load reads the worker configuration from the environment. The TM_CONFIG
// variable selects the profile (dev/test/prod, per spec §6); dev and test
// fall back to devDefaults for the handful of fields the original
// hardcodes per-profile, everything else is always read from the
// environment with no default, matching _set_prop's
// kwarg-or-required-env-var contract.
func Load() (*Config, error) {
	profile := Profile(strings.ToLower(strings.TrimSpace(os.Getenv("TM_CONFIG"))))
	if profile == "" {
		profile = ProfileProd
	}

	cfg := &Config{Profile: profile}

	var err error
	if cfg.APIEndpoint, err = stringVar(profile, "TM_API_ENDPOINT"); err != nil {
		return nil, err
	}
	if cfg.APISecretKey, err = stringVar(profile, "TM_API_SECRET_KEY"); err != nil {
		return nil, err
	}
	if cfg.RedisHost, err = stringVar(profile, "TM_REDIS_HOST"); err != nil {
		return nil, err
	}
	cfg.RedisPort = optInt("TM_REDIS_PORT", 6379)
	cfg.HTTPAddr = optString("TM_HTTP_ADDR", ":8080")
	cfg.StatusCacheTTL = time.Duration(optInt("TM_STATUS_CACHE_TTL_SECONDS", 30)) * time.Second
	cfg.SentryDSN = os.Getenv("TM_SENTRY_DSN")

	if cfg.Roots.HostWorkspaceRoot, err = requireEnv("TM_HOST_WORKSPACE_ROOT"); err != nil {
		return nil, err
	}
	if cfg.Roots.S3FSRoot, err = requireEnv("TM_S3FS_ROOT"); err != nil {
		return nil, err
	}

	if cfg.Kafka, err = loadKafka(); err != nil {
		return nil, err
	}
	cfg.MinIO = loadMinIO()
	if cfg.Images, err = loadImages(profile); err != nil {
		return nil, err
	}
	cfg.Worker = loadWorker()

	return cfg, nil
}

func loadKafka() (KafkaConfig, error) {
	raw, err := requireEnv("TM_KAFKA_BROKERS")
	if err != nil {
		return KafkaConfig{}, err
	}
	brokers := splitCSV(raw)
	if len(brokers) == 0 {
		return KafkaConfig{}, errors.ValidationError("TM_KAFKA_BROKERS", "must name at least one broker")
	}
	return KafkaConfig{
		Brokers:       brokers,
		ClientID:      optString("TM_KAFKA_CLIENT_ID", "treadmill-worker"),
		ConsumerGroup: optString("TM_KAFKA_CONSUMER_GROUP", "treadmill"),
		NormalTopic:   optString("TM_QUEUE_NORMAL_TOPIC", "judge.normal"),
		RejudgeTopic:  optString("TM_QUEUE_REJUDGE_TOPIC", "judge.rejudge"),
		RetryTopic:    optString("TM_QUEUE_RETRY_TOPIC", "judge.retry"),
		// Rejudge and retry are weighted lower than normal per spec §4.12.
		NormalWeight:  optInt("TM_QUEUE_NORMAL_WEIGHT", 5),
		RejudgeWeight: optInt("TM_QUEUE_REJUDGE_WEIGHT", 2),
		RetryWeight:   optInt("TM_QUEUE_RETRY_WEIGHT", 2),
	}, nil
}

func loadMinIO() MinIOConfig {
	return MinIOConfig{
		Endpoint:  os.Getenv("TM_MINIO_ENDPOINT"),
		AccessKey: os.Getenv("TM_MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("TM_MINIO_SECRET_KEY"),
		UseSSL:    optBool("TM_MINIO_USE_SSL", false),
		Bucket:    optString("TM_MINIO_BUCKET", "treadmill"),
	}
}

// imageDevDefaults mirrors the original's reg()-built registry tags used
// as DevConfig/TestConfig class constants, keyed the same way
// (GCC/GO/JDK builders; native/JRE/py3 sandboxes).
var imageDevDefaults = map[string]string{
	"TM_BUILDER_IMAGE_CPP":      "648688992032.dkr.ecr.ap-northeast-1.amazonaws.com/talk4u/treadmill-builder-gcc:0.1.0",
	"TM_BUILDER_IMAGE_GO":       "648688992032.dkr.ecr.ap-northeast-1.amazonaws.com/talk4u/treadmill-builder-go110:0.1.0",
	"TM_BUILDER_IMAGE_JAVA":     "648688992032.dkr.ecr.ap-northeast-1.amazonaws.com/talk4u/treadmill-builder-jdk8:0.1.0",
	"TM_SANDBOX_IMAGE_CPP":      "648688992032.dkr.ecr.ap-northeast-1.amazonaws.com/talk4u/treadmill-sandbox-native:0.1.0",
	"TM_SANDBOX_IMAGE_GO":       "648688992032.dkr.ecr.ap-northeast-1.amazonaws.com/talk4u/treadmill-sandbox-native:0.1.0",
	"TM_SANDBOX_IMAGE_JAVA":     "648688992032.dkr.ecr.ap-northeast-1.amazonaws.com/talk4u/treadmill-sandbox-jre8:0.1.0",
	"TM_SANDBOX_IMAGE_PYTHON3":  "648688992032.dkr.ecr.ap-northeast-1.amazonaws.com/talk4u/treadmill-sandbox-py36:0.1.1",
}

func loadImages(profile Profile) (model.ImageRefs, error) {
	refs := model.ImageRefs{
		BuilderImage: map[model.Language]string{},
		SandboxImage: map[model.Language]string{},
	}
	builders := map[model.Language]string{
		model.LangCPP:  "TM_BUILDER_IMAGE_CPP",
		model.LangGo:   "TM_BUILDER_IMAGE_GO",
		model.LangJava: "TM_BUILDER_IMAGE_JAVA",
	}
	sandboxes := map[model.Language]string{
		model.LangCPP:     "TM_SANDBOX_IMAGE_CPP",
		model.LangGo:      "TM_SANDBOX_IMAGE_GO",
		model.LangJava:    "TM_SANDBOX_IMAGE_JAVA",
		model.LangPython3: "TM_SANDBOX_IMAGE_PYTHON3",
	}
	for lang, key := range builders {
		v, err := imageVar(profile, key)
		if err != nil {
			return model.ImageRefs{}, err
		}
		refs.BuilderImage[lang] = v
	}
	for lang, key := range sandboxes {
		v, err := imageVar(profile, key)
		if err != nil {
			return model.ImageRefs{}, err
		}
		refs.SandboxImage[lang] = v
	}
	return refs, nil
}

func imageVar(profile Profile, key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	if profile != ProfileProd {
		if v, ok := imageDevDefaults[key]; ok {
			return v, nil
		}
	}
	return "", errors.ValidationError(key, "required in profile "+string(profile))
}

func loadWorker() WorkerConfig {
	concurrency := optInt("TM_WORKER_CONCURRENCY", 4)
	return WorkerConfig{
		Concurrency: concurrency,
		FetchLimit:  optInt("TM_WORKER_FETCH_LIMIT", concurrency),
	}
}

// stringVar reads key, falling back to devDefaults for dev/test profiles.
func stringVar(profile Profile, key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	if profile != ProfileProd {
		if v, ok := devDefaults[key]; ok {
			return v, nil
		}
	}
	return "", errors.ValidationError(key, "required environment variable is unset")
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", errors.ValidationError(key, "required environment variable is unset")
	}
	return v, nil
}

func optString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func optInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func optBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ConfigError wraps a Load failure so callers (cmd/treadmill-worker) can
// map it to the CLI's exit code 2 (spec §6: "2 configuration error").
func ConfigError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("configuration error: %w", err)
}
