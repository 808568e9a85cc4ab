package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full environment-derived knob surface. Every field has a
// safe default; connector credentials stay in their own Init* helpers.
type Config struct {
	Port     string
	LogLevel string

	// privacy lifecycle
	RevealHold   time.Duration
	RevealWindow time.Duration
	AutoLock     time.Duration
	MemoryPurge  time.Duration

	// vault
	VaultTTL time.Duration
	VaultKey []byte // nil disables sealing

	// audit
	AuditTTL       time.Duration
	AuditMaxEvents int
	AuditDetailMax int

	// segmenter
	SegmentDurationMs int64
	SegmentMaxCount   int

	// retention
	JanitorInterval time.Duration

	// refinement
	Refiner        string // disabled|heuristic|vertex
	RefineTimeout  time.Duration
	PrivacyProfile string // standard|strict
	VertexProject  string
	VertexLocation string
	VertexModel    string

	// storage
	StoreDriver string // memory|redis|postgres
	GCSBucket   string

	// dictation boundary
	ChunkTTL            time.Duration
	ChunkInlineMaxBytes int64
}

func Load() (Config, error) {
	cfg := Config{
		Port:     envStr("PORT", "8080"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		RevealHold:   envMs("REVEAL_HOLD_MS", 600),
		RevealWindow: envMs("REVEAL_WINDOW_MS", 10_000),
		AutoLock:     envMs("AUTO_LOCK_MS", 120_000),
		MemoryPurge:  envMs("MEMORY_PURGE_MS", 600_000),

		VaultTTL: envDur("VAULT_TTL", 72*time.Hour),

		AuditTTL:       envDur("AUDIT_TTL", 168*time.Hour),
		AuditMaxEvents: envInt("AUDIT_MAX_EVENTS", 500),
		AuditDetailMax: envInt("AUDIT_DETAIL_MAX", 160),

		SegmentDurationMs: int64(envInt("SEGMENT_DURATION_MS", 4000)),
		SegmentMaxCount:   envInt("SEGMENT_MAX_COUNT", 360),

		JanitorInterval: envDur("JANITOR_INTERVAL", time.Minute),

		Refiner:        envStr("REFINER", "heuristic"),
		RefineTimeout:  envDur("REFINE_TIMEOUT", 8*time.Second),
		PrivacyProfile: envStr("PRIVACY_PROFILE", "standard"),
		VertexProject:  os.Getenv("VERTEX_PROJECT_ID"),
		VertexLocation: envStr("VERTEX_LOCATION", "us-central1"),
		VertexModel:    envStr("VERTEX_MODEL", "gemini-2.0-flash"),

		StoreDriver: envStr("STORE_DRIVER", "memory"),
		GCSBucket:   os.Getenv("GCS_BUCKET"),

		ChunkTTL:            envDur("CHUNK_TTL", 24*time.Hour),
		ChunkInlineMaxBytes: int64(envInt("CHUNK_INLINE_MAX_BYTES", 262_144)),
	}

	if raw := os.Getenv("VAULT_KEY"); raw != "" {
		key, err := hex.DecodeString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: VAULT_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return Config{}, fmt.Errorf("config: VAULT_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.VaultKey = key
	}

	switch cfg.StoreDriver {
	case "memory", "redis", "postgres":
	default:
		return Config{}, fmt.Errorf("config: unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	switch cfg.PrivacyProfile {
	case "standard", "strict":
	default:
		return Config{}, fmt.Errorf("config: unknown PRIVACY_PROFILE %q", cfg.PrivacyProfile)
	}

	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
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

func envMs(key string, defMs int64) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(defMs) * time.Millisecond
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Duration(defMs) * time.Millisecond
	}
	return time.Duration(n) * time.Millisecond
}

// envDur accepts Go duration strings ("72h", "90s").
func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
