package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                 int
	Password             string // empty disables the cookie auth middleware
	DatabasePath         string
	MediaRoot            string // evidence clips live under MediaRoot/violations
	GalleryDirectory     string // one reference face image per identity
	ModelPath            string
	FaceCascadePath      string
	FaceEmbedderPath     string
	LogDirectory         string
	PolicyPath           string
	SettingsRefreshEvery int // refresh the settings snapshot every N inbound frames
	Policy               Policy
}

// Load reads an optional .env file, then the environment, then the policy file.
func Load() (*Config, error) {
	// A missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnvAsInt("PORT", 8000),
		Password:             getEnv("PASSWORD", ""),
		DatabasePath:         getEnv("DB_PATH", filepath.Join(".", "data", "crosswatch.db")),
		MediaRoot:            getEnv("MEDIA_ROOT", filepath.Join(".", "media")),
		GalleryDirectory:     getEnv("GALLERY_DIR", filepath.Join(".", "known_faces")),
		ModelPath:            getEnv("MODEL_PATH", filepath.Join(".", "models", "yolov8n.onnx")),
		FaceCascadePath:      getEnv("FACE_CASCADE_PATH", filepath.Join(".", "models", "haarcascade_frontalface_default.xml")),
		FaceEmbedderPath:     getEnv("FACE_EMBEDDER_PATH", filepath.Join(".", "models", "nn4.small2.v1.t7")),
		LogDirectory:         getEnv("LOG_DIR", filepath.Join(".", "logs")),
		PolicyPath:           getEnv("POLICY_PATH", filepath.Join(".", "policy.toml")),
		SettingsRefreshEvery: getEnvAsInt("SETTINGS_REFRESH_FRAMES", 30),
	}

	policy, err := LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}
	cfg.Policy = policy

	if cfg.SettingsRefreshEvery <= 0 {
		cfg.SettingsRefreshEvery = 30
	}
	return cfg, nil
}

// EvidenceDirectory is where clip files are written.
func (c *Config) EvidenceDirectory() string {
	return filepath.Join(c.MediaRoot, EvidenceSubdir)
}

// EvidenceSubdir is the media-relative directory stored in violation records.
const EvidenceSubdir = "violations"

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
