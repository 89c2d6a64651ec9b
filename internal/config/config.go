package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	RelayURL       string // websocket endpoint of the hazard relay
	APIBaseURL     string // HTTP base for durable uploads and auth
	TokenPath      string // file holding the stored JWT
	DatabasePath   string // local report journal
	CatalogPath    string // optional hazard catalog YAML override
	LogDirectory   string
	GPSDAddress    string // gpsd daemon providing position fixes
	CameraDevice   int    // video capture device id

	SampleInterval     time.Duration // location sampling period
	DetectionInterval  time.Duration // monitor capture period
	ReconnectDelay     time.Duration // fixed relay retry, no backoff by design
	CooldownWindow     time.Duration // dedup time window
	ProximityRadius    float64       // dedup distance in meters
	DetectionThreshold float64       // model score above which a hazard is reported

	DetectedHistoryLimit int
	ReceivedHistoryLimit int

	ModelPath   string
	TensorFloat bool // feed the model float32 input instead of uint8
}

func Load() *Config {
	return &Config{
		RelayURL:       getEnv("RELAY_URL", "wss://localhost:8000/ws"),
		APIBaseURL:     getEnv("API_BASE_URL", "https://localhost:8000"),
		TokenPath:      getEnv("TOKEN_PATH", filepath.Join(".", "token.jwt")),
		DatabasePath:   getEnv("DB_PATH", filepath.Join(".", "roadsafe.db")),
		CatalogPath:    getEnv("CATALOG_PATH", ""),
		LogDirectory:   getEnv("LOG_DIR", filepath.Join(".", "logs")),
		GPSDAddress:    getEnv("GPSD_ADDR", "localhost:2947"),
		CameraDevice:   getEnvAsInt("CAMERA_DEVICE", 0),

		SampleInterval:     getEnvAsSeconds("SAMPLE_INTERVAL", 10),
		DetectionInterval:  getEnvAsSeconds("DETECTION_INTERVAL", 3),
		ReconnectDelay:     getEnvAsSeconds("RECONNECT_DELAY", 3),
		CooldownWindow:     getEnvAsSeconds("COOLDOWN_WINDOW", 20),
		ProximityRadius:    getEnvAsFloat("PROXIMITY_RADIUS", 30),
		DetectionThreshold: getEnvAsFloat("DETECTION_THRESHOLD", 0.7),

		DetectedHistoryLimit: getEnvAsInt("DETECTED_HISTORY_LIMIT", 5),
		ReceivedHistoryLimit: getEnvAsInt("RECEIVED_HISTORY_LIMIT", 10),

		ModelPath:   getEnv("MODEL_PATH", filepath.Join(".", "models", "hazard.onnx")),
		TensorFloat: getEnvAsBool("TENSOR_FLOAT", false),
	}
}

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Second
}
