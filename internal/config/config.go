package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"engine-health-monitor/internal/diagnostics"
)

// Config holds runtime settings resolved from .env and the environment
type Config struct {
	// Storage
	DBPath string

	// Classifier artifact; empty disables the classifier
	ModelPath string

	// HTTP
	HTTPPort int

	// Logging
	LogLevel string

	// Redis report fan-out; empty address disables publishing
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Sensor provider: "simulated", "http" or "mqtt"
	SensorSource    string
	SensorURL       string
	SensorTimeoutMS int
	SimulatorMode   string
	MQTTBroker      string
	MQTTTopic       string
	MQTTClientID    string

	// Diagnostic rule limits
	Thresholds diagnostics.Thresholds
}

// Load reads an optional .env file and then the environment
func Load() *Config {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	def := diagnostics.DefaultThresholds()
	return &Config{
		DBPath:          getEnv("ENGINE_HEALTH_DB", "engine_health.db"),
		ModelPath:       getEnv("ENGINE_HEALTH_MODEL", "vehicle_health_model.json"),
		HTTPPort:        getEnvInt("HTTP_PORT", 8080),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		SensorSource:    getEnv("SENSOR_SOURCE", "simulated"),
		SensorURL:       getEnv("SENSOR_URL", "http://localhost:5000/sensor"),
		SensorTimeoutMS: getEnvInt("SENSOR_TIMEOUT_MS", 2000),
		SimulatorMode:   getEnv("SIMULATOR_MODE", "correlated"),
		MQTTBroker:      getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTTopic:       getEnv("MQTT_TOPIC", "engine/sensors"),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "engine-health-monitor"),
		Thresholds: diagnostics.Thresholds{
			OilPressureMin:     getEnvFloat("RULE_OIL_PRESSURE_MIN", def.OilPressureMin),
			OilTempMax:         getEnvFloat("RULE_OIL_TEMP_MAX", def.OilTempMax),
			CoolantTempMax:     getEnvFloat("RULE_COOLANT_TEMP_MAX", def.CoolantTempMax),
			CoolantPressureMin: getEnvFloat("RULE_COOLANT_PRESSURE_MIN", def.CoolantPressureMin),
			FuelPressureMin:    getEnvFloat("RULE_FUEL_PRESSURE_MIN", def.FuelPressureMin),
			BatteryMin:         getEnvFloat("RULE_BATTERY_MIN", def.BatteryMin),
			TempDiffMax:        getEnvFloat("RULE_TEMP_DIFF_MAX", def.TempDiffMax),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
