package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config stores all configuration of the application
type Config struct {
	// Application
	AppName    string
	AppVersion string
	Debug      bool

	// Server
	Host string
	Port string

	// Database
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBName      string
	DBUser      string
	DBPassword  string

	// Redis
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// RabbitMQ
	RabbitMQHost     string
	RabbitMQPort     string
	RabbitMQUser     string
	RabbitMQPassword string

	// JWT Authentication
	JWTSecretKey             string
	JWTAlgorithm             string
	AccessTokenExpireMinutes int

	// Logging
	LogLevel string
	LogFile  string

	// Cache and heartbeat
	CacheTTL               time.Duration
	DeviceHeartbeatTimeout time.Duration

	// Pagination
	DefaultPageSize int
	MaxPageSize     int
}

// LoadConfig loads config from environment variables with documented defaults
func LoadConfig() *Config {
	return &Config{
		AppName:    "Device Management Service",
		AppVersion: "1.0.0",
		Debug:      getEnvAsBool("DEBUG", false),

		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnv("PORT", "8001"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBName:      getEnv("DB_NAME", "device_management"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "password"),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		RabbitMQHost:     getEnv("RABBITMQ_HOST", "localhost"),
		RabbitMQPort:     getEnv("RABBITMQ_PORT", "5672"),
		RabbitMQUser:     getEnv("RABBITMQ_USER", "guest"),
		RabbitMQPassword: getEnv("RABBITMQ_PASSWORD", "guest"),

		JWTSecretKey:             getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
		JWTAlgorithm:             getEnv("JWT_ALGORITHM", "HS256"),
		AccessTokenExpireMinutes: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "logs/device_management.log"),

		CacheTTL:               time.Duration(getEnvAsInt("CACHE_TTL", 3600)) * time.Second,
		DeviceHeartbeatTimeout: time.Duration(getEnvAsInt("DEVICE_HEARTBEAT_TIMEOUT", 300)) * time.Second,

		DefaultPageSize: getEnvAsInt("DEFAULT_PAGE_SIZE", 10),
		MaxPageSize:     getEnvAsInt("MAX_PAGE_SIZE", 100),
	}
}

// GetDSN returns the database connection string. DATABASE_URL takes
// precedence over the component parts.
func (c *Config) GetDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// GetAMQPURL returns the RabbitMQ connection URL
func (c *Config) GetAMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.RabbitMQUser, c.RabbitMQPassword, c.RabbitMQHost, c.RabbitMQPort)
}

// GetServerAddr returns the listen address for the HTTP server
func (c *Config) GetServerAddr() string {
	return c.Host + ":" + c.Port
}

// Helper function to get environment variable with default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as integer with default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as boolean with default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
