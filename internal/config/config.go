package config

import "time"

// Config is the root configuration of the bureau service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Redis     RedisConfig     `yaml:"redis"`
	Neo4j     Neo4jConfig     `yaml:"neo4j"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"BUREAU_HTTP_ADDR"               env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"BUREAU_HTTP_READ_TIMEOUT"       env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"BUREAU_HTTP_WRITE_TIMEOUT"      env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"BUREAU_HTTP_IDLE_TIMEOUT"       env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"BUREAU_HTTP_SHUTDOWN_TIMEOUT"   env-default:"10s"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"   env:"BUREAU_HTTP_MAX_BODY_BYTES"     env-default:"6291456"`
	// GRPCAddr serves the standard gRPC health service.
	GRPCAddr string `yaml:"grpc_addr" env:"BUREAU_GRPC_ADDR" env-default:":9090"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"               env:"BUREAU_DATABASE_DSN"               env-required:"true"`
	MaxOpenConns    int           `yaml:"max_open_conns"    env:"BUREAU_DATABASE_MAX_OPEN_CONNS"    env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns"    env:"BUREAU_DATABASE_MAX_IDLE_CONNS"    env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"BUREAU_DATABASE_CONN_MAX_LIFETIME" env-default:"1h"`
	PingTimeout     time.Duration `yaml:"ping_timeout"      env:"BUREAU_DATABASE_PING_TIMEOUT"      env-default:"5s"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	TokenSecret string        `yaml:"token_secret" env:"BUREAU_AUTH_SECRET" env-required:"true"`
	Issuer      string        `yaml:"issuer"       env:"BUREAU_AUTH_ISSUER" env-default:"bureau"`
	TokenTTL    time.Duration `yaml:"token_ttl"    env:"BUREAU_AUTH_TTL"    env-default:"12h"`
}

// RedisConfig enables the shared session store. Empty Addr keeps sessions in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"     env:"BUREAU_REDIS_ADDR"`
	Password string `yaml:"password" env:"BUREAU_REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"BUREAU_REDIS_DB" env-default:"0"`
}

// Neo4jConfig enables the organization graph projection. Empty URI disables it.
type Neo4jConfig struct {
	URI      string `yaml:"uri"      env:"BUREAU_NEO4J_URI"`
	User     string `yaml:"user"     env:"BUREAU_NEO4J_USER"     env-default:"neo4j"`
	Password string `yaml:"password" env:"BUREAU_NEO4J_PASSWORD"`
	Database string `yaml:"database" env:"BUREAU_NEO4J_DATABASE" env-default:"neo4j"`
}

// StorageConfig holds role image storage settings.
type StorageConfig struct {
	RoleImageDir  string `yaml:"role_image_dir"  env:"BUREAU_ROLE_IMAGE_DIR"  env-default:"./data/role-images"`
	PublicBaseURL string `yaml:"public_base_url" env:"BUREAU_PUBLIC_BASE_URL" env-default:"/static/role-images"`
	MaxImageBytes int64  `yaml:"max_image_bytes" env:"BUREAU_MAX_IMAGE_BYTES" env-default:"5242880"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"BUREAU_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"BUREAU_LOG_FORMAT" env-default:"json"`
}

// RateLimitConfig bounds request rates per client address.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" env:"BUREAU_RATE_LIMIT_RPS"   env-default:"20"`
	Burst     int     `yaml:"burst"      env:"BUREAU_RATE_LIMIT_BURST" env-default:"40"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"BUREAU_CORS_ALLOWED_ORIGINS" env-default:"*"`
}
