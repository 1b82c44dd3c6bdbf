package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Port                  string
	Env                   string
	LogLevel              string
	DatabaseDSN           string
	JWTSecret             string
	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int
	CORSOrigins           []string
	NATSURL               string
	RedisURL              string
	GeminiAPIKey          string
	GeminiModel           string
	PongWait              time.Duration
	RateLimitRPS          float64
	RateLimitBurst        int
	ShutdownTimeout       time.Duration
}

var defaults = map[string]any{
	"APP_PORT":                 "8080",
	"APP_ENV":                  "dev",
	"LOG_LEVEL":                "info",
	"DATABASE_DSN":             "host=localhost user=postgres password=postgres dbname=jobportal port=5432 sslmode=disable TimeZone=UTC",
	"JWT_SECRET":               defaultJWTSecret,
	"ACCESS_TOKEN_TTL_MINUTES": 15,
	"REFRESH_TOKEN_TTL_DAYS":   7,
	"CORS_ORIGINS":             "",
	"NATS_URL":                 "",
	"REDIS_URL":                "",
	"GEMINI_API_KEY":           "",
	"GEMINI_MODEL":             "gemini-2.5-flash",
	"WS_PONG_WAIT_SECONDS":     60,
	"RATE_LIMIT_RPS":           20.0,
	"RATE_LIMIT_BURST":         40,
	"SHUTDOWN_TIMEOUT_SECONDS": 30,
}

// Load 从环境变量（以及可选的 CONFIG_FILE）读取配置，非法数值回落到默认值。
func Load() Config {
	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	v.AutomaticEnv()
	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		// 配置文件缺失时仅使用环境变量和默认值。
		_ = v.ReadInConfig()
	}

	return Config{
		Port:                  v.GetString("APP_PORT"),
		Env:                   v.GetString("APP_ENV"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		DatabaseDSN:           v.GetString("DATABASE_DSN"),
		JWTSecret:             v.GetString("JWT_SECRET"),
		AccessTokenTTLMinutes: positiveInt(v, "ACCESS_TOKEN_TTL_MINUTES"),
		RefreshTokenTTLDays:   positiveInt(v, "REFRESH_TOKEN_TTL_DAYS"),
		CORSOrigins:           splitList(v.GetString("CORS_ORIGINS")),
		NATSURL:               v.GetString("NATS_URL"),
		RedisURL:              v.GetString("REDIS_URL"),
		GeminiAPIKey:          v.GetString("GEMINI_API_KEY"),
		GeminiModel:           v.GetString("GEMINI_MODEL"),
		PongWait:              time.Duration(positiveInt(v, "WS_PONG_WAIT_SECONDS")) * time.Second,
		RateLimitRPS:          positiveFloat(v, "RATE_LIMIT_RPS"),
		RateLimitBurst:        positiveInt(v, "RATE_LIMIT_BURST"),
		ShutdownTimeout:       time.Duration(positiveInt(v, "SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
	}
}

// Validate 校验启动所需的关键配置，非 dev 环境禁止使用默认 JWT 密钥。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: APP_PORT is required")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("config: DATABASE_DSN is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == defaultJWTSecret {
		return errors.New("config: JWT_SECRET must be changed outside dev")
	}
	return nil
}

func positiveInt(v *viper.Viper, key string) int {
	n := v.GetInt(key)
	if n <= 0 {
		return defaults[key].(int)
	}
	return n
}

func positiveFloat(v *viper.Viper, key string) float64 {
	f := v.GetFloat64(key)
	if f <= 0 {
		return defaults[key].(float64)
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
