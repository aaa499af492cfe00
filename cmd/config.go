package main

import "time"

type Config struct {
	Host                      string        `env:"HOST,default=localhost"`
	Port                      int           `env:"PORT,default=8080"`
	HealthPort                int           `env:"HEALTH_PORT,default=8081"`
	DebugPort                 int           `env:"DEBUG_PORT,default=8082"`
	LogLevel                  string        `env:"LOG_LEVEL,required=true"`
	BadgerFilepath            string        `env:"BADGER_FILEPATH,required=true"`
	LimitMessages             int           `env:"LIMIT_MESSAGES,default=50"`
	JWTSecret                 string        `env:"JWT_SECRET,required=true"`
	JWTIssuer                 string        `env:"JWT_ISSUER,default=chat-realtime"`
	ConnectionBufferSize      int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	BusBufferSize             int           `env:"BUS_BUFFER_SIZE,default=256"`
	SinkTimeout               time.Duration `env:"SINK_TIMEOUT,default=250ms"`
	RestartInterval           time.Duration `env:"RESTART_INTERVAL,default=1s"`
	StatsInterval             time.Duration `env:"STATS_INTERVAL,default=30s"`
	MaxFailedAttempts         int           `env:"MAX_FAILED_ATTEMPTS,default=5"`
	FailedAttemptWindow       time.Duration `env:"FAILED_ATTEMPT_WINDOW,default=10m"`
	UpgradesPerSecond         float64       `env:"UPGRADES_PER_SECOND,default=50"`
	ModerationCharReplacement string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
	AllowedOrigins            string        `env:"ALLOWED_ORIGINS"`
}
