package main

import "time"

type Config struct {
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	TokenSecret          string        `env:"TOKEN_SECRET,required=true"`
	TokenDuration        time.Duration `env:"TOKEN_DURATION,default=24h"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	PresenceBufferSize   int           `env:"PRESENCE_BUFFER_SIZE,default=256"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=100"`
	TypingTTL            time.Duration `env:"TYPING_TTL,default=6s"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=5s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	TelemetryInterval    time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
