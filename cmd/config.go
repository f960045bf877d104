package main

import "time"

type Config struct {
	Host             string        `env:"HOST,default=0.0.0.0"`
	Port             int           `env:"PORT,default=8000"`
	DebugPort        int           `env:"DEBUG_PORT"`
	BadgerFilepath   string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel         string        `env:"LOG_LEVEL,default=INFO"`
	ProviderBaseURL  string        `env:"PROVIDER_BASE_URL,default=https://sfu.mirotalk.com"`
	SessionNamespace string        `env:"SESSION_NAMESPACE,default=MeetHub"`
	DefaultCapacity  int           `env:"DEFAULT_MAX_PARTICIPANTS,default=10"`
	ActiveListLimit  int           `env:"ACTIVE_LIST_LIMIT,default=10"`
	AllowedOrigins   string        `env:"ALLOWED_ORIGINS,default=*"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
