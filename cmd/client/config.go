package main

// Config defines the client-side environment variables.
type Config struct {
	ServerURL   string `envconfig:"CHAT_SERVER_URL" default:"http://localhost:8080"`
	Identity    string `envconfig:"CHAT_IDENTITY" required:"true"`
	Counterpart string `envconfig:"CHAT_COUNTERPART" required:"true"`
	TokenSecret string `envconfig:"TOKEN_SECRET" required:"true"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}
