package server

import (
	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port      string    `env:"PORT" envDefault:"8080"`
	Env       string    `env:"ENV" envDefault:"development"`
	Whoop     Whoop     `envPrefix:"WHOOP_"`
	Database  Database  `envPrefix:"DATABASE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	RateLimit RateLimit `envPrefix:"RATE_"`
	Sync      Sync      `envPrefix:"SYNC_"`

	// OperatorKey authorizes bulk syncs across all users. Empty disables
	// bulk mode entirely.
	OperatorKey string `env:"OPERATOR_KEY"`
}

type Whoop struct {
	ClientID     string `env:"CLIENT_ID,required"`
	ClientSecret string `env:"CLIENT_SECRET,required"`
	RedirectURL  string `env:"REDIRECT_URL"`

	// APIBaseURL and TokenURL default to the production endpoints and exist
	// so staging and tests can point elsewhere.
	APIBaseURL string `env:"API_BASE_URL"`
	TokenURL   string `env:"TOKEN_URL"`
}

type Database struct {
	URL string `env:"URL,required"`
}

// Redis is optional: with no URL the server falls back to the in-memory
// rate limit backend.
type Redis struct {
	URL string `env:"URL"`
}

type RateLimit struct {
	Limit float64 `env:"LIMIT" envDefault:"10"`
	Burst int     `env:"BURST" envDefault:"20"`
}

type Sync struct {
	WindowDays int `env:"WINDOW_DAYS" envDefault:"180"`
}

func ReadConfig() (Config, error) {
	return env.ParseAs[Config]()
}
