package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	Chain Chain     `envPrefix:"CHAIN_"`
	Vault Vault     `envPrefix:"VAULT_"`
	Email Email     `envPrefix:"EMAIL_"`
	Auth  Auth      `envPrefix:"AUTH_"`
	Rate  RateLimit `envPrefix:"RATE_"`
}

// Chain configures the on-chain transaction verifier. Everything the
// verifier needs is injected from here; nothing is read from globals.
type Chain struct {
	IndexerBaseURL  string `env:"INDEXER_BASE_URL"`
	IndexerAPIKey   string `env:"INDEXER_API_KEY"`
	PaymentContract string `env:"PAYMENT_CONTRACT"`

	ConfirmationThreshold int64         `env:"CONFIRMATION_THRESHOLD" envDefault:"5"`
	PollInterval          time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	MaxWait               time.Duration `env:"MAX_WAIT" envDefault:"120s"`

	TokenDecimals int32    `env:"TOKEN_DECIMALS" envDefault:"18"`
	Tokens        []string `env:"TOKENS" envDefault:"ETH,USDC" envSeparator:","`
}

type Vault struct {
	// 32-byte AES key, hex encoded
	Key string `env:"KEY"`
}

type Email struct {
	BaseAPIURL string `env:"BASE_API_URL" envDefault:"https://api.resend.com"`
	APIKey     string `env:"API_KEY"`
	From       string `env:"FROM" envDefault:"Mizu Pay <giftcards@mizupay.app>"`
}

type Auth struct {
	// empty secret disables auth (local development)
	JWTSecret string `env:"JWT_SECRET"`
}

type RateLimit struct {
	PerSecond float64 `env:"PER_SECOND" envDefault:"5"`
	Burst     int     `env:"BURST" envDefault:"10"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
