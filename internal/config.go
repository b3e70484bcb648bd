package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Host      string `env:"HOST,default=0.0.0.0"`
	Port      int    `env:"PORT,default=8080"`
	GrpcPort  int    `env:"GRPC_PORT,default=9090"`
	DebugPort int    `env:"DEBUG_PORT,default=8081"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	HistoryDefaultLimit  int           `env:"HISTORY_DEFAULT_LIMIT,default=50"`
	HistoryMaxLimit      int           `env:"HISTORY_MAX_LIMIT,default=100"`

	StatsInterval   time.Duration `env:"STATS_INTERVAL,default=30s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s"`

	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) validate() error {
	switch {
	case strings.TrimSpace(c.JWTSecret) == "":
		return fmt.Errorf("JWT_SECRET must not be empty")
	case c.MaxContentLength <= 0:
		return fmt.Errorf("MAX_CONTENT_LENGTH must be positive, got %d", c.MaxContentLength)
	case c.ConnectionBufferSize <= 0:
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	case c.HistoryDefaultLimit <= 0 || c.HistoryMaxLimit < c.HistoryDefaultLimit:
		return fmt.Errorf("history limits must satisfy 0 < HISTORY_DEFAULT_LIMIT <= HISTORY_MAX_LIMIT, got %d and %d",
			c.HistoryDefaultLimit, c.HistoryMaxLimit)
	}
	_, err := CharacterRune(c.CharReplacement)
	return err
}

// Words splits CENSORED_WORDS on commas, dropping blanks.
func (c Config) Words() []string {
	var words []string
	for _, w := range strings.Split(c.CensoredWords, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
