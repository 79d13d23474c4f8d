// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/sirupsen/logrus"
)

// Config is the process configuration, read from the environment.
type Config struct {
	ServicePort string `env:"SERVICE_PORT,default=8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	// AllowedOrigins is a comma separated CORS list for the JSON endpoints.
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`

	ContactSafetyMargin int `env:"CONTACT_SAFETY_MARGIN,default=10"`
	CapacityQueryLimit  int `env:"CAPACITY_QUERY_LIMIT,default=8"`
	RoomNameLimit       int `env:"ROOM_NAME_LIMIT,default=25"`

	InviteTimeout     time.Duration `env:"INVITE_TIMEOUT,default=30s"`
	SpectateThreshold int           `env:"SPECTATE_THRESHOLD,default=7"`
	TakeTimeout       time.Duration `env:"TAKE_TIMEOUT,default=1m"`
	RPCTimeout        time.Duration `env:"RPC_TIMEOUT,default=10s"`

	// PinnedRooms and BlockedWords are comma separated.
	PinnedRooms  string `env:"PINNED_ROOMS,default=Offtopic"`
	BlockedWords string `env:"BLOCKED_WORDS"`

	RedisAddr   string `env:"REDIS_ADDR"`
	RedisDB     int    `env:"REDIS_DB,default=0"`
	BadgerDir   string `env:"BADGER_DIR"`
	DatabaseURL string `env:"DATABASE_URL"`

	// The historian moves lobby records from Redis to Postgres. When embedded
	// the server runs it itself, otherwise cmd/historian does.
	HistorianEmbedded   bool          `env:"HISTORIAN_EMBEDDED,default=true"`
	HistorianBatchSize  int           `env:"HISTORIAN_BATCH_SIZE,default=20"`
	HistorianFlushDelay time.Duration `env:"HISTORIAN_FLUSH_DELAY,default=500ms"`

	TokenPrivateKey string `env:"TOKEN_PRIVATE_KEY"`
	TokenPublicKey  string `env:"TOKEN_PUBLIC_KEY"`
	// TokenExpireTime is a duration, or "never"/"0" for tokens without expiry.
	TokenExpireTime string `env:"TOKEN_EXPIRE_TIME,default=never"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return cfg, fmt.Errorf("config error: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config error: LOG_LEVEL: %w", err)
	}
	if c.InviteTimeout <= 0 {
		return fmt.Errorf("config error: INVITE_TIMEOUT must be positive, got %s", c.InviteTimeout)
	}
	if (c.TokenPrivateKey == "") != (c.TokenPublicKey == "") {
		return fmt.Errorf("config error: TOKEN_PRIVATE_KEY and TOKEN_PUBLIC_KEY must be set together")
	}
	return nil
}

// Level returns the parsed LOG_LEVEL, defaulting to info.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// TokenTTL parses TokenExpireTime. Zero means tokens never expire.
func (c Config) TokenTTL() (time.Duration, error) {
	switch c.TokenExpireTime {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(c.TokenExpireTime)
	if err != nil {
		return 0, fmt.Errorf("config error: TOKEN_EXPIRE_TIME: %w", err)
	}
	return d, nil
}

// PinnedRoomNames splits PINNED_ROOMS.
func (c Config) PinnedRoomNames() []string { return splitList(c.PinnedRooms) }

// BlockedWordList splits BLOCKED_WORDS.
func (c Config) BlockedWordList() []string { return splitList(c.BlockedWords) }

// AllowedOriginList splits ALLOWED_ORIGINS.
func (c Config) AllowedOriginList() []string { return splitList(c.AllowedOrigins) }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
