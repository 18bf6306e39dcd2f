package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	_ "github.com/joho/godotenv/autoload"
)

type App struct {
	Environment string   `env:"ENVIRONMENT" envDefault:"dev"`
	Port        string   `env:"PORT" envDefault:"8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

func (c App) IsDevEnvironment() bool {
	return c.Environment == "dev"
}

type DB struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER,notEmpty"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME,notEmpty"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN builds the key/value connection string understood by the pgx driver.
func (c DB) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET,notEmpty"`
}

type Voting struct {
	MaxRetries int `env:"VOTE_MAX_RETRIES" envDefault:"3"`
}

type Notifications struct {
	DedupWindow time.Duration `env:"NOTIFICATION_DEDUP_WINDOW" envDefault:"5m"`
	Retention   time.Duration `env:"NOTIFICATION_RETENTION" envDefault:"720h"`
	SweepCron   string        `env:"NOTIFICATION_SWEEP_CRON" envDefault:"30 3 * * *"`
}

type Config struct {
	App           App
	DB            DB
	Auth          Auth
	Voting        Voting
	Notifications Notifications
}

func Load() (Config, error) {
	var config Config

	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Voting.MaxRetries < 1 {
		return Config{}, fmt.Errorf("VOTE_MAX_RETRIES must be at least 1, got %d", config.Voting.MaxRetries)
	}

	return config, nil
}
