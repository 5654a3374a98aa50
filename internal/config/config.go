package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type DB struct {
	URL             string        `env:"DATABASE_URL,required"`
	Table           string        `env:"DB_AUDITS_TABLE" envDefault:"audits"`
	MigrationsPath  string        `env:"DB_MIGRATIONS_PATH" envDefault:"file://db/migrations"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"16"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"8"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"15m"`
}

type HTTP struct {
	Port string `env:"PORT" envDefault:"8080"`
}

// Kafka fan-out is disabled when Brokers is empty.
type Kafka struct {
	Brokers string `env:"KAFKA_BROKERS"`
	Topic   string `env:"KAFKA_AUDIT_TOPIC" envDefault:"audit-records"`
}

type Search struct {
	// DateRangeIntersect applies both created bounds when start_date and
	// end_date are supplied together instead of letting the end bound
	// replace the start bound.
	DateRangeIntersect bool `env:"SEARCH_DATE_RANGE_INTERSECT" envDefault:"false"`
}

type Config struct {
	DB     DB
	HTTP   HTTP
	Kafka  Kafka
	Search Search
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
