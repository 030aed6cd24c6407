package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env"
)

type Config struct {
	Address            string        `env:"RUN_ADDRESS" envDefault:"localhost:8080"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"INFO"`
	DatabaseConnection string        `env:"DATABASE_URI"`
	RedisAddress       string        `env:"REDIS_ADDRESS" envDefault:"localhost:6379"`
	PaymentAddress     string        `env:"PAYMENT_ADDRESS" envDefault:"http://localhost:8091"`
	NotifyAddress      string        `env:"NOTIFY_ADDRESS" envDefault:"http://localhost:8092"`
	JWTSecret          string        `env:"JWT_SECRET" envDefault:"dontexposethis"`
	JWTTTL             time.Duration `env:"JWT_TTL" envDefault:"24h"`

	AssignWorkers    int           `env:"ASSIGN_WORKERS" envDefault:"10"`
	AssignInterval   time.Duration `env:"ASSIGN_INTERVAL" envDefault:"3s"`
	RefundInterval   time.Duration `env:"REFUND_INTERVAL" envDefault:"30s"`
	SearchRadiusKm   float64       `env:"SEARCH_RADIUS_KM" envDefault:"10"`
	MaxDistanceKm    float64       `env:"MAX_DISTANCE_KM" envDefault:"0"`
	UseLoadBalancing bool          `env:"USE_LOAD_BALANCING" envDefault:"true"`

	BaseDeliveryFee       int64   `env:"BASE_DELIVERY_FEE" envDefault:"299"`
	PerKmRate             int64   `env:"PER_KM_RATE" envDefault:"50"`
	FreeDeliveryThreshold int64   `env:"FREE_DELIVERY_THRESHOLD" envDefault:"2500"`
	PlatformRate          float64 `env:"PLATFORM_RATE" envDefault:"0.12"`
	MinPlatformFee        int64   `env:"MIN_PLATFORM_FEE" envDefault:"199"`
	LargeOrderThreshold   int64   `env:"LARGE_ORDER_THRESHOLD" envDefault:"5000"`
	LargeOrderFlatFee     int64   `env:"LARGE_ORDER_FLAT_FEE" envDefault:"249"`
	TipSuggestionRate     float64 `env:"TIP_SUGGESTION_RATE" envDefault:"0.15"`
	DefaultTaxRate        float64 `env:"DEFAULT_TAX_RATE" envDefault:"0.06"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("ENV JWT_SECRET must be set")
	}

	address := flag.String("a", cfg.Address, "{Host:port} for server")
	loglevel := flag.String("l", cfg.LogLevel, "Log level for server")
	databaseConnection := flag.String("d", cfg.DatabaseConnection, "Database connection string")
	redisAddress := flag.String("r", cfg.RedisAddress, "Redis address for the driver directory")
	assignWorkers := flag.Int("w", cfg.AssignWorkers, "Size of the assignment worker pool")
	assignInterval := flag.Duration("i", cfg.AssignInterval, "Assignment poll interval")
	jwtTTL := flag.Duration("t", cfg.JWTTTL, "TTL for JWT token(e.g. 24h; 30m )")

	flag.Parse()

	cfg.Address = *address
	cfg.LogLevel = *loglevel
	cfg.DatabaseConnection = *databaseConnection
	cfg.RedisAddress = *redisAddress
	cfg.AssignWorkers = *assignWorkers
	cfg.AssignInterval = *assignInterval
	cfg.JWTTTL = *jwtTTL

	return cfg, nil
}
