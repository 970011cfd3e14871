package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Freeeeeet/booking_bot/internal/availability"
)

const (
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"
	StoreMemory    = "memory"
)

type Config struct {
	Environment string `mapstructure:"ENV"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`

	// Хранилище: postgres | firestore | mongo | memory
	Store                   string `mapstructure:"STORE"`
	DBDSN                   string `mapstructure:"DB_DSN"`
	FirebaseProjectID       string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
	MongoURI                string `mapstructure:"MONGO_URI"`
	MongoDatabase           string `mapstructure:"MONGO_DATABASE"`

	// Кеш списка слотов; пустой адрес отключает кеш
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`

	// Пустой токен отключает бота
	TelegramToken string `mapstructure:"TELEGRAM_TOKEN"`

	EventDate        string        `mapstructure:"EVENT_DATE"`
	OpeningTime      string        `mapstructure:"OPENING_TIME"`
	ClosingTime      string        `mapstructure:"CLOSING_TIME"`
	SlotMinutes      int           `mapstructure:"SLOT_MINUTES"`
	TickMinutes      int           `mapstructure:"TICK_MINUTES"`
	SlotSyncInterval time.Duration `mapstructure:"SLOT_SYNC_INTERVAL"`

	RateLimitPerMin int `mapstructure:"RATE_LIMIT_PER_MIN"`
}

var defaults = map[string]interface{}{
	"ENV":                       "development",
	"HTTP_ADDR":                 ":8080",
	"STORE":                     StorePostgres,
	"DB_DSN":                    "",
	"FIREBASE_PROJECT_ID":       "",
	"FIREBASE_CREDENTIALS_FILE": "",
	"MONGO_URI":                 "",
	"MONGO_DATABASE":            "booking",
	"REDIS_ADDR":                "",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"CACHE_TTL":                 "30s",
	"TELEGRAM_TOKEN":            "",
	"EVENT_DATE":                "",
	"OPENING_TIME":              "10:00",
	"CLOSING_TIME":              "20:00",
	"SLOT_MINUTES":              30,
	"TICK_MINUTES":              availability.DefaultTickMinutes,
	"SLOT_SYNC_INTERVAL":        "1h",
	"RATE_LIMIT_PER_MIN":        60,
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	} else {
		log.Println("Loaded configuration from .env file")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// Ключи заданы через SetDefault, поэтому AutomaticEnv подхватит их при Unmarshal
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет обязательные поля и согласованность значений
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required for STORE=%s", c.Store)
		}
	case StoreFirestore:
		if c.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for STORE=%s", c.Store)
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORE=%s", c.Store)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}

	if c.EventDate == "" {
		return fmt.Errorf("EVENT_DATE is required but not set")
	}
	if _, err := time.Parse("2006-01-02", c.EventDate); err != nil {
		return fmt.Errorf("EVENT_DATE must be YYYY-MM-DD: %w", err)
	}

	opening, err := availability.ParseClock(c.OpeningTime)
	if err != nil {
		return fmt.Errorf("OPENING_TIME: %w", err)
	}
	closing, err := availability.ParseClock(c.ClosingTime)
	if err != nil {
		return fmt.Errorf("CLOSING_TIME: %w", err)
	}
	if opening >= closing {
		return fmt.Errorf("OPENING_TIME must be before CLOSING_TIME")
	}

	if c.SlotMinutes <= 0 {
		return fmt.Errorf("SLOT_MINUTES must be positive")
	}
	if c.TickMinutes <= 0 {
		return fmt.Errorf("TICK_MINUTES must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}
