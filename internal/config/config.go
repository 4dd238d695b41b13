package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Bot      BotConfig
	API      APIConfig
	Payment  PaymentConfig
	Audit    AuditConfig
}

type ServerConfig struct {
	Port    int
	Env     string // "development", "production"
	BaseURL string // public URL for payment callbacks and subscription links
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type BotConfig struct {
	Token      string
	WebhookURL string
	UpdateMode string // "webhook", "polling", "auto"
	AdminID    string
	Username   string
	Domain     string
}

type APIConfig struct {
	Key string
}

type AuditConfig struct {
	LogPath string
}

type PaymentConfig struct {
	ZarinPal      ZarinPalConfig
	NOWPayments   NOWPaymentsConfig
	AqayePardakht AqayeConfig
}

type ZarinPalConfig struct {
	Merchant string
	Sandbox  bool
}

type NOWPaymentsConfig struct {
	APIKey string
}

type AqayeConfig struct {
	Pin string
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("AUDIT_LOG_PATH", "log.txt")
	viper.SetDefault("BOT_UPDATE_MODE", "auto")
	viper.SetDefault("ZARINPAL_SANDBOX", false)

	cfg := &Config{
		Server: ServerConfig{
			Port:    viper.GetInt("APP_PORT"),
			Env:     viper.GetString("APP_ENV"),
			BaseURL: viper.GetString("SERVER_BASE_URL"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Bot: BotConfig{
			Token:      viper.GetString("BOT_TOKEN"),
			WebhookURL: viper.GetString("BOT_WEBHOOK_URL"),
			UpdateMode: viper.GetString("BOT_UPDATE_MODE"),
			AdminID:    viper.GetString("BOT_ADMIN_ID"),
			Username:   viper.GetString("BOT_USERNAME"),
			Domain:     viper.GetString("BOT_DOMAIN"),
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
		Audit: AuditConfig{
			LogPath: viper.GetString("AUDIT_LOG_PATH"),
		},
		Payment: PaymentConfig{
			ZarinPal: ZarinPalConfig{
				Merchant: viper.GetString("ZARINPAL_MERCHANT"),
				Sandbox:  viper.GetBool("ZARINPAL_SANDBOX"),
			},
			NOWPayments: NOWPaymentsConfig{
				APIKey: viper.GetString("NOWPAYMENTS_API_KEY"),
			},
			AqayePardakht: AqayeConfig{
				Pin: viper.GetString("AQAYE_PIN"),
			},
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Bot.Token == "" {
		log.Println("WARNING: BOT_TOKEN is not set")
	}

	return cfg, nil
}

// LoadDatabaseOnly reads just the database settings, for the bootstrap CLI.
func LoadDatabaseOnly() (*DatabaseConfig, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	return &cfg.Database, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
