package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

type GatewayConfig struct {
	SecretKey string `yaml:"secret_key"`
	// Секрет подписи вебхуков. У Paystack совпадает с secret_key,
	// у Flutterwave это отдельный verif-hash.
	SigningSecret string `yaml:"signing_secret"`
	BaseURL       string `yaml:"base_url"`
}

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
	} `yaml:"email"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // minutes
	} `yaml:"jwt"`

	Payments struct {
		DefaultCurrency       string        `yaml:"default_currency"`
		GracePeriodDays       int           `yaml:"grace_period_days"`
		MinInstallmentPeriods int           `yaml:"min_installment_periods"`
		GatewayTimeoutSeconds int           `yaml:"gateway_timeout_seconds"`
		SuccessURL            string        `yaml:"success_url"`
		CancelURL             string        `yaml:"cancel_url"`
		Paystack              GatewayConfig `yaml:"paystack"`
		Flutterwave           GatewayConfig `yaml:"flutterwave"`
	} `yaml:"payments"`
}

var AppConfig *Config

func LoadConfig() {
	var cfg Config

	dbURL := os.Getenv("DATABASE_URL")

	if dbURL == "" {
		log.Println("Загрузка из config.yaml")

		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			log.Fatalf("Failed to open config file at %s: %v", configPath, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			log.Fatalf("Failed to parse config file at %s: %v", configPath, err)
		}

		applyPaymentDefaults(&cfg)
		AppConfig = &cfg
		return
	}

	log.Println("Загрузка конфигурации из переменных окружения")

	cfg.Database.DSN = dbURL
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	cfg.JWT.TTL = 60

	cfg.Email.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.Email.SMTPPort, _ = strconv.Atoi(os.Getenv("SMTP_PORT"))
	cfg.Email.SMTPUsername = os.Getenv("SMTP_USER")
	cfg.Email.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.Email.FromEmail = os.Getenv("EMAIL_FROM")
	cfg.Email.FromName = "StitchHub"

	cfg.Payments.Paystack.SecretKey = os.Getenv("PAYSTACK_SECRET_KEY")
	cfg.Payments.Paystack.SigningSecret = os.Getenv("PAYSTACK_SECRET_KEY")
	cfg.Payments.Flutterwave.SecretKey = os.Getenv("FLUTTERWAVE_SECRET_KEY")
	cfg.Payments.Flutterwave.SigningSecret = os.Getenv("FLUTTERWAVE_VERIF_HASH")
	cfg.Payments.SuccessURL = os.Getenv("PAYMENT_SUCCESS_URL")
	cfg.Payments.CancelURL = os.Getenv("PAYMENT_CANCEL_URL")

	applyPaymentDefaults(&cfg)
	AppConfig = &cfg
}

func applyPaymentDefaults(cfg *Config) {
	if cfg.Payments.DefaultCurrency == "" {
		cfg.Payments.DefaultCurrency = "NGN"
	}
	if cfg.Payments.GracePeriodDays <= 0 {
		cfg.Payments.GracePeriodDays = 3
	}
	if cfg.Payments.MinInstallmentPeriods <= 0 {
		cfg.Payments.MinInstallmentPeriods = 3
	}
	if cfg.Payments.GatewayTimeoutSeconds <= 0 {
		cfg.Payments.GatewayTimeoutSeconds = 15
	}
	if cfg.Payments.Paystack.BaseURL == "" {
		cfg.Payments.Paystack.BaseURL = "https://api.paystack.co"
	}
	if cfg.Payments.Flutterwave.BaseURL == "" {
		cfg.Payments.Flutterwave.BaseURL = "https://api.flutterwave.com"
	}
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
