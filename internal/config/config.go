package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // минуты
	} `yaml:"jwt"`

	Payment PaymentConfig `yaml:"payment"`
	VNPay   VNPayConfig   `yaml:"vnpay"`
	MoMo    MoMoConfig    `yaml:"momo"`
	ZaloPay ZaloPayConfig `yaml:"zalopay"`

	Loyalty    LoyaltyConfig    `yaml:"loyalty"`
	Invoice    InvoiceConfig    `yaml:"invoice"`
	Settlement SettlementConfig `yaml:"settlement"`

	Storage struct {
		Type       string `yaml:"type"`      // local, s3, cloudflare_r2
		BasePath   string `yaml:"base_path"` // для local
		BaseURL    string `yaml:"base_url"`
		Bucket     string `yaml:"bucket"`
		Region     string `yaml:"region"`
		AccessKey  string `yaml:"access_key"`
		SecretKey  string `yaml:"secret_key"`
		Endpoint   string `yaml:"endpoint"` // R2 или свой S3
		PublicRead bool   `yaml:"public_read"`
	} `yaml:"storage"`

	RateLimit struct {
		CallbackRPS   float64 `yaml:"callback_rps"`
		CallbackBurst int     `yaml:"callback_burst"`
	} `yaml:"rate_limit"`

	Workers struct {
		ReconcileInterval time.Duration `yaml:"reconcile_interval"`
		RenderInterval    time.Duration `yaml:"render_interval"`
		BatchSize         int           `yaml:"batch_size"`
	} `yaml:"workers"`
}

type PaymentConfig struct {
	Timeout time.Duration `yaml:"timeout"` // таймаут исходящих вызовов к шлюзам
	NodeID  int64         `yaml:"node_id"` // snowflake node
	// Базовый публичный URL сервиса, от него строятся IPN и return URL
	PublicBaseURL string `yaml:"public_base_url"`
	ReturnURL     string `yaml:"return_url"`
}

type VNPayConfig struct {
	TmnCode    string `yaml:"tmn_code"`
	HashSecret string `yaml:"hash_secret"`
	PayURL     string `yaml:"pay_url"`
	// Сколько минут действует ссылка на оплату
	ExpireMinutes int `yaml:"expire_minutes"`
}

type MoMoConfig struct {
	PartnerCode string `yaml:"partner_code"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Endpoint    string `yaml:"endpoint"`
}

type ZaloPayConfig struct {
	AppID    string `yaml:"app_id"`
	Key1     string `yaml:"key1"`
	Key2     string `yaml:"key2"`
	Endpoint string `yaml:"endpoint"`
}

type LoyaltyConfig struct {
	AccrualRate     decimal.Decimal `yaml:"accrual_rate"`     // баллов за единицу валюты
	RedemptionValue decimal.Decimal `yaml:"redemption_value"` // валюты за балл
}

// SettlementConfig - повторы сверки для платежей с недоделанными эффектами.
type SettlementConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"` // удваивается с каждой попыткой
}

type InvoiceConfig struct {
	TaxRate           decimal.Decimal `yaml:"tax_rate"`
	Currency          string          `yaml:"currency"`
	RenderURL         string          `yaml:"render_url"`
	RenderTimeout     time.Duration   `yaml:"render_timeout"`
	RenderMaxAttempts int             `yaml:"render_max_attempts"`
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

		cfg.applyDefaults()
		AppConfig = &cfg
		return
	}

	log.Println("Загрузка конфигурации из переменных окружения")

	cfg.Database.DSN = dbURL
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	cfg.JWT.TTL = 60

	cfg.Payment.PublicBaseURL = os.Getenv("PUBLIC_BASE_URL")
	cfg.Payment.ReturnURL = os.Getenv("PAYMENT_RETURN_URL")

	cfg.VNPay.TmnCode = os.Getenv("VNPAY_TMN_CODE")
	cfg.VNPay.HashSecret = os.Getenv("VNPAY_HASH_SECRET")
	cfg.VNPay.PayURL = os.Getenv("VNPAY_PAY_URL")

	cfg.MoMo.PartnerCode = os.Getenv("MOMO_PARTNER_CODE")
	cfg.MoMo.AccessKey = os.Getenv("MOMO_ACCESS_KEY")
	cfg.MoMo.SecretKey = os.Getenv("MOMO_SECRET_KEY")
	cfg.MoMo.Endpoint = os.Getenv("MOMO_ENDPOINT")

	cfg.ZaloPay.AppID = os.Getenv("ZALOPAY_APP_ID")
	cfg.ZaloPay.Key1 = os.Getenv("ZALOPAY_KEY1")
	cfg.ZaloPay.Key2 = os.Getenv("ZALOPAY_KEY2")
	cfg.ZaloPay.Endpoint = os.Getenv("ZALOPAY_ENDPOINT")

	cfg.Invoice.RenderURL = os.Getenv("INVOICE_RENDER_URL")
	if rate := os.Getenv("INVOICE_TAX_RATE"); rate != "" {
		cfg.Invoice.TaxRate, _ = decimal.NewFromString(rate)
	}

	cfg.Storage.Type = os.Getenv("STORAGE_TYPE")
	cfg.Storage.BasePath = os.Getenv("STORAGE_BASE_PATH")
	cfg.Storage.BaseURL = os.Getenv("STORAGE_BASE_URL")
	cfg.Storage.Bucket = os.Getenv("STORAGE_BUCKET")
	cfg.Storage.Region = os.Getenv("STORAGE_REGION")
	cfg.Storage.AccessKey = os.Getenv("STORAGE_ACCESS_KEY")
	cfg.Storage.SecretKey = os.Getenv("STORAGE_SECRET_KEY")
	cfg.Storage.Endpoint = os.Getenv("STORAGE_ENDPOINT")

	cfg.applyDefaults()
	AppConfig = &cfg
}

// applyDefaults заполняет то, что не задано ни в файле, ни в окружении.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.Type == "local" && c.Storage.BasePath == "" {
		c.Storage.BasePath = "./uploads"
	}
	if c.Payment.Timeout == 0 {
		c.Payment.Timeout = 10 * time.Second
	}
	if c.VNPay.ExpireMinutes == 0 {
		c.VNPay.ExpireMinutes = 15
	}
	if c.Loyalty.AccrualRate.IsZero() {
		// 1 балл за каждые 10 000 VND
		c.Loyalty.AccrualRate = decimal.RequireFromString("0.0001")
	}
	if c.Loyalty.RedemptionValue.IsZero() {
		c.Loyalty.RedemptionValue = decimal.NewFromInt(100)
	}
	if c.Invoice.Currency == "" {
		c.Invoice.Currency = "VND"
	}
	if c.Invoice.RenderTimeout == 0 {
		c.Invoice.RenderTimeout = 30 * time.Second
	}
	if c.Invoice.RenderMaxAttempts == 0 {
		c.Invoice.RenderMaxAttempts = 5
	}
	if c.Settlement.MaxAttempts == 0 {
		c.Settlement.MaxAttempts = 10
	}
	if c.Settlement.RetryBackoff == 0 {
		c.Settlement.RetryBackoff = time.Minute
	}
	if c.RateLimit.CallbackRPS == 0 {
		c.RateLimit.CallbackRPS = 20
	}
	if c.RateLimit.CallbackBurst == 0 {
		c.RateLimit.CallbackBurst = 40
	}
	if c.Workers.ReconcileInterval == 0 {
		c.Workers.ReconcileInterval = 5 * time.Minute
	}
	if c.Workers.RenderInterval == 0 {
		c.Workers.RenderInterval = time.Minute
	}
	if c.Workers.BatchSize == 0 {
		c.Workers.BatchSize = 50
	}
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
