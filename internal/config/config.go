// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// CompletionPolicy определяет, из каких статусов заявку можно завершить.
type CompletionPolicy string

const (
	// CompletionStrict разрешает завершение только из in_progress.
	CompletionStrict CompletionPolicy = "strict"
	// CompletionRelaxed дополнительно разрешает завершение из approved.
	CompletionRelaxed CompletionPolicy = "relaxed"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	GRPCServer              `yaml:"grpc_server"`
	JWTToken                `yaml:"jwttoken"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
	S3                      `yaml:"s3"`
	Lifecycle               `yaml:"lifecycle"`
	Scheduler               `yaml:"scheduler"`
	Bootstrap               `yaml:"bootstrap"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"20"`
	RateBurst   int           `yaml:"rate_burst" env-default:"40"`
}

// GRPCServer адрес сервера проверки здоровья
type GRPCServer struct {
	AddressGRPC string `yaml:"addressgrpc" env-default:":50051"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	RedisAddress      string        `yaml:"addressredis"`
	RedisPassword     string        `yaml:"password"`
	RedisUser         string        `yaml:"user"`
	RedisDB           int           `yaml:"db"`
	RedisMaxRetries   int           `yaml:"max_retries"`
	RedisDialTimeout  time.Duration `yaml:"dial_timeout"`
	RedisTimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// RabbitMQ настройки брокера для почтовой очереди
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MailQueue          string        `yaml:"mail_queue" env-default:"mail"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"10"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// SMTP настройки почтового транспорта
type SMTP struct {
	SMTPHost     string `yaml:"host"`
	SMTPPort     int    `yaml:"port" env-default:"587"`
	SMTPUser     string `yaml:"user"`
	SMTPPassword string `yaml:"password" env:"SMTP_PASSWORD"`
	SMTPFrom     string `yaml:"from"`
}

// S3 настройки хранилища загруженных документов
type S3 struct {
	S3Endpoint  string `yaml:"endpoint"`
	S3Region    string `yaml:"region" env-default:"us-east-1"`
	S3Bucket    string `yaml:"bucket"`
	S3AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	S3SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	MaxUpload   int64  `yaml:"max_upload" env-default:"10485760"`
}

// Lifecycle параметры жизненного цикла заявок и тарифов
type Lifecycle struct {
	TrialLimit       int              `yaml:"trial_limit" env-default:"10"`
	CompletionPolicy CompletionPolicy `yaml:"completion_policy" env-default:"strict"`
	RefundWindow     time.Duration    `yaml:"refund_window" env-default:"720h"`
	ProPlanPeriod    time.Duration    `yaml:"pro_plan_period" env-default:"720h"`
	ProPlanPrice     int64            `yaml:"pro_plan_price" env-default:"49900"`
	OTPTTL           time.Duration    `yaml:"otp_ttl" env-default:"10m"`
	SearchCacheTTL   time.Duration    `yaml:"search_cache_ttl" env-default:"5m"`
}

// Scheduler настройки периодических задач
type Scheduler struct {
	SchedulerInterval time.Duration `yaml:"interval" env-default:"24h"`
	MetricsAddress    string        `yaml:"metrics_address" env-default:":9091"`
}

// Bootstrap учётная запись суперадминистратора, создаваемая при старте; пустой email отключает создание
type Bootstrap struct {
	SuperadminName     string `yaml:"superadmin_name" env-default:"Super Admin"`
	SuperadminEmail    string `yaml:"superadmin_email" env:"SUPERADMIN_EMAIL"`
	SuperadminPassword string `yaml:"superadmin_password" env:"SUPERADMIN_PASSWORD"`
	// SupportEmail получает письма о новых обращениях; пустое значение заменяется SuperadminEmail
	SupportEmail string `yaml:"support_email" env:"SUPPORT_EMAIL"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла и проверяет значения, которые нельзя исправить по умолчанию
func Load(path string) (*Config, error) {
	const op = "config.Load"
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	switch cfg.CompletionPolicy {
	case CompletionStrict, CompletionRelaxed:
	default:
		return nil, fmt.Errorf("%s: unknown completion_policy %q", op, cfg.CompletionPolicy)
	}
	if cfg.TrialLimit <= 0 {
		return nil, fmt.Errorf("%s: trial_limit must be positive", op)
	}
	return &cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"GRPCServer:\n"+
			"  Address: %s\n"+
			"Redis:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"Lifecycle:\n"+
			"  TrialLimit: %d\n"+
			"  CompletionPolicy: %s\n"+
			"  RefundWindow: %s\n"+
			"Scheduler:\n"+
			"  Interval: %s\n",
		c.Env,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.AddressGRPC,
		c.RedisAddress,
		c.RedisDB,
		c.TrialLimit,
		c.CompletionPolicy,
		c.RefundWindow,
		c.SchedulerInterval,
	)
}
