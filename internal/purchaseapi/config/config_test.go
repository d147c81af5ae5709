// internal/purchaseapi/config/config_test.go
package config

import (
	"testing"
	"time"

	mongostore "github.com/YaganovValera/purchase-pipeline/internal/purchaseapi/storage/mongo"
)

func validConfig() *Config {
	return &Config{
		ServiceName:    "purchase-api",
		ServiceVersion: "v1.0.0",
		Kafka: KafkaConfig{
			Brokers:       []string{"kafka:9092"},
			Topic:         "purchases.v1",
			GroupID:       "purchase-consumer",
			InitialOffset: "earliest",
		},
		Mongo: mongostore.Config{
			URI:        "mongodb://mongo:27017",
			Database:   "purchases_db",
			Collection: "purchases",
		},
		Telemetry: TelemetryConfig{OTLPEndpoint: "otel:4317"},
		Logging:   LoggingConfig{Level: "info"},
		HTTP: HTTPConfig{
			Port:            8000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     time.Minute,
			ShutdownTimeout: 5 * time.Second,
			MetricsPath:     "/metrics",
			HealthzPath:     "/healthz",
			ReadyzPath:      "/readyz",
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"noServiceName", func(c *Config) { c.ServiceName = "" }},
		{"noBrokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"noTopic", func(c *Config) { c.Kafka.Topic = "" }},
		{"noGroup", func(c *Config) { c.Kafka.GroupID = "" }},
		{"badInitialOffset", func(c *Config) { c.Kafka.InitialOffset = "newest" }},
		{"noMongoURI", func(c *Config) { c.Mongo.URI = "" }},
		{"badLogLevel", func(c *Config) { c.Logging.Level = "verbose" }},
		{"badPort", func(c *Config) { c.HTTP.Port = 0 }},
		{"badMetricsPath", func(c *Config) { c.HTTP.MetricsPath = "metrics" }},
		{"zeroReadTimeout", func(c *Config) { c.HTTP.ReadTimeout = 0 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := validConfig()
			c.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

// Load без файла: дефолты + ENV. Обязательные поля приходят из ENV.
func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("PURCHASEAPI_KAFKA_BROKERS", "kafka:9092")
	t.Setenv("PURCHASEAPI_MONGO_URI", "mongodb://mongo:27017")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Kafka.Topic != "purchases.v1" {
		t.Errorf("default topic = %q; want purchases.v1", cfg.Kafka.Topic)
	}
	if cfg.Kafka.GroupID != "purchase-consumer" {
		t.Errorf("default group = %q; want purchase-consumer", cfg.Kafka.GroupID)
	}
	if cfg.Kafka.InitialOffset != "earliest" {
		t.Errorf("default initial_offset = %q; want earliest", cfg.Kafka.InitialOffset)
	}
	if cfg.Mongo.Database != "purchases_db" || cfg.Mongo.Collection != "purchases" {
		t.Errorf("mongo defaults = %q/%q", cfg.Mongo.Database, cfg.Mongo.Collection)
	}
	if cfg.HTTP.Port != 8000 {
		t.Errorf("default port = %d; want 8000", cfg.HTTP.Port)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error without kafka.brokers and mongo.uri, got nil")
	}
}
