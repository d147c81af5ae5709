// internal/gateway/config/config_test.go
package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		ServiceName:    "purchase-gateway",
		ServiceVersion: "v1.0.0",
		Kafka: KafkaConfig{
			Brokers:      []string{"kafka:9092"},
			Topic:        "purchases.v1",
			RequiredAcks: "all",
		},
		APIServer: APIServerConfig{
			BaseURL: "http://purchase-api:8000",
			Timeout: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{OTLPEndpoint: "otel:4317"},
		Logging:   LoggingConfig{Level: "info"},
		HTTP: HTTPConfig{
			Port:            8080,
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
		{"noBrokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"noTopic", func(c *Config) { c.Kafka.Topic = "" }},
		{"badAcks", func(c *Config) { c.Kafka.RequiredAcks = "some" }},
		{"redisEnabledNoURL", func(c *Config) { c.Redis.Enabled = true }},
		{"badAPIServerURL", func(c *Config) { c.APIServer.BaseURL = "not a url" }},
		{"zeroAPITimeout", func(c *Config) { c.APIServer.Timeout = 0 }},
		{"badLogLevel", func(c *Config) { c.Logging.Level = "trace" }},
		{"badPort", func(c *Config) { c.HTTP.Port = 70000 }},
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

// Load без файла: дефолты + ENV.
func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("GATEWAY_KAFKA_BROKERS", "kafka:9092")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Kafka.Topic != "purchases.v1" {
		t.Errorf("default topic = %q; want purchases.v1", cfg.Kafka.Topic)
	}
	if cfg.Kafka.RequiredAcks != "all" {
		t.Errorf("default acks = %q; want all", cfg.Kafka.RequiredAcks)
	}
	if cfg.Redis.Enabled {
		t.Error("redis must be disabled by default")
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("default port = %d; want 8080", cfg.HTTP.Port)
	}
}

func TestLoad_MissingBrokers(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error without kafka.brokers, got nil")
	}
}
