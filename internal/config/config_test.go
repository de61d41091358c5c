package config

import (
	"testing"
	"time"

	"github.com/abgdnv/coinmarket/pkg/config"
	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	cfg := &Config{
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Shutdown: config.ShutdownConfig{Timeout: 5 * time.Second},
	}
	cfg.HTTPServer.Port = 8080
	cfg.HTTPServer.Timeout.Read = time.Second
	cfg.HTTPServer.Timeout.Write = time.Second
	cfg.HTTPServer.Timeout.Idle = time.Second
	cfg.HTTPServer.Timeout.ReadHeader = time.Second
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "memory store without broker",
			mutate: func(c *Config) {},
		},
		{
			name:    "nats broker needs nats settings",
			mutate:  func(c *Config) { c.Events.Broker = config.BrokerNATS },
			wantErr: "NATS URL is not configured",
		},
		{
			name: "nats broker needs circuit breaker settings",
			mutate: func(c *Config) {
				c.Events.Broker = config.BrokerNATS
				c.Nats = config.NATSConfig{Url: "nats://localhost:4222", Timeout: time.Second, Stream: "ORDERS"}
			},
			wantErr: "circuit_breaker.consecutive_failures",
		},
		{
			name:    "unknown broker",
			mutate:  func(c *Config) { c.Events.Broker = "carrier-pigeon" },
			wantErr: "unsupported events broker",
		},
		{
			name:    "pprof enabled without address",
			mutate:  func(c *Config) { c.PProf.Enabled = true },
			wantErr: "pprof is enabled but address is not configured",
		},
		{
			name:   "pprof enabled with address",
			mutate: func(c *Config) { c.PProf = config.PProfConfig{Enabled: true, Addr: "localhost:6060"} },
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Database.Driver = config.DriverPostgres },
			wantErr: "database URL is not configured",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()

			if tc.wantErr == "" {
				assert.NoError(t, err)
				assert.Equal(t, config.BrokerNone, cfg.Events.Broker)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestConfig_StringMasksCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Database = config.DatabaseConfig{Driver: config.DriverPostgres, URL: "postgres://user:secret@db:5432/market"}

	assert.NotContains(t, cfg.String(), "secret")
}

func TestNotifierConfig_Validate(t *testing.T) {
	cfg := &NotifierConfig{
		Nats: config.NATSConfig{Url: "nats://localhost:4222", Timeout: time.Second, Stream: "ORDERS"},
		Subscriber: config.SubscriberConfig{
			Subject: "orders.>", Consumer: "notifier", Timeout: time.Second, Interval: time.Second, Workers: 1,
		},
		Shutdown: config.ShutdownConfig{Timeout: time.Second},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Subscriber.Workers = 0
	assert.ErrorContains(t, cfg.Validate(), "workers")
}
