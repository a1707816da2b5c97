// Package config defines the catalog service configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/abgdnv/gocommerce-catalog/pkg/config"
	"github.com/abgdnv/gocommerce-catalog/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// StoreConfig selects the RecordStore implementation.
type StoreConfig struct {
	Kind string `koanf:"kind"`
}

// SeedConfig controls loading of sample products into an empty catalog.
type SeedConfig struct {
	Enabled bool `koanf:"enabled"`
}

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	GRPC       config.GrpcServerConfig `koanf:"grpc"`
	Store      StoreConfig             `koanf:"store"`
	Database   config.DatabaseConfig   `koanf:"database"`
	Cache      config.CacheConfig      `koanf:"cache"`
	NATS       config.NATSConfig       `koanf:"nats"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	Resilience config.ResilienceConfig `koanf:"resilience"`
	IdP        config.IdP              `koanf:"idp"`
	Seed       SeedConfig              `koanf:"seed"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
}

func (c *Config) String() string {
	var b strings.Builder

	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.GRPC.String())

	b.WriteString("\n--- Store ---\n")
	b.WriteString(fmt.Sprintf("  kind: %s\n", c.Store.Kind))
	if c.Store.Kind == StorePostgres {
		b.WriteString(fmt.Sprintf("  database.url: %s\n", config.MaskURL(c.Database.URL)))
		b.WriteString(fmt.Sprintf("  database.connect.timeout: %s\n", c.Database.Timeout))
		b.WriteString(fmt.Sprintf("  database.migrate: %t\n", c.Database.Migrate))
	}

	b.WriteString(c.Cache.String())
	b.WriteString(c.NATS.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Resilience.String())
	b.WriteString(c.IdP.String())

	b.WriteString("\n--- Application Behavior ---\n")
	b.WriteString(fmt.Sprintf("  seed.enabled: %t\n", c.Seed.Enabled))
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())

	return b.String()
}

// Validate checks every section and fills in defaults.
func (c *Config) Validate() error {
	if c.Store.Kind == "" {
		c.Store.Kind = StoreMemory
	}
	switch c.Store.Kind {
	case StoreMemory:
	case StorePostgres:
		if err := c.Database.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported store kind %q, want %q or %q", c.Store.Kind, StoreMemory, StorePostgres)
	}

	validators := []configloader.Validator{
		&c.HTTPServer,
		&c.GRPC,
		&c.Cache,
		&c.NATS,
		&c.Telemetry,
		&c.Resilience,
		&c.IdP,
		&c.Log,
		&c.PProf,
		&c.Shutdown,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
