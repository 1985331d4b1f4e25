// Package config extends the core settings with the couponbot sections.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/couponbot/core/config"
	coredatabase "github.com/m3rciful/couponbot/core/database"
)

// CouponConfig describes the coupon template and the text layout on it.
type CouponConfig struct {
	TemplatePath         string  `yaml:"template_path" envconfig:"COUPON_TEMPLATE"`
	FontPath             string  `yaml:"font_path" envconfig:"COUPON_FONT"`
	OutputDir            string  `yaml:"output_dir" envconfig:"COUPON_OUTPUT_DIR"`
	FontSize             float64 `yaml:"font_size"`
	X                    int     `yaml:"x"`
	Y                    int     `yaml:"y"`
	LineHeight           int     `yaml:"line_height"`
	RenderTimeoutSeconds int     `yaml:"render_timeout_seconds" envconfig:"COUPON_RENDER_TIMEOUT_SECONDS"`
}

// RenderTimeout returns the render deadline.
func (c CouponConfig) RenderTimeout() time.Duration {
	return time.Duration(c.RenderTimeoutSeconds) * time.Second
}

// OpsConfig controls the health and metrics listener. Empty Listen disables it.
type OpsConfig struct {
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Coupon   CouponConfig        `yaml:"coupon"`
	Ops      OpsConfig           `yaml:"ops"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path with environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *Config) error {
	db := &cfg.Database
	db.Driver = strings.ToLower(strings.TrimSpace(db.Driver))
	switch db.Driver {
	case "", coredatabase.DriverSQLite:
		db.Driver = coredatabase.DriverSQLite
		if db.Path == "" {
			db.Path = "data/couponbot.db"
		}
	case coredatabase.DriverPostgres:
		if db.Host == "" || db.Name == "" {
			return fmt.Errorf("database.host and database.name are required for postgres")
		}
		if db.Port == "" {
			db.Port = "5432"
		}
		if db.SSLMode == "" {
			db.SSLMode = "disable"
		}
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: sqlite, postgres", db.Driver)
	}

	c := &cfg.Coupon
	if strings.TrimSpace(c.TemplatePath) == "" {
		return fmt.Errorf("coupon.template_path is required")
	}
	if c.RenderTimeoutSeconds < 0 {
		return fmt.Errorf("coupon.render_timeout_seconds must be >= 0")
	}
	if c.RenderTimeoutSeconds == 0 {
		c.RenderTimeoutSeconds = 15
	}
	if c.FontSize < 0 || c.LineHeight < 0 {
		return fmt.Errorf("coupon.font_size and coupon.line_height must be >= 0")
	}
	return nil
}
