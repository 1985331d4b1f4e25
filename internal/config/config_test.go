package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/couponbot/core/config"
	coredatabase "github.com/m3rciful/couponbot/core/database"
)

const sample = `
telegram:
  token: "123:abc"
  admin_id: 42
  run_mode: polling
logging:
  level: debug
rate_limit:
  interval_ms: 300
  exclude_updates: [Callback]
database:
  driver: sqlite
  path: /tmp/couponbot-test.db
coupon:
  template_path: static/kupon.png
  font_path: static/fonts/IntroDemoCond-LightCAPS.otf
  font_size: 62
  x: 50
  y: 360
  line_height: 65
ops:
  listen: 127.0.0.1:9090
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.AdminID != 42 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Telegram.RunMode != coreconfig.RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if len(cfg.RateLimit.ExcludeUpdates) != 1 || cfg.RateLimit.ExcludeUpdates[0] != coreconfig.UpdateCallback {
		t.Fatalf("exclude = %v", cfg.RateLimit.ExcludeUpdates)
	}
	if cfg.Database.Driver != coredatabase.DriverSQLite || cfg.Database.Path != "/tmp/couponbot-test.db" {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Coupon.RenderTimeout() != 15*time.Second || cfg.Coupon.Y != 360 {
		t.Fatalf("coupon = %+v", cfg.Coupon)
	}
	if cfg.Ops.Listen != "127.0.0.1:9090" {
		t.Fatalf("ops = %+v", cfg.Ops)
	}
	if cfg.CoreConfig() != &cfg.Config {
		t.Fatal("CoreConfig must point at the embedded config")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BOT_TOKEN", "999:env")
	t.Setenv("ADMIN_ID", "7")
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("COUPON_RENDER_TIMEOUT_SECONDS", "3")
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "999:env" || cfg.Telegram.AdminID != 7 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Fatalf("db path = %q", cfg.Database.Path)
	}
	if cfg.Coupon.RenderTimeout() != 3*time.Second {
		t.Fatalf("render timeout = %v", cfg.Coupon.RenderTimeout())
	}
}

func TestLoadDefaultsAndErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	minimal := "telegram:\n  token: x\ncoupon:\n  template_path: kupon.png\n"
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load minimal: %v", err)
	}
	if cfg.Database.Driver != coredatabase.DriverSQLite || cfg.Database.Path == "" {
		t.Fatalf("sqlite default not applied: %+v", cfg.Database)
	}

	bad := map[string]string{
		"no token":     "coupon:\n  template_path: kupon.png\n",
		"no template":  "telegram:\n  token: x\n",
		"bad driver":   minimal + "database:\n  driver: mysql\n",
		"pg no host":   minimal + "database:\n  driver: postgres\n",
		"bad run mode": "telegram:\n  token: x\n  run_mode: push\ncoupon:\n  template_path: k.png\n",
		"webhook url":  "telegram:\n  token: x\n  run_mode: webhook\ncoupon:\n  template_path: k.png\n",
	}
	for name, body := range bad {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("missing file err = %v", err)
	}
}
