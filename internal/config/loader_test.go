package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/helix/internal/config"
)

func setenv(k, v string) { _ = os.Setenv(k, v) }

// clearConfigEnvVars removes every HELIX_ variable so leaves start clean.
func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, config.EnvPrefix) {
			_ = os.Unsetenv(k)
		}
	}
}

func TestConfigLoader(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a config loader", t, func() {
		clearConfigEnvVars()
		convey.Reset(clearConfigEnvVars)

		convey.Convey("When loading with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.AutoRunOnValidate, convey.ShouldBeTrue)
		})

		convey.Convey("When environment variables are set", func() {
			setenv("HELIX_ADDR", ":8080")
			setenv("HELIX_STORE_DRIVER", "sqlite")
			setenv("HELIX_SQLITE_PATH", "/tmp/helix-test.db")
			setenv("HELIX_MONTHLY_POINTS_CAP", "300")
			setenv("HELIX_SWEEP_INTERVAL_S", "60")
			setenv("HELIX_AUTO_RUN_ON_VALIDATE", "false")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverSQLite)
			convey.So(cfg.SQLitePath, convey.ShouldEqual, "/tmp/helix-test.db")
			convey.So(cfg.MonthlyPointsCap, convey.ShouldEqual, 300)
			convey.So(cfg.SweepIntervalS, convey.ShouldEqual, 60)
			convey.So(cfg.AutoRunOnValidate, convey.ShouldBeFalse)
		})

		convey.Convey("When a YAML file is given", func() {
			path := filepath.Join(t.TempDir(), "helix.yaml")
			err := os.WriteFile(path, []byte(`
addr: ":7070"
log_format: json
monthly_confidence_cap: 20
skill_rarity:
  Rust: 1.5
  COBOL: 2
`), 0o600)
			convey.So(err, convey.ShouldBeNil)
			setenv("HELIX_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			convey.So(cfg.MonthlyConfidenceCap, convey.ShouldEqual, 20)
			convey.So(cfg.SkillRarity["Rust"], convey.ShouldEqual, 1.5)
			convey.So(cfg.SkillRarity["COBOL"], convey.ShouldEqual, 2)

			convey.Convey("And env still wins over the file", func() {
				setenv("HELIX_ADDR", ":6060")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.LoadFile(ctx, filepath.Join(t.TempDir(), "missing.yaml"))
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the result is invalid", func() {
			setenv("HELIX_STORE_DRIVER", "postgres")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
