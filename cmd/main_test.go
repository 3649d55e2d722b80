package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/helix/internal/config"
	"github.com/okian/helix/pkg/logger"
)

func TestWiring(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		log := logger.Nop()

		convey.Convey("The memory store opens and serves requests", func() {
			store, err := openStore(ctx, cfg, log)
			convey.So(err, convey.ShouldBeNil)
			defer store.Close()

			svc := newService(cfg, store, log)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			h := newHandler(ctx, svc, log)
			for _, path := range []string{"/healthz", "/stats", "/api-docs", "/openapi.yaml", "/metrics"} {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/contributions", strings.NewReader(
				`{"employee_id":"E","project_id":"p","skill_used":"Go"}`)))
			convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
		})

		convey.Convey("The sqlite store opens at the configured path", func() {
			cfg.StoreDriver = config.DriverSQLite
			cfg.SQLitePath = filepath.Join(t.TempDir(), "helix.db")
			store, err := openStore(ctx, cfg, log)
			convey.So(err, convey.ShouldBeNil)
			convey.So(store.Ping(ctx), convey.ShouldBeNil)
			convey.So(store.Close(), convey.ShouldBeNil)
		})

		convey.Convey("Configured caps reach the scorer", func() {
			cfg.MonthlyPointsCap = 300
			cfg.SkillRarity = map[string]float64{"Rust": 1.5}
			svc := newService(cfg, nil, log)
			convey.So(svc.Scorer().Tables().MonthlyPointsCap, convey.ShouldEqual, 300)
			convey.So(svc.Scorer().Rarity("Rust"), convey.ShouldEqual, 1.5)
		})

		convey.Convey("An unknown driver fails", func() {
			cfg.StoreDriver = "mongo"
			_, err := openStore(ctx, cfg, log)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
