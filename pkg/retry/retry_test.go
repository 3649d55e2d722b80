package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func fastConfig() Config {
	return Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestDo(t *testing.T) {
	Convey("Given a flaky operation", t, func() {
		ctx := context.Background()

		Convey("Transient failures are retried until success", func() {
			calls := 0
			v, err := Do(ctx, fastConfig(), func(context.Context) (int, error) {
				calls++
				if calls < 3 {
					return 0, errors.New("dial tcp: connection refused")
				}
				return 42, nil
			})
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 42)
			So(calls, ShouldEqual, 3)
		})

		Convey("Permanent failures stop immediately", func() {
			calls := 0
			_, err := Do(ctx, fastConfig(), func(context.Context) (int, error) {
				calls++
				return 0, errors.New("password authentication failed")
			})
			So(err, ShouldNotBeNil)
			So(calls, ShouldEqual, 1)
		})

		Convey("Retries run out", func() {
			calls := 0
			_, err := Do(ctx, fastConfig(), func(context.Context) (struct{}, error) {
				calls++
				return struct{}{}, errors.New("i/o timeout")
			})
			So(err, ShouldNotBeNil)
			So(calls, ShouldEqual, 4)
		})

		Convey("A cancelled context ends the wait", func() {
			cctx, cancel := context.WithCancel(ctx)
			cfg := fastConfig()
			cfg.InitialDelay = time.Hour
			_, err := Do(cctx, cfg, func(context.Context) (int, error) {
				cancel()
				return 0, errors.New("connection reset by peer")
			})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})

		Convey("A custom classifier is honored", func() {
			cfg := fastConfig()
			cfg.Retryable = func(error) bool { return true }
			calls := 0
			_, _ = Do(ctx, cfg, func(context.Context) (int, error) {
				calls++
				return 0, errors.New("anything")
			})
			So(calls, ShouldEqual, 4)
		})
	})

	Convey("IsTransient classifies errors", t, func() {
		So(IsTransient(nil), ShouldBeFalse)
		So(IsTransient(context.Canceled), ShouldBeFalse)
		So(IsTransient(errors.New("FATAL: the database system is starting up")), ShouldBeTrue)
		So(IsTransient(errors.New("syntax error at or near")), ShouldBeFalse)
	})
}
