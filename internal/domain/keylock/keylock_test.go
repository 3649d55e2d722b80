package keylock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLocker(t *testing.T) {
	Convey("Given a Locker", t, func() {
		l := New()
		ctx := context.Background()

		Convey("Holders of one key never overlap", func() {
			var (
				wg      sync.WaitGroup
				inside  atomic.Int32
				overlap atomic.Bool
			)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock, err := l.Lock(ctx, "e1")
					if err != nil {
						return
					}
					if inside.Add(1) > 1 {
						overlap.Store(true)
					}
					time.Sleep(time.Millisecond)
					inside.Add(-1)
					unlock()
				}()
			}
			wg.Wait()
			So(overlap.Load(), ShouldBeFalse)
			So(l.Len(), ShouldEqual, 0)
		})

		Convey("Different keys do not block each other", func() {
			u1, err := l.Lock(ctx, "e1")
			So(err, ShouldBeNil)
			u2, err := l.Lock(ctx, "e2")
			So(err, ShouldBeNil)
			So(l.Len(), ShouldEqual, 2)
			u1()
			u2()
			So(l.Len(), ShouldEqual, 0)
		})

		Convey("Waiting respects the context", func() {
			unlock, err := l.Lock(ctx, "e1")
			So(err, ShouldBeNil)
			tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancel()
			_, err = l.Lock(tctx, "e1")
			So(err, ShouldEqual, context.DeadlineExceeded)
			unlock()
			So(l.Len(), ShouldEqual, 0)
		})

		Convey("Unlocking twice is harmless", func() {
			unlock, err := l.Lock(ctx, "e1")
			So(err, ShouldBeNil)
			unlock()
			unlock()
			So(l.Len(), ShouldEqual, 0)
		})
	})
}
