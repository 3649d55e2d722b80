package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/helix/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a pending set", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("A new key is recorded", func() {
			So(d.SeenAndRecord(ctx, "e1"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 1)

			Convey("And a repeat is reported as pending", func() {
				So(d.SeenAndRecord(ctx, "e1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And Unrecord makes it acceptable again", func() {
				d.Unrecord(ctx, "e1")
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "e1"), ShouldBeFalse)
			})
		})

		Convey("Unrecord of an unknown key is a no-op", func() {
			d.Unrecord(ctx, "missing")
			So(d.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a bounded pending set", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
		d.SeenAndRecord(ctx, "e1")
		d.SeenAndRecord(ctx, "e2")

		Convey("The oldest key is dropped when full", func() {
			So(d.SeenAndRecord(ctx, "e3"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 2)
			So(d.SeenAndRecord(ctx, "e1"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "e3"), ShouldBeTrue)
		})
	})

	Convey("Given an unbounded pending set", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 500; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("e%d", i))
		}
		So(d.Size(), ShouldEqual, 500)
	})

	Convey("Given concurrent triggers for one key", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "e1") {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		So(fresh, ShouldEqual, 1)
	})
}
