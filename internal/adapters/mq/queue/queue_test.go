package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with capacity 2", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))

		Convey("It starts empty", func() {
			So(q.Len(), ShouldEqual, 0)
			So(q.IsClosed(), ShouldBeFalse)
		})

		Convey("Enqueued triggers come out in order", func() {
			So(q.Enqueue(ctx, Trigger{EmployeeID: "e1"}), ShouldBeNil)
			So(q.Enqueue(ctx, Trigger{EmployeeID: "e2"}), ShouldBeNil)
			So(q.Len(), ShouldEqual, 2)

			So((<-q.Dequeue()).EmployeeID, ShouldEqual, "e1")
			So((<-q.Dequeue()).EmployeeID, ShouldEqual, "e2")
			So(q.Len(), ShouldEqual, 0)
		})

		Convey("A full queue rejects without blocking", func() {
			So(q.Enqueue(ctx, Trigger{EmployeeID: "e1"}), ShouldBeNil)
			So(q.Enqueue(ctx, Trigger{EmployeeID: "e2"}), ShouldBeNil)
			So(q.Enqueue(ctx, Trigger{EmployeeID: "e3"}), ShouldEqual, ErrFull)
		})

		Convey("A cancelled context is rejected", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			err := q.Enqueue(cctx, Trigger{EmployeeID: "e1"})
			So(err, ShouldNotBeNil)
			So(q.Len(), ShouldEqual, 0)
		})

		Convey("After Close", func() {
			So(q.Enqueue(ctx, Trigger{EmployeeID: "e1"}), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Enqueue fails", func() {
				So(q.Enqueue(ctx, Trigger{EmployeeID: "e2"}), ShouldEqual, ErrClosed)
			})

			Convey("Buffered triggers drain and the channel closes", func() {
				tr, ok := <-q.Dequeue()
				So(ok, ShouldBeTrue)
				So(tr.EmployeeID, ShouldEqual, "e1")
				_, ok = <-q.Dequeue()
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given concurrent producers", t, func() {
		q := NewInMemoryQueue(WithCapacity(1000))
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					_ = q.Enqueue(ctx, Trigger{EmployeeID: fmt.Sprintf("e%d-%d", id, j)})
				}
			}(i)
		}
		wg.Wait()
		So(q.Len(), ShouldEqual, 500)
	})
}
