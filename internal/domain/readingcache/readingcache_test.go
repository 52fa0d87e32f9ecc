package readingcache_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/meradin/internal/domain/readingcache"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCache(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new cache", t, func() {
		Convey("When created with default options", func() {
			c := readingcache.New[string]()

			Convey("Then it is enabled and empty", func() {
				So(c.Enabled(), ShouldBeTrue)
				So(c.Size(), ShouldEqual, 0)
				_, ok := c.Get(ctx, "missing")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When storing and reading a value", func() {
			c := readingcache.New[int]()
			c.Put(ctx, "a", 7)

			v, ok := c.Get(ctx, "a")
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, 7)
			So(c.Size(), ShouldEqual, 1)

			Convey("And the same key is stored again", func() {
				c.Put(ctx, "a", 9)
				v, _ := c.Get(ctx, "a")

				Convey("Then the value is replaced without growing", func() {
					So(v, ShouldEqual, 9)
					So(c.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When the cache is at capacity", func() {
			c := readingcache.New[string](readingcache.WithMaxSize(3))
			for _, k := range []string{"k1", "k2", "k3"} {
				c.Put(ctx, k, k)
			}
			c.Put(ctx, "k4", "k4")

			Convey("Then the oldest entry is evicted", func() {
				So(c.Size(), ShouldEqual, 3)
				_, ok := c.Get(ctx, "k1")
				So(ok, ShouldBeFalse)
				for _, k := range []string{"k2", "k3", "k4"} {
					_, ok := c.Get(ctx, k)
					So(ok, ShouldBeTrue)
				}
			})

			Convey("And more entries arrive", func() {
				c.Put(ctx, "k5", "k5")
				c.Put(ctx, "k6", "k6")

				Convey("Then eviction keeps following insertion order", func() {
					_, ok := c.Get(ctx, "k3")
					So(ok, ShouldBeFalse)
					_, ok = c.Get(ctx, "k4")
					So(ok, ShouldBeTrue)
					So(c.Size(), ShouldEqual, 3)
				})
			})
		})

		Convey("When the max size is one", func() {
			c := readingcache.New[string](readingcache.WithMaxSize(1))
			c.Put(ctx, "a", "1")
			c.Put(ctx, "b", "2")

			_, okA := c.Get(ctx, "a")
			v, okB := c.Get(ctx, "b")
			So(okA, ShouldBeFalse)
			So(okB, ShouldBeTrue)
			So(v, ShouldEqual, "2")
			So(c.Size(), ShouldEqual, 1)
		})

		Convey("When the cache is disabled", func() {
			c := readingcache.New[string](readingcache.WithMaxSize(0))
			c.Put(ctx, "a", "1")

			Convey("Then nothing is stored", func() {
				So(c.Enabled(), ShouldBeFalse)
				So(c.Size(), ShouldEqual, 0)
				_, ok := c.Get(ctx, "a")
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestCacheConcurrency(t *testing.T) {
	Convey("Given a cache shared by goroutines", t, func() {
		c := readingcache.New[int](readingcache.WithMaxSize(100))
		const workers = 10
		const perWorker = 50

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					key := fmt.Sprintf("%d-%d", id, j)
					c.Put(context.Background(), key, j)
					c.Get(context.Background(), key)
				}
			}(i)
		}
		wg.Wait()

		Convey("Then the bound holds", func() {
			So(c.Size(), ShouldEqual, 100)
		})
	})
}

func TestKey(t *testing.T) {
	Convey("Given request keys", t, func() {
		req := map[string]string{"name": "Asha", "dob": "1990-05-17"}

		Convey("Then identical input yields identical keys", func() {
			So(readingcache.Key("today", "2025-03-14", req), ShouldEqual, readingcache.Key("today", "2025-03-14", req))
			So(readingcache.Key("today", "2025-03-14", req), ShouldHaveLength, 64)
		})

		Convey("Then the day and form change the key", func() {
			k := readingcache.Key("today", "2025-03-14", req)
			So(readingcache.Key("today", "2025-03-15", req), ShouldNotEqual, k)
			So(readingcache.Key("moon-sign", "2025-03-14", req), ShouldNotEqual, k)
		})

		Convey("Then unencodable requests yield no key", func() {
			So(readingcache.Key("today", "2025-03-14", make(chan int)), ShouldEqual, "")
		})
	})
}
