package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

func TestCache_Properties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	properties.Property("size never exceeds capacity", prop.ForAll(
		func(capacity int, keys []int) bool {
			c := New[int](Config{
				MaxEntries:    capacity,
				DefaultTTL:    time.Minute,
				SweepInterval: time.Hour,
			}, zap.NewNop())
			defer c.Close()

			for i, k := range keys {
				c.Set(fmt.Sprintf("key-%d", k), i)
				if c.Len() > capacity {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 16),
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.Property("a fresh entry is always readable", prop.ForAll(
		func(key string, value int) bool {
			c := New[int](Config{
				MaxEntries:    8,
				DefaultTTL:    time.Minute,
				SweepInterval: time.Hour,
			}, zap.NewNop())
			defer c.Close()

			c.Set(key, value)
			got, ok := c.Get(key)
			return ok && got == value
		},
		gen.AlphaString(),
		gen.Int(),
	))

	properties.Property("the most recently written key survives eviction", prop.ForAll(
		func(keys []int) bool {
			c := New[string](Config{
				MaxEntries:    4,
				DefaultTTL:    time.Minute,
				SweepInterval: time.Hour,
			}, zap.NewNop())
			defer c.Close()

			last := ""
			for _, k := range keys {
				last = fmt.Sprintf("key-%d", k)
				c.Set(last, last)
			}
			if last == "" {
				return true
			}
			got, ok := c.Get(last)
			return ok && got == last
		},
		gen.SliceOf(gen.IntRange(0, 50)),
	))

	properties.TestingRun(t)
}
