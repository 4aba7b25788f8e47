package cachekey

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	t.Run("Touch creates and updates entries", func(t *testing.T) {
		mockClock := clock.NewMock()
		tracker := NewTrackerWithClock(10, mockClock)

		info := tracker.Touch("user:123", 64)
		require.NotNil(t, info)
		assert.Equal(t, CategoryUserData, info.Category)
		assert.Equal(t, "user:*", info.Pattern)
		assert.Equal(t, int64(64), info.SizeBytes)
		assert.Equal(t, int64(1), info.AccessCount)

		mockClock.Add(time.Second)
		info = tracker.Touch("user:123", 128)
		assert.Equal(t, int64(2), info.AccessCount)
		assert.Equal(t, int64(128), info.SizeBytes)
		assert.Equal(t, mockClock.Now(), info.LastAccessed)

		// Zero size keeps the previous estimate.
		info = tracker.Touch("user:123", 0)
		assert.Equal(t, int64(128), info.SizeBytes)
		assert.Equal(t, 1, tracker.Len())
	})

	t.Run("Capacity bound evicts least recently touched", func(t *testing.T) {
		mockClock := clock.NewMock()
		tracker := NewTrackerWithClock(3, mockClock)

		for i := 0; i < 3; i++ {
			tracker.Touch(fmt.Sprintf("user:%d", i), 8)
			mockClock.Add(time.Millisecond)
		}
		// Refresh user:0 so user:1 becomes the oldest.
		tracker.Touch("user:0", 8)
		tracker.Touch("user:99", 8)

		assert.Equal(t, 3, tracker.Len())
		_, ok := tracker.Lookup("user:1")
		assert.False(t, ok)
		_, ok = tracker.Lookup("user:0")
		assert.True(t, ok)
	})

	t.Run("Lookup does not count as access", func(t *testing.T) {
		tracker := NewTracker(10)
		tracker.Touch("lead:1", 8)

		for i := 0; i < 5; i++ {
			info, ok := tracker.Lookup("lead:1")
			require.True(t, ok)
			assert.Equal(t, int64(1), info.AccessCount)
		}
	})

	t.Run("TopByFrequency ranks by access count", func(t *testing.T) {
		mockClock := clock.NewMock()
		tracker := NewTrackerWithClock(10, mockClock)

		counts := map[string]int{"user:1": 1, "user:2": 5, "user:3": 3}
		for key, n := range counts {
			for i := 0; i < n; i++ {
				tracker.Touch(key, 8)
				mockClock.Add(time.Millisecond)
			}
		}

		top := tracker.TopByFrequency(2)
		require.Len(t, top, 2)
		assert.Equal(t, "user:2", top[0].Key)
		assert.Equal(t, "user:3", top[1].Key)

		all := tracker.TopByFrequency(100)
		assert.Len(t, all, 3)
	})

	t.Run("Remove drops tracking", func(t *testing.T) {
		tracker := NewTracker(10)
		tracker.Touch("user:1", 8)

		assert.True(t, tracker.Remove("user:1"))
		assert.False(t, tracker.Remove("user:1"))
		assert.Equal(t, 0, tracker.Len())
	})

	t.Run("Keys filters with matcher", func(t *testing.T) {
		tracker := NewTracker(10)
		tracker.Touch("user:1", 8)
		tracker.Touch("user:2", 8)
		tracker.Touch("campaign:1", 8)

		keys := tracker.Keys(func(key string) bool {
			return strings.HasPrefix(key, "user:")
		})
		assert.ElementsMatch(t, []string{"user:1", "user:2"}, keys)
	})

	t.Run("Dependencies deduplicated", func(t *testing.T) {
		tracker := NewTracker(10)
		tracker.Touch("computed:funnel", 8)

		tracker.AddDependency("computed:funnel", "lead:1")
		tracker.AddDependency("computed:funnel", "lead:1")
		tracker.AddDependency("computed:funnel", "lead:2")

		info, ok := tracker.Lookup("computed:funnel")
		require.True(t, ok)
		assert.Equal(t, []string{"lead:1", "lead:2"}, info.Dependencies)
	})

	t.Run("Snapshots are isolated from internal state", func(t *testing.T) {
		tracker := NewTracker(10)
		info := tracker.Touch("user:1", 8)
		info.AccessCount = 999

		fresh, ok := tracker.Lookup("user:1")
		require.True(t, ok)
		assert.Equal(t, int64(1), fresh.AccessCount)
	})
}
