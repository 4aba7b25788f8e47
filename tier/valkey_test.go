package tier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	valkeymock "github.com/valkey-io/valkey-go/mock"
	"go.uber.org/mock/gomock"
)

func TestValkeyDriver(t *testing.T) {
	t.Run("Get", func(t *testing.T) {
		t.Run("returns stored bytes", func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := valkeymock.NewClient(ctrl)
			driver := NewValkeyDriver(mockClient)
			ctx := context.Background()

			mockClient.EXPECT().
				Do(ctx, valkeymock.Match("GET", "user:1")).
				Return(valkeymock.Result(valkeymock.ValkeyString(`{"name":"A"}`)))

			value, found, err := driver.Get(ctx, "user:1")
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, []byte(`{"name":"A"}`), value)
		})

		t.Run("treats nil reply as miss", func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := valkeymock.NewClient(ctrl)
			driver := NewValkeyDriver(mockClient)
			ctx := context.Background()

			mockClient.EXPECT().
				Do(ctx, valkeymock.Match("GET", "user:404")).
				Return(valkeymock.Result(valkeymock.ValkeyNil()))

			value, found, err := driver.Get(ctx, "user:404")
			assert.NoError(t, err)
			assert.False(t, found)
			assert.Nil(t, value)
		})

		t.Run("propagates store errors", func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := valkeymock.NewClient(ctrl)
			driver := NewValkeyDriver(mockClient)
			ctx := context.Background()

			mockClient.EXPECT().
				Do(ctx, valkeymock.Match("GET", "user:1")).
				Return(valkeymock.ErrorResult(errors.New("connection refused")))

			_, found, err := driver.Get(ctx, "user:1")
			assert.Error(t, err)
			assert.False(t, found)
		})
	})

	t.Run("Set uses native expiry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockClient := valkeymock.NewClient(ctrl)
		driver := NewValkeyDriver(mockClient)
		ctx := context.Background()

		mockClient.EXPECT().
			Do(ctx, valkeymock.MatchFn(func(cmd []string) bool {
				return cmd[0] == "SET" && cmd[1] == "user:1" && cmd[2] == "payload" &&
					cmd[3] == "EX" && cmd[4] == "1800"
			}, "SET with EX 1800")).
			Return(valkeymock.Result(valkeymock.ValkeyString("OK")))

		err := driver.Set(ctx, "user:1", []byte("payload"), 1800*time.Second)
		assert.NoError(t, err)
	})

	t.Run("Delete reports whether a key was removed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockClient := valkeymock.NewClient(ctrl)
		driver := NewValkeyDriver(mockClient)
		ctx := context.Background()

		mockClient.EXPECT().
			Do(ctx, valkeymock.Match("DEL", "user:1")).
			Return(valkeymock.Result(valkeymock.ValkeyInt64(1)))
		removed, err := driver.Delete(ctx, "user:1")
		assert.NoError(t, err)
		assert.True(t, removed)

		mockClient.EXPECT().
			Do(ctx, valkeymock.Match("DEL", "user:404")).
			Return(valkeymock.Result(valkeymock.ValkeyInt64(0)))
		removed, err = driver.Delete(ctx, "user:404")
		assert.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("Keys follows the scan cursor to completion", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockClient := valkeymock.NewClient(ctrl)
		driver := NewValkeyDriver(mockClient)
		ctx := context.Background()

		firstPage := valkeymock.Result(valkeymock.ValkeyArray(
			valkeymock.ValkeyString("7"),
			valkeymock.ValkeyArray(
				valkeymock.ValkeyString("user:1"),
				valkeymock.ValkeyString("user:2"),
			),
		))
		lastPage := valkeymock.Result(valkeymock.ValkeyArray(
			valkeymock.ValkeyString("0"),
			valkeymock.ValkeyArray(valkeymock.ValkeyString("user:3")),
		))

		gomock.InOrder(
			mockClient.EXPECT().
				Do(ctx, valkeymock.MatchFn(func(cmd []string) bool {
					return cmd[0] == "SCAN" && cmd[1] == "0" &&
						cmd[2] == "MATCH" && cmd[3] == "user:*"
				}, "SCAN 0 MATCH user:*")).
				Return(firstPage),
			mockClient.EXPECT().
				Do(ctx, valkeymock.MatchFn(func(cmd []string) bool {
					return cmd[0] == "SCAN" && cmd[1] == "7"
				}, "SCAN 7")).
				Return(lastPage),
		)

		keys, err := driver.Keys(ctx, "user:*")
		require.NoError(t, err)
		assert.Equal(t, []string{"user:1", "user:2", "user:3"}, keys)
	})

	t.Run("Keys rejects malformed patterns without touching the store", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockClient := valkeymock.NewClient(ctrl)
		driver := NewValkeyDriver(mockClient)

		_, err := driver.Keys(context.Background(), "user:[1]")
		assert.ErrorIs(t, err, ErrInvalidPattern)
	})

	t.Run("Size maps to DBSIZE", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockClient := valkeymock.NewClient(ctrl)
		driver := NewValkeyDriver(mockClient)
		ctx := context.Background()

		mockClient.EXPECT().
			Do(ctx, valkeymock.Match("DBSIZE")).
			Return(valkeymock.Result(valkeymock.ValkeyInt64(42)))

		size, err := driver.Size(ctx)
		assert.NoError(t, err)
		assert.Equal(t, int64(42), size)
	})
}

func TestEdgeDriver(t *testing.T) {
	ctx := context.Background()
	driver := NewEdgeDriver()

	assert.NoError(t, driver.Set(ctx, "user:1", []byte("v"), time.Minute))

	_, found, err := driver.Get(ctx, "user:1")
	assert.NoError(t, err)
	assert.False(t, found)

	removed, err := driver.Delete(ctx, "user:1")
	assert.NoError(t, err)
	assert.False(t, removed)

	keys, err := driver.Keys(ctx, "*")
	assert.NoError(t, err)
	assert.Empty(t, keys)

	size, err := driver.Size(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), size)
}
