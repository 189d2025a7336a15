package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp_Run(t *testing.T) {
	t.Run("run returns nil", func(t *testing.T) {
		app := New()
		err := app.Run(context.Background(), func(ctx context.Context) error {
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("run returns error and hooks still run", func(t *testing.T) {
		app := New()
		hookCalled := false
		app.AddShutdownHook("workers", func(ctx context.Context) error {
			hookCalled = true
			return nil
		})

		want := errors.New("listen failed")
		err := app.Run(context.Background(), func(ctx context.Context) error {
			return want
		})
		assert.ErrorIs(t, err, want)
		assert.True(t, hookCalled)
	})

	t.Run("shutdown hooks run in LIFO order on context cancel", func(t *testing.T) {
		app := New()
		var mu sync.Mutex
		var order []string

		for _, name := range []string{"first", "second", "third"} {
			app.AddShutdownHook(name, func(ctx context.Context) error {
				mu.Lock()
				defer mu.Unlock()
				order = append(order, name)
				return nil
			})
		}

		ctx, cancel := context.WithCancel(context.Background())
		err := app.Run(ctx, func(ctx context.Context) error {
			cancel()
			<-ctx.Done()
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"third", "second", "first"}, order)
	})

	t.Run("hook registered from inside run callback", func(t *testing.T) {
		app := New()
		hookCalled := false

		ctx, cancel := context.WithCancel(context.Background())
		err := app.Run(ctx, func(ctx context.Context) error {
			app.AddShutdownHook("late", func(ctx context.Context) error {
				hookCalled = true
				return nil
			})
			cancel()
			<-ctx.Done()
			return nil
		})
		require.NoError(t, err)
		assert.True(t, hookCalled)
	})

	t.Run("hook errors are joined", func(t *testing.T) {
		app := New()
		app.AddShutdownHook("server", func(ctx context.Context) error {
			return errors.New("server busy")
		})
		app.AddShutdownHook("store", func(ctx context.Context) error {
			return errors.New("store closed")
		})

		err := app.Run(context.Background(), func(ctx context.Context) error {
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "shutdown hook server: server busy")
		assert.Contains(t, err.Error(), "shutdown hook store: store closed")
	})

	t.Run("hooks after the timeout are skipped", func(t *testing.T) {
		app := New(WithShutdownTimeout(10 * time.Millisecond))
		skipped := true
		app.AddShutdownHook("skipped", func(ctx context.Context) error {
			skipped = false
			return nil
		})
		app.AddShutdownHook("slow", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})

		err := app.Run(context.Background(), func(ctx context.Context) error {
			return nil
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Contains(t, err.Error(), "skip shutdown hook skipped")
		assert.True(t, skipped)
	})
}
