package bovw

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbovw/bovw/resource"
)

func TestClose(t *testing.T) {
	ctx := context.Background()

	t.Run("RejectsAfterClose", func(t *testing.T) {
		env := newTestEnv(t, WithExtractor(stubExtractor{}))
		require.NoError(t, env.svc.Close())

		outcome, err := env.svc.Process(ctx, ImageRequest{ImageID: 1, Data: grayPNG(t, 256, 256)})
		assert.Equal(t, OutcomeGenericError, outcome)
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("Idempotent", func(t *testing.T) {
		env := newTestEnv(t, WithExtractor(stubExtractor{}))
		require.NoError(t, env.svc.Close())
		require.NoError(t, env.svc.Close())
	})

	t.Run("ConcurrentWithRequests", func(t *testing.T) {
		// Close racing Process must never let a request reach the index
		// after it is unmapped. Requests either complete or fail ErrClosed.
		data := grayPNG(t, 256, 256)

		for instance := 0; instance < 25; instance++ {
			env := newTestEnv(t,
				WithExtractor(stubExtractor{}),
				WithResourceLimits(resource.Config{MaxWorkers: 4}),
			)

			var wg sync.WaitGroup
			for g := 0; g < 4; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for i := 0; i < 10; i++ {
						id := uint32(g*10 + i + 1)
						outcome, err := env.svc.Process(ctx, ImageRequest{ImageID: id, Data: data})
						if err != nil {
							assert.Equal(t, OutcomeGenericError, outcome)
						}
					}
				}(g)
			}
			require.NoError(t, env.svc.Close())
			wg.Wait()

			outcome, err := env.svc.Process(ctx, ImageRequest{ImageID: 9999, Data: data})
			assert.Equal(t, OutcomeGenericError, outcome)
			assert.ErrorIs(t, err, ErrClosed)
		}
	})

	t.Run("DrainsInFlight", func(t *testing.T) {
		env := newTestEnv(t,
			WithExtractor(stubExtractor{}),
			WithResourceLimits(resource.Config{MaxWorkers: 2}),
		)

		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = env.svc.Process(ctx, ImageRequest{
					ImageID: uint32(i + 1),
					Data:    grayPNG(t, 256, 256),
				})
			}()
		}
		wg.Wait()

		require.NoError(t, env.svc.Close())
	})
}
