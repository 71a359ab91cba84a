package aggregate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
)

func counter(capacity int) *Aggregator[int, map[int]int] {
	counts := make(map[int]int)
	return Start(capacity,
		func(v int) { counts[v]++ },
		func() map[int]int { return counts },
	)
}

func TestManyProducersOneSentinel(t *testing.T) {
	ctx := context.Background()
	agg := counter(4)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				assert.NoError(t, agg.Send(ctx, i%10))
			}
		}()
	}
	wg.Wait()
	agg.Close()
	agg.Close()

	counts, err := agg.Result(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 10)
	for v := 0; v < 10; v++ {
		assert.Equal(t, 80, counts[v])
	}
}

func TestResultHandedOutOnce(t *testing.T) {
	ctx := context.Background()
	agg := counter(1)
	agg.Close()

	_, err := agg.Result(ctx)
	require.NoError(t, err)

	_, err = agg.Result(ctx)
	assert.ErrorIs(t, err, apperrors.ErrChannelClosed)
}

func TestSendAfterClose(t *testing.T) {
	agg := counter(1)
	agg.Close()

	err := agg.Send(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrChannelClosed)
}

func TestSendBlocksWhenFullUntilCancelled(t *testing.T) {
	block := make(chan struct{})
	agg := Start(1,
		func(int) { <-block },
		func() int { return 0 },
	)
	defer func() {
		close(block)
		agg.Abandon()
	}()

	ctx := context.Background()
	require.NoError(t, agg.Send(ctx, 1))
	require.NoError(t, agg.Send(ctx, 2))

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := agg.Send(ctx, 3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResultWaitsForContext(t *testing.T) {
	agg := counter(1)
	defer agg.Abandon()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := agg.Result(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendRacingClose(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 50; round++ {
		total := 0
		agg := Start(2,
			func(int) { total++ },
			func() int { return total },
		)

		var (
			wg       sync.WaitGroup
			accepted atomic.Int64
		)
		for p := 0; p < 4; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					err := agg.Send(ctx, i)
					if err == nil {
						accepted.Add(1)
						continue
					}
					assert.ErrorIs(t, err, apperrors.ErrChannelClosed)
					return
				}
			}()
		}
		agg.Close()
		wg.Wait()

		got, err := agg.Result(ctx)
		require.NoError(t, err)
		assert.Equal(t, int(accepted.Load()), got)
	}
}
