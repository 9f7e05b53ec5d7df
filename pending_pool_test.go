// Copyright 2025 Roman Atachiants
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package multipart

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingPool_CompletesInFIFOResultOrder(t *testing.T) {
	pool := NewPendingPool(4)
	ctx := context.Background()

	for n := PartNumber(1); n <= 5; n++ {
		require.NoError(t, pool.Ready(ctx))
		n := n
		require.NoError(t, pool.Send(ctx, func(ctx context.Context) (CompletedPart, error) {
			time.Sleep(time.Duration(5-n) * time.Millisecond)
			return CompletedPart{Number: n, Size: int64(n)}, nil
		}))
	}

	parts, err := pool.Complete(ctx)
	require.NoError(t, err)
	require.True(t, parts.Sorted())
	assert.Len(t, parts, 5)
}

func TestPendingPool_BoundsConcurrency(t *testing.T) {
	pool := NewPendingPool(2)
	ctx := context.Background()

	var current, peak int64
	release := make(chan struct{})
	// Ready blocks while both slots are held, so the tasks are released
	// from another goroutine once the pool has had time to fill up.
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Ready(ctx))
		require.NoError(t, pool.Send(ctx, func(ctx context.Context) (CompletedPart, error) {
			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			<-release
			atomic.AddInt64(&current, -1)
			return CompletedPart{Number: PartNumber(i + 1)}, nil
		}))
	}

	_, err := pool.Complete(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestPendingPool_LatchesFirstError(t *testing.T) {
	pool := NewPendingPool(0)
	ctx := context.Background()
	sentinel := errors.New("boom")

	require.NoError(t, pool.Send(ctx, func(ctx context.Context) (CompletedPart, error) {
		return CompletedPart{}, sentinel
	}))
	require.NoError(t, pool.Send(ctx, func(ctx context.Context) (CompletedPart, error) {
		return CompletedPart{Number: 1}, nil
	}))

	_, err := pool.Complete(ctx)
	assert.ErrorIs(t, err, sentinel)

	assert.ErrorIs(t, pool.Ready(ctx), sentinel)
}

func TestPendingPool_FlushWaitsForInFlight(t *testing.T) {
	pool := NewPendingPool(1)
	ctx := context.Background()

	started := make(chan struct{})
	proceed := make(chan struct{})
	require.NoError(t, pool.Send(ctx, func(ctx context.Context) (CompletedPart, error) {
		close(started)
		<-proceed
		return CompletedPart{Number: 1}, nil
	}))

	<-started
	assert.Equal(t, 1, pool.InFlight())
	close(proceed)

	require.NoError(t, pool.Flush(ctx))
	assert.Equal(t, 0, pool.InFlight())
}
