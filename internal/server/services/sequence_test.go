package services

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence_ConcurrentCallersGetConsecutiveValues(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	const workers, each = 10, 20
	var (
		mu  sync.Mutex
		got []int64
		wg  sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				v, err := h.sequence.Next(ctx, common.ResourceIDCounter)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				got = append(got, v)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, got, workers*each)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, v := range got {
		assert.EqualValues(t, i+1, v)
	}
}

func TestSequence_EnsureAtLeast(t *testing.T) {
	h := newHarness(t, BlobConfig{})
	ctx := context.Background()

	require.NoError(t, h.sequence.EnsureAtLeast(ctx, common.VersionIDCounter, 100))
	v, err := h.sequence.Next(ctx, common.VersionIDCounter)
	require.NoError(t, err)
	assert.EqualValues(t, 101, v)

	require.NoError(t, h.sequence.EnsureAtLeast(ctx, common.VersionIDCounter, 3))
	v, err = h.sequence.Next(ctx, common.VersionIDCounter)
	require.NoError(t, err)
	assert.EqualValues(t, 102, v)

	_, err = h.sequence.Next(ctx, "")
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.ErrorIs(t, h.sequence.EnsureAtLeast(ctx, "", 1), common.ErrValidation)
}
