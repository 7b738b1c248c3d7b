package events

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/models"
)

func TestPublishAssignsContiguousSequence(t *testing.T) {
	svc := NewService(common.GetLogger())
	defer svc.Close()

	var got []uint64
	svc.Subscribe("batch:b1", func(e models.ProgressEvent) {
		got = append(got, e.Seq)
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		svc.Publish(ctx, models.ProgressEvent{Topic: "batch:b1", Phase: models.PhaseFileDone})
	}

	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, got)
}

func TestSequencesAreIndependentPerTopic(t *testing.T) {
	svc := NewService(common.GetLogger())
	defer svc.Close()

	ctx := context.Background()
	svc.Publish(ctx, models.ProgressEvent{Topic: "batch:b1"})
	svc.Publish(ctx, models.ProgressEvent{Topic: "batch:b1"})
	svc.Publish(ctx, models.ProgressEvent{Topic: "file:f1"})

	e1, ok := svc.Snapshot("batch:b1")
	require.True(t, ok)
	assert.Equal(t, uint64(2), e1.Seq)

	e2, ok := svc.Snapshot("file:f1")
	require.True(t, ok)
	assert.Equal(t, uint64(1), e2.Seq)
}

func TestSnapshotEmptyTopic(t *testing.T) {
	svc := NewService(common.GetLogger())
	defer svc.Close()

	_, ok := svc.Snapshot("batch:none")
	assert.False(t, ok)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	svc := NewService(common.GetLogger())
	defer svc.Close()

	count := 0
	unsub := svc.Subscribe("batch:b1", func(e models.ProgressEvent) { count++ })

	ctx := context.Background()
	svc.Publish(ctx, models.ProgressEvent{Topic: "batch:b1"})
	unsub()
	svc.Publish(ctx, models.ProgressEvent{Topic: "batch:b1"})

	assert.Equal(t, 1, count)
}

func TestSubscribersOnlyReceiveTheirTopic(t *testing.T) {
	svc := NewService(common.GetLogger())
	defer svc.Close()

	var batchEvents, fileEvents int
	svc.Subscribe("batch:b1", func(e models.ProgressEvent) { batchEvents++ })
	svc.Subscribe("file:f1", func(e models.ProgressEvent) { fileEvents++ })

	ctx := context.Background()
	svc.Publish(ctx, models.ProgressEvent{Topic: "batch:b1"})
	svc.Publish(ctx, models.ProgressEvent{Topic: "file:f1"})
	svc.Publish(ctx, models.ProgressEvent{Topic: "file:f1"})

	assert.Equal(t, 1, batchEvents)
	assert.Equal(t, 2, fileEvents)
}

func TestConcurrentPublishersKeepSequenceContiguous(t *testing.T) {
	svc := NewService(common.GetLogger())
	defer svc.Close()

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	svc.Subscribe("batch:b1", func(e models.ProgressEvent) {
		mu.Lock()
		seen[e.Seq] = true
		mu.Unlock()
	})

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Publish(ctx, models.ProgressEvent{Topic: "batch:b1"})
		}()
	}
	wg.Wait()

	require.Len(t, seen, 50)
	for seq := uint64(1); seq <= 50; seq++ {
		assert.True(t, seen[seq], "missing seq %d", seq)
	}
}

func TestConcurrentPublishersDeliverInSequenceOrder(t *testing.T) {
	svc := NewService(common.GetLogger())
	defer svc.Close()

	var mu sync.Mutex
	var order []uint64
	svc.Subscribe("batch:b1", func(e models.ProgressEvent) {
		mu.Lock()
		order = append(order, e.Seq)
		mu.Unlock()
	})

	ctx := context.Background()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				svc.Publish(ctx, models.ProgressEvent{Topic: "batch:b1"})
			}
		}()
	}
	wg.Wait()

	require.Len(t, order, 400)
	for i := 1; i < len(order); i++ {
		require.Equal(t, order[i-1]+1, order[i],
			"seq %d delivered after %d", order[i], order[i-1])
	}
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	svc := NewService(common.GetLogger())

	count := 0
	svc.Subscribe("batch:b1", func(e models.ProgressEvent) { count++ })
	require.NoError(t, svc.Close())

	svc.Publish(context.Background(), models.ProgressEvent{Topic: "batch:b1"})
	assert.Equal(t, 0, count)
}
