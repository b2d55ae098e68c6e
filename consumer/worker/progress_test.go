package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/tnqbao/gau-job-orchestrator/entity"
)

func TestProgressReporter_CloseFlushesLatest(t *testing.T) {
	var (
		mu      sync.Mutex
		written []entity.Progress
	)
	block := make(chan struct{})
	r := newProgressReporter(uuid.New(), func(_ context.Context, p entity.Progress) error {
		<-block
		mu.Lock()
		written = append(written, p)
		mu.Unlock()
		return nil
	}, nil)
	go r.run(context.Background())

	start := time.Now()
	for i := 1; i <= 100; i++ {
		r.Report(i, 100, "")
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "Report must not block on the store")

	close(block)
	r.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, written)
	assert.Equal(t, 100, written[len(written)-1].Current)
	for i := 1; i < len(written); i++ {
		assert.Greater(t, written[i].Current, written[i-1].Current)
	}
}

func TestProgressReporter_StopsAfterStaleWrite(t *testing.T) {
	var calls int
	var mu sync.Mutex
	r := newProgressReporter(uuid.New(), func(context.Context, entity.Progress) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return entity.ErrStaleTransition
	}, nil)
	go r.run(context.Background())

	r.Report(1, 2, "")
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, time.Millisecond)

	r.Report(2, 2, "")
	r.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestProgressReporter_ReportAfterCloseIsNoop(t *testing.T) {
	r := newProgressReporter(uuid.New(), func(context.Context, entity.Progress) error {
		t.Fatal("unexpected write")
		return nil
	}, nil)
	go r.run(context.Background())
	r.Close()
	r.Close()

	r.Report(1, 1, "late")
}
