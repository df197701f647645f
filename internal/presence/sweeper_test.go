package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/store"
)

func TestSweeperEvictsOnTick(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := f.tracker.Register(ctx, "alice", "Alice", "", model.ActivityOnline); err != nil {
		t.Fatalf("register: %v", err)
	}
	sweeper := NewSweeper(f.tracker, f.clock, DefaultSweepInterval, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	if err := f.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("wait for ticker: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		f.clock.Advance(DefaultSweepInterval)
		if _, err := f.tracker.Get(ctx, "alice"); errors.Is(err, store.ErrNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sweeper never evicted stale record")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("sweeper did not stop")
	}
}
