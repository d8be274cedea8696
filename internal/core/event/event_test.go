package event

import (
	"sync"
	"testing"
)

func TestQueueDrainIncludesItemsPushedDuringDrain(t *testing.T) {
	q := NewQueue[int](4)
	q.Push(1)
	q.Push(2)

	var got []int
	q.Drain(func(v int) {
		got = append(got, v)
		if v == 1 {
			q.Push(3)
		}
	})
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("unexpected drain order %v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("queue should be empty after drain, got %d", q.Len())
	}
}

func TestInboxConcurrentPushers(t *testing.T) {
	in := NewInbox[int](8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				in.Push(base*100 + j)
			}
		}(i)
	}

	seen := make(map[int]bool)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	drain := func() {
		in.Drain(func(v int) {
			if seen[v] {
				t.Errorf("duplicate delivery of %d", v)
			}
			seen[v] = true
		})
	}
	for {
		select {
		case <-done:
			drain()
			if len(seen) != 800 {
				t.Fatalf("expected 800 items, got %d", len(seen))
			}
			return
		default:
			drain()
		}
	}
}
