package notify

import (
	"sync"
	"testing"

	"github.com/kinkard/auctionhouse/internal/models"
)

func TestQueue_PushDrain_FIFO(t *testing.T) {
	q := New()
	q.Push(Notification{UserID: 1, Event: models.Event{Kind: models.AuctionExecuted, OrderID: 1, Price: 10}})
	q.Push(Notification{UserID: 1, Event: models.Event{Kind: models.AuctionExecuted, OrderID: 2, Price: 20}})
	q.Push(Notification{UserID: 2, Event: models.Event{Kind: models.ImmediateExecuted, OrderID: 3, Price: 30}})

	got := q.Drain()
	if len(got) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(got))
	}
	if got[0].Event.OrderID != 1 || got[1].Event.OrderID != 2 || got[2].Event.OrderID != 3 {
		t.Errorf("expected FIFO order, got %+v", got)
	}

	if drained := q.Drain(); drained != nil {
		t.Errorf("expected empty queue after drain, got %+v", drained)
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	const n = 100
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			q.Push(Notification{UserID: uint64(i), Event: models.Event{Kind: models.ImmediateExecuted, OrderID: uint64(i)}})
		}(i)
	}
	wg.Wait()

	got := q.Drain()
	if len(got) != n {
		t.Errorf("expected %d notifications, got %d", n, len(got))
	}
}
