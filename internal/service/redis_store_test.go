package service

import (
	"context"
	"os"
	"testing"
	"time"
)

// Requires a disposable Redis: REDIS_URL=redis://localhost:6379/15
func TestRedisStoreSharesSelection(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := NewRedisStore(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := NewRedisStore(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	a.client.Del(ctx, redisHashKey, redisRevisionKey)

	svcB := NewSelectionService(b, nil, nil)
	ch := svcB.Bus().Subscribe()
	defer svcB.Bus().Unsubscribe(ch)
	go svcB.Run(ctx)
	time.Sleep(100 * time.Millisecond)

	svcA := NewSelectionService(a, nil, nil)
	if _, err := svcA.Set(ctx, KeySoato, "1726262"); err != nil {
		t.Fatal(err)
	}

	ev := receive(t, ch)
	if ev.Key != KeySoato || ev.Value != "1726262" || ev.Revision != 1 {
		t.Fatalf("relayed event = %+v", ev)
	}

	sel, err := svcB.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Soato != "1726262" || sel.Revision != 1 {
		t.Fatalf("selection seen by b = %+v", sel)
	}
}
