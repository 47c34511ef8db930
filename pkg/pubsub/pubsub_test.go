package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestBasicPublishSubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Shutdown()

	received := make(chan any, 1)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, TopicSnapshots)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	go func() {
		msg := <-sub.Channel()
		received <- msg
	}()

	b.Publish(TopicSnapshots, "tick-1")

	select {
	case msg := <-received:
		if msg != "tick-1" {
			t.Errorf("Expected 'tick-1', got %v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for message")
	}

	sub.Unsubscribe()
}

func TestMultipleSubscribersReceiveBroadcast(t *testing.T) {
	b := NewBroker()
	defer b.Shutdown()

	ctx := context.Background()
	numSubscribers := 5
	received := make([]chan any, numSubscribers)

	for i := 0; i < numSubscribers; i++ {
		received[i] = make(chan any, 1)
		sub, err := b.Subscribe(ctx, TopicSnapshots)
		if err != nil {
			t.Fatalf("Failed to subscribe %d: %v", i, err)
		}
		defer sub.Unsubscribe()

		go func(ch chan any, s *Subscription) {
			ch <- <-s.Channel()
		}(received[i], sub)
	}

	b.Publish(TopicSnapshots, "broadcast")

	for i := 0; i < numSubscribers; i++ {
		select {
		case msg := <-received[i]:
			if msg != "broadcast" {
				t.Errorf("Subscriber %d: got %v", i, msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("Subscriber %d: timeout waiting for message", i)
		}
	}
}

func TestTopicIsolation(t *testing.T) {
	b := NewBroker()
	defer b.Shutdown()

	ctx := context.Background()
	snaps, _ := b.Subscribe(ctx, TopicSnapshots)
	events, _ := b.Subscribe(ctx, TopicEvents)
	defer snaps.Unsubscribe()
	defer events.Unsubscribe()

	b.Publish(TopicSnapshots, "snapshot-only")

	select {
	case msg := <-snaps.Channel():
		if msg != "snapshot-only" {
			t.Errorf("Snapshot subscriber got %v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Snapshot subscriber timed out")
	}

	select {
	case msg := <-events.Channel():
		t.Errorf("Event subscriber received cross-topic message %v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	defer b.Shutdown()

	sub, _ := b.Subscribe(context.Background(), TopicEvents)

	received := make(chan any, 2)
	go func() {
		for msg := range sub.Channel() {
			received <- msg
		}
	}()

	b.Publish(TopicEvents, "first")
	if msg := <-received; msg != "first" {
		t.Errorf("Expected 'first', got %v", msg)
	}

	sub.Unsubscribe()
	b.Publish(TopicEvents, "second")

	select {
	case msg := <-received:
		t.Errorf("Received message after unsubscribe: %v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestContextCancellationClosesSubscription(t *testing.T) {
	b := NewBroker()
	defer b.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	sub, _ := b.Subscribe(ctx, TopicSnapshots)

	done := make(chan bool, 1)
	go func() {
		for range sub.Channel() {
		}
		done <- true
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Subscription channel did not close on context cancellation")
	}
}

func TestSlowSubscriberNeverBlocksPublish(t *testing.T) {
	b := NewBroker()
	defer b.Shutdown()

	// Never consumed, so its buffer fills up
	sub, _ := b.Subscribe(context.Background(), TopicSnapshots)
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			b.Publish(TopicSnapshots, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestConcurrentPublish(t *testing.T) {
	b := NewBroker()
	defer b.Shutdown()

	sub, _ := b.Subscribe(context.Background(), TopicEvents)
	defer sub.Unsubscribe()

	numMessages := 100
	received := make(map[int]bool)
	var mu sync.Mutex

	go func() {
		for msg := range sub.Channel() {
			if num, ok := msg.(int); ok {
				mu.Lock()
				received[num] = true
				mu.Unlock()
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < numMessages; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Publish(TopicEvents, n)
		}(i)
	}

	wg.Wait()
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != numMessages {
		t.Errorf("Expected %d messages, received %d", numMessages, len(received))
	}
}

func TestSubscriberCount(t *testing.T) {
	b := NewBroker()
	defer b.Shutdown()

	ctx := context.Background()

	if n := b.SubscriberCount(TopicSnapshots); n != 0 {
		t.Errorf("Expected 0 subscribers, got %d", n)
	}

	sub1, _ := b.Subscribe(ctx, TopicSnapshots)
	sub2, _ := b.Subscribe(ctx, TopicSnapshots)

	if n := b.SubscriberCount(TopicSnapshots); n != 2 {
		t.Errorf("Expected 2 subscribers, got %d", n)
	}

	sub1.Unsubscribe()
	if n := b.SubscriberCount(TopicSnapshots); n != 1 {
		t.Errorf("Expected 1 subscriber after unsubscribe, got %d", n)
	}
	sub2.Unsubscribe()
}

func TestShutdownClosesAllChannels(t *testing.T) {
	b := NewBroker()

	sub, _ := b.Subscribe(context.Background(), TopicSnapshots)

	done := make(chan bool, 1)
	go func() {
		for range sub.Channel() {
		}
		done <- true
	}()

	b.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Subscription channel did not close on shutdown")
	}

	if s, _ := b.Subscribe(context.Background(), TopicSnapshots); s != nil {
		t.Error("Subscribe after shutdown should return nil")
	}
}

func TestPublishRacingShutdownNeverPanics(t *testing.T) {
	for i := 0; i < 200; i++ {
		b := NewBroker()
		for j := 0; j < 4; j++ {
			b.Subscribe(context.Background(), TopicSnapshots)
		}

		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for k := 0; k < 50; k++ {
					b.Publish(TopicSnapshots, k)
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Shutdown()
		}()
		wg.Wait()
	}
}
