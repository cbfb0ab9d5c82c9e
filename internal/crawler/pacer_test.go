package crawler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPacerRequestSpacing(t *testing.T) {
	pacer := NewPacer(0, 0, 100*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := pacer.WaitRequest(ctx, "https://example.com/page1"); err != nil {
		t.Errorf("First request failed: %v", err)
	}
	if err := pacer.WaitRequest(ctx, "https://example.com/page2"); err != nil {
		t.Errorf("Second request failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("Requests to one host were not spaced, elapsed time: %v", elapsed)
	}

	start = time.Now()
	if err := pacer.WaitRequest(ctx, "https://cdn.example.com/img.jpg"); err != nil {
		t.Errorf("Other host request failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("Different host was delayed, elapsed time: %v", elapsed)
	}
}

func TestPacerNoRequestDelay(t *testing.T) {
	pacer := NewPacer(0, 0, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := pacer.WaitRequest(ctx, "https://example.com/"); err != nil {
			t.Fatalf("WaitRequest failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("Zero request delay should not wait, elapsed time: %v", elapsed)
	}
}

func TestPacerSetHostDelay(t *testing.T) {
	pacer := NewPacer(0, 0, 0)
	pacer.SetHostDelay("example.com", 80*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	_ = pacer.WaitRequest(ctx, "https://example.com/a")
	_ = pacer.WaitRequest(ctx, "https://example.com/b")
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Errorf("Host delay not applied, elapsed time: %v", elapsed)
	}
}

func TestPacerFixedDelays(t *testing.T) {
	pacer := NewPacer(time.Second, 2*time.Second, 0)

	var slept []time.Duration
	pacer.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	ctx := context.Background()
	_ = pacer.AfterItem(ctx)
	_ = pacer.AfterItem(ctx)
	_ = pacer.AfterPage(ctx)

	want := []time.Duration{time.Second, time.Second, 2 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("Expected %d sleeps, got %d", len(want), len(slept))
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("Sleep %d: expected %v, got %v", i, want[i], slept[i])
		}
	}
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepContext(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("Cancelled sleep did not return promptly")
	}
}

func TestPacerInvalidURL(t *testing.T) {
	pacer := NewPacer(0, 0, 0)
	if err := pacer.WaitRequest(context.Background(), "http://[::1]:namedport"); err == nil {
		t.Error("Expected error for invalid URL")
	}
}
