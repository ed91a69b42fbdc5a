package replication

import "testing"

func TestBackoffCounterGrowsAndCaps(t *testing.T) {
	bc := &backoffCounter{BackoffConfig: BackoffConfig{
		InitialInterval:     10,
		MaxInterval:         40,
		Multiplier:          2,
		RandomizationFactor: 0,
	}}

	first := bc.next()
	if first != 10 {
		t.Fatalf("first next() = %v, want 10", first)
	}
	second := bc.next()
	if second != 20 {
		t.Fatalf("second next() = %v, want 20", second)
	}
	third := bc.next()
	if third != 40 {
		t.Fatalf("third next() = %v, want 40 (capped)", third)
	}
	fourth := bc.next()
	if fourth != 40 {
		t.Fatalf("fourth next() = %v, want 40 (stays capped)", fourth)
	}
	if bc.failures != 4 {
		t.Fatalf("failures = %d, want 4", bc.failures)
	}

	bc.reset()
	if bc.failures != 0 {
		t.Fatalf("failures after reset = %d, want 0", bc.failures)
	}
}
