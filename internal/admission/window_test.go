package admission

import (
	"testing"
	"time"

	"github.com/weatherdash/proxy/internal/clock"
)

// TestWindowRateLimiter_BurstBound verifies that an instantaneous burst of
// 2N requests is admitted exactly N times.
func TestWindowRateLimiter_BurstBound(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	l := NewWindowRateLimiter(clk, 10, 10*time.Minute)

	admitted := 0
	for i := 0; i < 20; i++ {
		if l.Admit("client") {
			admitted++
		}
	}
	if admitted != 10 {
		t.Errorf("admitted = %d of 20 instantaneous requests, want 10", admitted)
	}
}

// TestWindowRateLimiter_TrailingWindow verifies the bound holds over any
// trailing window: slots free up only as old timestamps age out.
func TestWindowRateLimiter_TrailingWindow(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	l := NewWindowRateLimiter(clk, 3, time.Minute)

	// Fill the window at t=0.
	for i := 0; i < 3; i++ {
		if !l.Admit("client") {
			t.Fatalf("Admit() #%d = false, want true", i+1)
		}
	}
	if l.Admit("client") {
		t.Fatal("Admit() = true with full window, want false")
	}

	// Half the window later the original timestamps are still inside.
	clk.Advance(30 * time.Second)
	if l.Admit("client") {
		t.Error("Admit() = true mid-window, want false")
	}

	// Once the first timestamps fall out of the trailing window, slots open.
	clk.Advance(31 * time.Second)
	if !l.Admit("client") {
		t.Error("Admit() = false after window elapsed, want true")
	}
}

// TestWindowRateLimiter_ClientsIndependent verifies one client's burst does
// not consume another client's window.
func TestWindowRateLimiter_ClientsIndependent(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	l := NewWindowRateLimiter(clk, 1, time.Minute)

	if !l.Admit("a") {
		t.Fatal("Admit(a) = false, want true")
	}
	if l.Admit("a") {
		t.Fatal("Admit(a) = true with full window, want false")
	}
	if !l.Admit("b") {
		t.Error("Admit(b) = false, want true for independent client")
	}
}

// TestWindowRateLimiter_RejectionDoesNotConsume verifies a rejected request
// records no timestamp: rejections while full do not extend the lockout.
func TestWindowRateLimiter_RejectionDoesNotConsume(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	l := NewWindowRateLimiter(clk, 2, time.Minute)

	l.Admit("client")
	l.Admit("client")
	for i := 0; i < 5; i++ {
		if l.Admit("client") {
			t.Fatalf("Admit() rejection #%d = true, want false", i+1)
		}
	}

	clk.Advance(61 * time.Second)
	if !l.Admit("client") {
		t.Error("Admit() = false after admitted timestamps aged out, want true")
	}
}
