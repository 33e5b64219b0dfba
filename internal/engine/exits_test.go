package engine

import (
	"testing"
	"time"

	"nse-paper-trader/internal/store"
	"nse-paper-trader/internal/types"
)

func testExitConfig() store.ExitConfig {
	return store.ExitConfig{
		Target1Fraction:       0.40,
		Target2Fraction:       0.40,
		Target1LockInPct:      0.03,
		Target2LockInPct:      0.06,
		TrailActivationPct:    0.05,
		TrailDistancePct:      0.03,
		TimeExitProfitPct:     0.03,
		SwingMaxHoldDays:      15,
		PositionalMaxHoldDays: 90,
	}
}

func testPosition(shares int) *position {
	sig := testSignal("RELIANCE", 8.0)
	return newPosition(sig, shares, 15, time.Now())
}

func TestWinningCycleThroughAllTargets(t *testing.T) {
	e := newExitEvaluator(testExitConfig())
	p := testPosition(100)
	now := time.Now()

	// Target 1 at 103: 40% of original out, stop locks to entry+3%.
	dec, _ := e.evaluate(p, 103, now)
	if dec == nil || dec.reason != types.ExitTarget1 {
		t.Fatalf("Expected TARGET_1 exit, got %+v", dec)
	}
	if dec.shares != 40 {
		t.Errorf("Expected 40 shares, got %d", dec.shares)
	}
	if dec.price != 103 {
		t.Errorf("Expected fill at target 103, got %f", dec.price)
	}
	if p.stopLoss != 103 {
		t.Errorf("Expected stop locked to 103, got %f", p.stopLoss)
	}
	p.sharesRemaining -= dec.shares

	// Target 2 at 108: another 40%, stop locks to entry+6%.
	dec, _ = e.evaluate(p, 108, now)
	if dec == nil || dec.reason != types.ExitTarget2 {
		t.Fatalf("Expected TARGET_2 exit, got %+v", dec)
	}
	if dec.shares != 40 {
		t.Errorf("Expected 40 shares, got %d", dec.shares)
	}
	if p.stopLoss != 106 {
		t.Errorf("Expected stop locked to 106, got %f", p.stopLoss)
	}
	p.sharesRemaining -= dec.shares

	// Target 3 at 112: runner goes out in full.
	dec, _ = e.evaluate(p, 112, now)
	if dec == nil || dec.reason != types.ExitTarget3 {
		t.Fatalf("Expected TARGET_3 exit, got %+v", dec)
	}
	if dec.shares != 20 || !dec.full {
		t.Errorf("Expected full exit of 20 shares, got %d (full=%v)", dec.shares, dec.full)
	}
}

func TestStopLossCut(t *testing.T) {
	e := newExitEvaluator(testExitConfig())
	p := testPosition(100)

	dec, _ := e.evaluate(p, 94.5, time.Now())
	if dec == nil || dec.reason != types.ExitStopLoss {
		t.Fatalf("Expected STOP_LOSS exit, got %+v", dec)
	}
	if dec.price != 95 {
		t.Errorf("Expected fill at stop 95, got %f", dec.price)
	}
	if dec.shares != 100 || !dec.full {
		t.Error("Expected the whole position out at the stop")
	}
}

func TestTrailingStopRatchetsAndFires(t *testing.T) {
	e := newExitEvaluator(testExitConfig())
	p := testPosition(100)
	p.targetsHit = [3]bool{true, true, false} // runner phase
	now := time.Now()

	// 110 is above activation (105): stop trails to 110*0.97 = 106.7.
	dec, raised := e.evaluate(p, 110, now)
	if dec != nil {
		t.Fatalf("Expected no exit at 110, got %+v", dec)
	}
	if !raised {
		t.Fatal("Expected the stop to ratchet up")
	}
	if p.stopLoss < 106.69 || p.stopLoss > 106.71 {
		t.Errorf("Expected stop near 106.7, got %f", p.stopLoss)
	}

	// Pullback to 107 must not lower the stop.
	_, raised = e.evaluate(p, 107, now)
	if raised {
		t.Error("Expected no ratchet on a pullback")
	}
	if p.stopLoss < 106.69 {
		t.Errorf("Stop moved down to %f", p.stopLoss)
	}

	// Drop through the trailed stop: exit labeled TRAILING_STOP because
	// the stop had risen above its initial level.
	dec, _ = e.evaluate(p, 106, now)
	if dec == nil || dec.reason != types.ExitTrailingStop {
		t.Fatalf("Expected TRAILING_STOP exit, got %+v", dec)
	}
	if dec.price != p.stopLoss {
		t.Errorf("Expected fill at the trailed stop %f, got %f", p.stopLoss, dec.price)
	}
}

func TestTimeExitOnlyWhenFlat(t *testing.T) {
	e := newExitEvaluator(testExitConfig())
	now := time.Now()

	// Past max hold, carrying 4% profit, targets still out of reach:
	// stays open.
	sig := testSignal("RELIANCE", 8.0)
	sig.Targets = [3]float64{110, 115, 120}
	p := newPosition(sig, 100, 15, now.AddDate(0, 0, -20))
	dec, _ := e.evaluate(p, 104, now)
	if dec != nil {
		t.Fatalf("Expected profitable stale position to stay open, got %+v", dec)
	}

	// A stale position through a target banks the target, not a time exit.
	p = testPosition(100)
	p.entryTime = now.AddDate(0, 0, -20)
	dec, _ = e.evaluate(p, 104, now)
	if dec == nil || dec.reason != types.ExitTarget1 {
		t.Fatalf("Expected TARGET_1 on the stale position, got %+v", dec)
	}

	// Past max hold at 1% profit: closed at the tick price.
	p = testPosition(100)
	p.entryTime = now.AddDate(0, 0, -20)
	dec, _ = e.evaluate(p, 101, now)
	if dec == nil || dec.reason != types.ExitMaxHolding {
		t.Fatalf("Expected MAX_HOLDING_PERIOD exit, got %+v", dec)
	}
	if dec.price != 101 {
		t.Errorf("Expected fill at tick 101, got %f", dec.price)
	}

	// Under max hold: no time exit regardless of profit.
	p = testPosition(100)
	p.entryTime = now.AddDate(0, 0, -10)
	dec, _ = e.evaluate(p, 101, now)
	if dec != nil {
		t.Fatalf("Expected position within hold bound to stay open, got %+v", dec)
	}
}

func TestTargetsHitOnce(t *testing.T) {
	e := newExitEvaluator(testExitConfig())
	p := testPosition(100)
	now := time.Now()

	dec, _ := e.evaluate(p, 103.5, now)
	if dec == nil || dec.reason != types.ExitTarget1 {
		t.Fatalf("Expected TARGET_1, got %+v", dec)
	}
	p.sharesRemaining -= dec.shares

	// Dip below and recross target 1: no second fire. The stop is at 103
	// after the lock-in, so 102 is a (trailing) stop exit instead.
	dec, _ = e.evaluate(p, 102, now)
	if dec == nil || dec.reason != types.ExitTrailingStop {
		t.Fatalf("Expected locked-in stop exit on the dip, got %+v", dec)
	}
}

func TestTargetRecrossWithoutStop(t *testing.T) {
	e := newExitEvaluator(testExitConfig())
	p := testPosition(100)
	p.targetsHit[0] = true // target 1 already banked
	now := time.Now()

	// Recrossing a hit target does nothing.
	dec, _ := e.evaluate(p, 103.5, now)
	if dec != nil {
		t.Fatalf("Expected no exit on recross, got %+v", dec)
	}
}

func TestHighestTargetWinsOnGap(t *testing.T) {
	e := newExitEvaluator(testExitConfig())
	p := testPosition(100)

	// Gap straight through all three targets: one full exit at target 3.
	dec, _ := e.evaluate(p, 115, time.Now())
	if dec == nil || dec.reason != types.ExitTarget3 {
		t.Fatalf("Expected TARGET_3 on the gap, got %+v", dec)
	}
	if dec.shares != 100 || !dec.full {
		t.Error("Expected the entire position out at target 3")
	}
	if dec.price != 112 {
		t.Errorf("Expected fill at 112, got %f", dec.price)
	}
}

func TestPartialRoundingEscalatesToFull(t *testing.T) {
	e := newExitEvaluator(testExitConfig())
	p := testPosition(2) // 40% of 2 floors to 0

	dec, _ := e.evaluate(p, 103, time.Now())
	if dec == nil || dec.reason != types.ExitTarget1 {
		t.Fatalf("Expected TARGET_1, got %+v", dec)
	}
	if dec.shares != 2 || !dec.full {
		t.Errorf("Expected escalation to a full 2-share exit, got %d (full=%v)", dec.shares, dec.full)
	}
}

func TestPartialNeverExceedsRemaining(t *testing.T) {
	e := newExitEvaluator(testExitConfig())
	p := testPosition(100)
	p.sharesRemaining = 30 // prior partials took 70
	p.targetsHit[0] = true

	// 40% of original (40) exceeds the 30 remaining: full exit instead.
	dec, _ := e.evaluate(p, 108, time.Now())
	if dec == nil || dec.reason != types.ExitTarget2 {
		t.Fatalf("Expected TARGET_2, got %+v", dec)
	}
	if dec.shares != 30 || !dec.full {
		t.Errorf("Expected full 30-share exit, got %d (full=%v)", dec.shares, dec.full)
	}
}
