package trailing

import (
	"math"
	"testing"

	"tick_trader/internal/models"
)

func cfg(hardMult, floor float64) Config {
	return Config{
		MinProfitThreshold:    DefaultMinProfitThreshold,
		AccelerationStep:      DefaultAccelerationStep,
		HardStopATRMultiplier: hardMult,
		MinLossFloorPct:       floor,
	}
}

func TestUpdate_BeforeInitializeIsError(t *testing.T) {
	s := NewState(cfg(2.0, 0.01))
	if _, err := s.Update(100, 0.01); err == nil {
		t.Fatal("expected error for update before initialize")
	}
}

func TestHardStop_ATRScaled(t *testing.T) {
	// ATR 4% при множителе 2.0 даёт дистанцию 8%, а не фиксированный 1%
	s := NewState(cfg(2.0, 0.01))
	s.Initialize(models.SideLong, 100, 0.04)

	if got := s.Stop(); math.Abs(got-92) > 1e-9 {
		t.Fatalf("expected initial stop 92, got %f", got)
	}

	dec, err := s.Update(93, 0.04)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Close {
		t.Fatalf("tick at 93 must not trigger the 92 stop")
	}
	if math.Abs(dec.Stop-92) > 1e-9 {
		t.Errorf("expected stop to stay at 92, got %f", dec.Stop)
	}

	dec, err = s.Update(91.9, 0.04)
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Close {
		t.Fatal("tick at 91.9 must trigger the 92 stop")
	}
	if dec.Reason != models.ExitHardStop {
		t.Errorf("expected HARD_STOP, got %s", dec.Reason)
	}
}

func TestLongStop_RatchetsUpAndTriggersTrailing(t *testing.T) {
	s := NewState(cfg(1.0, 0.01))
	s.Initialize(models.SideLong, 100, 0.01)
	if got := s.Stop(); math.Abs(got-99) > 1e-9 {
		t.Fatalf("expected initial stop 99, got %f", got)
	}

	dec, err := s.Update(100, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Close || math.Abs(dec.Stop-99) > 1e-9 {
		t.Fatalf("flat price must keep the hard stop: %+v", dec)
	}

	// забег вверх тянет стоп за экстремумом
	dec, err = s.Update(103, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Close {
		t.Fatal("no trigger on the way up")
	}
	// profit 3%: дистанция ужимается до 0.925% от экстремума 103
	wantStop := 103 * (1 - 0.00925)
	if math.Abs(dec.Stop-wantStop) > 1e-9 {
		t.Errorf("expected stop %f, got %f", wantStop, dec.Stop)
	}
	if dec.Stop <= 99 {
		t.Error("stop must have ratcheted above the initial hard stop")
	}

	// откат до стопа закрывает по трейлингу
	dec, err = s.Update(102, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Close || dec.Reason != models.ExitTrailingStop {
		t.Fatalf("expected TRAILING_STOP close, got %+v", dec)
	}
}

func TestLongStop_NeverDecreases(t *testing.T) {
	s := NewState(cfg(2.0, 0.01))
	s.Initialize(models.SideLong, 100, 0.005)

	prices := []float64{100, 101, 102.5, 104, 103, 103.8, 102.9}
	prev := s.Stop()
	for _, p := range prices {
		dec, err := s.Update(p, 0.005)
		if err != nil {
			t.Fatal(err)
		}
		if dec.Stop < prev {
			t.Fatalf("stop decreased: %f -> %f at price %f", prev, dec.Stop, p)
		}
		prev = dec.Stop
		if dec.Close {
			break
		}
	}
}

func TestShortStop_MirrorsLong(t *testing.T) {
	s := NewState(cfg(2.0, 0.01))
	s.Initialize(models.SideShort, 100, 0.04)
	if got := s.Stop(); math.Abs(got-108) > 1e-9 {
		t.Fatalf("expected initial short stop 108, got %f", got)
	}

	dec, err := s.Update(107, 0.04)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Close {
		t.Fatal("107 must not trigger the 108 stop")
	}

	dec, err = s.Update(108.2, 0.04)
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Close || dec.Reason != models.ExitHardStop {
		t.Fatalf("expected HARD_STOP at 108.2, got %+v", dec)
	}
}

func TestShortStop_NeverIncreases(t *testing.T) {
	s := NewState(cfg(2.0, 0.01))
	s.Initialize(models.SideShort, 100, 0.005)

	prices := []float64{100, 99, 97.5, 96, 97, 96.2}
	prev := s.Stop()
	for _, p := range prices {
		dec, err := s.Update(p, 0.005)
		if err != nil {
			t.Fatal(err)
		}
		if dec.Stop > prev {
			t.Fatalf("short stop increased: %f -> %f at price %f", prev, dec.Stop, p)
		}
		prev = dec.Stop
		if dec.Close {
			break
		}
	}
}

func TestDisabledHardStop_AllExitsAreTrailing(t *testing.T) {
	// огромный множитель фактически выключает жёсткий стоп
	s := NewState(cfg(1000, 0.01))
	s.Initialize(models.SideLong, 100, 0.001)

	if _, err := s.Update(110, 0.001); err != nil {
		t.Fatal(err)
	}
	dec, err := s.Update(109, 0.001)
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Close {
		t.Fatal("expected trailing trigger on pullback")
	}
	if dec.Reason != models.ExitTrailingStop {
		t.Errorf("hard stop disabled: reason must be TRAILING_STOP, got %s", dec.Reason)
	}
}
