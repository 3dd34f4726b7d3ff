package trailing

import (
	"math"

	"github.com/pkg/errors"

	"tick_trader/internal/models"
)

// Config задаёт геометрию трейлинга для одной позиции.
// HardStopATRMultiplier и MinLossFloorPct приходят из настроек символа.
type Config struct {
	MinProfitThreshold    float64
	AccelerationStep      float64
	HardStopATRMultiplier float64
	MinLossFloorPct       float64
}

const (
	DefaultMinProfitThreshold = 0.005
	DefaultAccelerationStep   = 0.3
)

func ConfigFor(p models.CoinParams) Config {
	return Config{
		MinProfitThreshold:    DefaultMinProfitThreshold,
		AccelerationStep:      DefaultAccelerationStep,
		HardStopATRMultiplier: p.HardStopATRMultiplier,
		MinLossFloorPct:       p.MinLossFloorPct,
	}
}

// Decision — результат пересчёта стопа на очередном тике.
type Decision struct {
	Stop   float64
	Close  bool
	Reason models.ExitReason
}

var (
	ErrNotInitialized = errors.New("trailing: update before initialize")
	ErrStopDirection  = errors.New("trailing: stop moved against ratchet")
)

// State — трейлинг-состояние одной позиции. Владеет им воркер символа,
// поэтому без локов. Стоп двигается только в сторону позиции: для LONG
// не убывает, для SHORT не растёт.
type State struct {
	cfg     Config
	side    models.Side
	entry   float64
	extreme float64
	stop    float64
	ready   bool
}

func NewState(cfg Config) *State { return &State{cfg: cfg} }

// Initialize фиксирует вход и ставит первичный жёсткий стоп по текущему ATR.
func (s *State) Initialize(side models.Side, entry, atrPct float64) {
	s.side = side
	s.entry = entry
	s.extreme = entry
	hard := s.hardStopDistance(atrPct)
	if side == models.SideLong {
		s.stop = entry * (1 - hard)
	} else {
		s.stop = entry * (1 + hard)
	}
	s.ready = true
}

// Restore поднимает состояние из персистентного снапшота после рестарта:
// экстремум и стоп продолжаются с того места, где их оставил прошлый процесс.
func (s *State) Restore(side models.Side, entry, extreme, stop float64) {
	s.side = side
	s.entry = entry
	s.extreme = extreme
	s.stop = stop
	s.ready = true
}

func (s *State) Stop() float64    { return s.stop }
func (s *State) Extreme() float64 { return s.extreme }

// hardStopDistance = max(floor, atrPct·mult): на волатильных символах
// фиксированный процент слишком тесный и выбивает позицию раньше времени.
func (s *State) hardStopDistance(atrPct float64) float64 {
	return math.Max(s.cfg.MinLossFloorPct, atrPct*s.cfg.HardStopATRMultiplier)
}

// baseMultiplier — ширина трейлинга по режиму волатильности.
func baseMultiplier(atrPct float64) float64 {
	switch {
	case atrPct > 0.03:
		return 2.2
	case atrPct > 0.01:
		return 1.8
	default:
		return 1.5
	}
}

// Update пересчитывает экстремум и стоп по свежей цене и ATR.
// Возвращает решение закрыть позицию, когда цена пересекла стоп.
func (s *State) Update(price, atrPct float64) (Decision, error) {
	if !s.ready {
		return Decision{}, ErrNotInitialized
	}

	long := s.side == models.SideLong
	if long {
		s.extreme = math.Max(s.extreme, price)
	} else {
		s.extreme = math.Min(s.extreme, price)
	}

	// профит от экстремума; чем он больше, тем плотнее трейлинг
	var profit float64
	if long {
		profit = (s.extreme - s.entry) / s.entry
	} else {
		profit = (s.entry - s.extreme) / s.entry
	}

	dist := baseMultiplier(atrPct) * atrPct
	if profit > s.cfg.MinProfitThreshold {
		tightened := dist - 10*(profit-s.cfg.MinProfitThreshold)*s.cfg.AccelerationStep*atrPct
		dist = math.Max(1.0*atrPct, tightened)
	}
	if profit > 0.02 {
		dist = math.Max(0.8*atrPct, dist-0.5*atrPct)
	}

	// жёсткий стоп — кап убытка: стоп не бывает шире него, трейлинг может
	// только поджимать. Внешний max/min с текущим стопом держит храповик.
	var candidate, hardPrice, newStop float64
	hard := s.hardStopDistance(atrPct)
	if long {
		candidate = s.extreme * (1 - dist)
		hardPrice = s.entry * (1 - hard)
		newStop = math.Max(s.stop, math.Max(candidate, hardPrice))
		if newStop < s.stop {
			return Decision{}, errors.WithStack(ErrStopDirection)
		}
	} else {
		candidate = s.extreme * (1 + dist)
		hardPrice = s.entry * (1 + hard)
		newStop = math.Min(s.stop, math.Min(candidate, hardPrice))
		if newStop > s.stop {
			return Decision{}, errors.WithStack(ErrStopDirection)
		}
	}
	s.stop = newStop

	dec := Decision{Stop: newStop}
	triggered := (long && price <= newStop) || (!long && price >= newStop)
	if triggered {
		dec.Close = true
		// кто сработал: стоп туже жёсткого — значит, его поставил трейлинг
		trailingGoverns := (long && newStop > hardPrice) || (!long && newStop < hardPrice)
		if trailingGoverns {
			dec.Reason = models.ExitTrailingStop
		} else {
			dec.Reason = models.ExitHardStop
		}
	}
	return dec, nil
}
