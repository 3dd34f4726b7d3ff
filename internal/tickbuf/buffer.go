package tickbuf

import "tick_trader/internal/models"

// Buffer — кольцевой буфер последних тиков одного символа.
// Владелец — воркер символа, поэтому без локов.
type Buffer struct {
	ticks []models.Tick
	head  int
	size  int
}

const DefaultCapacity = 10000

func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{ticks: make([]models.Tick, capacity)}
}

// Append дописывает тик, вытесняя самый старый при переполнении.
func (b *Buffer) Append(t models.Tick) {
	idx := (b.head + b.size) % len(b.ticks)
	b.ticks[idx] = t
	if b.size < len(b.ticks) {
		b.size++
	} else {
		b.head = (b.head + 1) % len(b.ticks)
	}
}

func (b *Buffer) Len() int { return b.size }

func (b *Buffer) Cap() int { return len(b.ticks) }

// Last возвращает самый свежий тик.
func (b *Buffer) Last() (models.Tick, bool) {
	if b.size == 0 {
		return models.Tick{}, false
	}
	return b.at(b.size - 1), true
}

func (b *Buffer) at(i int) models.Tick {
	return b.ticks[(b.head+i)%len(b.ticks)]
}

// Recent — последние k тиков в хронологическом порядке.
// Если тиков меньше k — пустой срез: решать, считать ли индикаторы, должен вызывающий.
func (b *Buffer) Recent(k int) []models.Tick {
	if k <= 0 || b.size < k {
		return nil
	}
	out := make([]models.Tick, k)
	for i := 0; i < k; i++ {
		out[i] = b.at(b.size - k + i)
	}
	return out
}

// Since — тики за последние seconds секунд включая самый свежий.
// «Сейчас» — это время последнего тика, не wall clock.
// Если буфер покрывает меньше запрошенного окна — пустой срез.
func (b *Buffer) Since(seconds int) []models.Tick {
	if b.size == 0 || seconds <= 0 {
		return nil
	}
	if b.SpanSeconds() < float64(seconds) {
		return nil
	}
	cutoff := b.at(b.size-1).Timestamp - int64(seconds)*1000
	// бинарный поиск первого тика внутри окна
	lo, hi := 0, b.size
	for lo < hi {
		mid := (lo + hi) / 2
		if b.at(mid).Timestamp < cutoff {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	out := make([]models.Tick, b.size-lo)
	for i := lo; i < b.size; i++ {
		out[i-lo] = b.at(i)
	}
	return out
}

// SpanSeconds — покрытие буфера по времени, в секундах.
func (b *Buffer) SpanSeconds() float64 {
	if b.size < 2 {
		return 0
	}
	return float64(b.at(b.size-1).Timestamp-b.at(0).Timestamp) / 1000.0
}
