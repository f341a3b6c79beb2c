package market

import (
	"strings"
	"sync"
)

// History keeps a bounded FIFO of samples per symbol.
type History struct {
	mu       sync.RWMutex
	capacity int
	series   map[string][]PriceSample
}

// NewHistory constructs a history retaining at most capacity samples per symbol.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity, series: make(map[string][]PriceSample)}
}

// Capacity reports the per-symbol bound.
func (h *History) Capacity() int { return h.capacity }

// Append adds a sample, evicting the oldest once the bound is reached.
func (h *History) Append(symbol string, sample PriceSample) {
	symbol = normaliseSymbol(symbol)
	h.mu.Lock()
	defer h.mu.Unlock()
	s := append(h.series[symbol], sample)
	if over := len(s) - h.capacity; over > 0 {
		s = append(s[:0:0], s[over:]...)
	}
	h.series[symbol] = s
}

// Closes returns a copy of the stored prices, oldest first.
func (h *History) Closes(symbol string) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.series[normaliseSymbol(symbol)]
	out := make([]float64, len(s))
	for i, sample := range s {
		out[i] = sample.Price
	}
	return out
}

// Samples returns a copy of the stored samples, oldest first.
func (h *History) Samples(symbol string) []PriceSample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]PriceSample(nil), h.series[normaliseSymbol(symbol)]...)
}

// Len reports how many samples are stored for symbol.
func (h *History) Len(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.series[normaliseSymbol(symbol)])
}

// Last returns the newest sample.
func (h *History) Last(symbol string) (PriceSample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.series[normaliseSymbol(symbol)]
	if len(s) == 0 {
		return PriceSample{}, false
	}
	return s[len(s)-1], true
}

func normaliseSymbol(symbol string) string { return strings.ToUpper(strings.TrimSpace(symbol)) }
