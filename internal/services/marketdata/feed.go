// Package marketdata maintains bounded per-instrument histories of market
// snapshots collected from the exchange.
package marketdata

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/momotrade/momo/internal/domain"
)

const defaultMaxLookback = 200

// Feed owns a bounded snapshot buffer per instrument. Appends evict the
// oldest entry once the buffer reaches its capacity. All access is
// mutex-guarded: the data loop writes while decision passes and status
// queries read concurrently.
type Feed struct {
	mu          sync.RWMutex
	maxLookback int
	buffers     map[string][]domain.MarketSnapshot
}

// NewFeed creates a feed retaining up to maxLookback snapshots per
// instrument.
func NewFeed(maxLookback int) *Feed {
	if maxLookback <= 0 {
		maxLookback = defaultMaxLookback
	}
	return &Feed{
		maxLookback: maxLookback,
		buffers:     make(map[string][]domain.MarketSnapshot),
	}
}

// Append stores a snapshot, evicting the oldest entry beyond capacity.
func (f *Feed) Append(snapshot domain.MarketSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	buf := append(f.buffers[snapshot.Instrument], snapshot)
	if len(buf) > f.maxLookback {
		buf = buf[len(buf)-f.maxLookback:]
	}
	f.buffers[snapshot.Instrument] = buf
}

// Last returns the most recent snapshot for an instrument.
func (f *Feed) Last(instrument string) (domain.MarketSnapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	buf := f.buffers[instrument]
	if len(buf) == 0 {
		return domain.MarketSnapshot{}, false
	}
	return buf[len(buf)-1], true
}

// LastPrice returns the most recent close price for an instrument.
func (f *Feed) LastPrice(instrument string) (decimal.Decimal, bool) {
	snap, ok := f.Last(instrument)
	if !ok {
		return decimal.Decimal{}, false
	}
	return snap.Close, true
}

// Len returns the number of buffered snapshots for an instrument.
func (f *Feed) Len(instrument string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.buffers[instrument])
}

// Instruments lists instruments that currently have buffered data.
func (f *Feed) Instruments() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, 0, len(f.buffers))
	for instrument, buf := range f.buffers {
		if len(buf) > 0 {
			out = append(out, instrument)
		}
	}
	return out
}

// Snapshots returns a copy of the buffered history for an instrument,
// oldest first. Callers own the returned slice.
func (f *Feed) Snapshots(instrument string) []domain.MarketSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	buf := f.buffers[instrument]
	out := make([]domain.MarketSnapshot, len(buf))
	copy(out, buf)
	return out
}
