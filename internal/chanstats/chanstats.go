// Package chanstats records traffic statistics for a websocket connection:
// frame sizes and inter-frame intervals in each direction, as running
// Welford statistics.
package chanstats

import (
	"sync"
	"time"

	"github.com/eclesh/welford"
)

// ChanStats accumulates statistics for one connection. Safe for concurrent
// use; the read and write paths record from different goroutines.
type ChanStats struct {
	mu          sync.Mutex
	connectedAt time.Time
	rx          direction
	tx          direction
}

type direction struct {
	last  time.Time
	bytes *welford.Stats
	dt    *welford.Stats
}

// Report is a point-in-time summary of a connection's traffic.
type Report struct {
	Connected string  `json:"connected"`
	Tx        Details `json:"tx"`
	Rx        Details `json:"rx"`
}

// Details summarises one direction.
type Details struct {
	Last  string       `json:"last"`
	Bytes WelfordStats `json:"bytes"`
	Dt    WelfordStats `json:"dt"`
}

// WelfordStats holds the running statistic values.
type WelfordStats struct {
	Count    uint64  `json:"count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Stddev   float64 `json:"stddev"`
	Variance float64 `json:"variance"`
}

// New returns initialised statistics for a connection established now.
func New() *ChanStats {
	return &ChanStats{
		connectedAt: time.Now(),
		rx:          direction{bytes: welford.New(), dt: welford.New()},
		tx:          direction{bytes: welford.New(), dt: welford.New()},
	}
}

// Reconnected restamps the connection time after a reconnect.
func (s *ChanStats) Reconnected() {
	s.mu.Lock()
	s.connectedAt = time.Now()
	s.mu.Unlock()
}

// RecordRx records a received frame of the given size.
func (s *ChanStats) RecordRx(bytes int) {
	s.mu.Lock()
	s.rx.record(bytes)
	s.mu.Unlock()
}

// RecordTx records a sent frame of the given size.
func (s *ChanStats) RecordTx(bytes int) {
	s.mu.Lock()
	s.tx.record(bytes)
	s.mu.Unlock()
}

func (d *direction) record(bytes int) {
	now := time.Now()
	if !d.last.IsZero() {
		dt := now.Sub(d.last)
		if dt < 24*time.Hour {
			d.dt.Add(dt.Seconds())
		}
	}
	d.last = now
	d.bytes.Add(float64(bytes))
}

// NewReport summarises the current statistics.
func (s *ChanStats) NewReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Report{
		Connected: s.connectedAt.String(),
		Rx:        *newDetails(&s.rx),
		Tx:        *newDetails(&s.tx),
	}
}

func newDetails(d *direction) *Details {
	return &Details{
		Last:  d.last.String(),
		Bytes: *newWelford(d.bytes),
		Dt:    *newWelford(d.dt),
	}
}

func newWelford(w *welford.Stats) *WelfordStats {
	return &WelfordStats{
		Count:    w.Count(),
		Min:      w.Min(),
		Max:      w.Max(),
		Mean:     w.Mean(),
		Stddev:   w.Stddev(),
		Variance: w.Variance(),
	}
}
