package stream

import (
	"sync"
	"sync/atomic"

	"github.com/nkiryanov/payengine/internal/logger"
)

// Decision is what a policy tells the pipeline to do after a failure
type Decision int

const (
	Continue Decision = iota
	Abort
)

// Stats counts outcomes during a run. Safe for concurrent use.
type Stats struct {
	processed atomic.Uint64
	skipped   atomic.Uint64

	mu          sync.Mutex
	abortReason error
}

func (s *Stats) AddProcessed() { s.processed.Add(1) }
func (s *Stats) AddSkipped()   { s.skipped.Add(1) }

func (s *Stats) Processed() uint64 { return s.processed.Load() }
func (s *Stats) Skipped() uint64   { return s.skipped.Load() }

// RecordAbort remembers the first abort reason; later calls are ignored
func (s *Stats) RecordAbort(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.abortReason == nil {
		s.abortReason = err
	}
}

// AbortReason returns the first recorded abort reason, nil if none
func (s *Stats) AbortReason() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.abortReason
}

// Policy classifies per-transaction failures and keeps run statistics.
// The stream processor consults it once per failed transaction; the engine
// processor itself never sees it.
type Policy interface {
	OnError(err error) Decision
	Stats() *Stats
}

// SkipErrors logs every failure and keeps going
type SkipErrors struct {
	logger logger.Logger
	stats  Stats
}

func NewSkipErrors(l logger.Logger) *SkipErrors {
	if l == nil {
		l = logger.NewNoOp()
	}
	return &SkipErrors{logger: l}
}

func (p *SkipErrors) OnError(err error) Decision {
	p.logger.Warn("transaction skipped", "error", err)
	return Continue
}

func (p *SkipErrors) Stats() *Stats { return &p.stats }

// AbortOnError logs the failure and stops the whole run
type AbortOnError struct {
	logger logger.Logger
	stats  Stats
}

func NewAbortOnError(l logger.Logger) *AbortOnError {
	if l == nil {
		l = logger.NewNoOp()
	}
	return &AbortOnError{logger: l}
}

func (p *AbortOnError) OnError(err error) Decision {
	p.logger.Error("aborting run", "error", err)
	return Abort
}

func (p *AbortOnError) Stats() *Stats { return &p.stats }

// SilentSkip keeps going without logging, for throughput-sensitive runs
type SilentSkip struct {
	stats Stats
}

func NewSilentSkip() *SilentSkip {
	return &SilentSkip{}
}

func (p *SilentSkip) OnError(err error) Decision { return Continue }

func (p *SilentSkip) Stats() *Stats { return &p.stats }
