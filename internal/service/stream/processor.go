package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nkiryanov/payengine/internal/ingress"
	"github.com/nkiryanov/payengine/internal/logger"
	"github.com/nkiryanov/payengine/internal/service/engine"
)

// Combinator controls how streams multiplexed onto one shard are consumed
type Combinator int

const (
	// Merge interleaves the shard's streams fairly at transaction boundaries
	Merge Combinator = iota
	// Chain drains the shard's streams one after another in subscription order
	Chain
)

// Assignment controls how streams are mapped to shards at subscription time
type Assignment int

const (
	// RoundRobin spreads streams across shards: stream i goes to shard i mod n
	RoundRobin Assignment = iota
	// Sequential packs streams: the first ceil(total/n) streams go to shard 0
	Sequential
)

// Config for a stream processor run. The zero value means one shard,
// Merge, RoundRobin and a SkipErrors policy.
type Config struct {
	Shards     int
	Combinator Combinator
	Assignment Assignment
	Policy     Policy
	Logger     logger.Logger
}

// StreamReport holds per-stream counters of a finished run
type StreamReport struct {
	ID        uuid.UUID `json:"id"`
	Processed uint64    `json:"processed"`
	Skipped   uint64    `json:"skipped"`
}

// Report aggregates the outcome of a run
type Report struct {
	Streams   []StreamReport `json:"streams"`
	Processed uint64         `json:"processed"`
	Skipped   uint64         `json:"skipped"`
	Aborted   bool           `json:"aborted"`

	// AbortReason is the first error that stopped the run, nil otherwise
	AbortReason error `json:"-"`
}

type streamState struct {
	id        uuid.UUID
	source    ingress.Ingress
	processed atomic.Uint64
	skipped   atomic.Uint64
}

// StreamProcessor drives one or more ingress streams through shard workers
// that share a single engine processor. Each stream is statically assigned
// to one shard; per-stream order is always preserved. Pulling is
// demand-driven: a worker asks for the next transaction only after the
// current one finished, so slow consumers backpressure producers.
//
// Assemble with AddStream, then call Run once.
type StreamProcessor struct {
	processor *engine.Processor
	cfg       Config
	streams   []*streamState
}

func New(processor *engine.Processor, cfg Config) *StreamProcessor {
	if cfg.Shards < 1 {
		cfg.Shards = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOp()
	}
	if cfg.Policy == nil {
		cfg.Policy = NewSkipErrors(cfg.Logger)
	}

	return &StreamProcessor{
		processor: processor,
		cfg:       cfg,
	}
}

// AddStream subscribes an ingress and returns its id for the report.
// Not safe to call concurrently with Run.
func (sp *StreamProcessor) AddStream(source ingress.Ingress) uuid.UUID {
	st := &streamState{id: uuid.New(), source: source}
	sp.streams = append(sp.streams, st)
	return st.id
}

// Run consumes every subscribed stream to completion and returns the
// aggregate report. It returns ctx.Err() when cancelled from outside;
// a policy-driven abort is reported in Report.AbortReason instead.
// Cancellation takes effect between transactions: an in-flight transaction
// always runs to completion, so no account is left half-applied.
func (sp *StreamProcessor) Run(ctx context.Context) (*Report, error) {
	if len(sp.streams) == 0 {
		return &Report{}, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for shardID, shardStreams := range sp.assign() {
		if len(shardStreams) == 0 {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					sp.cfg.Policy.Stats().RecordAbort(fmt.Errorf("shard %d panicked: %v", shardID, r))
					cancel()
				}
			}()

			sp.runShard(runCtx, cancel, shardStreams)
		}()
	}
	wg.Wait()

	report := sp.buildReport()
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// assign maps streams to shards per the configured strategy
func (sp *StreamProcessor) assign() [][]*streamState {
	shards := make([][]*streamState, sp.cfg.Shards)
	total := len(sp.streams)

	for i, st := range sp.streams {
		var shard int
		switch sp.cfg.Assignment {
		case Sequential:
			chunk := (total + sp.cfg.Shards - 1) / sp.cfg.Shards
			shard = min(i/chunk, sp.cfg.Shards-1)
		default:
			shard = i % sp.cfg.Shards
		}
		shards[shard] = append(shards[shard], st)
	}

	return shards
}

func (sp *StreamProcessor) runShard(ctx context.Context, cancel context.CancelFunc, streams []*streamState) {
	switch sp.cfg.Combinator {
	case Chain:
		for _, st := range streams {
			if !sp.drain(ctx, cancel, st) {
				return
			}
		}

	default: // Merge: one transaction per stream per turn
		active := make([]*streamState, len(streams))
		copy(active, streams)

		i := 0
		for len(active) > 0 {
			if ctx.Err() != nil {
				return
			}

			cont, alive := sp.step(ctx, cancel, active[i])
			if !cont {
				return
			}
			if !alive {
				active = append(active[:i], active[i+1:]...)
				if len(active) == 0 {
					return
				}
				i %= len(active)
				continue
			}
			i = (i + 1) % len(active)
		}
	}
}

// drain consumes a single stream until it ends. Returns false when the
// shard must stop (abort or cancellation).
func (sp *StreamProcessor) drain(ctx context.Context, cancel context.CancelFunc, st *streamState) bool {
	for {
		if ctx.Err() != nil {
			return false
		}

		cont, alive := sp.step(ctx, cancel, st)
		if !cont {
			return false
		}
		if !alive {
			return true
		}
	}
}

// step pulls and processes one transaction from the stream.
// cont=false stops the whole shard; alive=false retires this stream.
func (sp *StreamProcessor) step(ctx context.Context, cancel context.CancelFunc, st *streamState) (cont bool, alive bool) {
	tx, err := st.source.Next(ctx)

	var recordErr *ingress.RecordError
	switch {
	case err == nil:
		if perr := sp.processor.Process(tx); perr != nil {
			return sp.handleFailure(cancel, st, perr), true
		}
		st.processed.Add(1)
		sp.cfg.Policy.Stats().AddProcessed()
		return true, true

	case errors.Is(err, io.EOF):
		return true, false

	case ctx.Err() != nil:
		return false, false

	case errors.As(err, &recordErr):
		return sp.handleFailure(cancel, st, err), true

	default:
		// The source itself failed; this stream yields nothing more
		sp.cfg.Logger.Warn("ingress failed, retiring stream", "stream", st.id, "error", err)
		return sp.handleFailure(cancel, st, err), false
	}
}

func (sp *StreamProcessor) handleFailure(cancel context.CancelFunc, st *streamState, err error) bool {
	st.skipped.Add(1)
	sp.cfg.Policy.Stats().AddSkipped()

	if sp.cfg.Policy.OnError(err) == Abort {
		sp.cfg.Policy.Stats().RecordAbort(err)
		cancel()
		return false
	}
	return true
}

func (sp *StreamProcessor) buildReport() *Report {
	stats := sp.cfg.Policy.Stats()

	report := &Report{
		Streams:     make([]StreamReport, 0, len(sp.streams)),
		Processed:   stats.Processed(),
		Skipped:     stats.Skipped(),
		AbortReason: stats.AbortReason(),
	}
	report.Aborted = report.AbortReason != nil

	for _, st := range sp.streams {
		report.Streams = append(report.Streams, StreamReport{
			ID:        st.id,
			Processed: st.processed.Load(),
			Skipped:   st.skipped.Load(),
		})
	}

	return report
}
