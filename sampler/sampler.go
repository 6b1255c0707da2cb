package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/pgtelemetry/collector/state"
	"github.com/pgtelemetry/collector/util"
)

var (
	ErrAlreadyStarted = errors.New("sampler was already started")
	ErrNotRunning     = errors.New("sampler is not running")
)

// SessionSource returns the sessions that are active right now
type SessionSource interface {
	ActiveSessions(ctx context.Context, sampleTime time.Time) ([]state.ASHSample, error)
}

type Config struct {
	Interval       time.Duration
	Retention      time.Duration
	MaxMemoryBytes uint64
	MaxSamples     int
}

type lifecycle int

const (
	lifecycleStopped lifecycle = iota
	lifecycleRunning
	lifecycleShutdown
)

// ActiveSessionSampler keeps a time-ordered, bounded history of active
// sessions for one instance. Only the sampling goroutine appends to the
// buffer, readers always get a copy.
type ActiveSessionSampler struct {
	source SessionSource
	logger *util.Logger
	clock  Clock
	config Config

	samplesLock sync.RWMutex
	samples     []state.ASHSample
	evicted     uint64 // samples dropped from the front since creation

	lifecycleLock sync.Mutex
	lifecycle     lifecycle
	cancel        context.CancelFunc
	done          chan struct{}
}

func New(source SessionSource, logger *util.Logger, clock Clock, config Config) *ActiveSessionSampler {
	if clock == nil {
		clock = realClock{}
	}
	return &ActiveSessionSampler{
		source: source,
		logger: logger,
		clock:  clock,
		config: config,
	}
}

// Start spawns the background sampling task. A sampler can only be started
// once, it keeps running until Stop is called during shutdown.
func (s *ActiveSessionSampler) Start(ctx context.Context) error {
	s.lifecycleLock.Lock()
	defer s.lifecycleLock.Unlock()

	if s.lifecycle != lifecycleStopped {
		return ErrAlreadyStarted
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.lifecycle = lifecycleRunning

	ticker := s.clock.Ticker(s.config.Interval)
	go s.run(ctx, ticker, s.done)

	s.logger.PrintVerbose("Started active session sampling every %s (retention %s, memory limit %s, max %d samples)",
		s.config.Interval, s.config.Retention, humanize.IBytes(s.config.MaxMemoryBytes), s.config.MaxSamples)

	return nil
}

// Stop ends sampling and waits for an in-flight tick to finish
func (s *ActiveSessionSampler) Stop() error {
	s.lifecycleLock.Lock()
	if s.lifecycle != lifecycleRunning {
		s.lifecycleLock.Unlock()
		return ErrNotRunning
	}
	s.lifecycle = lifecycleShutdown
	cancel, done := s.cancel, s.done
	s.lifecycleLock.Unlock()

	cancel()
	<-done
	return nil
}

func (s *ActiveSessionSampler) IsRunning() bool {
	s.lifecycleLock.Lock()
	defer s.lifecycleLock.Unlock()
	return s.lifecycle == lifecycleRunning
}

func (s *ActiveSessionSampler) run(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			err := s.Tick(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.PrintWarning("Active session sample failed: %s", err)
			}
		}
	}
}

// Tick takes one sample. The buffer is only modified after the sessions were
// read successfully, so a failed or stuck query leaves it untouched.
//
// Before appending, the oldest 10% are evicted (repeatedly) while the new
// samples would push the memory estimate over the ceiling. Afterwards the
// sample count limit and the retention window are applied.
func (s *ActiveSessionSampler) Tick(ctx context.Context) error {
	now := s.clock.Now()

	sessions, err := s.source.ActiveSessions(ctx, now)
	if err != nil {
		return err
	}

	s.samplesLock.Lock()
	defer s.samplesLock.Unlock()

	if s.config.MaxMemoryBytes > 0 {
		evicted := 0
		incoming := uint64(len(sessions)) * state.EstimatedASHSampleBytes
		for len(s.samples) > 0 && s.estimatedBytesLocked()+incoming > s.config.MaxMemoryBytes {
			evicted += s.evictOldestLocked((len(s.samples) + 9) / 10)
		}
		if evicted > 0 {
			s.logger.PrintVerbose("Active session history reached %s, evicted the oldest %d samples",
				humanize.IBytes(s.config.MaxMemoryBytes), evicted)
		}
	}

	s.samples = append(s.samples, sessions...)

	if s.config.MaxSamples > 0 && len(s.samples) > s.config.MaxSamples {
		s.evictOldestLocked(len(s.samples) - s.config.MaxSamples)
	}

	if s.config.Retention > 0 {
		cutoff := now.Add(-s.config.Retention)
		expired := 0
		for expired < len(s.samples) && s.samples[expired].SampleTime.Before(cutoff) {
			expired++
		}
		s.evictOldestLocked(expired)
	}

	return nil
}

func (s *ActiveSessionSampler) estimatedBytesLocked() uint64 {
	return uint64(len(s.samples)) * state.EstimatedASHSampleBytes
}

func (s *ActiveSessionSampler) evictOldestLocked(n int) int {
	if n <= 0 {
		return 0
	}
	if n > len(s.samples) {
		n = len(s.samples)
	}
	// Copy down so the backing array stays bounded
	remaining := copy(s.samples, s.samples[n:])
	clear(s.samples[remaining:])
	s.samples = s.samples[:remaining]
	s.evicted += uint64(n)
	return n
}

// GetRecentSamples returns a copy of the samples taken within the window,
// oldest first. A zero window returns everything retained.
func (s *ActiveSessionSampler) GetRecentSamples(window time.Duration) []state.ASHSample {
	s.samplesLock.RLock()
	defer s.samplesLock.RUnlock()

	start := 0
	if window > 0 {
		cutoff := s.clock.Now().Add(-window)
		for start < len(s.samples) && s.samples[start].SampleTime.Before(cutoff) {
			start++
		}
	}

	result := make([]state.ASHSample, len(s.samples)-start)
	copy(result, s.samples[start:])
	return result
}

// Cursor is the sequence number of the next sample a reader has not seen yet.
// Every sample appended gets the next sequence number, eviction does not
// renumber the remaining ones.
type Cursor uint64

// SamplesSince returns a copy of all retained samples at or after the cursor,
// oldest first, and the cursor to pass on the next call. Samples evicted
// before they were read are skipped.
func (s *ActiveSessionSampler) SamplesSince(cursor Cursor) ([]state.ASHSample, Cursor) {
	s.samplesLock.RLock()
	defer s.samplesLock.RUnlock()

	next := Cursor(s.evicted + uint64(len(s.samples)))
	start := 0
	if uint64(cursor) > s.evicted {
		start = int(uint64(cursor) - s.evicted)
	}
	if start >= len(s.samples) {
		return nil, next
	}

	result := make([]state.ASHSample, len(s.samples)-start)
	copy(result, s.samples[start:])
	return result, next
}

// ClearSamples empties the buffer, sampling continues unaffected
func (s *ActiveSessionSampler) ClearSamples() {
	s.samplesLock.Lock()
	defer s.samplesLock.Unlock()

	s.logger.PrintWarning("Clearing %d active session samples (%s)", len(s.samples), humanize.IBytes(s.estimatedBytesLocked()))
	s.evicted += uint64(len(s.samples))
	s.samples = nil
}

func (s *ActiveSessionSampler) Len() int {
	s.samplesLock.RLock()
	defer s.samplesLock.RUnlock()
	return len(s.samples)
}

// EstimatedMemoryBytes - Heuristic buffer size, sample count times a fixed per-sample cost
func (s *ActiveSessionSampler) EstimatedMemoryBytes() uint64 {
	s.samplesLock.RLock()
	defer s.samplesLock.RUnlock()
	return s.estimatedBytesLocked()
}
