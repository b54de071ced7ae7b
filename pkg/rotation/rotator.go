// Package rotation cycles the active MOTD payload through a configured list
// of precomputed messages. Reads are lock-free on the common "not due" path;
// a due rotation upgrades to the mutex and re-checks before mutating, so
// racing readers trigger at most one rotation per due period.
package rotation

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var rotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ultramotd_rotations_total",
	Help: "Total number of MOTD rotations by strategy",
}, []string{"strategy"})

// Strategy selects when and how the active message advances.
type Strategy int

const (
	// TimeBased rotates to the next message once the configured interval
	// has elapsed since the last rotation.
	TimeBased Strategy = iota

	// RequestBased rotates when the current index is a multiple of the
	// configured request count.
	RequestBased

	// Random rotates with a fixed per-check probability to a uniformly
	// random index.
	Random

	// Sequential never rotates automatically; only Force advances.
	Sequential
)

// randomChance is the per-check rotation probability for the Random
// strategy.
const randomChance = 0.1

// String returns the configuration spelling of the strategy.
func (s Strategy) String() string {
	switch s {
	case TimeBased:
		return "time-based"
	case RequestBased:
		return "request-based"
	case Random:
		return "random"
	case Sequential:
		return "sequential"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy converts a configuration string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "time-based":
		return TimeBased, nil
	case "request-based":
		return RequestBased, nil
	case "random":
		return Random, nil
	case "sequential":
		return Sequential, nil
	default:
		return 0, fmt.Errorf("unknown rotation strategy %q", s)
	}
}

// DefaultMessage is served when no messages are configured.
var DefaultMessage = json.RawMessage(`{"text":"UltraMOTD - High Performance MOTD"}`)

// Rotator holds the ordered message list and the active index. Current is
// called on the request path and must stay cheap; ReplaceMessages and Force
// come from reload handling and administration.
type Rotator struct {
	strategy            Strategy
	interval            time.Duration
	requestsPerRotation int
	logger              zerolog.Logger

	mu       sync.Mutex
	messages []json.RawMessage

	index        atomic.Int32
	current      atomic.Pointer[json.RawMessage]
	lastRotation atomic.Int64 // unix nanos
}

// NewRotator creates a rotator over messages. interval must be positive for
// the time-based strategy, requestsPerRotation for the request-based one.
func NewRotator(messages []json.RawMessage, strategy Strategy, interval time.Duration, requestsPerRotation int, logger zerolog.Logger) (*Rotator, error) {
	if strategy == TimeBased && interval <= 0 {
		return nil, fmt.Errorf("rotation: interval must be positive for time-based strategy, got %s", interval)
	}
	if strategy == RequestBased && requestsPerRotation <= 0 {
		return nil, fmt.Errorf("rotation: requests per rotation must be positive, got %d", requestsPerRotation)
	}

	r := &Rotator{
		strategy:            strategy,
		interval:            interval,
		requestsPerRotation: requestsPerRotation,
		logger:              logger,
		messages:            append([]json.RawMessage(nil), messages...),
	}
	if len(r.messages) > 0 {
		r.current.Store(&r.messages[0])
	}
	r.lastRotation.Store(time.Now().UnixNano())

	logger.Info().
		Stringer("strategy", strategy).
		Dur("interval", interval).
		Int("messages", len(r.messages)).
		Msg("MOTD rotator initialized")
	return r, nil
}

// Current returns the active message, rotating first if the strategy says a
// rotation is due. Falls back to DefaultMessage when no messages are
// configured.
func (r *Rotator) Current() json.RawMessage {
	if r.due() {
		r.mu.Lock()
		// Re-check under the lock so racing readers rotate once.
		if r.due() {
			r.rotateLocked()
		}
		r.mu.Unlock()
	}

	if m := r.current.Load(); m != nil {
		return *m
	}
	return DefaultMessage
}

// Force unconditionally advances to the next message, independent of the
// strategy's timing.
func (r *Rotator) Force() {
	r.mu.Lock()
	r.rotateLocked()
	r.mu.Unlock()
}

// ReplaceMessages atomically swaps the message list and resets to index 0.
// Used when the content configuration changes.
func (r *Rotator) ReplaceMessages(messages []json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append([]json.RawMessage(nil), messages...)
	r.index.Store(0)
	if len(r.messages) > 0 {
		r.current.Store(&r.messages[0])
	} else {
		r.current.Store(nil)
	}
	r.lastRotation.Store(time.Now().UnixNano())

	r.logger.Info().Int("messages", len(r.messages)).Msg("MOTD messages replaced")
}

// Index returns the active message index.
func (r *Rotator) Index() int {
	return int(r.index.Load())
}

// Count returns the number of configured messages.
func (r *Rotator) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// due is the lock-free fast-path check. It may report a stale true under
// races; rotateLocked runs only after a second check under the mutex.
func (r *Rotator) due() bool {
	switch r.strategy {
	case TimeBased:
		elapsed := time.Now().UnixNano() - r.lastRotation.Load()
		return elapsed >= r.interval.Nanoseconds()
	case RequestBased:
		return int(r.index.Load())%r.requestsPerRotation == 0
	case Random:
		return rand.Float64() < randomChance
	default:
		return false
	}
}

func (r *Rotator) rotateLocked() {
	if len(r.messages) == 0 {
		return
	}

	var next int
	switch r.strategy {
	case Random:
		next = rand.Intn(len(r.messages))
	default:
		next = (int(r.index.Load()) + 1) % len(r.messages)
	}

	r.index.Store(int32(next))
	r.current.Store(&r.messages[next])
	r.lastRotation.Store(time.Now().UnixNano())
	rotationsTotal.WithLabelValues(r.strategy.String()).Inc()

	r.logger.Debug().Int("index", next).Msg("Rotated MOTD")
}
