// Package progress throttles scan status lines to a wall-clock interval.
package progress

import (
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

type Phase int

const (
	PhasePrefilter Phase = iota
	PhaseConfirm
	PhaseMerge
)

func (p Phase) String() string {
	switch p {
	case PhasePrefilter:
		return "prefilter"
	case PhaseConfirm:
		return "confirm"
	case PhaseMerge:
		return "merge"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of a running phase.
type Status struct {
	Phase   Phase
	Current int
	Total   int
	Wasted  int64
	Path    string
}

// Printer renders statuses and summaries.
type Printer interface {
	Status(Status)
	Summary(line string)
}

// Reporter forwards at most one status per interval to its Printer. Summaries
// are never throttled.
type Reporter struct {
	printer Printer
	limiter *rate.Limiter
	now     func() time.Time
}

type Option func(*Reporter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		r.now = now
	}
}

// New creates a Reporter. A non-positive interval disables throttling.
func New(interval time.Duration, printer Printer, opts ...Option) *Reporter {
	if printer == nil {
		printer = Discard
	}
	r := &Reporter{printer: printer, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}

	if interval <= 0 {
		r.limiter = rate.NewLimiter(rate.Inf, 1)
		return r
	}
	r.limiter = rate.NewLimiter(rate.Every(interval), 1)
	// the first status is due one interval after start
	r.limiter.AllowN(r.now(), 1)
	return r
}

// Update emits s if the interval has elapsed since the last emission.
func (r *Reporter) Update(s Status) bool {
	if !r.limiter.AllowN(r.now(), 1) {
		return false
	}
	r.printer.Status(s)
	return true
}

// Finish always emits line.
func (r *Reporter) Finish(line string) {
	r.printer.Summary(line)
}

// Bytes formats n with binary units.
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

type discard struct{}

func (discard) Status(Status)  {}
func (discard) Summary(string) {}

// Discard drops everything.
var Discard Printer = discard{}
