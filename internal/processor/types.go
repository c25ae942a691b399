package processor

import (
	"log/slog"

	"dupdup/internal/hasher"
)

type Options struct {
	// PartialSize is the prefilter window in bytes.
	PartialSize   int64
	PartialBuffer int
	FullBuffer    int
	// Workers hashing concurrently. Bucket insertion always happens on one
	// goroutine in discovery order.
	Workers int
	// Exclude names files the run itself writes, such as the error log and
	// the report, so they are never hashed.
	Exclude []string
	Logger  *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		PartialSize:   4 * 1024,
		PartialBuffer: 4 * 1024,
		FullBuffer:    16 * 1024,
		Workers:       1,
	}
}

// Job is one candidate file. Err is set for entries the walker could not
// turn into a candidate; those are forwarded to the collector unhashed.
type Job struct {
	Seq  int
	Path string
	Size int64
	Err  error
}

// Result is a hashed Job. Err shadows Job.Err and is set for every failure,
// including the ones the walker already attached to the job.
type Result struct {
	Job
	Digest    hasher.Digest
	BytesRead int64
	Err       error
}

type Summary struct {
	Files      int // regular files enumerated
	Candidates int // files surviving the prefilter
	Groups     int
	Duplicates int // files in confirmed groups
	Errors     int

	// PartialWasted is a running estimate: the size of every file whose
	// prefilter digest had already been seen, in enumeration order.
	PartialWasted int64
	// Wasted is exact: for each confirmed group, every copy but the first.
	Wasted int64
}

// ErrorSink receives file-level failures.
type ErrorSink interface {
	Record(err error)
}

type discardErrors struct{}

func (discardErrors) Record(error) {}
