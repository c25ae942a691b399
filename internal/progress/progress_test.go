package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type recorder struct {
	statuses  []Status
	summaries []string
}

func (r *recorder) Status(s Status)     { r.statuses = append(r.statuses, s) }
func (r *recorder) Summary(line string) { r.summaries = append(r.summaries, line) }

func TestReporterThrottlesToInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rec := &recorder{}
	r := New(time.Second, rec, WithClock(clock.now))

	if r.Update(Status{Current: 1}) {
		t.Fatalf("status emitted before the first interval elapsed")
	}

	clock.advance(1100 * time.Millisecond)
	if !r.Update(Status{Current: 2}) {
		t.Fatalf("status suppressed after the interval elapsed")
	}

	clock.advance(300 * time.Millisecond)
	if r.Update(Status{Current: 3}) {
		t.Fatalf("second status within one interval was emitted")
	}

	clock.advance(800 * time.Millisecond)
	if !r.Update(Status{Current: 4}) {
		t.Fatalf("status suppressed one interval after the last emission")
	}

	if len(rec.statuses) != 2 || rec.statuses[0].Current != 2 || rec.statuses[1].Current != 4 {
		t.Fatalf("unexpected statuses: %+v", rec.statuses)
	}
}

func TestReporterNeverThrottlesSummary(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	rec := &recorder{}
	r := New(time.Hour, rec, WithClock(clock.now))

	r.Update(Status{})
	r.Finish("first")
	r.Finish("second")

	if len(rec.statuses) != 0 {
		t.Fatalf("unexpected statuses: %+v", rec.statuses)
	}
	if strings.Join(rec.summaries, ",") != "first,second" {
		t.Fatalf("summaries were throttled: %v", rec.summaries)
	}
}

func TestReporterZeroIntervalEmitsEverything(t *testing.T) {
	rec := &recorder{}
	r := New(0, rec)
	for i := 0; i < 5; i++ {
		r.Update(Status{Current: i})
	}
	if len(rec.statuses) != 5 {
		t.Fatalf("expected 5 statuses, got %d", len(rec.statuses))
	}
}

func TestLinePrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewLinePrinter(&buf)

	p.Status(Status{Current: 3, Total: 10, Wasted: 2048, Path: "a/b"})
	got := buf.String()
	if !strings.HasPrefix(got, "\r\033[0K[3/10][2.0 KiB] a/b") {
		t.Fatalf("unexpected status line %q", got)
	}
	if len(got) != len("\r\033[0K[3/10][2.0 KiB] ")+DefaultPathWidth {
		t.Fatalf("path column not padded: %q", got)
	}
	if strings.Contains(got, "\n") {
		t.Fatalf("status line must not end the line: %q", got)
	}

	buf.Reset()
	p.Summary("done")
	if buf.String() != "\r\033[0Kdone\n" {
		t.Fatalf("unexpected summary %q", buf.String())
	}
}

func TestChannelPrinter(t *testing.T) {
	events := make(chan Event, 2)
	p := NewChannelPrinter(events, nil)
	p.Status(Status{Path: "x"})
	p.Summary("done")
	close(events)

	first := <-events
	if first.Status == nil || first.Status.Path != "x" {
		t.Fatalf("unexpected first event %+v", first)
	}
	second := <-events
	if second.Summary != "done" {
		t.Fatalf("unexpected second event %+v", second)
	}
}

func TestChannelPrinterStopsBlockingWhenDone(t *testing.T) {
	events := make(chan Event)
	done := make(chan struct{})
	p := NewChannelPrinter(events, done)

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		p.Status(Status{Path: "x"})
		p.Summary("never read")
	}()

	close(done)
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatalf("printer still blocked after done was closed")
	}
}
