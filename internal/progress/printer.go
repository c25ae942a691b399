package progress

import (
	"fmt"
	"io"
)

// DefaultPathWidth pads the path column so a shorter path fully overwrites a
// longer one on the same terminal line.
const DefaultPathWidth = 100

// LinePrinter overwrites a single terminal line with each status.
type LinePrinter struct {
	w     io.Writer
	width int
}

func NewLinePrinter(w io.Writer) *LinePrinter {
	return &LinePrinter{w: w, width: DefaultPathWidth}
}

func (p *LinePrinter) Status(s Status) {
	fmt.Fprintf(p.w, "\r\033[0K[%d/%d][%s] %-*s", s.Current, s.Total, Bytes(s.Wasted), p.width, s.Path)
}

func (p *LinePrinter) Summary(line string) {
	fmt.Fprintf(p.w, "\r\033[0K%s\n", line)
}

// Event is what a ChannelPrinter sends: either a status or a summary line.
type Event struct {
	Status  *Status
	Summary string
}

// ChannelPrinter forwards to a consumer such as the interactive view. Sends
// block until the consumer takes the event or done is closed. Once done is
// closed the printer never blocks and undelivered events are dropped.
type ChannelPrinter struct {
	events chan<- Event
	done   <-chan struct{}
}

func NewChannelPrinter(events chan<- Event, done <-chan struct{}) *ChannelPrinter {
	return &ChannelPrinter{events: events, done: done}
}

func (p *ChannelPrinter) Status(s Status) {
	p.send(Event{Status: &s})
}

func (p *ChannelPrinter) Summary(line string) {
	p.send(Event{Summary: line})
}

func (p *ChannelPrinter) send(e Event) {
	select {
	case p.events <- e:
	case <-p.done:
	}
}
