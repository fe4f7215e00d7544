package execution

import (
	"sync"

	"kraken-mm/pkg/types"
)

// reportSubBuffer is the per-subscriber channel depth. A subscriber that
// falls behind by this many reports receives a synthetic Lagged notification
// instead of blocking the broadcaster.
const reportSubBuffer = 10_000

// ReportLagged is delivered to a subscriber in place of the reports it
// missed while its channel was full.
type ReportLagged struct {
	Dropped int
}

// ReportMsg is either a report or a Lagged marker, mirroring the
// broadcast-channel contract of Ok(report)/Lagged(n)/Closed.
type ReportMsg struct {
	Report types.OrderReport
	Lagged *ReportLagged
}

// ReportBroadcaster fans a single stream of venue execution reports out to
// any number of independently-paced subscribers (the event loop, an
// order-report logger, policies with their own timers). There is no native
// broadcast-with-lag-detection primitive in the standard library, so this
// is a small hand-rolled fan-out: one input, N bounded output channels.
// A full subscriber channel never blocks the broadcaster — it drops the
// report and records a Lagged count, delivered just ahead of the next
// report that fits into the subscriber's channel.
type ReportBroadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan ReportMsg
	lagged map[int]int
	nextID int
	closed bool
}

// NewReportBroadcaster creates an empty broadcaster.
func NewReportBroadcaster() *ReportBroadcaster {
	return &ReportBroadcaster{
		subs:   make(map[int]chan ReportMsg),
		lagged: make(map[int]int),
	}
}

// ReportSubscription is a single consumer's view of the broadcast stream.
type ReportSubscription struct {
	id int
	ch chan ReportMsg
	b  *ReportBroadcaster
}

// Subscribe registers a new bounded output channel.
func (b *ReportBroadcaster) Subscribe() *ReportSubscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan ReportMsg, reportSubBuffer)
	b.subs[id] = ch

	return &ReportSubscription{id: id, ch: ch, b: b}
}

// Unsubscribe removes the subscription and closes its channel.
func (s *ReportSubscription) Unsubscribe() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	if ch, ok := s.b.subs[s.id]; ok {
		delete(s.b.subs, s.id)
		delete(s.b.lagged, s.id)
		close(ch)
	}
}

// C returns the channel to select/range over.
func (s *ReportSubscription) C() <-chan ReportMsg { return s.ch }

// Send publishes a report to every current subscriber. A subscriber whose
// channel is full is skipped (never blocked) and its lag counter increments;
// the next successful delivery to that subscriber is preceded by a
// synthetic Lagged message carrying the accumulated drop count.
func (b *ReportBroadcaster) Send(report types.OrderReport) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for id, ch := range b.subs {
		if n := b.lagged[id]; n > 0 {
			select {
			case ch <- ReportMsg{Lagged: &ReportLagged{Dropped: n}}:
				b.lagged[id] = 0
			default:
				b.lagged[id] = n + 1
				continue
			}
		}

		select {
		case ch <- ReportMsg{Report: report}:
		default:
			b.lagged[id]++
		}
	}
}

// Close closes every subscriber channel and prevents further sends.
func (b *ReportBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
		delete(b.lagged, id)
	}
}
