package engine

// ProgressEvent is a transient progress update delivered to the observer
// registered for a scan. Percentage is only meaningful when HasPercent is set;
// traversal emits message-only events because the total file count is unknown
// until it finishes.
type ProgressEvent struct {
	Message    string
	Percentage float64
	HasPercent bool
}

// ProgressFunc receives progress events for one operation. It is passed in
// per invocation rather than registered globally, so two concurrent scans
// never share observer state. Events from parallel workers are serialized
// before the function is called; implementations need no locking but should
// return quickly.
type ProgressFunc func(ProgressEvent)

func messageEvent(msg string) ProgressEvent {
	return ProgressEvent{Message: msg}
}

func percentEvent(msg string, done, total int64) ProgressEvent {
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	return ProgressEvent{Message: msg, Percentage: pct, HasPercent: true}
}

// progressSink serializes events from multiple workers into a single ordered
// stream so the observer never sees interleaved updates. A nil ProgressFunc
// yields a sink that drops everything.
type progressSink struct {
	ch   chan ProgressEvent
	done chan struct{}
}

func newProgressSink(fn ProgressFunc) *progressSink {
	s := &progressSink{
		ch:   make(chan ProgressEvent, 64),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for ev := range s.ch {
			if fn != nil {
				fn(ev)
			}
		}
	}()
	return s
}

func (s *progressSink) send(ev ProgressEvent) {
	s.ch <- ev
}

// close stops the sink after all queued events have been delivered.
func (s *progressSink) close() {
	close(s.ch)
	<-s.done
}
