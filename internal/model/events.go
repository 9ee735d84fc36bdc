package model

import "sync"

// Observer receives lifecycle and transfer events. All callbacks run on a
// single dispatcher goroutine: for a given session they arrive serialized,
// in order, and nothing follows the terminal event (success, error or
// cancellation).
type Observer interface {
	OnStatusChanged(state State)
	OnProgress(snap Snapshot)
	OnSuccess(path string)
	OnError(message string)
	OnCancelled()
}

type eventKind int

const (
	eventStatus eventKind = iota
	eventProgress
	eventSuccess
	eventError
	eventCancelled
)

type event struct {
	kind    eventKind
	state   State
	snap    Snapshot
	path    string
	message string

	// session scopes the event; terminal closes the session so stragglers
	// (late progress ticks) are dropped instead of delivered out of order.
	// Lifecycle-level events carry an empty session and are never dropped.
	session  string
	terminal bool
}

// dispatcher serializes event delivery so observers never see concurrent or
// out-of-order callbacks. publish appends to an unbounded queue under the
// mutex and never blocks, so producers may call it while holding their own
// locks; a single goroutine drains the queue and fans out to observers.
type dispatcher struct {
	mu        sync.Mutex
	cond      *sync.Cond
	observers map[int]Observer
	nextID    int
	closed    map[string]bool
	shutdown  bool
	queue     []event

	done chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		observers: make(map[int]Observer),
		closed:    make(map[string]bool),
		done:      make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// subscribe registers an observer and returns its unsubscribe function.
// Registration is explicit so a missed listener cannot silently swallow
// events.
func (d *dispatcher) subscribe(o Observer) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.observers[id] = o
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
	}
}

// publish enqueues an event and returns immediately. Events for a session
// that has already emitted its terminal event are dropped at the sender side
// so ordering holds even when producers race.
func (d *dispatcher) publish(ev event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown || (ev.session != "" && d.closed[ev.session]) {
		return
	}
	if ev.terminal && ev.session != "" {
		d.closed[ev.session] = true
	}
	d.queue = append(d.queue, ev)
	d.cond.Signal()
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.shutdown {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		batch := d.queue
		d.queue = nil
		observers := make([]Observer, 0, len(d.observers))
		for _, o := range d.observers {
			observers = append(observers, o)
		}
		d.mu.Unlock()

		for _, ev := range batch {
			for _, o := range observers {
				switch ev.kind {
				case eventStatus:
					o.OnStatusChanged(ev.state)
				case eventProgress:
					o.OnProgress(ev.snap)
				case eventSuccess:
					o.OnSuccess(ev.path)
				case eventError:
					o.OnError(ev.message)
				case eventCancelled:
					o.OnCancelled()
				}
			}
		}
	}
}

// close stops the dispatcher after draining queued events.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.shutdown {
		d.mu.Unlock()
		return
	}
	d.shutdown = true
	d.cond.Signal()
	d.mu.Unlock()

	<-d.done
}
