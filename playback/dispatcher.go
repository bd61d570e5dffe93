package playback

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/lumo"
	"github.com/vsariola/lumo/output"
)

type (
	// Dispatcher sends frames to fixtures without blocking the caller. Every
	// fixture gets its own goroutine and a bounded queue; a frame arriving
	// while the queue is full is dropped.
	Dispatcher struct {
		mu        sync.Mutex
		queueSize int
		workers   map[output.Fixture]*worker
		dropped   atomic.Int64
		wg        sync.WaitGroup
		log       *logrus.Entry
	}

	worker struct {
		frames chan lumo.ColorBuffer
	}
)

const DefaultQueueSize = 1

func NewDispatcher(queueSize int, log *logrus.Entry) *Dispatcher {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		queueSize: queueSize,
		workers:   map[output.Fixture]*worker{},
		log:       log.WithField("component", "dispatcher"),
	}
}

// Send queues colors for f, starting its goroutine on first use. It returns
// false if the frame was dropped.
func (d *Dispatcher) Send(f output.Fixture, colors lumo.ColorBuffer) bool {
	d.mu.Lock()
	w, ok := d.workers[f]
	if !ok {
		w = &worker{frames: make(chan lumo.ColorBuffer, d.queueSize)}
		d.workers[f] = w
		d.wg.Add(1)
		go d.run(f, w)
	}
	d.mu.Unlock()
	// the fixture owns the frame from here on
	frame := append(lumo.ColorBuffer(nil), colors...)
	if !TrySend(w.frames, frame) {
		if d.dropped.Add(1)%100 == 1 {
			d.log.WithField("fixture", f.Type()).Debug("fixture too slow, dropping frames")
		}
		return false
	}
	return true
}

func (d *Dispatcher) run(f output.Fixture, w *worker) {
	defer d.wg.Done()
	for frame := range w.frames {
		f.Send(frame)
	}
}

// Remove stops the goroutine of f after its queued frames are sent. The
// fixture itself is not closed.
func (d *Dispatcher) Remove(f output.Fixture) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok := d.workers[f]; ok {
		close(w.frames)
		delete(d.workers, f)
	}
}

// Len returns the number of fixtures with a running goroutine.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.workers)
}

// Dropped returns the number of frames dropped so far.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Close stops all goroutines and waits until the queued frames are sent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	for f, w := range d.workers {
		close(w.frames)
		delete(d.workers, f)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
