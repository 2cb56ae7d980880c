// ABOUTME: Ordered completion delivery for scheduled blocks
// ABOUTME: Runs callbacks off the audio thread in the order blocks finished
package output

import "sync"

type completion struct {
	done func(error)
	err  error
}

// dispatcher delivers completions on one goroutine so the render path never
// runs caller code and callbacks keep their finishing order.
type dispatcher struct {
	mu    sync.Mutex
	queue []completion
	wake  chan struct{}
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) post(cs []completion) {
	if len(cs) == 0 {
		return
	}
	d.mu.Lock()
	d.queue = append(d.queue, cs...)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.wake:
			d.drain()
		case <-d.quit:
			d.drain()
			return
		}
	}
}

func (d *dispatcher) drain() {
	for {
		d.mu.Lock()
		queue := d.queue
		d.queue = nil
		d.mu.Unlock()

		if len(queue) == 0 {
			return
		}
		for _, c := range queue {
			if c.done != nil {
				c.done(c.err)
			}
		}
	}
}

// stop delivers anything queued and waits for the goroutine to exit
func (d *dispatcher) stop() {
	d.once.Do(func() { close(d.quit) })
	<-d.done
}
