package tracker

import "sync"

// lifecycle runs one background loop at a time with restartable Start/Stop.
type lifecycle struct {
	mu       sync.Mutex    // Guards the fields below.
	stopCh   chan struct{} // Signals the loop to stop.
	doneCh   chan struct{} // Closes when the loop exits.
	running  bool          // True while a loop goroutine is active.
	stopping bool          // True while stop waits for the loop to exit.
}

// start launches run in a goroutine unless one is already active. run must
// return once stop is closed. Channels are recreated so start works again
// after stop.
func (l *lifecycle) start(run func(stop <-chan struct{})) bool {
	l.mu.Lock()
	if l.running || l.stopping {
		l.mu.Unlock()
		return false
	}
	l.running = true
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	l.stopCh = stopCh
	l.doneCh = doneCh
	l.mu.Unlock()

	go func() {
		defer close(doneCh)
		run(stopCh)
	}()
	return true
}

// stop signals the loop and waits for it to exit.
func (l *lifecycle) stop() {
	l.mu.Lock()
	if !l.running || l.stopping {
		l.mu.Unlock()
		return
	}
	l.stopping = true
	stopCh := l.stopCh
	doneCh := l.doneCh
	l.mu.Unlock()

	close(stopCh)
	<-doneCh

	l.mu.Lock()
	l.running = false
	l.stopping = false
	l.mu.Unlock()
}

// done returns a channel closed when the current loop exits. Before the
// first start it returns a closed channel.
func (l *lifecycle) done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.doneCh == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return l.doneCh
}

// isRunning reports whether a loop is active.
func (l *lifecycle) isRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
