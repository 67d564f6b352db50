package session

import "context"

type watcher struct {
	ch chan Snapshot
}

// offer replaces any undelivered snapshot with s. Callers hold r.mu, so a
// watcher never receives an older snapshot after a newer one.
func (w *watcher) offer(s Snapshot) {
	s.Session = s.Session.Clone()
	for {
		select {
		case w.ch <- s:
			return
		default:
		}
		select {
		case <-w.ch:
		default:
		}
	}
}

// Watch returns a channel that first yields the current snapshot and then
// every later one. A slow reader only misses intermediate snapshots, never
// the latest. The channel is closed when ctx ends or the reconciler closes.
func (r *Reconciler) Watch(ctx context.Context) <-chan Snapshot {
	w := &watcher{ch: make(chan Snapshot, 1)}

	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		close(w.ch)
		return w.ch
	default:
	}
	r.watchers[w] = struct{}{}
	w.offer(*r.current.Load())
	r.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-r.done:
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.watchers[w]; ok {
			delete(r.watchers, w)
			close(w.ch)
		}
	}()
	return w.ch
}
