package identity

import "sync"

// watcher delivers auth-state snapshots to one callback on its own
// goroutine, in the order the transitions happened.
type watcher struct {
	fn    func(*User)
	mu    sync.Mutex
	queue []*User
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newWatcher(fn func(*User)) *watcher {
	w := &watcher{fn: fn, wake: make(chan struct{}, 1), done: make(chan struct{})}
	go w.run()
	return w
}

func (w *watcher) push(u *User) {
	w.mu.Lock()
	w.queue = append(w.queue, u)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}
		for {
			w.mu.Lock()
			batch := w.queue
			w.queue = nil
			w.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, u := range batch {
				select {
				case <-w.done:
					return
				default:
				}
				w.fn(u)
			}
		}
	}
}

func (w *watcher) stop() {
	w.once.Do(func() { close(w.done) })
}
