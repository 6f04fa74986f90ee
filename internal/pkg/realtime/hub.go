package realtime

import (
	"sync"

	"github.com/samber/lo"
)

// feed buffers updates for one subscriber so a slow reader never blocks the
// producer. Order of push is order of delivery.
type feed struct {
	out     chan Update
	done    chan struct{}
	signal  chan struct{}
	mu      sync.Mutex
	queue   []Update
	once    sync.Once
	release func()
}

func newFeed(release func()) *feed {
	f := &feed{
		out:     make(chan Update),
		done:    make(chan struct{}),
		signal:  make(chan struct{}, 1),
		release: release,
	}
	go f.pump()
	return f
}

func (f *feed) Updates() <-chan Update {
	return f.out
}

func (f *feed) Close() error {
	f.once.Do(func() {
		close(f.done)
		if f.release != nil {
			f.release()
		}
	})
	return nil
}

func (f *feed) push(u Update) {
	f.mu.Lock()
	f.queue = append(f.queue, u)
	f.mu.Unlock()
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

func (f *feed) pump() {
	defer close(f.out)
	for {
		select {
		case <-f.done:
			return
		case <-f.signal:
		}
		for {
			f.mu.Lock()
			if len(f.queue) == 0 {
				f.mu.Unlock()
				break
			}
			u := f.queue[0]
			f.queue = f.queue[1:]
			f.mu.Unlock()

			select {
			case f.out <- u:
			case <-f.done:
				return
			}
		}
	}
}

// Hub fans updates out to every subscriber of a path and remembers the last
// value so late subscribers start from the current state.
type Hub struct {
	// lifecycle serializes subscribe and remove, including their hooks, so
	// OnFirst and OnLast for a path always alternate.
	lifecycle sync.Mutex

	mu   sync.Mutex
	subs map[string]map[*feed]struct{}
	last map[string]Update
	// OnFirst is called when a path gets its first subscriber, OnLast after
	// the last one leaves. Both run without the delivery lock held and must
	// not subscribe or close subscriptions on this hub.
	OnFirst func(path string) error
	OnLast  func(path string)
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*feed]struct{}),
		last: make(map[string]Update),
	}
}

func (h *Hub) Subscribe(path string) (Subscription, error) {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	h.mu.Lock()
	first := len(h.subs[path]) == 0
	h.mu.Unlock()

	if first && h.OnFirst != nil {
		if err := h.OnFirst(path); err != nil {
			return nil, err
		}
	}

	var f *feed
	f = newFeed(func() { h.remove(path, f) })

	h.mu.Lock()
	if h.subs[path] == nil {
		h.subs[path] = make(map[*feed]struct{})
	}
	h.subs[path][f] = struct{}{}
	if u, ok := h.last[path]; ok {
		f.push(u)
	}
	h.mu.Unlock()
	return f, nil
}

func (h *Hub) remove(path string, f *feed) {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	h.mu.Lock()
	delete(h.subs[path], f)
	empty := len(h.subs[path]) == 0
	if empty {
		delete(h.subs, path)
		delete(h.last, path)
	}
	h.mu.Unlock()

	if empty && h.OnLast != nil {
		h.OnLast(path)
	}
}

// Publish records u as the latest value of its path and delivers it to
// every current subscriber. Error updates are delivered but not remembered.
func (h *Hub) Publish(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if u.Err == nil {
		h.last[u.Path] = u
	}
	for f := range h.subs[u.Path] {
		f.push(u)
	}
}

// Broadcast delivers err to the subscribers of every path.
func (h *Hub) Broadcast(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for path, feeds := range h.subs {
		for f := range feeds {
			f.push(Update{Path: path, Err: err})
		}
	}
}

func (h *Hub) Paths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo.Keys(h.subs)
}

// Close releases every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	feeds := []*feed{}
	for _, fs := range h.subs {
		feeds = append(feeds, lo.Keys(fs)...)
	}
	h.mu.Unlock()
	for _, f := range feeds {
		_ = f.Close()
	}
}
