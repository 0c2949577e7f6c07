package server

import "sync"

// notifier broadcasts reload signals to subscribed listeners.
type notifier struct {
	mu        sync.RWMutex
	listeners map[chan struct{}]struct{}
}

func newNotifier() *notifier {
	return &notifier{listeners: make(map[chan struct{}]struct{})}
}

// subscribe returns a channel that receives a ping after each reload. The
// caller must unsubscribe when done.
func (n *notifier) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

func (n *notifier) unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// broadcast never blocks; a full channel already has a pending ping.
func (n *notifier) broadcast() {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
