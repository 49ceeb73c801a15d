package conversation

import "sync"

// ChangeKind classifies a [Change].
type ChangeKind int

const (
	// ChangeAll means an unknown set of changes: every view must refresh. It
	// is delivered when a subscriber fell behind.
	ChangeAll ChangeKind = iota
	SessionCreated
	SessionDeleted
	EntrySaved
)

// Change describes one mutation of the store.
type Change struct {
	Kind      ChangeKind
	SessionID string
}

// Affects reports whether a view of sessionID's entries must refresh.
func (c Change) Affects(sessionID string) bool {
	switch c.Kind {
	case ChangeAll:
		return true
	case EntrySaved, SessionDeleted:
		return c.SessionID == sessionID
	default:
		return false
	}
}

const subscriberBuffer = 16

// Notifier fans store changes out to subscribers. Store implementations embed
// it and call Publish after every committed write. Publish never blocks: a
// subscriber whose buffer is full has its oldest pending change replaced by
// [ChangeAll].
type Notifier struct {
	mu     sync.Mutex
	subs   map[int]chan Change
	nextID int
	closed bool
}

// Subscribe implements [Store.Subscribe].
func (n *Notifier) Subscribe() (<-chan Change, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan Change, subscriberBuffer)
	if n.closed {
		close(ch)
		return ch, func() {}
	}
	if n.subs == nil {
		n.subs = make(map[int]chan Change)
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if c, ok := n.subs[id]; ok {
				delete(n.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers c to every subscriber.
func (n *Notifier) Publish(c Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- c:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- Change{Kind: ChangeAll}:
			default:
			}
		}
	}
}

// CloseSubscribers closes every subscription. Later Subscribe calls return a
// closed channel.
func (n *Notifier) CloseSubscribers() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}
