package sqlite

import (
	"sync"

	"github.com/example/roster-draft/internal/persistence"
)

type collection string

const (
	collectionLocks        collection = "locks"
	collectionParticipants collection = "participants"
)

// storeEvent is one change notification published after a successful write.
type storeEvent struct {
	collection  collection
	change      persistence.ChangeType
	guildID     string
	eventID     string
	lock        persistence.Lock
	participant persistence.Participant
}

// notifier is the store's in-process change feed. Delivery is best effort: a
// subscriber whose buffer is full is disconnected (its channel closed), the
// same way a remote feed drops a slow consumer. Subscribers must treat a
// closed channel as feed loss and recover with a full read.
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan storeEvent
	buffer int
}

func newNotifier(buffer int) *notifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &notifier{subs: make(map[int]chan storeEvent), buffer: buffer}
}

// subscribe registers a new consumer. The returned func cancels the
// subscription and closes the channel.
func (n *notifier) subscribe() (<-chan storeEvent, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan storeEvent, n.buffer)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publish fans the event out to every subscriber.
func (n *notifier) publish(ev storeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, sub := range n.subs {
		select {
		case sub <- ev:
		default:
			delete(n.subs, id)
			close(sub)
		}
	}
}

// close disconnects every subscriber.
func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, sub := range n.subs {
		delete(n.subs, id)
		close(sub)
	}
}
