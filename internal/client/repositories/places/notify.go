package places

import "sync"

// ChangeKind tells listeners what happened to the records in a ChangeEvent.
type ChangeKind string

const (
	ChangeUpserted ChangeKind = "upserted"
	ChangeSynced   ChangeKind = "synced"
	ChangePurged   ChangeKind = "purged"
)

type ChangeEvent struct {
	Kind ChangeKind
	IDs  []string
}

type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan ChangeEvent
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]chan ChangeEvent)}
}

func (n *notifier) subscribe(buffer int) (<-chan ChangeEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan ChangeEvent, buffer)

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(ch)
		})
	}
}

// publish never blocks; a listener with a full buffer misses the event.
func (n *notifier) publish(ev ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
