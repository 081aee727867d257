package broker

import "sync"

// Book tracks every order seen during a session. It is shared between the
// iteration loop and any externally injected submissions, so all access
// goes through one mutex.
type Book struct {
	mu     sync.Mutex
	orders map[string]*Order
	seq    []string // insertion order
}

func NewBook() *Book {
	return &Book{orders: make(map[string]*Order)}
}

func (b *Book) Add(o *Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.orders[o.ID]; !ok {
		b.seq = append(b.seq, o.ID)
	}
	b.orders[o.ID] = o
}

// Get returns a deep copy of the order, or nil if unknown.
func (b *Book) Get(orderID string) *Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[orderID]
	if !ok {
		return nil
	}
	return o.Clone()
}

// Open returns copies of all orders that are not yet complete.
func (b *Book) Open() []*Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	var open []*Order
	for _, id := range b.seq {
		if o := b.orders[id]; !o.IsComplete() {
			open = append(open, o.Clone())
		}
	}
	return open
}

// Filled returns copies of all completely filled orders, oldest first.
func (b *Book) Filled() []*Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	var done []*Order
	for _, id := range b.seq {
		if o := b.orders[id]; o.Status == Filled {
			done = append(done, o.Clone())
		}
	}
	return done
}

// Recent returns copies of the n most recently created orders, newest
// first.
func (b *Book) Recent(n int) []*Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.seq) {
		n = len(b.seq)
	}
	out := make([]*Order, 0, n)
	for i := len(b.seq) - 1; i >= len(b.seq)-n; i-- {
		out = append(out, b.orders[b.seq[i]].Clone())
	}
	return out
}

func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.seq)
}
