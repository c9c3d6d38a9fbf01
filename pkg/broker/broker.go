// Package broker builds the run log: an ordered, single-writer channel whose
// subscribers are called synchronously, in subscription order, before Publish
// returns.
//
// A Broker lives for one protocol execution. There is no shared default instance.
package broker

import (
	"errors"
	"sync"
	"time"

	"github.com/aretw0/pipette/pkg/domain"
	"github.com/google/uuid"
)

// ErrReentrantPublish is the panic value raised when Publish is called while
// another Publish on the same broker has not returned, either from a subscriber
// or from another goroutine.
var ErrReentrantPublish = errors.New("broker: publish called while another publish is in progress")

// Subscriber receives every record after it has been appended to the log.
type Subscriber func(domain.CommandRecord)

type subscription struct {
	id int
	fn Subscriber
}

// Broker collects the run log of one execution.
type Broker struct {
	mu         sync.Mutex
	log        []domain.CommandRecord
	subs       []subscription
	nextID     int
	publishing bool

	now   func() time.Time
	newID func() string
}

// Option configures a Broker.
type Option func(*Broker)

// WithClock sets the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		b.now = now
	}
}

// WithIDGenerator sets the function used to assign record IDs.
func WithIDGenerator(gen func() string) Option {
	return func(b *Broker) {
		b.newID = gen
	}
}

// New creates an empty broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers fn and returns a function that removes it.
func (b *Broker) Subscribe(fn Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish stamps rec with an ID and timestamp, appends it to the log and calls
// every subscriber. The stamped record is returned.
//
// Publishing from a subscriber, or concurrently, is a programming error and panics
// with ErrReentrantPublish.
func (b *Broker) Publish(rec domain.CommandRecord) domain.CommandRecord {
	b.mu.Lock()
	if b.publishing {
		b.mu.Unlock()
		panic(ErrReentrantPublish)
	}
	b.publishing = true
	rec.ID = b.newID()
	rec.Timestamp = b.now()
	b.log = append(b.log, rec)
	subs := append([]subscription(nil), b.subs...)
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.publishing = false
		b.mu.Unlock()
	}()

	for _, s := range subs {
		s.fn(rec)
	}
	return rec
}

// Log returns a copy of the records published so far.
func (b *Broker) Log() []domain.CommandRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.CommandRecord(nil), b.log...)
}

// Len returns the number of published records.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.log)
}

// Drain hands the log to the caller and starts a new, empty one.
func (b *Broker) Drain() []domain.CommandRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.log
	b.log = nil
	if out == nil {
		out = []domain.CommandRecord{}
	}
	return out
}
