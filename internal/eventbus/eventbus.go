// Package eventbus is an in-process system event loop. Handlers subscribe to
// an event base (e.g. "WIFI_EVENT") and are called on the loop's dispatcher
// goroutine, never on the poster's.
package eventbus

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bigbag/papyrix-bringup/internal/log"
)

// DefaultQueueSize matches the ESP-IDF default event loop queue length.
const DefaultQueueSize = 32

var (
	ErrClosed    = errors.New("event loop closed")
	ErrQueueFull = errors.New("event queue full")
)

// Event is a lifecycle notification posted to the loop.
type Event interface {
	Base() string
	String() string
}

// Handler receives events of the base it subscribed to.
type Handler func(Event)

// Subscription is a registered handler. It stays active until Unsubscribe
// or until the loop is closed.
type Subscription struct {
	ID      ulid.ULID
	Base    string
	handler Handler
	loop    *Loop
}

// Unsubscribe removes the handler from its loop. Events already queued may
// still be delivered.
func (s *Subscription) Unsubscribe() {
	s.loop.remove(s)
}

// Loop dispatches posted events to subscribers.
type Loop struct {
	mu      sync.RWMutex
	subs    map[string][]*Subscription
	closed  bool
	entropy *rand.Rand

	queue chan Event
	done  chan struct{}
	wg    sync.WaitGroup
}

// New creates a loop and starts its dispatcher.
func New(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	l := &Loop{
		subs:    make(map[string][]*Subscription),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
	}

	l.wg.Add(1)
	go l.dispatch()

	return l
}

// Subscribe registers h for events whose Base equals base.
func (l *Loop) Subscribe(base string, h Handler) (*Subscription, error) {
	if base == "" {
		return nil, fmt.Errorf("event base must not be empty")
	}
	if h == nil {
		return nil, fmt.Errorf("handler for %s must not be nil", base)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	s := &Subscription{
		ID:      ulid.MustNew(ulid.Timestamp(time.Now()), l.entropy),
		Base:    base,
		handler: h,
		loop:    l,
	}
	l.subs[base] = append(l.subs[base], s)

	log.Debug().Str("base", base).Str("id", s.ID.String()).Msg("Subscribed")
	return s, nil
}

func (l *Loop) remove(s *Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()

	subs := l.subs[s.Base]
	for i, sub := range subs {
		if sub == s {
			l.subs[s.Base] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Post queues ev for delivery without blocking.
func (l *Loop) Post(ev Event) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return ErrClosed
	}

	select {
	case l.queue <- ev:
		return nil
	default:
		return fmt.Errorf("failed to post %s: %w", ev, ErrQueueFull)
	}
}

// Close stops the dispatcher after delivering the events already queued.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	close(l.done)
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

func (l *Loop) dispatch() {
	defer l.wg.Done()

	for {
		select {
		case ev := <-l.queue:
			l.deliver(ev)
		case <-l.done:
			for {
				select {
				case ev := <-l.queue:
					l.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (l *Loop) deliver(ev Event) {
	l.mu.RLock()
	subs := append([]*Subscription(nil), l.subs[ev.Base()]...)
	l.mu.RUnlock()

	for _, s := range subs {
		l.call(s, ev)
	}
}

func (l *Loop) call(s *Subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("base", s.Base).
				Str("id", s.ID.String()).
				Interface("panic", r).
				Msg("Event handler panicked")
		}
	}()
	s.handler(ev)
}
