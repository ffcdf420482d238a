package eventbus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	base string
	id   int
}

func (e testEvent) Base() string   { return e.base }
func (e testEvent) String() string { return fmt.Sprintf("%s/%d", e.base, e.id) }

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestSubscribe_DeliversMatchingBase(t *testing.T) {
	loop := New(0)
	defer loop.Close()

	wifi := make(chan Event, 4)
	ip := make(chan Event, 4)

	_, err := loop.Subscribe("WIFI_EVENT", func(ev Event) { wifi <- ev })
	require.NoError(t, err)
	_, err = loop.Subscribe("IP_EVENT", func(ev Event) { ip <- ev })
	require.NoError(t, err)

	require.NoError(t, loop.Post(testEvent{base: "WIFI_EVENT", id: 1}))
	require.NoError(t, loop.Post(testEvent{base: "IP_EVENT", id: 2}))

	assert.Equal(t, testEvent{base: "WIFI_EVENT", id: 1}, recv(t, wifi))
	assert.Equal(t, testEvent{base: "IP_EVENT", id: 2}, recv(t, ip))

	require.NoError(t, loop.Close())
	assert.Empty(t, wifi)
	assert.Empty(t, ip)
}

func TestSubscribe_OrderWithinBase(t *testing.T) {
	loop := New(16)

	var mu sync.Mutex
	var got []int
	_, err := loop.Subscribe("WIFI_EVENT", func(ev Event) {
		mu.Lock()
		got = append(got, ev.(testEvent).id)
		mu.Unlock()
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, loop.Post(testEvent{base: "WIFI_EVENT", id: i}))
	}
	require.NoError(t, loop.Close())

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestSubscribe_UniqueIDs(t *testing.T) {
	loop := New(0)
	defer loop.Close()

	a, err := loop.Subscribe("WIFI_EVENT", func(Event) {})
	require.NoError(t, err)
	b, err := loop.Subscribe("WIFI_EVENT", func(Event) {})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "WIFI_EVENT", a.Base)
}

func TestSubscribe_InvalidArguments(t *testing.T) {
	loop := New(0)
	defer loop.Close()

	_, err := loop.Subscribe("", func(Event) {})
	assert.Error(t, err)

	_, err = loop.Subscribe("WIFI_EVENT", nil)
	assert.Error(t, err)
}

func TestUnsubscribe(t *testing.T) {
	loop := New(0)

	calls := 0
	sub, err := loop.Subscribe("WIFI_EVENT", func(Event) { calls++ })
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, loop.Post(testEvent{base: "WIFI_EVENT"}))
	require.NoError(t, loop.Close())

	assert.Zero(t, calls)
}

func TestPost_QueueFull(t *testing.T) {
	loop := New(1)
	defer loop.Close()

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	_, err := loop.Subscribe("WIFI_EVENT", func(Event) {
		started <- struct{}{}
		<-block
	})
	require.NoError(t, err)

	// First event occupies the dispatcher, second fills the queue.
	require.NoError(t, loop.Post(testEvent{base: "WIFI_EVENT", id: 1}))
	<-started
	require.NoError(t, loop.Post(testEvent{base: "WIFI_EVENT", id: 2}))

	err = loop.Post(testEvent{base: "WIFI_EVENT", id: 3})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(block)
}

func TestClosedLoop(t *testing.T) {
	loop := New(0)
	require.NoError(t, loop.Close())

	assert.ErrorIs(t, loop.Post(testEvent{base: "WIFI_EVENT"}), ErrClosed)
	_, err := loop.Subscribe("WIFI_EVENT", func(Event) {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, loop.Close(), ErrClosed)
}

func TestHandlerPanicDoesNotStopLoop(t *testing.T) {
	loop := New(0)
	defer loop.Close()

	ch := make(chan Event, 1)
	_, err := loop.Subscribe("WIFI_EVENT", func(ev Event) {
		if ev.(testEvent).id == 1 {
			panic("boom")
		}
		ch <- ev
	})
	require.NoError(t, err)

	require.NoError(t, loop.Post(testEvent{base: "WIFI_EVENT", id: 1}))
	require.NoError(t, loop.Post(testEvent{base: "WIFI_EVENT", id: 2}))

	assert.Equal(t, 2, recv(t, ch).(testEvent).id)
}
