package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedFilter(t *testing.T) {
	f := NewFeed(4)
	deposits := f.Subscribe("deposit")
	all := f.Subscribe()

	f.Publish(Event{Seq: 1, Action: "deposit"})
	f.Publish(Event{Seq: 2, Action: "harvest"})

	assert.Equal(t, uint64(1), (<-deposits.Chan()).Seq)
	assert.Empty(t, deposits.Chan())
	assert.Equal(t, uint64(1), (<-all.Chan()).Seq)
	assert.Equal(t, uint64(2), (<-all.Chan()).Seq)
}

func TestFeedDropsWhenFull(t *testing.T) {
	f := NewFeed(1)
	sub := f.Subscribe()
	f.Publish(Event{Seq: 1})
	f.Publish(Event{Seq: 2})
	assert.Equal(t, uint64(1), f.Dropped())
	assert.Equal(t, uint64(1), (<-sub.Chan()).Seq)
}

func TestFeedUnsubscribeAndClose(t *testing.T) {
	f := NewFeed(1)
	a, b := f.Subscribe(), f.Subscribe()
	require.Equal(t, 2, f.Subscribers())

	a.Unsubscribe()
	a.Unsubscribe()
	_, ok := <-a.Chan()
	assert.False(t, ok)
	assert.Equal(t, 1, f.Subscribers())

	f.Close()
	_, ok = <-b.Chan()
	assert.False(t, ok)
	b.Unsubscribe()
	f.Publish(Event{Seq: 9})

	late := f.Subscribe()
	_, ok = <-late.Chan()
	assert.False(t, ok)
}
