package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubFirstObserverStartsUpstream(t *testing.T) {
	h := newHub[int]()

	_, first := h.subscribe(func([]int) {})
	assert.True(t, first)

	_, second := h.subscribe(func([]int) {})
	assert.False(t, second, "later observers share the upstream")
}

func TestHubFansOutToAllObservers(t *testing.T) {
	h := newHub[string]()

	var a, b []string
	h.subscribe(func(items []string) { a = items })
	h.subscribe(func(items []string) { b = items })

	h.publish([]string{"x", "y"})
	assert.Equal(t, []string{"x", "y"}, a)
	assert.Equal(t, []string{"x", "y"}, b)
}

func TestHubLastObserverTearsDownUpstream(t *testing.T) {
	h := newHub[int]()

	unsubA, _ := h.subscribe(func([]int) {})
	unsubB, _ := h.subscribe(func([]int) {})

	cancelled := 0
	h.bind(func() { cancelled++ })

	unsubA()
	assert.Zero(t, cancelled, "upstream lives while an observer remains")
	unsubB()
	assert.Equal(t, 1, cancelled)
	assert.False(t, h.active())
}

func TestHubRebindReplacesUpstream(t *testing.T) {
	h := newHub[int]()
	unsub, _ := h.subscribe(func([]int) {})

	oldCancelled := 0
	h.bind(func() { oldCancelled++ })
	h.bind(func() {})
	assert.Equal(t, 1, oldCancelled, "rebinding tears the old feed down")

	unsub()
}

func TestHubUnsubscribedObserverStopsReceiving(t *testing.T) {
	h := newHub[int]()

	calls := 0
	unsub, _ := h.subscribe(func([]int) { calls++ })
	h.publish([]int{1})
	unsub()
	h.publish([]int{2})

	assert.Equal(t, 1, calls)
}

func TestHubLatestRemembersLastPublish(t *testing.T) {
	h := newHub[int]()

	_, ok := h.latest()
	assert.False(t, ok)

	h.publish([]int{7})
	items, ok := h.latest()
	assert.True(t, ok)
	assert.Equal(t, []int{7}, items)
}
