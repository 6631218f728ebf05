package notify

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHub_PublishOrder(t *testing.T) {
	h := New[int](nil)
	var got []string
	h.Subscribe(func(v int) { got = append(got, "a") })
	h.Subscribe(func(v int) { got = append(got, "b") })

	h.Publish(1)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 2, h.Len())
}

func TestHub_Unsubscribe(t *testing.T) {
	h := New[string](nil)
	var got []string
	unsub := h.Subscribe(func(v string) { got = append(got, v) })

	h.Publish("one")
	unsub()
	unsub()
	h.Publish("two")

	assert.Equal(t, []string{"one"}, got)
	assert.Zero(t, h.Len())
}

func TestHub_UnsubscribeMiddleKeepsOthers(t *testing.T) {
	h := New[int](nil)
	var got []int
	h.Subscribe(func(v int) { got = append(got, 1) })
	unsub := h.Subscribe(func(v int) { got = append(got, 2) })
	h.Subscribe(func(v int) { got = append(got, 3) })

	unsub()
	h.Publish(0)
	assert.Equal(t, []int{1, 3}, got)
}

func TestHub_PanicRecovered(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := New[int](logger)

	called := false
	h.Subscribe(func(int) { panic("boom") })
	h.Subscribe(func(int) { called = true })

	assert.NotPanics(t, func() { h.Publish(1) })
	assert.True(t, called, "later subscribers still run")
	assert.Contains(t, buf.String(), "state subscriber panicked")
}

func TestHub_SubscribeDuringPublish(t *testing.T) {
	h := New[int](nil)
	calls := 0
	h.Subscribe(func(int) {
		calls++
		h.Subscribe(func(int) { calls++ })
	})

	h.Publish(1)
	assert.Equal(t, 1, calls, "subscriber added mid-publish waits for the next value")

	h.Publish(2)
	assert.Equal(t, 3, calls)
}

func TestHub_Clear(t *testing.T) {
	h := New[int](nil)
	h.Subscribe(func(int) { t.Fatal("cleared subscriber called") })
	h.Clear()
	h.Publish(1)
	assert.Zero(t, h.Len())
}
