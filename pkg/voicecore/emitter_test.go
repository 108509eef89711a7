package voicecore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventEmitter_DeliversInOrder(t *testing.T) {
	e := NewEventEmitter(nil)
	var order []int
	e.On(EventInfo, func(payload interface{}) { order = append(order, 1) })
	e.On(EventInfo, func(payload interface{}) { order = append(order, 2) })

	e.Emit(EventInfo, "x")
	require.Equal(t, []int{1, 2}, order)
}

func TestEventEmitter_OnceFiresOnlyOnce(t *testing.T) {
	e := NewEventEmitter(nil)
	count := 0
	e.Once(EventInfo, func(payload interface{}) { count++ })

	e.Emit(EventInfo, nil)
	e.Emit(EventInfo, nil)
	require.Equal(t, 1, count)
}

func TestEventEmitter_Off_RemovesSubscription(t *testing.T) {
	e := NewEventEmitter(nil)
	count := 0
	id := e.On(EventInfo, func(payload interface{}) { count++ })
	e.Off(EventInfo, id)

	e.Emit(EventInfo, nil)
	require.Equal(t, 0, count)
}

func TestEventEmitter_HandlerPanicDoesNotStopOtherHandlers(t *testing.T) {
	e := NewEventEmitter(nil)
	var secondRan bool
	e.On(EventInfo, func(payload interface{}) { panic("boom") })
	e.On(EventInfo, func(payload interface{}) { secondRan = true })

	require.NotPanics(t, func() { e.Emit(EventInfo, nil) })
	require.True(t, secondRan)
}

func TestEventEmitter_RemoveAllListeners(t *testing.T) {
	e := NewEventEmitter(nil)
	count := 0
	e.On(EventInfo, func(payload interface{}) { count++ })
	e.On(EventError, func(payload interface{}) { count++ })

	e.RemoveAllListeners()
	e.Emit(EventInfo, nil)
	e.Emit(EventError, nil)
	require.Equal(t, 0, count)
}

func TestEventEmitter_HandlerCanResubscribeDuringEmit(t *testing.T) {
	e := NewEventEmitter(nil)
	var nested bool
	e.On(EventInfo, func(payload interface{}) {
		e.On(EventError, func(interface{}) { nested = true })
	})

	e.Emit(EventInfo, nil)
	e.Emit(EventError, nil)
	require.True(t, nested)
}
