package interact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeActor struct{ id int64 }

func (a *fakeActor) InteractorID() int64 { return a.id }

func TestBeginInteract_InstantCompletes(t *testing.T) {
	in := New(Config{HoldTime: 0, Distance: 2})
	a := &fakeActor{id: 1}

	var completed []Interactor
	in.OnInteract(func(who Interactor) { completed = append(completed, who) })

	assert.True(t, in.BeginInteract(a))
	require.Len(t, completed, 1)
	assert.Equal(t, int64(1), completed[0].InteractorID())
	assert.Empty(t, in.Interactors(), "completion releases the hold")
}

func TestBeginInteract_ExclusiveRejectsSecond(t *testing.T) {
	in := New(Config{HoldTime: 3, Distance: 2, AllowMultiple: false})
	first := &fakeActor{id: 1}
	second := &fakeActor{id: 2}

	require.True(t, in.BeginInteract(first))
	assert.False(t, in.BeginInteract(second))
	require.Len(t, in.Interactors(), 1)
	assert.Equal(t, int64(1), in.Interactors()[0].InteractorID())

	// The slot frees up once the first interactor lets go.
	in.EndInteract(first)
	assert.True(t, in.BeginInteract(second))
}

func TestBeginInteract_AllowMultiple(t *testing.T) {
	in := New(Config{HoldTime: 3, Distance: 2, AllowMultiple: true})
	assert.True(t, in.BeginInteract(&fakeActor{id: 1}))
	assert.True(t, in.BeginInteract(&fakeActor{id: 2}))
	assert.Len(t, in.Interactors(), 2)
}

func TestInteract_CompletingOwnHoldAllowed(t *testing.T) {
	in := New(Config{HoldTime: 3, Distance: 2})
	a := &fakeActor{id: 1}

	var fired int
	in.OnInteract(func(Interactor) { fired++ })

	require.True(t, in.BeginInteract(a))
	assert.True(t, in.Interact(a), "a holder must be able to complete its own hold")
	assert.Equal(t, 1, fired)
}

func TestStopFocus_EndsActiveHold(t *testing.T) {
	in := New(Config{HoldTime: 3, Distance: 2})
	a := &fakeActor{id: 1}

	var ended int
	in.OnEndInteract(func(Interactor) { ended++ })

	require.True(t, in.BeginInteract(a))
	in.StopFocus(a)
	assert.Equal(t, 1, ended)
	assert.Empty(t, in.Interactors())
}

func TestEndInteract_Idempotent(t *testing.T) {
	in := New(Config{HoldTime: 3, Distance: 2})
	a := &fakeActor{id: 1}

	var ended int
	in.OnEndInteract(func(Interactor) { ended++ })

	in.EndInteract(a)
	assert.Equal(t, 0, ended, "ending a hold that never began is a no-op")

	require.True(t, in.BeginInteract(a))
	in.EndInteract(a)
	in.EndInteract(a)
	assert.Equal(t, 1, ended)
}

func TestInteractPercentage(t *testing.T) {
	in := New(Config{HoldTime: 4, Distance: 2})
	a := &fakeActor{id: 1}

	base := time.Now()
	in.now = func() time.Time { return base }

	assert.Zero(t, in.InteractPercentage())
	require.True(t, in.BeginInteract(a))

	in.now = func() time.Time { return base.Add(1 * time.Second) }
	assert.InDelta(t, 0.25, in.InteractPercentage(), 1e-9)

	in.now = func() time.Time { return base.Add(10 * time.Second) }
	assert.InDelta(t, 1.0, in.InteractPercentage(), 1e-9, "progress clamps at one")

	in.EndInteract(a)
	assert.Zero(t, in.InteractPercentage())
}

func TestDeactivate(t *testing.T) {
	in := New(Config{HoldTime: 3, Distance: 2, AllowMultiple: true})
	a := &fakeActor{id: 1}
	b := &fakeActor{id: 2}

	var ended, unfocused int
	in.OnEndInteract(func(Interactor) { ended++ })
	in.OnFocusStop(func(Interactor) { unfocused++ })

	require.True(t, in.BeginInteract(a))
	require.True(t, in.BeginInteract(b))

	in.Deactivate()
	assert.Equal(t, 2, ended)
	assert.Equal(t, 2, unfocused)
	assert.False(t, in.Active())
	assert.False(t, in.CanInteract(a))
	assert.False(t, in.StartFocus(a))
}
