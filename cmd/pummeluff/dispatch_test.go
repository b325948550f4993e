package main

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu  sync.Mutex
	evs []DispatchEvent
}

func (p *recordingPublisher) Publish(ev DispatchEvent) {
	p.mu.Lock()
	p.evs = append(p.evs, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) all() []DispatchEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]DispatchEvent(nil), p.evs...)
}

func TestDispatcher_SubmitRejectsInvalid(t *testing.T) {
	e := newFakeEngine(40)
	pub := &recordingPublisher{}
	d := NewDispatcher(e, pub, discardLogger())

	err := d.Submit(Action{Kind: ActionVolume, Parameter: "loud"}, originIPC)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, e.calls)
	assert.Empty(t, pub.all(), "rejected actions are not published")
}

func TestDispatcher_SubmitExecutesAndPublishes(t *testing.T) {
	e := newFakeEngine(40)
	pub := &recordingPublisher{}
	d := NewDispatcher(e, pub, discardLogger())
	d.now = func() time.Time { return t0 }

	require.NoError(t, d.Submit(Action{Kind: ActionVolume, Parameter: 60}, originHTTP))
	assert.Equal(t, []int{60}, e.setVolumes())

	evs := pub.all()
	require.Len(t, evs, 1)
	ev := evs[0]
	assert.Equal(t, "Volume", ev.Action)
	assert.Equal(t, 60, ev.Parameter)
	assert.Equal(t, originHTTP, ev.Origin)
	assert.True(t, ev.OK)
	assert.Empty(t, ev.Error)
	assert.Equal(t, t0, ev.At)

	_, err := uuid.Parse(ev.ID)
	assert.NoError(t, err)
}

func TestDispatcher_DispatchPublishesFailures(t *testing.T) {
	e := newFakeEngine(40)
	e.failWith = errEngineDown
	pub := &recordingPublisher{}
	d := NewDispatcher(e, pub, discardLogger())

	err := d.Dispatch(Action{Kind: ActionStop}, originInput)

	var xerr *ExecutionError
	require.ErrorAs(t, err, &xerr)

	evs := pub.all()
	require.Len(t, evs, 1)
	assert.False(t, evs[0].OK)
	assert.Contains(t, evs[0].Error, errEngineDown.Error())
}

func TestDispatcher_UniqueIDs(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(newFakeEngine(40), pub, discardLogger())

	for i := 0; i < 10; i++ {
		_ = d.Dispatch(Action{Kind: ActionPlayPause}, originGPIO)
	}

	seen := map[string]bool{}
	for _, ev := range pub.all() {
		assert.False(t, seen[ev.ID], "duplicate id %s", ev.ID)
		seen[ev.ID] = true
	}
	assert.Len(t, seen, 10)
}

func TestDispatcher_NilPublisher(t *testing.T) {
	d := NewDispatcher(newFakeEngine(40), nil, discardLogger())
	assert.NoError(t, d.Dispatch(Action{Kind: ActionNextTrack}, originGPIO))
}
