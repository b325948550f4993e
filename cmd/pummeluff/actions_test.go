package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeValidate_AcceptsFullRange(t *testing.T) {
	for v := 0; v <= 100; v++ {
		assert.NoError(t, Action{Kind: ActionVolume, Parameter: v}.Validate(), "int %d", v)
		assert.NoError(t, Action{Kind: ActionVolume, Parameter: strings.Repeat(" ", v%2) + itoa(v)}.Validate(), "string %d", v)
	}
}

func TestVolumeValidate_Rejects(t *testing.T) {
	for _, p := range []any{-1, 101, "abc", "", nil, "12.5", 12.5, true} {
		err := Action{Kind: ActionVolume, Parameter: p}.Validate()
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "parameter %v", p)
		assert.Equal(t, ActionVolume, verr.Kind)
	}
}

func TestStepVolumeValidate_DefaultsAndRange(t *testing.T) {
	for _, k := range []ActionKind{ActionIncreaseVolume, ActionDecreaseVolume} {
		assert.NoError(t, Action{Kind: k}.Validate(), "%s without parameter", k)
		assert.NoError(t, Action{Kind: k, Parameter: "10"}.Validate())
		assert.NoError(t, Action{Kind: k, Parameter: float64(7)}.Validate())

		var verr *ValidationError
		assert.ErrorAs(t, Action{Kind: k, Parameter: "abc"}.Validate(), &verr)
		assert.ErrorAs(t, Action{Kind: k, Parameter: 101}.Validate(), &verr)
		assert.ErrorAs(t, Action{Kind: k, Parameter: -1}.Validate(), &verr)
	}
}

func TestParameterlessActionsAlwaysValidate(t *testing.T) {
	for _, k := range []ActionKind{ActionPlayPause, ActionStop, ActionPreviousTrack, ActionNextTrack, ActionShutdown, ActionToggleShuffle} {
		assert.NoError(t, Action{Kind: k, Parameter: "whatever"}.Validate())
		assert.NoError(t, Action{Kind: k}.Validate())
	}
}

func TestTracklistValidate(t *testing.T) {
	assert.NoError(t, Action{Kind: ActionTracklist, Parameter: "spotify:playlist:abc"}.Validate())

	var verr *ValidationError
	assert.ErrorAs(t, Action{Kind: ActionTracklist}.Validate(), &verr)
	assert.ErrorAs(t, Action{Kind: ActionTracklist, Parameter: "  "}.Validate(), &verr)
	assert.ErrorAs(t, Action{Kind: ActionTracklist, Parameter: 3}.Validate(), &verr)
}

func TestIncreaseVolume_ClampsAt100(t *testing.T) {
	e := newFakeEngine(98)
	err := Action{Kind: ActionIncreaseVolume, Parameter: 5}.Execute(e, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []int{100}, e.setVolumes())
}

func TestDecreaseVolume_ClampsAt0(t *testing.T) {
	e := newFakeEngine(3)
	err := Action{Kind: ActionDecreaseVolume, Parameter: "5"}.Execute(e, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []int{0}, e.setVolumes())
}

func TestStepVolume_DefaultDelta(t *testing.T) {
	e := newFakeEngine(50)
	require.NoError(t, Action{Kind: ActionIncreaseVolume}.Execute(e, discardLogger()))
	require.NoError(t, Action{Kind: ActionDecreaseVolume}.Execute(e, discardLogger()))
	require.NoError(t, Action{Kind: ActionDecreaseVolume}.Execute(e, discardLogger()))
	assert.Equal(t, []int{55, 50, 45}, e.setVolumes())
}

func TestVolume_SetsExactValue(t *testing.T) {
	e := newFakeEngine(10)
	require.NoError(t, Action{Kind: ActionVolume, Parameter: "42"}.Execute(e, discardLogger()))
	assert.Equal(t, []int{42}, e.setVolumes())
}

// Conversion failures at execute time are logged and swallowed: the error is
// handed back for inspection but the engine is never touched.
func TestExecute_ConversionFailureIsLoggedAndAbsorbed(t *testing.T) {
	for _, k := range []ActionKind{ActionVolume, ActionIncreaseVolume, ActionDecreaseVolume} {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		e := newFakeEngine(40)

		var err error
		assert.NotPanics(t, func() {
			err = Action{Kind: k, Parameter: "abc"}.Execute(e, logger)
		})

		var xerr *ExecutionError
		require.ErrorAs(t, err, &xerr, "%s", k)
		assert.Equal(t, k, xerr.Kind)
		assert.Empty(t, e.setVolumes(), "%s must not set volume", k)
		assert.Zero(t, e.callCount("GetVolume"), "%s must not read volume", k)
		assert.Contains(t, buf.String(), "level=ERROR")
	}
}

func TestExecute_UnknownVolumeLeavesEngineUntouched(t *testing.T) {
	e := newFakeEngine(40)
	e.volumeKnown = false

	err := Action{Kind: ActionIncreaseVolume}.Execute(e, discardLogger())
	assert.ErrorIs(t, err, errVolumeUnknown)
	assert.Empty(t, e.setVolumes())
}

func TestExecute_EngineFailureIsReturnedNotPanicked(t *testing.T) {
	e := newFakeEngine(40)
	e.failWith = errEngineDown

	err := Action{Kind: ActionNextTrack}.Execute(e, discardLogger())
	assert.ErrorIs(t, err, errEngineDown)
}

func TestExecute_TransportAndTracklist(t *testing.T) {
	e := newFakeEngine(40)
	logger := discardLogger()

	require.NoError(t, Action{Kind: ActionPlayPause}.Execute(e, logger))
	require.NoError(t, Action{Kind: ActionStop}.Execute(e, logger))
	require.NoError(t, Action{Kind: ActionPreviousTrack}.Execute(e, logger))
	require.NoError(t, Action{Kind: ActionNextTrack}.Execute(e, logger))
	require.NoError(t, Action{Kind: ActionShutdown}.Execute(e, logger))
	require.NoError(t, Action{Kind: ActionTracklist, Parameter: "file:///music/a.mp3"}.Execute(e, logger))

	for _, name := range []string{"PlayPause", "Stop", "Previous", "Next", "PowerOff", "LoadTracklist"} {
		assert.Equal(t, 1, e.callCount(name), name)
	}
	assert.Equal(t, []string{"file:///music/a.mp3"}, e.tracklist)
}

func TestExecute_ToggleShuffleFlipsRandom(t *testing.T) {
	e := newFakeEngine(40)
	require.NoError(t, Action{Kind: ActionToggleShuffle}.Execute(e, discardLogger()))
	assert.True(t, e.random)
	require.NoError(t, Action{Kind: ActionToggleShuffle}.Execute(e, discardLogger()))
	assert.False(t, e.random)
}

func TestActionRegistry_CoversTaxonomy(t *testing.T) {
	reg := ActionRegistry()
	assert.Len(t, reg, len(actionKinds))
	for _, k := range actionKinds {
		assert.NotEmpty(t, reg[string(k)], k)
	}

	// Returned map is a copy.
	reg["PlayPause"] = "changed"
	assert.NotEqual(t, "changed", ActionRegistry()["PlayPause"])
}

func TestParseActionKind(t *testing.T) {
	k, err := ParseActionKind("IncreaseVolume")
	require.NoError(t, err)
	assert.Equal(t, ActionIncreaseVolume, k)

	_, err = ParseActionKind("SelfDestruct")
	assert.Error(t, err)
}

func TestActionEnvelope(t *testing.T) {
	data, err := MarshalAction(Action{Kind: ActionVolume, Parameter: "30"})
	require.NoError(t, err)

	var env ActionEnvelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "Volume", env.Type)

	a, err := UnmarshalAction(data)
	require.NoError(t, err)
	assert.Equal(t, Action{Kind: ActionVolume, Parameter: "30"}, a)

	a, err = UnmarshalAction([]byte(`{"type":"Stop"}`))
	require.NoError(t, err)
	assert.Equal(t, Action{Kind: ActionStop}, a)

	a, err = UnmarshalAction([]byte(`{"type":"IncreaseVolume","data":{"parameter":10}}`))
	require.NoError(t, err)
	require.NoError(t, a.Validate())

	_, err = UnmarshalAction([]byte(`{"type":"Launch"}`))
	assert.Error(t, err)

	_, err = MarshalAction(Action{Kind: "Launch"})
	assert.Error(t, err)
}

func itoa(v int) string {
	b, _ := json.Marshal(v)
	return string(b)
}
