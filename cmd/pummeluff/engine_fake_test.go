package main

import (
	"errors"
	"io"
	"log/slog"
	"sync"
)

// fakeEngine is a test double for the playback appliance.
type fakeEngine struct {
	mu sync.Mutex

	volume      int
	volumeKnown bool
	random      bool
	state       string
	tracklist   []string

	setVolCalls []int
	calls       []string

	failWith error
}

func newFakeEngine(volume int) *fakeEngine {
	return &fakeEngine{volume: volume, volumeKnown: true, state: "stopped"}
}

func (f *fakeEngine) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.failWith
}

func (f *fakeEngine) GetVolume() (int, bool, error) {
	if err := f.record("GetVolume"); err != nil {
		return 0, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume, f.volumeKnown, nil
}

func (f *fakeEngine) SetVolume(v int) error {
	if err := f.record("SetVolume"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setVolCalls = append(f.setVolCalls, v)
	f.volume = v
	return nil
}

func (f *fakeEngine) PlayPause() error {
	if err := f.record("PlayPause"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == "playing" {
		f.state = "paused"
	} else {
		f.state = "playing"
	}
	return nil
}

func (f *fakeEngine) Stop() error     { return f.record("Stop") }
func (f *fakeEngine) Previous() error { return f.record("Previous") }
func (f *fakeEngine) Next() error     { return f.record("Next") }
func (f *fakeEngine) PowerOff() error { return f.record("PowerOff") }

func (f *fakeEngine) GetRandom() (bool, error) {
	if err := f.record("GetRandom"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.random, nil
}

func (f *fakeEngine) SetRandom(r bool) error {
	if err := f.record("SetRandom"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.random = r
	return nil
}

func (f *fakeEngine) LoadTracklist(uri string) error {
	if err := f.record("LoadTracklist"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracklist = []string{uri}
	f.state = "playing"
	return nil
}

func (f *fakeEngine) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeEngine) setVolumes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.setVolCalls...)
}

var errEngineDown = errors.New("engine unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
