package main

// Engine is the playback appliance an Action executes against.
//
// The Engine is borrowed: other clients (the Mopidy web UI, MPD clients, the
// tag reader) mutate it concurrently, so no sequence of calls is atomic.
type Engine interface {
	// GetVolume returns the mixer volume (0-100). known is false when the
	// engine has no mixer attached.
	GetVolume() (volume int, known bool, err error)
	SetVolume(volume int) error

	PlayPause() error
	Stop() error
	Previous() error
	Next() error

	GetRandom() (bool, error)
	SetRandom(random bool) error

	// LoadTracklist replaces the tracklist with uri and starts playback.
	LoadTracklist(uri string) error

	// PowerOff requests the host to shut down.
	PowerOff() error
}
