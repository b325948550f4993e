package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDispatch(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 5, 0, time.Local)

	ok := formatDispatch(&ts, dispatchData{Action: "Volume", Parameter: float64(40), Origin: "ipc", OK: true})
	assert.Equal(t, "[12:30:05] ipc     Volume(40) ok", ok)

	failed := formatDispatch(nil, dispatchData{Action: "NextTrack", Origin: "gpio", Error: "mopidy down"})
	assert.Equal(t, "[--:--:--] gpio    NextTrack FAILED: mopidy down", failed)
}
