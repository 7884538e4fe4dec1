package media

import (
	"time"

	"github.com/stemsync/karaoke/internal/model"
	"github.com/stemsync/karaoke/internal/playback"
	"github.com/stemsync/karaoke/internal/timer"
)

var testMedia = model.MediaURLs{
	Video:        "http://localhost:5000/songs/x_karaoke.mp4",
	Instrumental: "http://localhost:5000/songs/x_instrumental.wav",
	Vocals:       "http://localhost:5000/songs/x_vocals.wav",
}

type nopControls struct{}

func (nopControls) ShowResults(model.MediaURLs) {}
func (nopControls) SetTransport(string, bool) {}
func (nopControls) SetMuteButton(playback.TrackKey, string, bool) {}

type noopScheduler struct{}

func (noopScheduler) Every(time.Duration, func()) timer.Task { return noopTask{} }

type noopTask struct{}

func (noopTask) Stop() {}
