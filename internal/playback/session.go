package playback

import (
	"github.com/stemsync/karaoke/internal/model"
	"github.com/stemsync/karaoke/internal/timer"
)

// Session is one synchronized playback unit: two waveform tracks and the
// video, sharing a single playing flag. It is owned by a Controller and only
// touched under the controller's lock.
type Session struct {
	urls    model.MediaURLs
	tracks  [len(Tracks)]WaveformUnit
	video   VideoUnit
	playing bool
	sweep   timer.Task
	closed  bool
}

func (s *Session) track(k TrackKey) WaveformUnit {
	return s.tracks[k]
}

func (s *Session) ready() bool {
	return s.tracks[Instrumental] != nil && s.tracks[Vocal] != nil
}

// release stops the sweep and destroys the waveform units. The video unit is
// shared across sessions and is only paused.
func (s *Session) release() {
	if s.closed {
		return
	}
	s.closed = true
	if s.sweep != nil {
		s.sweep.Stop()
	}
	for i, u := range s.tracks {
		if u != nil {
			u.Destroy()
			s.tracks[i] = nil
		}
	}
	if s.video != nil {
		s.video.Pause()
	}
	s.playing = false
}
