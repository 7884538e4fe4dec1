package playback

// TrackKey identifies one of the two audio tracks of a session.
type TrackKey int

const (
	Instrumental TrackKey = iota
	Vocal
)

// Tracks lists every track key in a fixed order.
var Tracks = [...]TrackKey{Instrumental, Vocal}

// Other returns the track that follows k on a resync.
func (k TrackKey) Other() TrackKey {
	if k == Instrumental {
		return Vocal
	}
	return Instrumental
}

// String returns the short key used in commands and logs.
func (k TrackKey) String() string {
	if k == Instrumental {
		return "inst"
	}
	return "vocal"
}

// Name is the display name used on the track's mute control.
func (k TrackKey) Name() string {
	if k == Instrumental {
		return "Inst"
	}
	return "Vocal"
}

// Container is the element id the track's waveform is rendered into.
func (k TrackKey) Container() string {
	return trackStyles[k].container
}

// ParseTrackKey maps "inst"/"instrumental" and "vocal"/"vocals" to a key.
func ParseTrackKey(s string) (TrackKey, bool) {
	switch s {
	case "inst", "instrumental":
		return Instrumental, true
	case "vocal", "vocals":
		return Vocal, true
	}
	return 0, false
}

type trackStyle struct {
	container string
	color     string
}

var trackStyles = [...]trackStyle{
	Instrumental: {container: "#waveform-inst", color: "#3273dc"},
	Vocal:        {container: "#waveform-vocal", color: "#ff3860"},
}
