package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/stemsync/karaoke/internal/model"
	"github.com/stemsync/karaoke/internal/playback"
)

// Terminal renders job status and playback controls as plain text lines.
// It implements poller.View and playback.Controls.
type Terminal struct {
	mu         sync.Mutex
	out        io.Writer
	lastStatus string
	visible    bool
	busy       bool
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// ShowStatus prints text unless it repeats the visible status line.
func (t *Terminal) ShowStatus(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.visible && text == t.lastStatus {
		return
	}
	t.visible = true
	t.lastStatus = text
	fmt.Fprintf(t.out, "… %s\n", text)
}

func (t *Terminal) HideStatus() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible = false
	t.lastStatus = ""
}

func (t *Terminal) SetBusy(busy bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = busy
}

// Busy reports whether a job is in flight.
func (t *Terminal) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.busy
}

func (t *Terminal) ShowError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "✗ %s\n", message)
}

func (t *Terminal) ShowResults(urls model.MediaURLs) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "✓ Ready\n  video:        %s\n  instrumental: %s\n  vocals:       %s\n",
		urls.Video, urls.Instrumental, urls.Vocals)
}

func (t *Terminal) SetTransport(label string, playing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "[%s]\n", label)
}

func (t *Terminal) SetMuteButton(key playback.TrackKey, label string, outlined bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	style := "solid"
	if outlined {
		style = "outlined"
	}
	fmt.Fprintf(t.out, "[%s] %s (%s)\n", key, label, style)
}
