package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/stemsync/karaoke/internal/media"
	"github.com/stemsync/karaoke/internal/playback"
)

// Shell is the interactive transport for a live playback session.
type Shell struct {
	ctrl  *playback.Controller
	units *media.Renderer
	out   io.Writer
}

func NewShell(ctrl *playback.Controller, units *media.Renderer, out io.Writer) *Shell {
	return &Shell{ctrl: ctrl, units: units, out: out}
}

// Completer returns the auto-completion for shell commands
func (s *Shell) Completer() readline.AutoCompleter {
	tracks := func() []readline.PrefixCompleterInterface {
		return []readline.PrefixCompleterInterface{
			readline.PcItem("inst"),
			readline.PcItem("vocal"),
		}
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("play"),
		readline.PcItem("pause"),
		readline.PcItem("toggle"),
		readline.PcItem("mute", tracks()...),
		readline.PcItem("seek", tracks()...),
		readline.PcItem("status"),
		readline.PcItem("media"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

// Run reads commands until exit, EOF or Ctrl-C.
func (s *Shell) Run() error {
	historyFile := ".karaoke_history"
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".karaoke_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "karaoke> ",
		HistoryFile:  historyFile,
		AutoComplete: s.Completer(),
		Stdout:       s.out,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	s.printCommands()
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !s.HandleCommand(line) {
			return nil
		}
	}
}

// HandleCommand runs one command line. It returns false when the shell
// should exit.
func (s *Shell) HandleCommand(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch fields[0] {
	case "play":
		if !s.ctrl.IsPlaying() {
			s.toggle()
		}
	case "pause":
		if s.ctrl.IsPlaying() {
			s.toggle()
		}
	case "toggle", "p":
		s.toggle()
	case "mute":
		key, ok := s.trackArg(fields, "mute <inst|vocal>")
		if !ok {
			return true
		}
		if _, err := s.ctrl.ToggleMute(key); err != nil {
			s.printf("error: %v\n", err)
		}
	case "seek":
		s.seek(fields)
	case "status":
		s.status()
	case "media":
		urls, err := s.ctrl.Media()
		if err != nil {
			s.printf("error: %v\n", err)
			return true
		}
		s.printf("video:        %s\ninstrumental: %s\nvocals:       %s\n", urls.Video, urls.Instrumental, urls.Vocals)
	case "help":
		s.printCommands()
	case "exit", "quit", "q":
		return false
	default:
		s.printf("unknown command %q, try help\n", fields[0])
	}
	return true
}

func (s *Shell) toggle() {
	if _, err := s.ctrl.TogglePlayback(); err != nil {
		s.printf("error: %v\n", err)
	}
}

// seek moves one track's playhead as a user drag would; the controller
// resyncs the other track and the video from it.
func (s *Shell) seek(fields []string) {
	key, ok := s.trackArg(fields, "seek <inst|vocal> <seconds>")
	if !ok {
		return
	}
	if len(fields) < 3 {
		s.printf("usage: seek <inst|vocal> <seconds>\n")
		return
	}
	seconds, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || seconds < 0 {
		s.printf("invalid position %q\n", fields[2])
		return
	}

	unit, found := s.units.Find(key.Container())
	if !found {
		s.printf("error: %v\n", playback.ErrNoSession)
		return
	}
	unit.Seek(seconds)
	s.status()
}

func (s *Shell) status() {
	pos, err := s.ctrl.Positions()
	if err != nil {
		s.printf("error: %v\n", err)
		return
	}
	state := "paused"
	if pos.Playing {
		state = "playing"
	}
	s.printf("%s  inst %.2fs  vocal %.2fs  video %.2fs\n", state, pos.Instrumental, pos.Vocal, pos.Video)
}

func (s *Shell) trackArg(fields []string, usage string) (playback.TrackKey, bool) {
	if len(fields) < 2 {
		s.printf("usage: %s\n", usage)
		return 0, false
	}
	key, ok := playback.ParseTrackKey(fields[1])
	if !ok {
		s.printf("unknown track %q (inst or vocal)\n", fields[1])
		return 0, false
	}
	return key, true
}

func (s *Shell) printCommands() {
	s.printf("\nCommands:\n")
	s.printf("  play | pause | toggle     Start or stop all tracks together\n")
	s.printf("  mute <inst|vocal>         Toggle a track's mute\n")
	s.printf("  seek <inst|vocal> <sec>   Move a track; the others follow\n")
	s.printf("  status                    Show playheads\n")
	s.printf("  media                     Show media URLs\n")
	s.printf("  help                      Show this help\n")
	s.printf("  exit                      Leave the shell\n\n")
}

func (s *Shell) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}
