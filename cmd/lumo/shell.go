package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/chzyer/readline"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/vsariola/lumo/library"
	"github.com/vsariola/lumo/playback"
)

const defaultStatusTemplate = `{{ ternary "playing" "paused" .Playing }} at {{ .Position | int }} ticks, {{ .BPM }} BPM, {{ .Active }} active{{ if .Dropped }}, {{ .Dropped }} frames dropped{{ end }}`

type shell struct {
	session *session
	status  *template.Template
	out     io.Writer
}

var errQuit = errors.New("quit")

func newShellCmd(g *globals) *cobra.Command {
	var (
		noAudio bool
		format  string
	)
	cmd := &cobra.Command{
		Use:   "shell <file>",
		Short: "Play a project and control it interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(g.cfg, g.log, args[0], sessionOptions{noAudio: noAudio})
			if err != nil {
				return err
			}
			defer s.close()
			sh, err := newShell(s, format, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- s.run(ctx) }()
			err = sh.loop()
			cancel()
			if runErr := <-done; runErr != nil {
				return runErr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&noAudio, "no-audio", false, "do not open the audio device")
	cmd.Flags().StringVar(&format, "status", defaultStatusTemplate, "template of the status line")
	return cmd
}

func newShell(s *session, format string, out io.Writer) (*shell, error) {
	t, err := template.New("status").Funcs(sprig.TxtFuncMap()).Parse(format)
	if err != nil {
		return nil, fmt.Errorf("invalid status template: %w", err)
	}
	return &shell{session: s, status: t, out: out}, nil
}

func (sh *shell) completer() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("play"),
		readline.PcItem("pause"),
		readline.PcItem("seek"),
		readline.PcItem("bpm"),
		readline.PcItem("volume"),
		readline.PcItem("move"),
		readline.PcItem("tracks"),
		readline.PcItem("segments"),
		readline.PcItem("fixtures"),
		readline.PcItem("status"),
		readline.PcItem("save"),
		readline.PcItem("quit"),
	)
}

func (sh *shell) loop() error {
	history, err := homedir.Expand("~/.lumo/history")
	if err == nil {
		os.MkdirAll(filepath.Dir(history), 0755)
	} else {
		history = ""
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "lumo> ",
		HistoryFile:  history,
		AutoComplete: sh.completer(),
		Stdout:       sh.out,
	})
	if err != nil {
		return fmt.Errorf("cannot start readline: %w", err)
	}
	defer rl.Close()
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := sh.exec(line); errors.Is(err, errQuit) {
			return nil
		} else if err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

// exec runs one command line.
func (sh *shell) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	s := sh.session
	args := fields[1:]
	switch fields[0] {
	case "play":
		return s.send(playback.PlayMsg{})
	case "pause":
		return s.send(playback.PauseMsg{})
	case "seek":
		v, err := floatArgs(args, 1)
		if err != nil {
			return err
		}
		return s.send(playback.SeekMsg{Position: v[0]})
	case "bpm":
		v, err := floatArgs(args, 1)
		if err != nil {
			return err
		}
		var setErr error
		if err := s.do(func() { setErr = s.scheduler.SetBPM(v[0]) }); err != nil {
			return err
		}
		return setErr
	case "volume":
		return sh.volume(args)
	case "move":
		return sh.move(args)
	case "tracks":
		return sh.tracks()
	case "segments":
		return sh.segments()
	case "fixtures":
		return sh.fixtures()
	case "status":
		return sh.printStatus()
	case "save":
		return sh.save(args)
	case "quit", "exit":
		return errQuit
	}
	return fmt.Errorf("unknown command %q", fields[0])
}

func floatArgs(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %v arguments, got %v", n, len(args))
	}
	ret := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		ret[i] = v
	}
	return ret, nil
}

// volume prints the master volume, or sets it if given an argument.
func (sh *shell) volume(args []string) error {
	e := sh.session.engine
	if len(args) == 0 {
		fmt.Fprintf(sh.out, "volume %.2f\n", e.Volume())
		return nil
	}
	v, err := floatArgs(args, 1)
	if err != nil {
		return err
	}
	if v[0] < 0 || v[0] > 1 {
		return fmt.Errorf("volume should be between 0 and 1, got %v", v[0])
	}
	e.SetVolume(v[0])
	return nil
}

func (sh *shell) move(args []string) error {
	if len(args) != 3 {
		return errors.New("usage: move <segment> <start> <end>")
	}
	start, err1 := strconv.Atoi(args[1])
	end, err2 := strconv.Atoi(args[2])
	if err := errors.Join(err1, err2); err != nil {
		return fmt.Errorf("invalid bounds: %w", err)
	}
	reply := make(chan playback.MoveReply, 1)
	if err := sh.session.send(playback.MoveSegmentMsg{ID: args[0], Start: start, End: end, Reply: reply}); err != nil {
		return err
	}
	r, ok := playback.TimeoutReceive(reply, defaultTimeout)
	switch {
	case !ok:
		return errors.New("scheduler did not respond")
	case r.Err != nil:
		return r.Err
	case !r.Result.Accepted:
		return fmt.Errorf("move rejected: %v", r.Result.Reason)
	}
	fmt.Fprintf(sh.out, "moved %v to [%v,%v]\n", args[0], start, end)
	return nil
}

func (sh *shell) tracks() error {
	p := sh.session.project
	return sh.table(func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tSEGMENTS")
		for _, t := range p.Timeline.Tracks() {
			fmt.Fprintf(w, "%v\t%v\t%v\n", t.ID, t.Name, len(p.Timeline.TrackSegments(t.ID)))
		}
	})
}

func (sh *shell) segments() error {
	p := sh.session.project
	return sh.table(func(w io.Writer) {
		fmt.Fprintln(w, "ID\tTRACK\tPAYLOAD\tSTART\tEND")
		for _, s := range p.Timeline.Segments() {
			payload := s.PayloadID
			if item, ok := p.Library.Item(s.PayloadID); ok {
				payload = fmt.Sprintf("%v (%v)", itemName(item), item.Kind())
			}
			fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", s.ID, s.TrackID, payload, s.Start, s.End)
		}
	})
}

func (sh *shell) fixtures() error {
	p := sh.session.project
	return sh.table(func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tWARNING")
		for _, item := range p.Library.Items() {
			o, ok := item.(*library.OutputItem)
			if !ok {
				continue
			}
			warning := ""
			if ws := o.Fixture.Warnings(); len(ws) > 0 {
				warning = ws[len(ws)-1]
			}
			fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", o.ID, o.Name, o.Fixture.Type(), warning)
		}
	})
}

func itemName(item library.Item) string {
	if h := item.Info(); h.Name != "" {
		return h.Name
	}
	return item.Info().ID
}

// table renders on the scheduler goroutine, where the project may be read.
func (sh *shell) table(render func(w io.Writer)) error {
	var buf strings.Builder
	err := sh.session.do(func() {
		w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
		render(w)
		w.Flush()
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(sh.out, buf.String())
	return err
}

func (sh *shell) printStatus() error {
	var st playback.StatusMsg
	if err := sh.session.do(func() { st = sh.session.scheduler.Status() }); err != nil {
		return err
	}
	if err := sh.status.Execute(sh.out, st); err != nil {
		return err
	}
	_, err := fmt.Fprintln(sh.out)
	return err
}

func (sh *shell) save(args []string) error {
	path := sh.session.path
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return errors.New("usage: save <file>")
	}
	var err error
	if e := sh.session.do(func() { err = sh.session.project.SaveFile(path) }); e != nil {
		return e
	}
	if err == nil {
		fmt.Fprintf(sh.out, "saved %v\n", path)
	}
	return err
}
