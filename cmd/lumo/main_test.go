package main

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/lumo"
	"github.com/vsariola/lumo/audio"
	"github.com/vsariola/lumo/config"
	"github.com/vsariola/lumo/library"
	"github.com/vsariola/lumo/output"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yml"), "--log-level", "error"}, args...))
	root.SetOut(&out)
	if err := root.Execute(); err != nil {
		t.Fatalf("lumo %v failed: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestNewAndRender(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "show.lumo")
	run(t, "new", project, "--beats", "4")
	out := run(t, "render", project, "-o", filepath.Join(dir, "frames"), "--to", "480", "--cell", "1")
	if !strings.Contains(out, "strip.png") {
		t.Fatalf("expected strip.png to be written, got %q", out)
	}
	f, err := os.Open(filepath.Join(dir, "frames", "strip.png"))
	if err != nil {
		t.Fatalf("cannot open filmstrip: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("cannot decode filmstrip: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1 || b.Dy() < 60 {
		t.Fatalf("unexpected filmstrip size %v", b)
	}
}

func TestVersion(t *testing.T) {
	if out := run(t, "version"); !strings.HasPrefix(out, "lumo ") {
		t.Fatalf("got %q", out)
	}
}

func TestShell(t *testing.T) {
	p, err := demoProject(output.Dummy, 16)
	if err != nil {
		t.Fatalf("demoProject failed: %v", err)
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	s := newSession(config.Default(), logrus.NewEntry(l), p, audio.NewManualEngine())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.run(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("run failed: %v", err)
		}
		s.close()
	}()
	var out bytes.Buffer
	sh, err := newShell(s, defaultStatusTemplate, &out)
	if err != nil {
		t.Fatalf("newShell failed: %v", err)
	}
	for _, line := range []string{"seek 240", "status", "move show 0 960", "bpm 90", "segments", "fixtures", "tracks", "volume 0.25", "volume"} {
		if err := sh.exec(line); err != nil {
			t.Fatalf("%q failed: %v", line, err)
		}
	}
	for _, want := range []string{"paused at 240 ticks, 120 BPM", "moved show to [0,960]", "Show (graph)", "strip", "Automation", "volume 0.25"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output does not contain %q:\n%v", want, out.String())
		}
	}
	if p.Tempo.BPM != 90 {
		t.Errorf("bpm not changed")
	}
	for _, line := range []string{"move nope 0 10", "seek", "dance", "volume 2"} {
		if err := sh.exec(line); err == nil {
			t.Errorf("%q should fail", line)
		}
	}
	if err := sh.exec("quit"); err != errQuit {
		t.Fatalf("quit returned %v", err)
	}
}

type closeRecorder struct {
	output.DummyFixture
	closed bool
}

func (f *closeRecorder) Close() error {
	f.closed = true
	return nil
}

func TestStartSessionClosesFixturesOnEngineError(t *testing.T) {
	p, err := demoProject(output.Dummy, 4)
	if err != nil {
		t.Fatalf("demoProject failed: %v", err)
	}
	f := &closeRecorder{}
	if err := p.Library.Add(&library.OutputItem{Header: library.Header{ID: "extra"}, Fixture: f}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	saved := newAudioEngine
	defer func() { newAudioEngine = saved }()
	newAudioEngine = func(time.Duration) (lumo.AudioEngine, func(), error) {
		return nil, nil, errors.New("no sound card")
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	cfg := config.Default()
	cfg.Audio.Enabled = true
	if _, err := startSession(cfg, logrus.NewEntry(l), "show.lumo", p, sessionOptions{noStore: true}); err == nil {
		t.Fatalf("expected the engine error")
	}
	if !f.closed {
		t.Fatalf("fixtures should be closed when the session cannot start")
	}
}
