package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/lumo"
	"github.com/vsariola/lumo/audio"
	"github.com/vsariola/lumo/audio/oto"
	"github.com/vsariola/lumo/cmd"
	"github.com/vsariola/lumo/config"
	"github.com/vsariola/lumo/library"
	"github.com/vsariola/lumo/output"
	"github.com/vsariola/lumo/playback"
	"github.com/vsariola/lumo/recovery"
)

// session is a loaded project with a scheduler driving it. Once run is
// called, the project must only be touched through session.do.
type session struct {
	cfg       config.Config
	log       *logrus.Entry
	path      string
	project   *library.Project
	engine    lumo.AudioEngine
	scheduler *playback.Scheduler
	broker    *playback.Broker
	closers   []func()
	store     *recovery.Store
}

// defaultTimeout bounds waiting for the scheduler goroutine.
const defaultTimeout = 5 * time.Second

type sessionOptions struct {
	noAudio bool
	noStore bool
}

// newAudioEngine opens the sound card.
var newAudioEngine = func(latency time.Duration) (lumo.AudioEngine, func(), error) {
	e, err := oto.NewEngine(latency)
	if err != nil {
		return nil, nil, err
	}
	return e, func() { e.Close() }, nil
}

func openSession(cfg config.Config, logger *logrus.Logger, path string, so sessionOptions) (*session, error) {
	log := logrus.NewEntry(logger)
	p, _, err := library.LoadFile(path, library.WithLogger(log), library.WithOutputOptions(output.WithLogger(log)))
	if err != nil {
		return nil, err
	}
	return startSession(cfg, log, path, p, so)
}

// startSession takes ownership of p: if the session cannot be started, the
// fixtures of p are closed.
func startSession(cfg config.Config, log *logrus.Entry, path string, p *library.Project, so sessionOptions) (*session, error) {
	var engine lumo.AudioEngine
	var closers []func()
	if so.noAudio || !cfg.Audio.Enabled {
		engine = audio.NewNullEngine()
	} else {
		e, closeEngine, err := newAudioEngine(time.Duration(cfg.Audio.Latency) * time.Millisecond)
		if err != nil {
			p.Library.Close()
			return nil, err
		}
		engine = e
		closers = append(closers, closeEngine)
	}
	engine.SetVolume(cfg.Audio.Volume)
	s := newSession(cfg, log, p, engine)
	s.path = path
	// engines are closed after the dispatcher
	s.closers = append(closers, s.closers...)
	closeMIDI, err := cmd.OpenMIDI(s.broker, cfg.MIDI, log)
	if err != nil {
		log.WithError(err).Warn("MIDI input not opened")
	}
	s.closers = append(s.closers, closeMIDI)
	if !so.noStore && cfg.Recovery.Interval > 0 {
		if err := s.openStore(); err != nil {
			log.WithError(err).Warn("autosave disabled")
		}
	}
	return s, nil
}

func newSession(cfg config.Config, log *logrus.Entry, p *library.Project, engine lumo.AudioEngine) *session {
	broker := playback.NewBroker()
	dispatcher := playback.NewDispatcher(cfg.QueueSize, log)
	opts := []playback.SchedulerOption{
		playback.WithLogger(log),
		playback.WithBroker(broker),
		playback.WithResolution(cfg.Resolution),
		playback.WithSender(dispatcher),
	}
	if cfg.MIDI.LiveTrack != "" {
		opts = append(opts, playback.WithLiveTrack(cfg.MIDI.LiveTrack))
	}
	if cfg.LockAudio {
		opts = append(opts, playback.LockAudioWhilePlaying())
	}
	s := &session{
		cfg:       cfg,
		log:       log,
		project:   p,
		engine:    engine,
		scheduler: playback.NewScheduler(p, engine, opts...),
		broker:    broker,
		closers:   []func(){dispatcher.Close},
	}
	return s
}

func (s *session) openStore() error {
	path, err := s.cfg.RecoveryPath()
	if err != nil {
		return err
	}
	store, err := recovery.Open(path, s.cfg.Recovery.Keep, s.log)
	if err != nil {
		return err
	}
	s.store = store
	return nil
}

// recoveryName is the key of a project file in the recovery store.
func recoveryName(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// run drives the scheduler until ctx is done. With a store, the project is
// autosaved periodically and once more when run returns.
func (s *session) run(ctx context.Context) error {
	if s.store != nil {
		go s.store.Autosave(ctx, recoveryName(s.path), s.cfg.AutosaveInterval(), s.snapshot)
	}
	err := s.scheduler.Run(ctx)
	if s.store != nil {
		if err := s.store.SaveProject(context.Background(), recoveryName(s.path), s.project); err != nil {
			s.log.WithError(err).Warn("final autosave failed")
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// do runs f on the scheduler goroutine and waits for it to finish.
func (s *session) do(f func()) error {
	done := make(chan struct{}, 1)
	if !playback.TrySend(s.broker.ToScheduler, any(func() { f(); done <- struct{}{} })) {
		return errors.New("scheduler is busy")
	}
	if _, ok := playback.TimeoutReceive(done, defaultTimeout); !ok {
		return errors.New("scheduler did not respond")
	}
	return nil
}

func (s *session) snapshot() ([]byte, error) {
	var data []byte
	var err error
	if e := s.do(func() { data, err = s.project.Marshal() }); e != nil {
		return nil, e
	}
	return data, err
}

func (s *session) send(msg any) error {
	if !playback.TrySend(s.broker.ToScheduler, msg) {
		return fmt.Errorf("scheduler is busy, %T dropped", msg)
	}
	return nil
}

func (s *session) close() {
	s.scheduler.Close()
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.project.Library.Close()
	if s.store != nil {
		s.store.Close()
	}
}
