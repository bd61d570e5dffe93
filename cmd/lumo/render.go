package main

import (
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"path/filepath"

	"github.com/hypebeast/go-osc/osc"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vsariola/lumo/audio"
	"github.com/vsariola/lumo/library"
	"github.com/vsariola/lumo/output"
	"github.com/vsariola/lumo/playback"
	"github.com/vsariola/lumo/preview"
)

type (
	renderOptions struct {
		dir      string
		from, to float64
		fps      int
		cell     int
		wav      string
	}

	// offline transports let fixtures be configured without touching the
	// network or serial ports; the recorder never sends to them anyway.
	discardConn struct{ net.Conn }
	discardOSC  struct{}
	nopCloser   struct{ io.Writer }
)

func (discardConn) Write(b []byte) (int, error) { return len(b), nil }
func (discardConn) Close() error                { return nil }
func (discardOSC) Send(osc.Packet) error        { return nil }
func (nopCloser) Close() error                  { return nil }

var offlineOutputs = []output.Option{
	output.WithDialer(func(string, string) (net.Conn, error) { return discardConn{}, nil }),
	output.WithSerialOpener(func(string, int) (io.WriteCloser, error) { return nopCloser{io.Discard}, nil }),
	output.WithOSCClient(func(string, int) output.OSCSender { return discardOSC{} }),
}

func newRenderCmd(g *globals) *cobra.Command {
	o := renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render the show offline into PNG filmstrips",
		Long: `render steps through the project at the frame rate without audio
or fixtures and writes, for every fixture, a PNG with one row per frame.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := render(g.log, args[0], o)
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %v\n", f)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&o.dir, "output", "o", ".", "output directory")
	cmd.Flags().Float64Var(&o.from, "from", 0, "first tick")
	cmd.Flags().Float64Var(&o.to, "to", -1, "last tick, negative means the end of the last segment")
	cmd.Flags().IntVar(&o.fps, "fps", 0, "frames per second, 0 means the frame rate of the project")
	cmd.Flags().IntVar(&o.cell, "cell", preview.DefaultCell, "size of one LED in pixels")
	cmd.Flags().StringVar(&o.wav, "wav", "", "also write the mixed audio to this wav file")
	return cmd
}

func render(logger *logrus.Logger, path string, o renderOptions) ([]string, error) {
	log := logrus.NewEntry(logger)
	p, _, err := library.LoadFile(path, library.WithLogger(log), library.WithOutputOptions(append([]output.Option{output.WithLogger(log)}, offlineOutputs...)...))
	if err != nil {
		return nil, err
	}
	defer p.Library.Close()
	o.resolve(p)
	files, err := renderProject(p, log, o)
	if err != nil || o.wav == "" {
		return files, err
	}
	f, err := os.Create(o.wav)
	if err != nil {
		return files, err
	}
	defer f.Close()
	if err := audio.WriteWav(f, p.Mixdown(int(o.from), int(math.Ceil(o.to)))); err != nil {
		return files, err
	}
	return append(files, o.wav), nil
}

// resolve replaces a negative end with the end of the last segment.
func (o *renderOptions) resolve(p *library.Project) {
	if o.to >= 0 {
		return
	}
	for _, s := range p.Timeline.Segments() {
		o.to = max(o.to, float64(s.End))
	}
}

// renderProject processes the frames from o.from to o.to and saves the
// filmstrips.
func renderProject(p *library.Project, log *logrus.Entry, o renderOptions) ([]string, error) {
	if o.to <= o.from {
		return nil, fmt.Errorf("nothing to render between ticks %v and %v", o.from, o.to)
	}
	fps := o.fps
	if fps <= 0 {
		fps = p.FPS
	}
	if fps <= 0 {
		fps = library.DefaultFPS
	}
	recorder := preview.NewRecorder(o.cell)
	s := playback.NewScheduler(p, audio.NewManualEngine(), playback.WithSender(recorder), playback.WithLogger(log))
	defer s.Close()
	step := p.Tempo.SecondsToTicks(1 / float64(fps))
	for i := 0; ; i++ {
		pos := o.from + float64(i)*step
		if pos > o.to {
			break
		}
		s.Process(pos)
	}
	if err := os.MkdirAll(o.dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create output directory: %w", err)
	}
	var files []string
	for _, item := range p.Library.Items() {
		out, ok := item.(*library.OutputItem)
		if !ok {
			continue
		}
		strip, ok := recorder.Filmstrip(out.Fixture)
		if !ok {
			log.WithField("fixture", out.ID).Info("fixture received no frames")
			continue
		}
		name := filepath.Join(o.dir, out.ID+".png")
		if err := strip.SavePNG(name); err != nil {
			return files, err
		}
		files = append(files, name)
	}
	return files, nil
}
