package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vsariola/lumo"
	"github.com/vsariola/lumo/graph"
	"github.com/vsariola/lumo/library"
	"github.com/vsariola/lumo/output"
)

func newNewCmd(g *globals) *cobra.Command {
	var (
		fixture string
		audio   string
		beats   int
	)
	cmd := &cobra.Command{
		Use:   "new <file>",
		Short: "Write a demo project",
		Long: `new writes a project with a graph on the lights track mixing an
automation fade and an LFO into one color, sent to a fixture.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := demoProject(output.Type(fixture), beats)
			if err != nil {
				return err
			}
			p.FPS = g.cfg.FPS
			if audio != "" {
				if err := addAudio(p, audio, filepath.Dir(args[0])); err != nil {
					return err
				}
			}
			if err := p.SaveFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %v\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&fixture, "fixture", string(output.Dummy), fmt.Sprintf("fixture type, one of %v", output.Types))
	cmd.Flags().StringVar(&audio, "audio", "", "audio file placed at the start of the audio track")
	cmd.Flags().IntVar(&beats, "beats", 16, "length of the show in beats")
	return cmd
}

// demoProject builds the default tracks and a graph: the automation track
// fades the red channel in, a square LFO blinks the green one.
func demoProject(fixture output.Type, beats int) (*library.Project, error) {
	if beats < 1 {
		return nil, fmt.Errorf("beats should be positive, got %v", beats)
	}
	p := library.NewProject()
	for _, t := range lumo.DefaultTracks() {
		if _, err := p.Timeline.AddTrack(t); err != nil {
			return nil, err
		}
	}
	f, err := output.New(fixture)
	if err != nil {
		return nil, err
	}
	length := beats * p.Tempo.TicksPerBeat
	fade := &library.AutomationItem{
		Header: library.Header{ID: "fade", Name: "Fade in"},
		Curve: lumo.NewAutomationCurve(
			lumo.AutomationPoint{Unit: 0, Value: 0, Kind: lumo.Linear},
			lumo.AutomationPoint{Unit: length, Value: 1, Kind: lumo.Linear},
		),
	}
	gr := graph.New()
	nodes := []struct {
		id   string
		kind graph.Kind
		opts graph.Options
	}{
		{"fade", graph.KindAutomation, graph.Options{graph.OptTrack: "automation"}},
		{"blink", graph.KindLFO, graph.Options{graph.OptShape: "square", graph.OptRate: "1"}},
		{"color", graph.KindRGB, nil},
		{"out", graph.KindStripOutput, graph.Options{graph.OptOutput: "strip"}},
	}
	for _, n := range nodes {
		if _, err := gr.AddNode(n.id, n.kind, n.opts); err != nil {
			return nil, err
		}
	}
	for _, c := range [][4]string{
		{"fade", "Value", "color", "R"},
		{"blink", "Value", "color", "G"},
		{"color", "Color", "out", "Colors"},
	} {
		if _, err := gr.Connect(c[0], c[1], c[2], c[3]); err != nil {
			return nil, err
		}
	}
	items := []library.Item{
		&library.OutputItem{Header: library.Header{ID: "strip", Name: "Strip"}, Fixture: f},
		fade,
		&library.GraphItem{Header: library.Header{ID: "show", Name: "Show"}, Graph: gr},
	}
	for _, item := range items {
		if err := p.Library.Add(item); err != nil {
			return nil, err
		}
	}
	for _, s := range []lumo.Segment{
		{ID: "fade", TrackID: "automation", PayloadID: "fade", Start: 0, End: length, Resizable: true},
		{ID: "show", TrackID: "lights", PayloadID: "show", Start: 0, End: length, Resizable: true},
	} {
		if _, err := p.Timeline.AddSegment(s); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// addAudio places the clip at path on the audio track, with the segment
// as long as the clip.
func addAudio(p *library.Project, path, projectDir string) error {
	rel := path
	if abs, err := filepath.Abs(path); err == nil {
		if dir, err := filepath.Abs(projectDir); err == nil {
			if r, err := filepath.Rel(dir, abs); err == nil {
				rel = r
			}
		}
	}
	item := &library.AudioItem{Header: library.Header{Name: filepath.Base(path)}, Path: rel}
	if err := library.LoadAudio(item, library.WithBaseDir(projectDir)); err != nil {
		return err
	}
	if err := p.Library.Add(item); err != nil {
		return err
	}
	_, err := p.Timeline.AddSegment(lumo.Segment{TrackID: "audio", PayloadID: item.ID, Start: 0, End: max(item.Length(p.Tempo), 1)})
	return err
}
