package library

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/lumo"
	"github.com/vsariola/lumo/audio"
	"github.com/vsariola/lumo/graph"
	"github.com/vsariola/lumo/output"
	"go.mongodb.org/mongo-driver/bson"
)

type (
	// Project is everything saved in a project document.
	Project struct {
		Tempo    lumo.Tempo
		FPS      int
		Timeline *lumo.Timeline
		Library  *Library
	}

	// LoadOption customizes Load.
	LoadOption func(*loadOptions)

	loadOptions struct {
		baseDir string
		decode  func(path string) (lumo.AudioBuffer, error)
		outputs []output.Option
		log     *logrus.Entry
	}

	document struct {
		Version      int            `bson:"version"`
		BPM          float64        `bson:"bpm"`
		TicksPerBeat int            `bson:"ticksPerBeat,omitempty"`
		FPS          int            `bson:"fps"`
		Tracks       []lumo.Track   `bson:"tracks"`
		Items        []lumo.Segment `bson:"items"`
		Library      []entry        `bson:"library"`
	}

	// entry is the envelope of a payload: its type tag and its own BSON
	// document as binary data.
	entry struct {
		Type Kind   `bson:"type"`
		Data []byte `bson:"data"`
	}

	audioDoc struct {
		ID   string `bson:"id"`
		Name string `bson:"name"`
		Path string `bson:"path"`
	}

	graphDoc struct {
		ID    string      `bson:"id"`
		Name  string      `bson:"name"`
		Graph graph.State `bson:"graph"`
	}

	automationDoc struct {
		ID     string                 `bson:"id"`
		Name   string                 `bson:"name"`
		Points []lumo.AutomationPoint `bson:"points"`
	}

	patternDoc struct {
		ID    string      `bson:"id"`
		Name  string      `bson:"name"`
		Notes []lumo.Note `bson:"notes"`
	}

	outputDoc struct {
		ID    string      `bson:"id"`
		Name  string      `bson:"name"`
		Type  output.Type `bson:"type"`
		State bson.Raw    `bson:"state"`
	}
)

// DocumentVersion is written to saved documents.
const DocumentVersion = 1

const DefaultFPS = 60

func NewProject() *Project {
	return &Project{
		Tempo:    lumo.DefaultTempo(),
		FPS:      DefaultFPS,
		Timeline: lumo.NewTimeline(),
		Library:  New(),
	}
}

// WithBaseDir resolves relative audio paths against dir.
func WithBaseDir(dir string) LoadOption {
	return func(o *loadOptions) { o.baseDir = dir }
}

// WithAudioDecoder replaces audio.DecodeFile.
func WithAudioDecoder(decode func(path string) (lumo.AudioBuffer, error)) LoadOption {
	return func(o *loadOptions) { o.decode = decode }
}

// WithOutputOptions passes opts to every fixture created while loading.
func WithOutputOptions(opts ...output.Option) LoadOption {
	return func(o *loadOptions) { o.outputs = append(o.outputs, opts...) }
}

func WithLogger(log *logrus.Entry) LoadOption {
	return func(o *loadOptions) { o.log = log }
}

// Marshal encodes the project as a BSON document. Temporary segments are
// left out.
func (p *Project) Marshal() ([]byte, error) {
	doc := document{
		Version:      DocumentVersion,
		BPM:          p.Tempo.BPM,
		TicksPerBeat: p.Tempo.TicksPerBeat,
		FPS:          p.FPS,
		Tracks:       p.Timeline.Tracks(),
		Items:        []lumo.Segment{},
		Library:      []entry{},
	}
	for _, s := range p.Timeline.Segments() {
		if !s.Temporary {
			doc.Items = append(doc.Items, s)
		}
	}
	for _, item := range p.Library.Items() {
		data, err := marshalItem(item)
		if err != nil {
			return nil, fmt.Errorf("cannot encode library item %v: %w", item.Info().ID, err)
		}
		doc.Library = append(doc.Library, entry{Type: item.Kind(), Data: data})
	}
	return bson.Marshal(doc)
}

func marshalItem(item Item) ([]byte, error) {
	h := item.Info()
	switch i := item.(type) {
	case *AudioItem:
		return bson.Marshal(audioDoc{ID: h.ID, Name: h.Name, Path: i.Path})
	case *GraphItem:
		return bson.Marshal(graphDoc{ID: h.ID, Name: h.Name, Graph: i.Graph.State()})
	case *AutomationItem:
		return bson.Marshal(automationDoc{ID: h.ID, Name: h.Name, Points: i.Curve.Points()})
	case *PatternItem:
		return bson.Marshal(patternDoc{ID: h.ID, Name: h.Name, Notes: i.Pattern.Notes()})
	case *OutputItem:
		state, err := bson.Marshal(i.Fixture.State())
		if err != nil {
			return nil, err
		}
		return bson.Marshal(outputDoc{ID: h.ID, Name: h.Name, Type: i.Fixture.Type(), State: state})
	}
	return nil, fmt.Errorf("unsupported item type %T", item)
}

// Save writes the project document to w.
func (p *Project) Save(w io.Writer) error {
	data, err := p.Marshal()
	if err != nil {
		return fmt.Errorf("cannot encode project: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("cannot write project: %w", err)
	}
	return nil
}

func (p *Project) SaveFile(path string) error {
	data, err := p.Marshal()
	if err != nil {
		return fmt.Errorf("cannot encode project: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write project: %w", err)
	}
	return nil
}

// LoadFile loads a project, resolving relative audio paths against the
// directory of the file.
func LoadFile(path string, opts ...LoadOption) (*Project, []error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, lumo.Wrapf(err, lumo.ResourceNotFoundError, fmt.Sprintf("cannot read project %v", path))
	}
	opts = append([]LoadOption{WithBaseDir(filepath.Dir(path))}, opts...)
	return Unmarshal(data, opts...)
}

func Load(r io.Reader, opts ...LoadOption) (*Project, []error, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read project: %w", err)
	}
	return Unmarshal(data, opts...)
}

// Unmarshal decodes a project document. Problems with single entries do not
// stop loading: the entry is skipped or its payload flagged, and the problem
// is returned in warnings. err is only set if the document itself is
// unusable.
func Unmarshal(data []byte, opts ...LoadOption) (p *Project, warnings []error, err error) {
	o := loadOptions{decode: audio.DecodeFile}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	log := o.log.WithField("component", "library")
	var doc document
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, nil, lumo.Wrapf(err, lumo.ValidationError, "invalid project document")
	}
	if doc.Version > DocumentVersion {
		log.WithField("version", doc.Version).Warn("project saved by a newer version")
	}
	p = NewProject()
	if doc.BPM != 0 {
		p.Tempo.BPM = doc.BPM
	}
	if doc.TicksPerBeat != 0 {
		p.Tempo.TicksPerBeat = doc.TicksPerBeat
	}
	if err := p.Tempo.Validate(); err != nil {
		return nil, nil, err
	}
	if doc.FPS > 0 {
		p.FPS = doc.FPS
	}
	warn := func(err error) {
		log.WithError(err).Warn("problem while loading project")
		warnings = append(warnings, err)
	}
	for _, e := range doc.Library {
		item, err := o.loadItem(e, log)
		if item != nil {
			if err := p.Library.Add(item); err != nil {
				warn(err)
				continue
			}
		}
		if err != nil {
			warn(err)
		}
	}
	for _, t := range doc.Tracks {
		if _, err := p.Timeline.AddTrack(t); err != nil {
			warn(err)
		}
	}
	for _, s := range doc.Items {
		if _, ok := p.Library.Item(s.PayloadID); !ok {
			warn(lumo.Errorf(lumo.ResourceNotFoundError, fmt.Sprintf("segment %v refers to missing payload %v", s.ID, s.PayloadID)))
			continue
		}
		if _, err := p.Timeline.AddSegment(s); err != nil {
			warn(err)
		}
	}
	return p, warnings, nil
}

// loadItem decodes one library entry. A non-nil item with a non-nil error
// is a payload that loaded with problems and should still be added.
func (o *loadOptions) loadItem(e entry, log *logrus.Entry) (Item, error) {
	switch e.Type {
	case Audio:
		var d audioDoc
		if err := bson.Unmarshal(e.Data, &d); err != nil {
			return nil, invalidEntry(e, err)
		}
		item := &AudioItem{Header: Header{ID: d.ID, Name: d.Name}, Path: d.Path}
		return item, o.loadAudio(item)
	case Graph:
		var d graphDoc
		if err := bson.Unmarshal(e.Data, &d); err != nil {
			return nil, invalidEntry(e, err)
		}
		g, err := graph.FromState(d.Graph)
		if err != nil {
			log.WithError(err).WithField("graph", d.ID).Error("graph rejected")
			return nil, err
		}
		return &GraphItem{Header: Header{ID: d.ID, Name: d.Name}, Graph: g}, nil
	case Automation:
		var d automationDoc
		if err := bson.Unmarshal(e.Data, &d); err != nil {
			return nil, invalidEntry(e, err)
		}
		return &AutomationItem{Header: Header{ID: d.ID, Name: d.Name}, Curve: lumo.NewAutomationCurve(d.Points...)}, nil
	case Pattern:
		var d patternDoc
		if err := bson.Unmarshal(e.Data, &d); err != nil {
			return nil, invalidEntry(e, err)
		}
		return &PatternItem{Header: Header{ID: d.ID, Name: d.Name}, Pattern: lumo.NewNotePattern(d.Notes...)}, nil
	case Output:
		var d outputDoc
		if err := bson.Unmarshal(e.Data, &d); err != nil {
			return nil, invalidEntry(e, err)
		}
		f, err := output.New(d.Type, o.outputs...)
		if err != nil {
			return nil, err
		}
		item := &OutputItem{Header: Header{ID: d.ID, Name: d.Name}, Fixture: f}
		if len(d.State) == 0 {
			return item, nil
		}
		// a fixture with a bad configuration keeps its defaults
		return item, f.Configure(func(v any) error { return bson.Unmarshal(d.State, v) })
	}
	return nil, lumo.Errorf(lumo.ValidationError, fmt.Sprintf("unknown library item type %v", int(e.Type)))
}

func invalidEntry(e entry, err error) error {
	return lumo.Wrapf(err, lumo.ValidationError, fmt.Sprintf("invalid %v entry", e.Type))
}

// loadAudio decodes the clip. On failure the item is flagged and stays
// silent.
func (o *loadOptions) loadAudio(item *AudioItem) error {
	item.Buffer = nil
	item.Error = false
	if item.Path == "" {
		item.Error = true
		return lumo.Errorf(lumo.AudioDecodeError, fmt.Sprintf("audio item %v has no file", item.ID))
	}
	path := item.Path
	if !filepath.IsAbs(path) && o.baseDir != "" {
		path = filepath.Join(o.baseDir, path)
	}
	buf, err := o.decode(path)
	if err != nil {
		item.Error = true
		return lumo.Wrapf(err, lumo.AudioDecodeError, fmt.Sprintf("audio item %v", item.ID))
	}
	item.Buffer = buf
	return nil
}

// LoadAudio decodes the clip of item from its path, flagging it on failure.
func LoadAudio(item *AudioItem, opts ...LoadOption) error {
	o := loadOptions{decode: audio.DecodeFile}
	for _, opt := range opts {
		opt(&o)
	}
	return o.loadAudio(item)
}
