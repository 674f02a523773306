package owl

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/banshee-data/semlog/internal/events"
	"github.com/banshee-data/semlog/internal/fsutil"
)

// Defaults for the experiment document.
const (
	DefaultPrefix   = "log"
	DefaultOntology = "ameva_log"
	ExperimentClass = "RobotExperiment"
	FileSuffix      = "_ED.owl"
)

// ErrExists is returned by WriteFile when the target exists and overwriting
// was not requested.
var ErrExists = errors.New("owl: experiment file already exists")

var baseProperties = []string{
	"taskContext", "taskSuccess", "startTime", "endTime", "experiment", "inEpisode",
	events.RoleInContact, events.RoleIsSupported, events.RoleIsSupporting,
	events.RolePerformedBy, events.RoleObjectActedOn, events.RoleDeviceUsed, events.RoleOutputsCreated,
	"graspType", "type",
}

var baseClasses = []string{ExperimentClass, "Timepoint"}

// Experiment is the OWL document of one episode. It is safe for concurrent
// use and satisfies events.Sink.
type Experiment struct {
	ID       string
	TaskID   string
	Prefix   string
	Ontology string

	mu         sync.Mutex
	imports    []string
	classes    map[string]struct{}
	eventNodes []Node
	timepoints []Node
	seenTimes  map[string]struct{}
	objects    []Node
	seenObjs   map[string]struct{}
}

// NewExperiment returns an empty document for episodeID under the default
// prefix and ontology.
func NewExperiment(episodeID, taskID string) *Experiment {
	return &Experiment{
		ID:        episodeID,
		TaskID:    taskID,
		Prefix:    DefaultPrefix,
		Ontology:  DefaultOntology,
		imports:   []string{"package://knowrob_common/owl/knowrob.owl"},
		classes:   make(map[string]struct{}),
		seenTimes: make(map[string]struct{}),
		seenObjs:  make(map[string]struct{}),
	}
}

// AddImport adds an owl:imports entry to the ontology node.
func (x *Experiment) AddImport(uri string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.imports = append(x.imports, uri)
}

// OnSemanticEvent implements events.Sink.
func (x *Experiment) OnSemanticEvent(ev events.Event) { x.AddEvent(ev) }

// AddEvent appends the event individual together with its timepoint and
// object individuals. Each timepoint and object is declared once.
func (x *Experiment) AddEvent(ev events.Event) {
	class := ev.OWLClass()
	if class == "" {
		class = string(ev.Kind)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.classes[class] = struct{}{}
	n := Individual(x.Prefix, ev.ID, class)
	n.Add(
		Resource("knowrob:startTime", x.Prefix, x.timepoint(ev.Start)),
		Resource("knowrob:endTime", x.Prefix, x.timepoint(ev.End)),
	)
	for _, p := range ev.Participants {
		id := objectID(p)
		n.Add(Resource("knowrob:"+p.Role, x.Prefix, id))
		x.object(id, p.Class)
	}
	switch ev.Kind {
	case events.KindGrasp:
		if t := ev.Properties[events.PropGraspType]; t != "" {
			n.Add(Resource("knowrob:graspType", "knowrob", t))
		}
	case events.KindContainer:
		if t := ev.Properties[events.PropContainerType]; t != "" {
			n.Add(Resource("knowrob:type", "knowrob", t))
		}
	case events.KindSlicing:
		if s, ok := ev.Properties[events.PropTaskSuccess]; ok {
			n.Add(Resource("knowrob:taskSuccess", x.Prefix, s))
		}
	}
	n.Add(Resource("knowrob:inEpisode", x.Prefix, x.ID))
	x.eventNodes = append(x.eventNodes, n)
}

// Len returns the number of event individuals.
func (x *Experiment) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.eventNodes)
}

func (x *Experiment) timepoint(t float64) string {
	id := TimepointID(t)
	if _, ok := x.seenTimes[id]; !ok {
		x.seenTimes[id] = struct{}{}
		x.timepoints = append(x.timepoints, Individual(x.Prefix, id, "Timepoint"))
	}
	return id
}

func (x *Experiment) object(id, class string) {
	if _, ok := x.seenObjs[id]; ok {
		return
	}
	x.seenObjs[id] = struct{}{}
	if class == "" {
		class = "Thing"
	}
	x.classes[class] = struct{}{}
	x.objects = append(x.objects, Individual(x.Prefix, id, class))
}

// TimepointID names the timepoint individual of t.
func TimepointID(t float64) string {
	return "timepoint_" + strconv.FormatFloat(t, 'f', -1, 64)
}

func objectID(p events.Participant) string {
	if p.SemID != "" {
		return p.SemID
	}
	return p.Name
}

func (x *Experiment) baseURI() string {
	return "http://knowrob.org/kb/" + x.Ontology + ".owl#"
}

func (x *Experiment) entities() [][2]string {
	return [][2]string{
		{"owl", "http://www.w3.org/2002/07/owl#"},
		{"xsd", "http://www.w3.org/2001/XMLSchema#"},
		{"knowrob", "http://knowrob.org/kb/knowrob.owl#"},
		{"rdfs", "http://www.w3.org/2000/01/rdf-schema#"},
		{"rdf", "http://www.w3.org/1999/02/22-rdf-syntax-ns#"},
		{x.Prefix, x.baseURI()},
	}
}

func (x *Experiment) root() Node {
	root := Node{Name: "rdf:RDF", Attrs: []Attr{
		{Name: "xmlns", Value: x.baseURI()},
		{Name: "xml:base", Value: x.baseURI()},
	}}
	for _, e := range x.entities() {
		root.Attrs = append(root.Attrs, Attr{Name: "xmlns:" + e[0], Value: e[1]})
	}

	ontology := Node{
		Name:    "owl:Ontology",
		Attrs:   []Attr{{Name: "rdf:about", Value: strings.TrimSuffix(x.baseURI(), "#")}},
		Comment: "Ontologies",
	}
	for _, imp := range x.imports {
		ontology.Add(Node{Name: "owl:imports", Attrs: []Attr{{Name: "rdf:resource", Value: imp}}})
	}
	root.Add(ontology)

	for i, p := range baseProperties {
		n := Node{Name: "owl:ObjectProperty", Attrs: []Attr{{Name: "rdf:about", Value: entityRef("knowrob", p)}}}
		if i == 0 {
			n.Comment = "Property Definitions"
		}
		root.Add(n)
	}

	classes := append([]string(nil), baseClasses...)
	var used []string
	for c := range x.classes {
		used = append(used, c)
	}
	sort.Strings(used)
	for _, c := range used {
		if c != ExperimentClass && c != "Timepoint" {
			classes = append(classes, c)
		}
	}
	for i, c := range classes {
		n := Node{Name: "owl:Class", Attrs: []Attr{{Name: "rdf:about", Value: entityRef("knowrob", c)}}}
		if i == 0 {
			n.Comment = "Class Definitions"
		}
		root.Add(n)
	}

	root.Add(withComment(x.eventNodes, "Event Individuals")...)
	root.Add(withComment(x.timepoints, "Timepoint Individuals")...)
	root.Add(withComment(x.objects, "Object Individuals")...)

	exp := Individual(x.Prefix, x.ID, ExperimentClass)
	exp.Comment = "Experiment Individual " + x.ID
	if x.TaskID != "" {
		exp.Add(Node{Name: "knowrob:taskContext", Attrs: []Attr{{Name: "rdf:datatype", Value: "&xsd;string"}}, Value: x.TaskID})
	}
	root.Add(exp)
	return root
}

func withComment(nodes []Node, comment string) []Node {
	if len(nodes) == 0 {
		return nil
	}
	out := append([]Node(nil), nodes...)
	out[0].Comment = comment
	return out
}

// WriteTo renders the whole document.
func (x *Experiment) WriteTo(w io.Writer) (int64, error) {
	x.mu.Lock()
	root := x.root()
	ents := x.entities()
	x.mu.Unlock()

	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n\n<!DOCTYPE rdf:RDF [\n")
	for _, e := range ents {
		fmt.Fprintf(&b, "%s<!ENTITY %s \"%s\">\n", indentStep, e[0], e[1])
	}
	b.WriteString("]>\n\n")
	root.write(&b, "")
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Filename returns the document file name, <episode>_ED.owl.
func (x *Experiment) Filename() string { return x.ID + FileSuffix }

// WriteFile writes the document into dir and returns its path.
func (x *Experiment) WriteFile(fsys fsutil.FileSystem, dir string, overwrite bool) (string, error) {
	path := filepath.Join(dir, x.Filename())
	if !overwrite && fsys.Exists(path) {
		return "", fmt.Errorf("%w: %s", ErrExists, path)
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	var buf bytes.Buffer
	if _, err := x.WriteTo(&buf); err != nil {
		return "", err
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// FileSink collects events into an Experiment and writes the file when the
// logger closes its sinks.
type FileSink struct {
	*Experiment
	fs        fsutil.FileSystem
	dir       string
	overwrite bool
	path      string
}

// NewFileSink returns a sink writing <episode>_ED.owl into dir on Close.
func NewFileSink(x *Experiment, fsys fsutil.FileSystem, dir string, overwrite bool) *FileSink {
	return &FileSink{Experiment: x, fs: fsys, dir: dir, overwrite: overwrite}
}

// Close writes the document.
func (s *FileSink) Close() error {
	path, err := s.WriteFile(s.fs, s.dir, s.overwrite)
	if err != nil {
		return err
	}
	s.path = path
	return nil
}

// Path returns the written file path, or "" before Close.
func (s *FileSink) Path() string { return s.path }
