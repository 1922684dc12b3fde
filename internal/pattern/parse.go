package pattern

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Format identifies a pattern file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// cuePatternPath is where a CUE pattern file keeps its pattern value.
const cuePatternPath = "pattern"

// Spec is the universal pattern format shared by every encoding.
//
//	{"UseRegex": false, "Events": [
//	  {"ID": 0, "Signature": "fork", "SubjectID": 0, "ObjectID": 1, "Parents": []},
//	  {"ID": 1, "Signature": "execve", "SubjectID": 1, "ObjectID": 2, "Parents": [0]}
//	]}
type Spec struct {
	UseRegex bool        `json:"UseRegex" yaml:"UseRegex"`
	Events   []EventSpec `json:"Events" yaml:"Events"`
}

// EventSpec describes one pattern edge and its temporal dependencies.
type EventSpec struct {
	ID        int    `json:"ID" yaml:"ID"`
	Signature string `json:"Signature" yaml:"Signature"`
	SubjectID int    `json:"SubjectID" yaml:"SubjectID"`
	ObjectID  int    `json:"ObjectID" yaml:"ObjectID"`
	Parents   []int  `json:"Parents" yaml:"Parents"`
}

// FormatFromPath guesses the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", newParseError(ErrCodeFormat, "unsupported pattern file extension %q", filepath.Ext(path))
	}
}

// Load reads, decodes and validates a pattern file.
func Load(path string) (*Pattern, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, withPath(err, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern: %w", err)
	}
	p, err := Parse(data, format)
	if err != nil {
		return nil, withPath(err, path)
	}
	return p, nil
}

// Parse decodes and validates a pattern held in memory.
func Parse(data []byte, format Format) (*Pattern, error) {
	spec, err := decodeSpec(data, format)
	if err != nil {
		return nil, err
	}
	return spec.Build()
}

func decodeSpec(data []byte, format Format) (*Spec, error) {
	var spec Spec
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, &ParseError{Code: ErrCodeFormat, Message: "invalid JSON pattern", Err: err}
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, &ParseError{Code: ErrCodeFormat, Message: "invalid YAML pattern", Err: err}
		}
	case FormatCUE:
		ctx := cuecontext.New()
		value := ctx.CompileBytes(data)
		if err := value.Err(); err != nil {
			return nil, &ParseError{Code: ErrCodeFormat, Message: "invalid CUE pattern", Err: err}
		}
		patternVal := value.LookupPath(cue.ParsePath(cuePatternPath))
		if !patternVal.Exists() {
			return nil, newParseError(ErrCodeFormat, "CUE pattern has no %q field", cuePatternPath)
		}
		if err := patternVal.Decode(&spec); err != nil {
			return nil, &ParseError{Code: ErrCodeFormat, Message: "decode CUE pattern", Err: err}
		}
	default:
		return nil, newParseError(ErrCodeFormat, "unknown pattern format %q", format)
	}
	return &spec, nil
}

// Build turns a Spec into a validated Pattern. Signatures are NFC-normalized
// so that literal comparison does not depend on how a file was authored.
func (s *Spec) Build() (*Pattern, error) {
	if len(s.Events) == 0 {
		return nil, newParseError(ErrCodeIDs, "pattern has no events")
	}

	events := make([]EventSpec, len(s.Events))
	copy(events, s.Events)
	sort.SliceStable(events, func(i, j int) bool { return events[i].ID < events[j].ID })

	maxNode := 0
	edges := make([]Edge, 0, len(events))
	deps := make(map[int][]int, len(events))
	for i, ev := range events {
		if ev.ID != i {
			return nil, newParseError(ErrCodeIDs, "event ids must be 0..%d without gaps or duplicates (found %d at position %d)",
				len(events)-1, ev.ID, i)
		}
		if ev.SubjectID < 0 || ev.ObjectID < 0 {
			return nil, newParseError(ErrCodeIDs, "event %d has a negative node id", ev.ID)
		}
		maxNode = max(maxNode, ev.SubjectID, ev.ObjectID)
		edges = append(edges, Edge{
			ID:        ev.ID,
			Signature: norm.NFC.String(ev.Signature),
			Start:     ev.SubjectID,
			End:       ev.ObjectID,
		})
		for _, parent := range ev.Parents {
			if parent < 0 || parent >= len(events) {
				return nil, newParseError(ErrCodeIDs, "event %d depends on unknown event %d", ev.ID, parent)
			}
		}
		deps[ev.ID] = ev.Parents
	}

	nodes := make([]Node, maxNode+1)
	for i := range nodes {
		nodes[i] = Node{ID: i}
	}

	p := &Pattern{
		Graph:    NewGraph(nodes, edges),
		Order:    NewOrderRelation(len(edges), deps),
		UseRegex: s.UseRegex,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ToSpec converts a Pattern back to its universal format.
func (p *Pattern) ToSpec() *Spec {
	spec := &Spec{UseRegex: p.UseRegex}
	for _, e := range p.Graph.Edges() {
		var parents []int
		for _, parent := range p.Order.Parents(e.ID) {
			if parent != Root {
				parents = append(parents, parent)
			}
		}
		if parents == nil {
			parents = []int{}
		}
		spec.Events = append(spec.Events, EventSpec{
			ID:        e.ID,
			Signature: e.Signature,
			SubjectID: e.Start,
			ObjectID:  e.End,
			Parents:   parents,
		})
	}
	return spec
}

func withPath(err error, path string) error {
	if pe, ok := err.(*ParseError); ok {
		pe.Path = path
		return pe
	}
	return fmt.Errorf("%s: %w", path, err)
}
