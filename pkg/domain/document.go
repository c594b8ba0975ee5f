package domain

import (
	"encoding/json"
	"fmt"
)

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationKind selects which registered location a sample is stored under.
type LocationKind string

// Registered location kinds.
const (
	LocationHome LocationKind = "home"
	LocationWork LocationKind = "work"
)

// LocationRegistration holds the user-registered home and work coordinates.
type LocationRegistration struct {
	Home *Coordinate `json:"home,omitempty"`
	Work *Coordinate `json:"work,omitempty"`
}

// Field names a top-level key of the persisted document.
type Field string

// Top-level document keys. The garden key is always written as a whole.
const (
	FieldTasks        Field = "tasks"
	FieldHomeLocation Field = "homeLocation"
	FieldWorkLocation Field = "workLocation"
	FieldLowEnergy    Field = "isLowEnergyMode"
	FieldMode         Field = "mode"
	FieldGarden       Field = "garden"
)

// AllFields lists every document key in a stable order.
var AllFields = []Field{FieldTasks, FieldHomeLocation, FieldWorkLocation, FieldLowEnergy, FieldMode, FieldGarden}

// Document is the full persisted per-user state. The remote document and the
// local storage blob share this shape.
type Document struct {
	Tasks           []Task        `json:"tasks"`
	HomeLocation    *Coordinate   `json:"homeLocation,omitempty"`
	WorkLocation    *Coordinate   `json:"workLocation,omitempty"`
	IsLowEnergyMode bool          `json:"isLowEnergyMode"`
	Mode            Mode          `json:"mode,omitempty"`
	Garden          GardenEconomy `json:"garden"`
}

// EmptyDocument returns a document with every field at its zero value.
func EmptyDocument() Document {
	return Document{
		Tasks:  []Task{},
		Mode:   ModePrivate,
		Garden: NewGardenEconomy(),
	}
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	cp := d
	cp.Tasks = CloneTasks(d.Tasks)
	if cp.Tasks == nil {
		cp.Tasks = []Task{}
	}
	cp.HomeLocation = cloneCoordinate(d.HomeLocation)
	cp.WorkLocation = cloneCoordinate(d.WorkLocation)
	cp.Garden = d.Garden.Clone()
	return cp
}

// Locations returns the registration view of the document.
func (d Document) Locations() LocationRegistration {
	return LocationRegistration{Home: cloneCoordinate(d.HomeLocation), Work: cloneCoordinate(d.WorkLocation)}
}

// Normalize defaults absent fields to their zero values.
func (d Document) Normalize() Document {
	cp := d.Clone()
	for i := range cp.Tasks {
		if cp.Tasks[i].SubTasks == nil {
			cp.Tasks[i].SubTasks = []SubTask{}
		}
		if !cp.Tasks[i].Type.Valid() {
			cp.Tasks[i].Type = ModePrivate
		}
		if !cp.Tasks[i].Size.Valid() {
			cp.Tasks[i].Size = SizeM
		}
		if !cp.Tasks[i].IsRunning {
			cp.Tasks[i].StartTime = nil
		}
	}
	if !cp.Mode.Valid() {
		cp.Mode = ModePrivate
	}
	cp.Garden = cp.Garden.normalize()
	return cp
}

// Patch is a partial update naming the top-level keys it replaces. Values are
// taken from Doc for the named fields only.
type Patch struct {
	Fields []Field
	Doc    Document
}

// NewPatch builds a patch from doc restricted to fields.
func NewPatch(doc Document, fields ...Field) Patch {
	return Patch{Fields: append([]Field(nil), fields...), Doc: doc.Clone()}
}

// Has reports whether the patch writes field.
func (p Patch) Has(field Field) bool {
	for _, f := range p.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Apply shallow-merges the patch into base and returns the merged document.
func (d Document) Apply(p Patch) Document {
	out := d.Clone()
	src := p.Doc.Clone()
	for _, f := range p.Fields {
		switch f {
		case FieldTasks:
			out.Tasks = src.Tasks
		case FieldHomeLocation:
			out.HomeLocation = src.HomeLocation
		case FieldWorkLocation:
			out.WorkLocation = src.WorkLocation
		case FieldLowEnergy:
			out.IsLowEnergyMode = src.IsLowEnergyMode
		case FieldMode:
			out.Mode = src.Mode
		case FieldGarden:
			out.Garden = src.Garden
		}
	}
	return out
}

// Encode renders the patched keys as raw JSON values keyed by field name.
// Cleared locations encode as JSON null so a top-level merge overwrites them.
func (p Patch) Encode() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(p.Fields))
	for _, f := range p.Fields {
		var v any
		switch f {
		case FieldTasks:
			v = p.Doc.Tasks
		case FieldHomeLocation:
			v = p.Doc.HomeLocation
		case FieldWorkLocation:
			v = p.Doc.WorkLocation
		case FieldLowEnergy:
			v = p.Doc.IsLowEnergyMode
		case FieldMode:
			v = p.Doc.Mode
		case FieldGarden:
			v = p.Doc.Garden
		default:
			return nil, fmt.Errorf("unknown document field %q", f)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f, err)
		}
		out[string(f)] = b
	}
	return out, nil
}

// MarshalDocument encodes the full document.
func MarshalDocument(d Document) ([]byte, error) {
	return json.Marshal(d.Normalize())
}

// UnmarshalDocument decodes a stored document, defaulting every absent field.
// An empty payload yields the empty document.
func UnmarshalDocument(b []byte) (Document, error) {
	if len(b) == 0 {
		return EmptyDocument(), nil
	}
	doc := EmptyDocument()
	if err := json.Unmarshal(b, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc.Normalize(), nil
}

// MergeRaw applies encoded patch keys onto a stored raw document, replacing
// top-level keys wholesale. A nil base is treated as an empty object.
func MergeRaw(base []byte, patch map[string]json.RawMessage) ([]byte, error) {
	merged := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &merged); err != nil {
			return nil, fmt.Errorf("decode stored document: %w", err)
		}
	}
	for k, v := range patch {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func cloneCoordinate(c *Coordinate) *Coordinate {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
