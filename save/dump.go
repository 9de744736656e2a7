package save

import (
	"strings"

	"gopkg.in/yaml.v3"

	"lanasave/tables"
	"lanasave/types"
	"lanasave/utils"
)

// Dump is a human-readable view of a record.  Absent fields are left out and listed in Absent.
type Dump struct {
	Format       int      `yaml:"format"`
	Size         int      `yaml:"size"`
	Timestamp    string   `yaml:"timestamp,omitempty"`
	Version      string   `yaml:"version,omitempty"`
	Elapsed      string   `yaml:"elapsed,omitempty"`
	Deaths       *uint64  `yaml:"deathcounter,omitempty"`
	Slot         *uint64  `yaml:"slot,omitempty"` // one-based, as the game shows it
	Chapter      *uint64  `yaml:"chapterId,omitempty"`
	Chapter_name string   `yaml:"chapter,omitempty"`
	Scene        *uint64  `yaml:"sceneId,omitempty"`
	Position     []uint16 `yaml:"position,flow,omitempty"`
	Absent       []string `yaml:"absent,omitempty"`
}

func (r *Record) Dump() Dump {
	d := Dump{Format: tables.FORMAT_VERSION, Size: r.Size()}

	integer := func(name string) *uint64 {
		n, err := r.Integer(name)
		if err != nil {
			return nil
		}
		return &n
	}

	if n := integer(tables.FIELD_TIMESTAMP); n != nil {
		d.Timestamp = utils.Format_timestamp(*n)
	}
	if s, err := r.Text(tables.FIELD_VERSION); err == nil {
		d.Version = strings.Trim(s, "\x00")
	}
	if n := integer(tables.FIELD_ELAPSED); n != nil {
		d.Elapsed = utils.Format_elapsed(*n)
	}
	d.Deaths = integer(tables.FIELD_DEATHCOUNTER)
	if n := integer(tables.FIELD_SLOT); n != nil {
		one_based := *n + 1
		d.Slot = &one_based
	}
	d.Chapter = integer(tables.FIELD_CHAPTER)
	if d.Chapter != nil {
		d.Chapter_name = tables.Chapter_name(*d.Chapter)
	}
	d.Scene = integer(tables.FIELD_SCENE)
	if v, err := r.Vector(tables.FIELD_POSITION); err == nil {
		d.Position = v[:]
	}

	for _, f := range tables.Fields() {
		if !r.Has(f.Name) {
			d.Absent = append(d.Absent, f.Name)
		}
	}

	return d
}

func (r *Record) Marshal_yaml() ([]byte, error) {
	return yaml.Marshal(r.Dump())
}

// Values returns every present value, keyed by field name.
func (r *Record) Values() map[string]types.Value {
	out := map[string]types.Value{}
	for k, v := range r.values {
		out[k] = v
	}
	return out
}
