package save

// Record is the decoded form of one save file.
//
// Only fields in the tables package are interpreted.  Every other byte is kept exactly as read,
// and Encode writes the known fields back over a copy of the original bytes, so regions we don't
// understand survive a load-edit-save cycle untouched.

import (
	"strings"

	"github.com/pkg/errors"

	"lanasave/readers"
	"lanasave/tables"
	"lanasave/types"
	"lanasave/writers"
)

type Record struct {
	raw    []byte // the buffer as decoded; never modified
	values map[string]types.Value
}

func New_record() *Record {
	return &Record{values: map[string]types.Value{}}
}

// Decode decodes a complete save buffer into a new record.
func Decode(buf []byte) (*Record, error) {
	r := New_record()
	if err := r.Decode(buf); err != nil {
		return nil, err
	}
	return r, nil
}

// Decode (re)populates r from buf.
// If a field fails to decode (typically because the buffer ends before the field does), that field
// and every field after it stay absent and the error is returned.  Whatever did decode stays usable,
// and the bytes are still carried through by Encode.
func (r *Record) Decode(buf []byte) error {
	r.values = map[string]types.Value{}
	r.raw = append([]byte{}, buf...)

	for _, f := range tables.Fields() {
		hex_text, err := readers.Hex_view(r.raw, f.Address, f.Width)
		if err != nil {
			return errors.Wrapf(err, "field %v", f.Name)
		}
		v, err := readers.Decode_value(f.Kind, hex_text)
		if err != nil {
			return errors.Wrapf(err, "field %v", f.Name)
		}
		r.values[f.Name] = v
	}

	return nil
}

// Decoded reports whether there is anything to encode.
func (r *Record) Decoded() bool {
	return r.raw != nil
}

func (r *Record) Size() int {
	return len(r.raw)
}

func (r *Record) Clone() *Record {
	out := New_record()
	if r.raw != nil {
		out.raw = append([]byte{}, r.raw...)
	}
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}

func (r *Record) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// value is the lookup all the getters share.
func (r *Record) value(f types.Field) (types.Value, error) {
	v, ok := r.values[f.Name]
	if !ok {
		return types.Value{}, errors.Wrapf(types.ErrFieldAbsent, "%v has no value", f.Name)
	}
	return v, nil
}

func (r *Record) get(f types.Field) (string, error) {
	v, err := r.value(f)
	if err != nil {
		return "", err
	}
	return writers.Encode_value(v, f.Width)
}

// Get returns the current value of a field as reverse hex at the field's full width.
// It is encoded from the live value every time, so it always reflects the latest Set.
func (r *Record) Get(name string) (string, error) {
	f, err := tables.Field_by_name(name)
	if err != nil {
		return "", err
	}
	return r.get(f)
}

func (r *Record) Get_at(address int) (string, error) {
	f, err := tables.Field_at(address)
	if err != nil {
		return "", err
	}
	return r.get(f)
}

// normalise pads text out to the slot width, so that what we store is what a fresh Decode of the
// written file would give.  It also refuses anything that won't fit the slot.
func normalise(f types.Field, v types.Value) (types.Value, error) {
	if v.Kind != f.Kind {
		return types.Value{}, errors.Wrapf(types.ErrUnsupportedKind, "%v is a %v field, got a %v", f.Name, f.Kind, v.Kind)
	}
	if v.Kind == types.KIND_TEXT {
		n := len([]rune(v.Text))
		if n < f.Width {
			v.Text = strings.Repeat("\x00", f.Width-n) + v.Text
		}
	}
	if _, err := writers.Encode_value(v, f.Width); err != nil {
		return types.Value{}, errors.Wrapf(err, "field %v", f.Name)
	}
	return v, nil
}

func (r *Record) set_value(f types.Field, v types.Value) error {
	v, err := normalise(f, v)
	if err != nil {
		return err
	}
	r.values[f.Name] = v
	return nil
}

func (r *Record) set(f types.Field, hex_text string) error {
	v, err := readers.Decode_value(f.Kind, hex_text)
	if err != nil {
		return errors.Wrapf(err, "field %v", f.Name)
	}
	return r.set_value(f, v)
}

// Set decodes hex_text (reverse hex) according to the field's kind and stores the result.
// On any error the field keeps its old value.
func (r *Record) Set(name string, hex_text string) error {
	f, err := tables.Field_by_name(name)
	if err != nil {
		return err
	}
	return r.set(f, hex_text)
}

func (r *Record) Set_at(address int, hex_text string) error {
	f, err := tables.Field_at(address)
	if err != nil {
		return err
	}
	return r.set(f, hex_text)
}

func (r *Record) Value(name string) (types.Value, error) {
	f, err := tables.Field_by_name(name)
	if err != nil {
		return types.Value{}, err
	}
	return r.value(f)
}

// typed fetches a value and insists on its kind
func (r *Record) typed(name string, kind types.Kind) (types.Value, error) {
	v, err := r.Value(name)
	if err != nil {
		return v, err
	}
	if v.Kind != kind {
		return types.Value{}, errors.Wrapf(types.ErrUnsupportedKind, "%v is %v, not %v", name, v.Kind, kind)
	}
	return v, nil
}

func (r *Record) Integer(name string) (uint64, error) {
	v, err := r.typed(name, types.KIND_INTEGER)
	return v.Integer, err
}

func (r *Record) Text(name string) (string, error) {
	v, err := r.typed(name, types.KIND_TEXT)
	return v.Text, err
}

func (r *Record) Vector(name string) (types.Vector3, error) {
	v, err := r.typed(name, types.KIND_VECTOR3)
	return v.Vector, err
}

func (r *Record) Set_value(name string, v types.Value) error {
	f, err := tables.Field_by_name(name)
	if err != nil {
		return err
	}
	return r.set_value(f, v)
}

func (r *Record) Set_integer(name string, n uint64) error {
	return r.Set_value(name, types.Integer_value(n))
}

func (r *Record) Set_text(name string, s string) error {
	return r.Set_value(name, types.Text_value(s))
}

func (r *Record) Set_vector(name string, v types.Vector3) error {
	return r.Set_value(name, types.Vector_value(v))
}

// Encode produces the full save buffer: the original bytes with every known field written over them.
// The result is always the same length as the buffer that was decoded.
func (r *Record) Encode() ([]byte, error) {
	if r.raw == nil {
		return nil, errors.Wrap(types.ErrFieldAbsent, "nothing has been decoded")
	}
	out := append([]byte{}, r.raw...)

	for _, f := range tables.Fields() {
		v, ok := r.values[f.Name]
		if !ok {
			// Never decoded; the original bytes are the best we have
			continue
		}
		hex_text, err := writers.Encode_value(v, f.Width)
		if err != nil {
			return nil, errors.Wrapf(err, "field %v", f.Name)
		}
		if err := writers.Splice_hex(out, f.Address, hex_text); err != nil {
			return nil, errors.Wrapf(err, "field %v", f.Name)
		}
	}

	return out, nil
}
