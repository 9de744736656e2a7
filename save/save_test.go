package save

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"lanasave/tables"
	"lanasave/types"
	"lanasave/utils"
)

// sample_buffer builds a plausible save: known fields filled in, and a recognisable pattern in
// every byte nobody understands so that passthrough damage shows up.
func sample_buffer(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, 0x80)
	for i := range buf {
		buf[i] = byte(0xA0 + i)
	}

	put := func(address int, bs ...byte) {
		copy(buf[address:], bs)
	}
	// 2023-05-23 12:00:00 UTC as FILETIME, little-endian
	ft := utils.Time_to_filetime(time.Date(2023, 5, 23, 12, 0, 0, 0, time.UTC))
	for i := 0; i < 8; i++ {
		buf[i] = byte(ft >> (8 * i))
	}
	put(0x0C, 0, 0, 0, '2', '.', '0', '.', '1') // "1.0.2" reversed, NUL padded
	put(0x18, 0x10, 0x0E, 0, 0)                 // elapsed 3600
	put(0x1C, 3, 0, 0, 0)                       // deaths
	put(0x20, 1, 0, 0, 0)                       // slot
	put(0x2C, 5, 0, 0, 0)                       // chapter
	put(0x30, 0x2A, 0, 0, 0)                    // scene
	put(0x34, 1, 0, 2, 0, 3, 0)                 // position

	return buf
}

func Test_DecodeFields(t *testing.T) {
	r, err := Decode(sample_buffer(t))
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]types.Value{
		"timestamp":    types.Integer_value(133293168000000000),
		"version":      types.Text_value("1.0.2\x00\x00\x00"),
		"elapsed":      types.Integer_value(3600),
		"deathcounter": types.Integer_value(3),
		"slot":         types.Integer_value(1),
		"chapterId":    types.Integer_value(5),
		"sceneId":      types.Integer_value(42),
		"position":     types.Vector_value(types.Vector3{1, 2, 3}),
	}
	if diff := cmp.Diff(want, r.Values()); diff != "" {
		t.Errorf("decoded values (-want +got):\n%s", diff)
	}
}

func Test_DecodeEncodeIdentity(t *testing.T) {
	buf := sample_buffer(t)
	r, err := Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, out) {
		t.Errorf("load-save is not byte-identical\n%x\n%x", buf, out)
	}

	// A buffer of junk is still just as identical
	junk := make([]byte, tables.Min_size())
	for i := range junk {
		junk[i] = byte(i * 37)
	}
	r, err = Decode(junk)
	if err != nil {
		t.Fatal(err)
	}
	out, _ = r.Encode()
	if !bytes.Equal(junk, out) {
		t.Error("junk buffer drifted")
	}
}

func Test_DecodeCopiesBuffer(t *testing.T) {
	buf := sample_buffer(t)
	r, _ := Decode(buf)
	buf[0x40] = 0
	buf[0x1C] = 99

	out, _ := r.Encode()
	if out[0x40] == 0 {
		t.Error("record shares passthrough bytes with the caller")
	}
	if n, _ := r.Integer("deathcounter"); n != 3 {
		t.Errorf("record shares field bytes with the caller: %v", n)
	}
}

func Test_DecodeTruncated(t *testing.T) {
	buf := sample_buffer(t)[:tables.Min_size()-1]
	r := New_record()
	err := r.Decode(buf)
	if !errors.Is(err, types.ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, err := Decode(buf); !errors.Is(err, types.ErrTruncated) {
		t.Errorf("expected ErrTruncated from Decode, got %v", err)
	}

	// position runs off the end; everything before it made it
	if r.Has("position") {
		t.Error("position should be absent")
	}
	if _, err := r.Get("position"); !errors.Is(err, types.ErrFieldAbsent) {
		t.Errorf("expected ErrFieldAbsent, got %v", err)
	}
	if _, err := r.Vector("position"); !errors.Is(err, types.ErrFieldAbsent) {
		t.Errorf("expected ErrFieldAbsent, got %v", err)
	}
	if n, err := r.Integer("sceneId"); err != nil || n != 42 {
		t.Errorf("sceneId should be present: %v, %v", n, err)
	}

	// Nothing is lost on the way back out
	out, err := r.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, out) {
		t.Error("short buffer drifted")
	}

	d := r.Dump()
	if diff := cmp.Diff([]string{"position"}, d.Absent); diff != "" {
		t.Errorf("absent list (-want +got):\n%s", diff)
	}
}

func Test_DecodeNothing(t *testing.T) {
	r := New_record()
	if r.Decoded() {
		t.Error("new record claims to be decoded")
	}
	if _, err := r.Encode(); !errors.Is(err, types.ErrFieldAbsent) {
		t.Errorf("encoding an undecoded record should fail, got %v", err)
	}
	if _, err := r.Get("slot"); !errors.Is(err, types.ErrFieldAbsent) {
		t.Errorf("expected ErrFieldAbsent, got %v", err)
	}

	r.Decode(nil)
	if len(r.Values()) != 0 {
		t.Error("empty buffer populated something")
	}
}

func Test_Get(t *testing.T) {
	r, _ := Decode(sample_buffer(t))

	tests := []struct {
		name string
		want string
	}{
		{"deathcounter", "03000000"},
		{"sceneId", "2a000000"},
		{"position", "010002000300"},
		{"version", "00000032 2e302e31"},
	}
	for _, test := range tests {
		want := strings.ReplaceAll(test.want, " ", "")
		got, err := r.Get(test.name)
		if err != nil {
			t.Errorf("%v: %v", test.name, err)
			continue
		}
		if got != want {
			t.Errorf("%v: got %q, want %q", test.name, got, want)
		}
	}

	got, err := r.Get_at(0x1C)
	if err != nil || got != "03000000" {
		t.Errorf("by address: %q, %v", got, err)
	}
}

func Test_GetFailures(t *testing.T) {
	r, _ := Decode(sample_buffer(t))

	if _, err := r.Get("shrines"); !errors.Is(err, types.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
	if _, err := r.Get("__locations"); !errors.Is(err, types.ErrProtectedField) {
		t.Errorf("expected ErrProtectedField, got %v", err)
	}
	if _, err := r.Get_at(0x09); !errors.Is(err, types.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
	if err := r.Set("__chapters", "00"); !errors.Is(err, types.ErrProtectedField) {
		t.Errorf("expected ErrProtectedField, got %v", err)
	}
	if err := r.Set_at(0x3A, "00"); !errors.Is(err, types.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func Test_SetReflectsImmediately(t *testing.T) {
	r, _ := Decode(sample_buffer(t))

	if err := r.Set("deathcounter", "05"); err != nil {
		t.Fatal(err)
	}
	got, _ := r.Get("deathcounter")
	if got != "05000000" {
		t.Errorf("get after set: %q", got)
	}

	if err := r.Set_at(0x34, "0a0014001e00"); err != nil {
		t.Fatal(err)
	}
	v, _ := r.Vector("position")
	if v != (types.Vector3{10, 20, 30}) {
		t.Errorf("position is %v", v)
	}

	out, err := r.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if out[0x1C] != 5 || out[0x34] != 10 || out[0x36] != 20 || out[0x38] != 30 {
		t.Errorf("encode missed the edits: %x", out[:0x3A])
	}
	if len(out) != 0x80 {
		t.Errorf("length changed to %v", len(out))
	}

	// and everything else is untouched
	orig := sample_buffer(t)
	for i := range orig {
		if i >= 0x1C && i < 0x20 || i >= 0x34 && i < 0x3A {
			continue
		}
		if orig[i] != out[i] {
			t.Errorf("byte 0x%X changed from %x to %x", i, orig[i], out[i])
		}
	}
}

func Test_SetMalformedKeepsValue(t *testing.T) {
	r, _ := Decode(sample_buffer(t))

	for _, bad := range []string{"050", "zz", "0500000g"} {
		if err := r.Set("deathcounter", bad); !errors.Is(err, types.ErrMalformedHex) {
			t.Errorf("%q: expected ErrMalformedHex, got %v", bad, err)
		}
	}
	if err := r.Set("position", "0100"); !errors.Is(err, types.ErrMalformedHex) {
		t.Errorf("short vector: expected ErrMalformedHex, got %v", err)
	}

	if n, _ := r.Integer("deathcounter"); n != 3 {
		t.Errorf("deathcounter clobbered: %v", n)
	}
	if v, _ := r.Vector("position"); v != (types.Vector3{1, 2, 3}) {
		t.Errorf("position clobbered: %v", v)
	}
}

func Test_SetTooLarge(t *testing.T) {
	r, _ := Decode(sample_buffer(t))

	// 5 bytes into a 4 byte slot
	if err := r.Set("sceneId", "0000000001"); !errors.Is(err, types.ErrValueTooLarge) {
		t.Errorf("expected ErrValueTooLarge, got %v", err)
	}
	// ...but leading zero bytes are fine
	if err := r.Set("sceneId", "0700000000"); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	if err := r.Set_integer("slot", 1<<32); !errors.Is(err, types.ErrValueTooLarge) {
		t.Errorf("expected ErrValueTooLarge, got %v", err)
	}
	if err := r.Set_text("version", "123456789"); !errors.Is(err, types.ErrValueTooLarge) {
		t.Errorf("expected ErrValueTooLarge, got %v", err)
	}
	if n, _ := r.Integer("slot"); n != 1 {
		t.Errorf("slot clobbered: %v", n)
	}
}

func Test_SetText(t *testing.T) {
	r, _ := Decode(sample_buffer(t))

	if err := r.Set_text("version", "1.1"); err != nil {
		t.Fatal(err)
	}
	s, _ := r.Text("version")
	if s != "\x00\x00\x00\x00\x001.1" {
		t.Errorf("not padded: %q", s)
	}

	// What we store must match what a fresh decode of the output sees
	out, _ := r.Encode()
	again, err := Decode(out)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(r.Values(), again.Values()); diff != "" {
		t.Errorf("re-decode differs (-set +decoded):\n%s", diff)
	}
}

func Test_TypedAccessorsCheckKind(t *testing.T) {
	r, _ := Decode(sample_buffer(t))

	if _, err := r.Text("deathcounter"); !errors.Is(err, types.ErrUnsupportedKind) {
		t.Errorf("expected ErrUnsupportedKind, got %v", err)
	}
	if err := r.Set_vector("deathcounter", types.Vector3{}); !errors.Is(err, types.ErrUnsupportedKind) {
		t.Errorf("expected ErrUnsupportedKind, got %v", err)
	}
	if err := r.Set_integer("position", 4); !errors.Is(err, types.ErrUnsupportedKind) {
		t.Errorf("expected ErrUnsupportedKind, got %v", err)
	}
}

func Test_NoRangeChecks(t *testing.T) {
	// Chapter 2 doesn't exist, but that's for the front end to worry about
	r, _ := Decode(sample_buffer(t))
	if err := r.Set_integer("chapterId", 2); err != nil {
		t.Errorf("codec should not validate chapters: %v", err)
	}
}

func Test_Clone(t *testing.T) {
	r, _ := Decode(sample_buffer(t))
	c := r.Clone()
	c.Set_integer("deathcounter", 100)

	if n, _ := r.Integer("deathcounter"); n != 3 {
		t.Errorf("clone shares values: %v", n)
	}
}

func Test_Dump(t *testing.T) {
	r, _ := Decode(sample_buffer(t))
	out, err := r.Marshal_yaml()
	if err != nil {
		t.Fatal(err)
	}

	d := Dump{}
	if err := yaml.Unmarshal(out, &d); err != nil {
		t.Fatal(err)
	}
	if d.Timestamp != "2023/05/23 - 12:00:00" || d.Version != "1.0.2" || d.Elapsed != "01h 00m 00s" {
		t.Errorf("bad strings: %+v", d)
	}
	if *d.Slot != 2 || *d.Chapter != 5 || d.Chapter_name != "The Cave" || *d.Scene != 42 || *d.Deaths != 3 {
		t.Errorf("bad numbers: %s", out)
	}
	if diff := cmp.Diff([]uint16{1, 2, 3}, d.Position); diff != "" {
		t.Errorf("position (-want +got):\n%s", diff)
	}
	if len(d.Absent) != 0 {
		t.Errorf("nothing should be absent: %v", d.Absent)
	}
}

func Test_Loader(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "slot_1.sav")
	if err := os.WriteFile(filename, sample_buffer(t), 0644); err != nil {
		t.Fatal(err)
	}

	l, err := New_loader(4)
	if err != nil {
		t.Fatal(err)
	}
	r1, err := l.Load(filename)
	if err != nil {
		t.Fatal(err)
	}
	r1.Set_integer("deathcounter", 77)

	r2, err := l.Load(filename)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := r2.Integer("deathcounter"); n != 3 {
		t.Errorf("cached record was modified through a copy: %v", n)
	}
	if l.Len() != 1 {
		t.Errorf("expected one cache entry, got %v", l.Len())
	}

	// A changed file is read again
	buf := sample_buffer(t)
	buf[0x1C] = 9
	buf = append(buf, 0xFF)
	os.WriteFile(filename, buf, 0644)
	r3, err := l.Load(filename)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := r3.Integer("deathcounter"); n != 9 {
		t.Errorf("stale record: %v", n)
	}

	if _, err := l.Load(filepath.Join(dir, "nope.sav")); err == nil {
		t.Error("expected an error for a missing file")
	}
	os.WriteFile(filename, []byte{1, 2, 3}, 0644)
	if _, err := l.Load(filename); !errors.Is(err, types.ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}
