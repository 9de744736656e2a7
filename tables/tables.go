package tables

// The field table for the save file, plus the chapter list.
// Only the fields listed here are ever interpreted; every other byte is carried through untouched.

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"lanasave/types"
)

// FORMAT_VERSION identifies the layout below.  Bump it (and add a new table) if the game moves things around.
const FORMAT_VERSION = 1

// RESERVED_PREFIX marks names that callers may never get or set.
const RESERVED_PREFIX = "__"

const (
	FIELD_TIMESTAMP    = "timestamp"
	FIELD_VERSION      = "version"
	FIELD_ELAPSED      = "elapsed"
	FIELD_DEATHCOUNTER = "deathcounter"
	FIELD_SLOT         = "slot"
	FIELD_CHAPTER      = "chapterId"
	FIELD_SCENE        = "sceneId"
	FIELD_POSITION     = "position"
)

// In address order.
//
// 0x08-0x0B, 0x14-0x17 and 0x24-0x2B are not understood, nor is anything from 0x3A on.
var fields = []types.Field{
	{Address: 0x00, Name: FIELD_TIMESTAMP, Kind: types.KIND_INTEGER, Width: 8}, // Windows FILETIME
	{Address: 0x0C, Name: FIELD_VERSION, Kind: types.KIND_TEXT, Width: 8},
	{Address: 0x18, Name: FIELD_ELAPSED, Kind: types.KIND_INTEGER, Width: 4}, // seconds
	{Address: 0x1C, Name: FIELD_DEATHCOUNTER, Kind: types.KIND_INTEGER, Width: 4},
	{Address: 0x20, Name: FIELD_SLOT, Kind: types.KIND_INTEGER, Width: 4}, // zero-based
	{Address: 0x2C, Name: FIELD_CHAPTER, Kind: types.KIND_INTEGER, Width: 4},
	{Address: 0x30, Name: FIELD_SCENE, Kind: types.KIND_INTEGER, Width: 4},
	{Address: 0x34, Name: FIELD_POSITION, Kind: types.KIND_VECTOR3, Width: types.VECTOR3_WIDTH},
}

var by_name = map[string]int{}
var by_address = map[int]int{}

func init() {
	if err := validate(fields); err != nil {
		panic(err)
	}
	for i, f := range fields {
		by_name[f.Name] = i
		by_address[f.Address] = i
	}
}

// validate checks a field table for overlaps, duplicates and other nonsense.
func validate(table []types.Field) error {
	names := map[string]bool{}
	end := 0
	for i, f := range table {
		switch {
		case f.Name == "":
			return fmt.Errorf("field %v has no name", i)
		case strings.HasPrefix(f.Name, RESERVED_PREFIX):
			return fmt.Errorf("field %v uses the reserved prefix", f.Name)
		case names[f.Name]:
			return fmt.Errorf("field %v appears twice", f.Name)
		case f.Width <= 0:
			return fmt.Errorf("field %v has width %v", f.Name, f.Width)
		case f.Address < end:
			return fmt.Errorf("field %v at 0x%X overlaps or precedes the previous field (ends 0x%X)", f.Name, f.Address, end)
		}
		switch f.Kind {
		case types.KIND_INTEGER:
			if f.Width > 8 {
				return fmt.Errorf("integer field %v is %v bytes wide, max is 8", f.Name, f.Width)
			}
		case types.KIND_TEXT:
		case types.KIND_VECTOR3:
			if f.Width != types.VECTOR3_WIDTH {
				return fmt.Errorf("vector field %v must be %v bytes wide", f.Name, types.VECTOR3_WIDTH)
			}
		default:
			return fmt.Errorf("field %v has kind %v", f.Name, f.Kind)
		}
		names[f.Name] = true
		end = f.End()
	}
	return nil
}

// Fields returns a copy of the field table, in address order.
func Fields() []types.Field {
	out := make([]types.Field, len(fields))
	copy(out, fields)
	return out
}

func Names() []string {
	out := []string{}
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

func Field_by_name(name string) (types.Field, error) {
	if strings.HasPrefix(name, RESERVED_PREFIX) {
		return types.Field{}, errors.Wrapf(types.ErrProtectedField, "trying to access protected value %q", name)
	}
	i, ok := by_name[name]
	if !ok {
		return types.Field{}, errors.Wrapf(types.ErrUnknownField, "no such save value currently known: %q", name)
	}
	return fields[i], nil
}

func Field_at(address int) (types.Field, error) {
	i, ok := by_address[address]
	if !ok {
		return types.Field{}, errors.Wrapf(types.ErrUnknownField, "no such save location currently known: 0x%X", address)
	}
	return fields[i], nil
}

// Min_size is the smallest buffer that holds every field.
func Min_size() int {
	return fields[len(fields)-1].End()
}

// Chapters.  The ids have gaps; 2, 8, 11 and 13 are not chapters.
var chapters = map[int]string{
	1:  "Village Intro",
	3:  "A New Friend",
	4:  "Getting to know each other",
	5:  "The Cave",
	6:  "The Highlands",
	7:  "The Swamp",
	9:  "The Shipwreck",
	10: "In Control",
	12: "Archipelago 1",
	14: "The Desert",
	15: "The Desert Hut",
	16: "The Robot Base",
	17: "Home",
}

// Chapters returns the chapter table.  It's a copy; scribble on it if you like.
func Chapters() map[int]string {
	out := map[int]string{}
	for k, v := range chapters {
		out[k] = v
	}
	return out
}

func Chapter_ids() []int {
	out := []int{}
	for k := range chapters {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func Is_valid_chapter(id uint64) bool {
	_, ok := chapters[int(id)]
	return id <= 0xFFFF && ok
}

func Chapter_name(id uint64) string {
	if !Is_valid_chapter(id) {
		return fmt.Sprintf("Unknown (%v)", id)
	}
	return chapters[int(id)]
}
