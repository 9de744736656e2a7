package writers

// Encoding half of the save file codec, plus writing whole files.
// See readers for a description of "reverse hex".

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"lanasave/readers"
	"lanasave/types"
)

// DEFAULT_INT_WIDTH is the byte width integers get padded to when nobody says otherwise.
const DEFAULT_INT_WIDTH = 4

// swap is readers.Unswap for text we made ourselves and therefore know to be good hex.
func swap(be string) string {
	out := make([]byte, 0, len(be))
	for i := len(be) - 2; i >= 0; i -= 2 {
		out = append(out, be[i], be[i+1])
	}
	return string(out)
}

// Encode_integer pads to at least min_width bytes.  It never truncates: a number that needs
// more bytes gets more bytes, and it's up to the caller to decide whether that fits anywhere.
func Encode_integer(n uint64, min_width int) string {
	be := strconv.FormatUint(n, 16)
	if len(be)%2 == 1 {
		be = "0" + be
	}
	if len(be) < 2*min_width {
		be = strings.Repeat("0", 2*min_width-len(be)) + be
	}
	return swap(be)
}

// Encode_text writes each character as one byte, so anything above 0xFF can't be written.
func Encode_text(s string) (string, error) {
	be := make([]byte, 0, 2*len(s))
	for _, r := range s {
		if r > 0xFF {
			return "", errors.Wrapf(types.ErrMalformedHex, "character %q in %q does not fit a byte", r, s)
		}
		be = append(be, hex.EncodeToString([]byte{byte(r)})...)
	}
	return swap(string(be)), nil
}

// Encode_vector3 writes each component as its own byte-swapped 2-byte group.
func Encode_vector3(v types.Vector3) string {
	out := ""
	for _, c := range v {
		out += Encode_integer(uint64(c), 2)
	}
	return out
}

// Encode_value encodes v for a slot width bytes wide.
// Integers and text that don't fit are refused rather than spilling into the next field.
// Short text is NUL padded (at the high-address end, since that's where big-endian padding lands).
func Encode_value(v types.Value, width int) (string, error) {
	switch v.Kind {
	case types.KIND_INTEGER:
		out := Encode_integer(v.Integer, width)
		if len(out) > 2*width {
			return "", errors.Wrapf(types.ErrValueTooLarge, "%v needs %v bytes, slot has %v", v.Integer, len(out)/2, width)
		}
		return out, nil

	case types.KIND_TEXT:
		out, err := Encode_text(v.Text)
		if err != nil {
			return "", err
		}
		if len(out) > 2*width {
			return "", errors.Wrapf(types.ErrValueTooLarge, "%q needs %v bytes, slot has %v", v.Text, len(out)/2, width)
		}
		return out + strings.Repeat("00", width-len(out)/2), nil

	case types.KIND_VECTOR3:
		if width != types.VECTOR3_WIDTH {
			return "", errors.Wrapf(types.ErrUnsupportedKind, "vector in a %v byte slot", width)
		}
		return Encode_vector3(v.Vector), nil
	}

	return "", errors.Wrapf(types.ErrUnsupportedKind, "cannot encode %v", v.Kind)
}

// Splice_hex overwrites the bytes at address with the bytes of hex_text (which is ordinary hex
// of the on-disk bytes, i.e. already reverse hex).  The buffer never grows.
func Splice_hex(buf []byte, address int, hex_text string) error {
	// Unswap vets length and characters for us
	if _, err := readers.Unswap(hex_text); err != nil {
		return err
	}
	bytes, err := hex.DecodeString(hex_text)
	if err != nil {
		return errors.Wrapf(types.ErrMalformedHex, "%q: %v", hex_text, err)
	}
	if address < 0 || address+len(bytes) > len(buf) {
		return errors.Wrapf(types.ErrTruncated, "cannot write %v bytes at 0x%X into %v", len(bytes), address, len(buf))
	}
	copy(buf[address:], bytes)
	return nil
}

// Write_savefile replaces filename with data.
// The data goes to a temporary file first, and the old file is kept as <filename>.old
// Since this is a tool capable of completely trashing savefiles, that's probably a good idea.
func Write_savefile(filename string, data []byte) (string, error) {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".*.tmp")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temporary file")
	}
	tmp_name := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp_name)
	}

	if _, err = tmp.Write(data); err != nil {
		cleanup()
		return "", errors.Wrapf(err, "failed to write %v", tmp_name)
	}
	if err = tmp.Sync(); err != nil {
		cleanup()
		return "", errors.Wrapf(err, "failed to sync %v", tmp_name)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp_name)
		return "", errors.Wrapf(err, "failed to close %v", tmp_name)
	}

	old_name := ""
	if _, err := os.Stat(filename); err == nil {
		old_name = strings.TrimSuffix(filename, filepath.Ext(filename)) + ".old"
		if err := os.Rename(filename, old_name); err != nil {
			os.Remove(tmp_name)
			return "", errors.Wrapf(err, "failed to back up %v", filename)
		}
	}

	if err := os.Rename(tmp_name, filename); err != nil {
		return old_name, errors.Wrapf(err, "failed to move new file into place (old file is %v)", old_name)
	}

	return old_name, nil
}
