package readers

// Decoding half of the save file codec.
//
// The save file stores every value "reverse hex": take the usual big-endian hex text of the value
// and reverse the order of the byte pairs.  In other words, it's a little-endian byte sequence
// written out as hex.  So 1 in a 4-byte slot is "01000000".

import (
	"encoding/hex"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"lanasave/types"
)

func is_hex_digit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Unswap reverses the byte-pair order of a hex string, turning reverse hex into ordinary big-endian hex
// (or back again; the operation is its own inverse)
func Unswap(hex_text string) (string, error) {
	if len(hex_text)%2 == 1 {
		return "", errors.Wrapf(types.ErrMalformedHex, "odd length %v in %q", len(hex_text), hex_text)
	}
	out := make([]byte, 0, len(hex_text))
	for i := len(hex_text) - 2; i >= 0; i -= 2 {
		if !is_hex_digit(hex_text[i]) || !is_hex_digit(hex_text[i+1]) {
			return "", errors.Wrapf(types.ErrMalformedHex, "non-hex character at %v in %q", i, hex_text)
		}
		out = append(out, hex_text[i], hex_text[i+1])
	}

	return string(out), nil
}

func Decode_integer(hex_text string) (uint64, error) {
	be, err := Unswap(hex_text)
	if err != nil {
		return 0, err
	}
	if be == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(be, 16, 64)
	if err != nil {
		// Unswap has already vetted the characters, so this can only be a range problem
		return 0, errors.Wrapf(types.ErrValueTooLarge, "%q does not fit 64 bits", hex_text)
	}

	return n, nil
}

// Decode_text decodes one character per byte (code points 0-255, no multi-byte nonsense).
// The result always has len(hex_text)/2 characters, NUL padding included.
func Decode_text(hex_text string) (string, error) {
	be, err := Unswap(hex_text)
	if err != nil {
		return "", err
	}
	bytes, err := hex.DecodeString(be)
	if err != nil {
		return "", errors.Wrapf(types.ErrMalformedHex, "%q: %v", hex_text, err)
	}
	out := make([]rune, len(bytes))
	for i, b := range bytes {
		out[i] = rune(b)
	}

	return string(out), nil
}

// Decode_vector3 decodes three 16-bit components.  Each component is byte-swapped on its own;
// the component order is not reversed.
func Decode_vector3(hex_text string) (types.Vector3, error) {
	out := types.Vector3{}
	if len(hex_text) != 2*types.VECTOR3_WIDTH {
		return out, errors.Wrapf(types.ErrMalformedHex, "vector needs %v hex characters, got %v", 2*types.VECTOR3_WIDTH, len(hex_text))
	}
	for i := range out {
		n, err := Decode_integer(hex_text[4*i : 4*i+4])
		if err != nil {
			return types.Vector3{}, err
		}
		out[i] = uint16(n)
	}

	return out, nil
}

func Decode_value(kind types.Kind, hex_text string) (types.Value, error) {
	switch kind {
	case types.KIND_INTEGER:
		n, err := Decode_integer(hex_text)
		if err != nil {
			return types.Value{}, err
		}
		return types.Integer_value(n), nil

	case types.KIND_TEXT:
		s, err := Decode_text(hex_text)
		if err != nil {
			return types.Value{}, err
		}
		return types.Text_value(s), nil

	case types.KIND_VECTOR3:
		v, err := Decode_vector3(hex_text)
		if err != nil {
			return types.Value{}, err
		}
		return types.Vector_value(v), nil
	}

	return types.Value{}, errors.Wrapf(types.ErrUnsupportedKind, "cannot decode %v", kind)
}

// Hex_view returns the hex text of width bytes starting at address.
func Hex_view(buf []byte, address int, width int) (string, error) {
	if address < 0 || width < 0 || address+width > len(buf) {
		return "", errors.Wrapf(types.ErrTruncated, "bytes 0x%X-0x%X wanted, only %v available", address, address+width, len(buf))
	}
	return hex.EncodeToString(buf[address : address+width]), nil
}

// Read_savedata slurps a whole save from r.  The codec only ever works on complete buffers.
func Read_savedata(r io.Reader) ([]byte, error) {
	bytes, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read save data")
	}
	return bytes, nil
}

func Read_savefile(filename string) ([]byte, error) {
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load file %v", filename)
	}
	return bytes, nil
}
