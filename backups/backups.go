package backups

// Timestamped copies of save files.
//
// Manual backups go straight into the backup directory.  Monitor sessions get a directory of
// their own (named after the session start) with one copy per observed change.

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Same format the old tool used, so existing backup folders sort in with new ones
const TIME_FORMAT = "20060102 - 150405"

const (
	EXT     = ".sav"
	ZST_EXT = ".zst"
)

type Store struct {
	Dir      string
	Compress bool

	// for tests
	now func() time.Time
}

func New_store(dir string, compress bool) *Store {
	return &Store{Dir: dir, Compress: compress, now: time.Now}
}

// Backup copies src to <dir>/<now>.sav (.sav.zst if compressing)
func (s *Store) Backup(src string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %v", src)
	}
	return s.write_into(s.Dir, data)
}

func (s *Store) Session_dir(started time.Time) string {
	return filepath.Join(s.Dir, started.Format(TIME_FORMAT))
}

// Session_copy copies src into the directory for the session that started at started.
func (s *Store) Session_copy(src string, started time.Time) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %v", src)
	}
	return s.Session_save(data, started)
}

// Session_save is Session_copy for data already in memory; the monitor uses it so that the copy
// is exactly the bytes it decoded, even if the game has written again since.
func (s *Store) Session_save(data []byte, started time.Time) (string, error) {
	return s.write_into(s.Session_dir(started), data)
}

func (s *Store) write_into(dir string, data []byte) (string, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %v", dir)
	}

	ext := EXT
	if s.Compress {
		ext += ZST_EXT
		data, err = compress(data)
		if err != nil {
			return "", err
		}
	}

	// One backup per second is plenty, but don't clobber if someone is quicker than that
	base := s.now().Format(TIME_FORMAT)
	name := filepath.Join(dir, base+ext)
	for n := 2; ; n++ {
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			name = filepath.Join(dir, base+"_"+strconv.Itoa(n)+ext)
			continue
		}
		if err != nil {
			return "", errors.Wrapf(err, "failed to create %v", name)
		}
		_, err = f.Write(data)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(name)
			return "", errors.Wrapf(err, "failed to write %v", name)
		}
		return name, nil
	}
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start compressor")
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
}

// Read returns the contents of a backup, decompressing if the name says so.
func Read(backup string) ([]byte, error) {
	f, err := os.Open(backup)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %v", backup)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(backup, ZST_EXT) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to start decompressor for %v", backup)
		}
		defer dec.Close()
		r = dec
	}

	buf := bytes.Buffer{}
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, errors.Wrapf(err, "failed to read %v", backup)
	}
	return buf.Bytes(), nil
}

// Restore puts a backup back as dst.
func Restore(backup string, dst string) error {
	data, err := Read(backup)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write %v", dst)
	}
	return nil
}

// List returns the manual backups, oldest first.  Session directories are not included.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %v", s.Dir)
	}

	out := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), EXT) || strings.HasSuffix(e.Name(), EXT+ZST_EXT) {
			out = append(out, filepath.Join(s.Dir, e.Name()))
		}
	}
	// The names are timestamps, so name order is age order (give or take the _2 suffixes)
	sort.Strings(out)
	return out, nil
}
