package save

import (
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"lanasave/readers"
)

// Loader decodes save files, remembering recent results.
// A file is only decoded again once its size or modification time changes.
type Loader struct {
	cache *lru.Cache
}

type cache_key struct {
	filename string
	size     int64
	mod_time int64
}

func New_loader(size int) (*Loader, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create record cache")
	}
	return &Loader{cache}, nil
}

// Load returns a record of its own; editing it does not disturb the cache.
func (l *Loader) Load(filename string) (*Record, error) {
	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "bad filename %v", filename)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load file %v", filename)
	}
	key := cache_key{abs, info.Size(), info.ModTime().UnixNano()}

	if cached, ok := l.cache.Get(key); ok {
		return cached.(*Record).Clone(), nil
	}

	bytes, err := readers.Read_savefile(abs)
	if err != nil {
		return nil, err
	}
	record, err := Decode(bytes)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse file %v", filename)
	}
	l.cache.Add(key, record)

	return record.Clone(), nil
}

func (l *Loader) Len() int {
	return l.cache.Len()
}
