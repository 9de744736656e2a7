package backups

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixed_clock(s *Store, when time.Time) {
	s.now = func() time.Time { return when }
}

func write_source(t *testing.T, dir string, data []byte) string {
	t.Helper()
	src := filepath.Join(dir, "slot_1.sav")
	if err := os.WriteFile(src, data, 0644); err != nil {
		t.Fatal(err)
	}
	return src
}

func Test_Backup(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte{1, 2, 3, 4}, 64)
	src := write_source(t, dir, data)

	for _, compress := range []bool{false, true} {
		s := New_store(filepath.Join(dir, "backups", map[bool]string{false: "plain", true: "zst"}[compress]), compress)
		fixed_clock(s, time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local))

		name, err := s.Backup(src)
		if err != nil {
			t.Fatal(err)
		}
		want := "20240102 - 030405.sav"
		if compress {
			want += ".zst"
		}
		if filepath.Base(name) != want {
			t.Errorf("compress=%v: named %v", compress, name)
		}

		raw, _ := os.ReadFile(name)
		if compress == bytes.Equal(raw, data) {
			t.Errorf("compress=%v: file contents are the wrong shape", compress)
		}

		got, err := Read(name)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("compress=%v: backup does not round trip", compress)
		}

		restored := filepath.Join(dir, "restored.sav")
		if err := Restore(name, restored); err != nil {
			t.Fatal(err)
		}
		got, _ = os.ReadFile(restored)
		if !bytes.Equal(got, data) {
			t.Errorf("compress=%v: restore mangled the file", compress)
		}
	}
}

func Test_BackupNoClobber(t *testing.T) {
	dir := t.TempDir()
	src := write_source(t, dir, []byte("save"))
	s := New_store(filepath.Join(dir, "backups"), false)
	fixed_clock(s, time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local))

	names := []string{}
	for i := 0; i < 3; i++ {
		name, err := s.Backup(src)
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, filepath.Base(name))
	}
	want := []string{"20240102 - 030405.sav", "20240102 - 030405_2.sav", "20240102 - 030405_3.sav"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("backup %v named %v, want %v", i, names[i], want[i])
		}
	}

	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Errorf("listed %v", list)
	}
}

func Test_SessionCopy(t *testing.T) {
	dir := t.TempDir()
	src := write_source(t, dir, []byte("save"))
	s := New_store(filepath.Join(dir, "backups"), false)
	started := time.Date(2024, 1, 2, 3, 0, 0, 0, time.Local)
	fixed_clock(s, started.Add(90*time.Second))

	name, err := s.Session_copy(src, started)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(filepath.Dir(name)) != "20240102 - 030000" || filepath.Base(name) != "20240102 - 030130.sav" {
		t.Errorf("session copy at %v", name)
	}

	// Session directories don't show up as manual backups
	list, _ := s.List()
	if len(list) != 0 {
		t.Errorf("listed %v", list)
	}
}

func Test_BackupErrors(t *testing.T) {
	dir := t.TempDir()
	s := New_store(filepath.Join(dir, "backups"), false)
	if _, err := s.Backup(filepath.Join(dir, "missing.sav")); err == nil {
		t.Error("expected an error for a missing source")
	}

	list, err := s.List()
	if err != nil || len(list) != 0 {
		t.Errorf("missing backup dir should list as empty: %v, %v", list, err)
	}

	bogus := filepath.Join(dir, "bogus.sav.zst")
	os.WriteFile(bogus, []byte("not zstd at all"), 0644)
	if _, err := Read(bogus); err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Errorf("expected a decompression error, got %v", err)
	}
}
