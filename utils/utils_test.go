package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func Test_Filetime(t *testing.T) {
	// 2023-05-23 12:00:00 UTC
	when := time.Date(2023, 5, 23, 12, 0, 0, 0, time.UTC)
	ft := Time_to_filetime(when)
	if ft != 133293168000000000 {
		t.Errorf("unexpected FILETIME %v", ft)
	}
	if got := Filetime_to_time(ft); !got.Equal(when) {
		t.Errorf("came back as %v", got)
	}
	if got := Format_timestamp(ft); got != "2023/05/23 - 12:00:00" {
		t.Errorf("formatted as %q", got)
	}
	if back, err := Parse_timestamp(" 2023/05/23 - 12:00:00"); err != nil || back != ft {
		t.Errorf("parsed back as %v, %v", back, err)
	}
	if _, err := Parse_timestamp("last tuesday"); err == nil {
		t.Error("expected an error for a bad timestamp")
	}

	if got := Filetime_to_time(0); got.Year() != 1601 {
		t.Errorf("FILETIME 0 should be 1601, got %v", got)
	}
	// Must not panic or wrap
	if got := Filetime_to_time(1<<64 - 1); got.Year() < 2000 {
		t.Errorf("huge FILETIME wrapped to %v", got)
	}
}

func Test_FormatElapsed(t *testing.T) {
	tests := map[uint64]string{
		0:      "00h 00m 00s",
		59:     "00h 00m 59s",
		3725:   "01h 02m 05s",
		90000:  "25h 00m 00s",
		360000: "100h 00m 00s",
	}
	for seconds, want := range tests {
		if got := Format_elapsed(seconds); got != want {
			t.Errorf("%v: got %q, want %q", seconds, got, want)
		}
	}
}

func Test_FuzzyReverseLookup(t *testing.T) {
	chapters := map[int]string{5: "The Cave", 6: "The Highlands", 16: "The Robot Base", 17: "Home"}

	tests := []struct {
		in      string
		want    int
		matched string
	}{
		{"The Cave", 5, "The Cave"},
		{"the cave", 5, "The Cave"},
		{"the_cave", 5, "The Cave"},
		{"the_ro", 16, "The Robot Base"},
		{"highl", 6, "The Highlands"},
		{"home", 17, "Home"},
	}
	for _, test := range tests {
		got, matched, err := Fuzzy_reverse_lookup(chapters, test.in, "chapter")
		if err != nil {
			t.Errorf("%q: %v", test.in, err)
			continue
		}
		if got != test.want || matched != test.matched {
			t.Errorf("%q: got %v (%q)", test.in, got, matched)
		}
	}

	if _, _, err := Fuzzy_reverse_lookup(chapters, "the", "chapter"); err == nil || !strings.Contains(err.Error(), "Ambiguous") {
		t.Errorf("expected ambiguity, got %v", err)
	}
	if _, _, err := Fuzzy_reverse_lookup(chapters, "moon", "chapter"); err == nil {
		t.Error("expected no match")
	}
}

func Test_LoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load_config(filepath.Join(dir, "missing.ini"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Alerts["deathcounter"] || cfg.Alerts["position"] || cfg.Settle != 2*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	filename := filepath.Join(dir, CONFIG_FILENAME)
	contents := `dir = /saves
file = slot_2.sav

[monitor]
settle = 500ms
logging = false

[alerts]
position = true
deathcounter = false

[backup]
dir = /elsewhere
compress = true
`
	if err := os.WriteFile(filename, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err = Load_config(filename)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Dir != "/saves" || cfg.File != "slot_2.sav" {
		t.Errorf("bad paths: %+v", cfg)
	}
	if cfg.Settle != 500*time.Millisecond || cfg.Logging {
		t.Errorf("bad monitor section: %+v", cfg)
	}
	if !cfg.Alerts["position"] || cfg.Alerts["deathcounter"] || !cfg.Alerts["chapterId"] {
		t.Errorf("bad alerts: %v", cfg.Alerts)
	}
	if !cfg.Compress || cfg.Backup_path("/saves") != "/elsewhere" {
		t.Errorf("bad backup section: %+v", cfg)
	}

	if got := cfg.Get_savefile_dir([]string{"load", "--dir", "/cmdline"}); got != "/cmdline" {
		t.Errorf("command line should win, got %v", got)
	}
	if got := cfg.Get_savefile_dir([]string{"load", "x.sav"}); got != "/saves" {
		t.Errorf("ini should win over working dir, got %v", got)
	}
}

func Test_LoadConfigBad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), CONFIG_FILENAME)
	os.WriteFile(filename, []byte("[alerts]\nposition = sometimes\n"), 0644)
	if _, err := Load_config(filename); err == nil {
		t.Error("expected an error for a non-boolean alert")
	}

	os.WriteFile(filename, []byte("[monitor]\nsettle = soon\n"), 0644)
	if _, err := Load_config(filename); err == nil {
		t.Error("expected an error for a bad duration")
	}
}

func Test_BackupPath(t *testing.T) {
	cfg := Default_config()
	if got := cfg.Backup_path("/saves"); got != filepath.Join("/saves", "backups") {
		t.Errorf("got %v", got)
	}
}
