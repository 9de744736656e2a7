package utils

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

const CONFIG_FILENAME = "lanasave.ini"

type Config struct {
	Dir  string // save directory
	File string // default save file (relative to Dir) for the monitor

	Settle  time.Duration // wait this long after a write before reading the file
	Logging bool          // copy the save into a session directory whenever it changes

	Backup_dir string // relative to Dir unless absolute
	Compress   bool

	Alerts map[string]bool
}

// Default_config is what you get with no ini file at all.
// Alert defaults are the things worth a noise when they change: deaths, chapter and scene.
func Default_config() *Config {
	wd, _ := os.Getwd()
	return &Config{
		Dir:        wd,
		File:       "",
		Settle:     2 * time.Second,
		Logging:    true,
		Backup_dir: "backups",
		Compress:   false,
		Alerts: map[string]bool{
			"timestamp":    false,
			"version":      false,
			"elapsed":      false,
			"deathcounter": true,
			"slot":         false,
			"chapterId":    true,
			"sceneId":      true,
			"position":     false,
		},
	}
}

// Load_config reads an ini file over the defaults.  A missing file is not an error.
func Load_config(filename string) (*Config, error) {
	cfg := Default_config()

	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	file, err := ini.Load(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %v", filename)
	}

	// Classic read of values, default section can be represented as empty string
	sec := file.Section("")
	if dir := sec.Key("dir").String(); dir != "" {
		cfg.Dir = dir
	}
	cfg.File = sec.Key("file").MustString(cfg.File)

	mon := file.Section("monitor")
	if mon.HasKey("settle") {
		cfg.Settle, err = mon.Key("settle").Duration()
		if err != nil {
			return nil, errors.Wrapf(err, "%v: bad monitor.settle", filename)
		}
	}
	cfg.Logging = mon.Key("logging").MustBool(cfg.Logging)

	bak := file.Section("backup")
	cfg.Backup_dir = bak.Key("dir").MustString(cfg.Backup_dir)
	cfg.Compress = bak.Key("compress").MustBool(cfg.Compress)

	alerts := file.Section("alerts")
	for _, k := range alerts.Keys() {
		b, err := k.Bool()
		if err != nil {
			return nil, errors.Wrapf(err, "%v: bad alerts.%v", filename, k.Name())
		}
		cfg.Alerts[k.Name()] = b
	}

	return cfg, nil
}

// Get_savefile_dir picks the save directory: "--dir" on the command line beats the ini file,
// which beats the current directory.
func (cfg *Config) Get_savefile_dir(args []string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "--dir" {
			return args[i+1]
		}
	}
	return cfg.Dir
}

// Backup_path resolves the backup directory against the save directory.
func (cfg *Config) Backup_path(dir string) string {
	if filepath.IsAbs(cfg.Backup_dir) {
		return cfg.Backup_dir
	}
	return filepath.Join(dir, cfg.Backup_dir)
}
