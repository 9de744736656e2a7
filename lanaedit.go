package main

// savefile reader/editor/monitor for Planet of Lana
//
// example usage:
//
// lanaedit load slot_1.sav
// lanaedit get chapterId
// lanaedit set chapterId "the cave"
// lanaedit set deathcounter 0
// lanaedit set position 100,20,0
// lanaedit set slot 2
// lanaedit set_hex 0x30 2a000000
// lanaedit dump
// lanaedit save
//
// lanaedit compare before.sav after.sav
// lanaedit backup
// lanaedit monitor slot_1.sav

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"lanasave/backups"
	"lanasave/diff"
	"lanasave/monitor"
	"lanasave/readers"
	"lanasave/save"
	"lanasave/tables"
	"lanasave/types"
	"lanasave/utils"
	"lanasave/writers"
)

// Evil global variables
var g_stash_filename = "lanaedit.tmp"
var g_colour = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func highlight(s string) string {
	if !g_colour {
		return s
	}
	return "\x1b[31m" + s + "\x1b[0m"
}

func list_fields() string {
	ret := ""
	for _, f := range tables.Fields() {
		ret = ret + f.Name + "\n"
	}
	return ret
}

func list_chapters() string {
	ret := ""
	for _, id := range tables.Chapter_ids() {
		ret = ret + fmt.Sprintf("%v: %v\n", id, tables.Chapters()[id])
	}
	return ret
}

// split_args pulls "--dir X" out of the args, leaving the command and its arguments
func split_args(args []string) []string {
	out := []string{}
	for i := 0; i < len(args); i++ {
		if args[i] == "--dir" {
			i++
			continue
		}
		out = append(out, args[i])
	}
	return out
}

// in_dir resolves a filename against the save directory, leaving absolute paths alone
func in_dir(dir string, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func main() {
	err := main2(os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func main2(os_args []string) error {
	cfg, err := utils.Load_config(utils.CONFIG_FILENAME)
	if err != nil {
		return err
	}
	dir := cfg.Get_savefile_dir(os_args)
	args := split_args(os_args[1:])

	arg := "help"
	if len(args) < 1 {
		fmt.Println("No args detected - falling back to \"help\", since you clearly need it...")
	} else {
		arg = args[0]
	}

	switch arg {
	case "help":
		help_text := []string{
			"Planet of Lana Save File Editor",
			"",
			"Commands:",
			"help: display this text",
			"load (filename): load a file from the save directory",
			"dump: list all available info",
			"get (what): display the current value of a field",
			"get_at (address): the same, by address (e.g. 0x2C)",
			"set (what) (to): set a field",
			"set_hex (what|address) (hex): set a field to raw reverse hex",
			"save: save the loaded file (the old one is kept as .old)",
			"compare (file) (file): show what differs between two saves",
			"backup [filename]: make a timestamped copy (default: the loaded file)",
			"backups: list backups",
			"restore (backup) [filename]: put a backup back",
			"monitor [filename]: watch a save and report changes as the game writes them",
			"",
			"Options:",
			"--dir (dir): save directory (overrides " + utils.CONFIG_FILENAME + ")",
			"",
			"Things that can be set-ted or get-ted are:",
		}
		for _, f := range tables.Fields() {
			help_text = append(help_text, fmt.Sprintf("   %v (%v at 0x%02X)", f.Name, f.Kind, f.Address))
		}
		help_text = append(help_text, []string{
			"",
			"Notes:",
			"   Chapters can be set by number or by name, and it is usually not necessary",
			"to type the full name, e.g. \"desert_h\" will be recognized as \"The Desert Hut\".",
			"   Slots are numbered from 1, as in the game.",
			"   Positions are x,y,z.",
			"   Timestamps are \"" + utils.TIMESTAMP_FORMAT + "\" (UTC) or \"now\".",
		}...)

		for _, ht := range help_text {
			fmt.Println(ht)
		}

	case "load":
		if len(args) < 2 {
			return errors.New("Load what?  Filename expected.")
		}

		full_filename := in_dir(dir, args[1])
		data, err := load(full_filename)
		if err != nil {
			return err
		}

		fmt.Println("Loaded", full_filename)
		return stash(full_filename, data)

	case "save":
		filename, record, err := retrieve()
		if err != nil {
			return err
		}

		data, err := record.Encode()
		if err != nil {
			return err
		}
		old_name, err := writers.Write_savefile(filename, data)
		if err != nil {
			return err
		}
		if old_name != "" {
			fmt.Println(filename, "renamed to", old_name)
		}
		fmt.Println("New file written to", filename)

		err = os.Remove(g_stash_filename)
		if err != nil {
			return err
		}
		fmt.Println("Temporary data cleaned up")

	case "get", "get_at":
		if len(args) < 2 {
			return errors.New("Get what?  Gettables are:\n" + list_fields())
		}

		_, record, err := retrieve()
		if err != nil {
			return err
		}

		name := args[1]
		if arg == "get_at" {
			address, err := strconv.ParseInt(args[1], 0, 0)
			if err != nil {
				return errors.Wrapf(err, "bad address %v", args[1])
			}
			f, err := tables.Field_at(int(address))
			if err != nil {
				return err
			}
			name = f.Name
		}

		str, err := get(name, record)
		if err != nil {
			return err
		}
		fmt.Println(str)

	case "set":
		if len(args) < 2 {
			return errors.New("Set what? Settables are:\n" + list_fields())
		}
		what := args[1]
		if _, err := tables.Field_by_name(what); err != nil {
			return errors.Wrapf(err, "%v is not settable.  Settables are:\n%v", what, list_fields())
		}

		filename, record, err := retrieve()
		if err != nil {
			return err
		}

		if len(args) < 3 {
			str := "Set " + what + " to what?"
			if what == tables.FIELD_CHAPTER {
				str += "  Options are:\n" + list_chapters()
			}
			return errors.New(str)
		}

		to_matched, err := set(what, args[2], record)
		if err != nil {
			return err
		}

		fmt.Println(what, "set to", to_matched)
		return stash_record(filename, record)

	case "set_hex":
		if len(args) < 3 {
			return errors.New("Expected arguments to \"set_hex\" are a field (or address) and reverse hex")
		}

		filename, record, err := retrieve()
		if err != nil {
			return err
		}

		if address, aerr := strconv.ParseInt(args[1], 0, 0); aerr == nil {
			err = record.Set_at(int(address), args[2])
		} else {
			err = record.Set(args[1], args[2])
		}
		if err != nil {
			return err
		}

		fmt.Println(args[1], "set to", args[2])
		return stash_record(filename, record)

	case "dump":
		filename, record, err := retrieve()
		if err != nil {
			return err
		}

		out, err := record.Marshal_yaml()
		if err != nil {
			return err
		}
		fmt.Println("#", filename)
		fmt.Print(string(out))

	case "compare":
		if len(args) < 3 {
			return errors.New("Compare what?  Two filenames expected.")
		}
		return compare(in_dir(dir, args[1]), in_dir(dir, args[2]))

	case "backup":
		filename := ""
		if len(args) > 1 {
			filename = in_dir(dir, args[1])
		} else if stashed, _, err := retrieve(); err == nil {
			filename = stashed
		} else if cfg.File != "" {
			filename = in_dir(dir, cfg.File)
		} else {
			return errors.New("Back up what?  Filename expected (or load one first).")
		}

		store := backups.New_store(cfg.Backup_path(dir), cfg.Compress)
		name, err := store.Backup(filename)
		if err != nil {
			return err
		}
		fmt.Println(filename, "backed up to", name)

	case "backups":
		store := backups.New_store(cfg.Backup_path(dir), cfg.Compress)
		names, err := store.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("(no backups in " + store.Dir + ")")
		}
		for _, name := range names {
			fmt.Println(filepath.Base(name))
		}

	case "restore":
		if len(args) < 2 {
			return errors.New("Restore what?  Backup name expected.")
		}
		store := backups.New_store(cfg.Backup_path(dir), cfg.Compress)
		backup := in_dir(store.Dir, args[1])

		target := ""
		if len(args) > 2 {
			target = in_dir(dir, args[2])
		} else if cfg.File != "" {
			target = in_dir(dir, cfg.File)
		} else {
			return errors.New("Restore to where?  Filename expected.")
		}

		// Refuse to put back anything we couldn't edit
		data, err := backups.Read(backup)
		if err != nil {
			return err
		}
		if _, err := save.Decode(data); err != nil {
			return errors.Wrapf(err, "%v is not a usable save", backup)
		}

		if err := backups.Restore(backup, target); err != nil {
			return err
		}
		fmt.Println(backup, "restored to", target)

	case "monitor":
		file := cfg.File
		if len(args) > 1 {
			file = args[1]
		}
		if file == "" {
			return errors.New("Monitor what?  Filename expected (or set \"file\" in " + utils.CONFIG_FILENAME + ")")
		}
		return run_monitor(in_dir(dir, file), cfg, dir)

	default:
		return errors.New("Unknown command " + arg + " (try \"help\")")
	}

	return nil
}

// load reads and checks a file.  Only files that decode completely are accepted for editing.
func load(full_filename string) ([]byte, error) {
	data, err := readers.Read_savefile(full_filename)
	if err != nil {
		return nil, err
	}
	if _, err := save.Decode(data); err != nil {
		return nil, errors.Wrapf(err, "failed to parse file %v", full_filename)
	}
	return data, nil
}

func stash(filename string, data []byte) error {
	f, err := os.Create(g_stash_filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	encoder := gob.NewEncoder(w)
	err = encoder.Encode(filename)
	if err != nil {
		return err
	}
	err = encoder.Encode(data)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func stash_record(filename string, record *save.Record) error {
	data, err := record.Encode()
	if err != nil {
		return err
	}
	return stash(filename, data)
}

func retrieve() (string, *save.Record, error) {
	f, err := os.Open(g_stash_filename)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil, errors.New("Nothing loaded.  Try \"load (filename)\" first.")
	}
	if err != nil {
		return "", nil, err
	}

	defer f.Close()

	decoder := gob.NewDecoder(bufio.NewReader(f))
	var filename string
	var data []byte
	err = decoder.Decode(&filename)
	if err != nil {
		return "", nil, errors.Wrap(err, "damaged "+g_stash_filename)
	}
	err = decoder.Decode(&data)
	if err != nil {
		return "", nil, errors.Wrap(err, "damaged "+g_stash_filename)
	}

	record, err := save.Decode(data)
	if err != nil {
		return "", nil, err
	}
	return filename, record, nil
}

// pretty turns a decoded value into something a human would say
func pretty(name string, v types.Value) string {
	if !v.Present() {
		return v.String()
	}
	switch name {
	case tables.FIELD_TIMESTAMP:
		return utils.Format_timestamp(v.Integer)
	case tables.FIELD_ELAPSED:
		return utils.Format_elapsed(v.Integer)
	case tables.FIELD_SLOT:
		return fmt.Sprint(v.Integer + 1)
	case tables.FIELD_CHAPTER:
		return fmt.Sprint(v.Integer, ": ", tables.Chapter_name(v.Integer))
	}
	return v.String()
}

// get gets a field and returns it as a human-readable string, with the raw hex alongside
func get(what string, record *save.Record) (string, error) {
	hex_text, err := record.Get(what)
	if err != nil {
		return "", err
	}
	v, err := record.Value(what)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v (%v)", pretty(what, v), hex_text), nil
}

// parse_value turns what a human typed into a value for the named field.
// Returns the value and what it was understood as (not necessarily equal to "to" due to fuzzy matching)
func parse_value(what string, to string) (types.Value, string, error) {
	f, err := tables.Field_by_name(what)
	if err != nil {
		return types.Value{}, "", err
	}
	to = strings.TrimSpace(to)

	switch what {
	case tables.FIELD_CHAPTER:
		if n, err := strconv.ParseUint(to, 10, 64); err == nil {
			if !tables.Is_valid_chapter(n) {
				return types.Value{}, "", errors.Errorf("%v is not a chapter.  Chapters are:\n%v", n, list_chapters())
			}
			return types.Integer_value(n), tables.Chapter_name(n), nil
		}
		id, matched, err := utils.Fuzzy_reverse_lookup(tables.Chapters(), to, what)
		if err != nil {
			return types.Value{}, "", err
		}
		return types.Integer_value(uint64(id)), matched, nil

	case tables.FIELD_SLOT:
		n, err := strconv.ParseUint(to, 10, 64)
		if err != nil || n < 1 {
			return types.Value{}, "", errors.Errorf("Slots are numbered from 1; got %q", to)
		}
		return types.Integer_value(n - 1), fmt.Sprint(n), nil

	case tables.FIELD_TIMESTAMP:
		if strings.EqualFold(to, "now") {
			ft := utils.Time_to_filetime(time.Now())
			return types.Integer_value(ft), utils.Format_timestamp(ft), nil
		}
		if n, err := strconv.ParseUint(to, 10, 64); err == nil {
			return types.Integer_value(n), utils.Format_timestamp(n), nil
		}
		ft, err := utils.Parse_timestamp(to)
		if err != nil {
			return types.Value{}, "", err
		}
		return types.Integer_value(ft), utils.Format_timestamp(ft), nil
	}

	switch f.Kind {
	case types.KIND_INTEGER:
		n, err := strconv.ParseUint(to, 10, 64)
		if err != nil {
			return types.Value{}, "", errors.Errorf("%v expects a non-negative whole number; got %q", what, to)
		}
		return types.Integer_value(n), fmt.Sprint(n), nil

	case types.KIND_TEXT:
		return types.Text_value(to), to, nil

	case types.KIND_VECTOR3:
		bits := strings.Split(to, ",")
		if len(bits) != 3 {
			return types.Value{}, "", errors.Errorf("%v expects x,y,z; got %q", what, to)
		}
		v := types.Vector3{}
		for i, bit := range bits {
			n, err := strconv.ParseUint(strings.TrimSpace(bit), 10, 16)
			if err != nil {
				return types.Value{}, "", errors.Errorf("%v components are whole numbers from 0 to 65535; got %q", what, bit)
			}
			v[i] = uint16(n)
		}
		return types.Vector_value(v), v.String(), nil
	}

	return types.Value{}, "", errors.Wrapf(types.ErrUnsupportedKind, "%v", f.Kind)
}

// set sets a field from a human-readable string, and returns what it was understood as
func set(what string, to string, record *save.Record) (string, error) {
	v, matched, err := parse_value(what, to)
	if err != nil {
		return "", err
	}
	if err := record.Set_value(what, v); err != nil {
		return "", err
	}
	return matched, nil
}

// describe_change is Change.String with chapter names and friendlier units
func describe_change(c diff.Change) string {
	switch c.Field.Name {
	case tables.FIELD_CHAPTER, tables.FIELD_SLOT, tables.FIELD_ELAPSED, tables.FIELD_TIMESTAMP:
		return fmt.Sprintf("%v: %v -> %v", c.Field.Name, pretty(c.Field.Name, c.Old), pretty(c.Field.Name, c.New))
	}
	return c.String()
}

func compare(file1, file2 string) error {
	loader, err := save.New_loader(2)
	if err != nil {
		return err
	}
	a, err := loader.Load(file1)
	if err != nil {
		return err
	}
	b, err := loader.Load(file2)
	if err != nil {
		return err
	}

	changes := diff.Diff(a, b)
	if changes.Empty() {
		fmt.Println("No differences")
		return nil
	}
	for _, name := range changes.Names() {
		fmt.Println(highlight(describe_change(changes[name])))
	}
	return nil
}

func print_event(ev *monitor.Event) {
	stamp := time.Now().Format("15:04:05")
	if ev.Initial {
		fmt.Println(stamp, "Current state of", ev.File)
		for _, f := range tables.Fields() {
			v, err := ev.Record.Value(f.Name)
			if err != nil {
				continue
			}
			fmt.Println("   ", f.Name+":", pretty(f.Name, v))
		}
	} else {
		fmt.Println(stamp, "Saved")
		for _, name := range ev.Changes.Names() {
			fmt.Println("   ", highlight(describe_change(ev.Changes[name])))
		}
	}
	if ev.Alert {
		fmt.Println(highlight("*** ALERT: " + strings.Join(ev.Alerted, ", ") + " ***"))
	}
	if ev.Backup_error != nil {
		fmt.Println("Session logging failed:", ev.Backup_error)
	}
	fmt.Println()
}

func run_monitor(file string, cfg *utils.Config, dir string) error {
	// Always give the watcher a store, so that logging can be switched on later
	store := backups.New_store(cfg.Backup_path(dir), cfg.Compress)

	watcher := monitor.New_watcher(file, cfg, store)
	err := watcher.Start_watching()
	if err != nil {
		return err
	}

	fmt.Println("Watching...", file)
	if cfg.Logging {
		fmt.Println("Logging to", watcher.Session_dir())
	}
	fmt.Println("Type \"help\" for monitor commands.")
	fmt.Println()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	defer signal.Stop(quit)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case ev, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			print_event(ev)

		case err, ok := <-watcher.Errors():
			if !ok {
				return nil
			}
			fmt.Println("Error:", err)

		case line, ok := <-lines:
			if !ok {
				// stdin went away; keep watching until interrupted
				lines = nil
				continue
			}
			if monitor_command(watcher, line) {
				watcher.Stop_watching()
				fmt.Println("Stopped watching", file)
				return nil
			}

		case <-quit:
			watcher.Stop_watching()
			fmt.Println("Stopped watching", file)
			return nil
		}
	}
}

// monitor_command handles one line typed while monitoring.  Returns true for "quit".
func monitor_command(watcher *monitor.Watcher, line string) bool {
	words := strings.Fields(line)
	if len(words) == 0 {
		return false
	}

	switch words[0] {
	case "quit", "exit":
		return true

	case "alerts":
		alerts := watcher.Alerts()
		for _, f := range tables.Fields() {
			a := alerts[f.Name]
			state := "off"
			if a.Enabled {
				state = "on"
			}
			last := "never"
			if a.Last_triggered != nil {
				last = a.Last_triggered.Format("15:04:05")
			}
			fmt.Printf("   %v: %v (last triggered: %v)\n", f.Name, state, last)
		}

	case "alert":
		if len(words) < 2 {
			fmt.Println("Alert on what?  Fields are:\n" + list_fields())
			break
		}
		on, err := watcher.Toggle_alert(words[1])
		if err != nil {
			fmt.Println(err)
			break
		}
		fmt.Println("Alert for", words[1], map[bool]string{true: "on", false: "off"}[on])

	case "log":
		if len(words) < 2 || (words[1] != "on" && words[1] != "off") {
			fmt.Println("Expected \"log on\" or \"log off\"")
			break
		}
		watcher.Set_logging(words[1] == "on")
		if words[1] == "on" {
			fmt.Println("Logging to", watcher.Session_dir())
		} else {
			fmt.Println("Logging", words[1])
		}

	case "reset":
		watcher.Reset()
		ev, err := watcher.Poll()
		if err != nil {
			fmt.Println("Error:", err)
			break
		}
		print_event(ev)

	default:
		fmt.Println("Monitor commands:")
		fmt.Println("   alerts: show alert settings")
		fmt.Println("   alert (field): toggle the alert for a field")
		fmt.Println("   log on|off: session logging")
		fmt.Println("   reset: forget what the file looked like and start over")
		fmt.Println("   quit")
	}

	return false
}
