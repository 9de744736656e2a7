package monitor

// Watches one save file.  Every time the game writes it, the file is decoded afresh, compared with
// the previous snapshot, and the differences go out on the Events channel.
//
// The baseline is only replaced once a poll has completely succeeded, so a half-written or otherwise
// broken file never becomes the thing later polls are compared against.

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"lanasave/backups"
	"lanasave/diff"
	"lanasave/readers"
	"lanasave/save"
	"lanasave/tables"
	"lanasave/utils"
)

// Alert is the per-field "make a noise when this changes" toggle.
type Alert struct {
	Enabled        bool
	Last_triggered *time.Time
}

type Event struct {
	File    string
	Record  *save.Record
	Changes diff.ChangeSet

	// First look at the file; there is nothing to compare against yet
	Initial bool

	// At least one changed field has its alert enabled.  Alerted lists them, in table order.
	Alert   bool
	Alerted []string

	// Where the session copy went, if one was made
	Backup       string
	Backup_error error
}

type Watcher struct {
	file   string
	settle time.Duration
	store  *backups.Store

	mu       sync.Mutex
	logging  bool
	started  time.Time
	alerts   map[string]*Alert
	baseline *save.Record

	watcher *fsnotify.Watcher
	events  chan *Event
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup

	now func() time.Time
}

// New_watcher watches file.  store may be nil, in which case nothing is ever logged.
func New_watcher(file string, cfg *utils.Config, store *backups.Store) *Watcher {
	w := &Watcher{
		file:    filepath.Clean(file),
		settle:  cfg.Settle,
		store:   store,
		logging: cfg.Logging,
		alerts:  map[string]*Alert{},
		now:     time.Now,
	}
	w.started = w.now()
	for _, name := range tables.Names() {
		w.alerts[name] = &Alert{Enabled: cfg.Alerts[name]}
	}
	return w
}

func (w *Watcher) File() string {
	return w.file
}

func (w *Watcher) Events() <-chan *Event {
	return w.events
}

func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start_watching starts the background goroutine.  Events and Errors are only valid after this.
func (w *Watcher) Start_watching() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to start file watcher")
	}
	// Watch the directory rather than the file: games like to save by writing a new file and
	// renaming it over the old one, which a watch on the file itself would lose track of.
	if err := watcher.Add(filepath.Dir(w.file)); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "failed to watch %v", filepath.Dir(w.file))
	}

	w.watcher = watcher
	w.events = make(chan *Event, 16)
	w.errors = make(chan error, 16)
	w.done = make(chan struct{})

	w.wg.Add(1)
	go w.loop()

	return nil
}

// Stop_watching stops the goroutine and closes Events and Errors.
func (w *Watcher) Stop_watching() {
	if w.watcher == nil {
		return
	}
	close(w.done)
	w.watcher.Close()
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	w.watcher = nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	// An initial look, so that the first real change has something to be compared against
	w.poll_and_send()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Wait for the game itself to finish with the file
			select {
			case <-time.After(w.settle):
			case <-w.done:
				return
			}
			w.poll_and_send()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.send_error(err)
		}
	}
}

func (w *Watcher) poll_and_send() {
	ev, err := w.Poll()
	if err != nil {
		w.send_error(err)
		return
	}
	if !ev.Initial && ev.Changes.Empty() {
		// Saved, but nothing we know about moved
		return
	}
	select {
	case w.events <- ev:
	case <-w.done:
	}
}

func (w *Watcher) send_error(err error) {
	select {
	case w.errors <- err:
	case <-w.done:
	}
}

// Poll runs one complete cycle: read, decode, compare, alert, log, and replace the baseline.
// Callers with their own schedule can use it directly without Start_watching.
func (w *Watcher) Poll() (*Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := readers.Read_savefile(w.file)
	if err != nil {
		return nil, err
	}
	record, err := save.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse file %v", w.file)
	}

	ev := &Event{File: w.file, Record: record.Clone()}
	if w.baseline == nil {
		ev.Initial = true
		ev.Changes = diff.ChangeSet{}
	} else {
		ev.Changes = diff.Diff(w.baseline, record)
	}

	now := w.now()
	for _, name := range ev.Changes.Names() {
		a := w.alerts[name]
		if a == nil || !a.Enabled {
			continue
		}
		triggered := now
		a.Last_triggered = &triggered
		ev.Alert = true
		ev.Alerted = append(ev.Alerted, name)
	}

	if w.logging && w.store != nil && (ev.Initial || !ev.Changes.Empty()) {
		ev.Backup, ev.Backup_error = w.store.Session_save(data, w.started)
	}

	w.baseline = record
	return ev, nil
}

// Baseline is a copy of the snapshot the next poll will be compared against (nil before the first poll).
func (w *Watcher) Baseline() *save.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.baseline == nil {
		return nil
	}
	return w.baseline.Clone()
}

// Reset forgets the baseline; the next poll starts over as if the file were new.
func (w *Watcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.baseline = nil
}

// Toggle_alert flips a field's alert and returns the new setting.
func (w *Watcher) Toggle_alert(name string) (bool, error) {
	if _, err := tables.Field_by_name(name); err != nil {
		return false, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	a := w.alerts[name]
	a.Enabled = !a.Enabled
	return a.Enabled, nil
}

// Alerts returns a copy of the alert settings.
func (w *Watcher) Alerts() map[string]Alert {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := map[string]Alert{}
	for k, v := range w.alerts {
		out[k] = *v
	}
	return out
}

// Set_logging turns session logging on or off.  Turning it back on starts a new session directory.
func (w *Watcher) Set_logging(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if on && !w.logging {
		w.started = w.now()
	}
	w.logging = on
}

func (w *Watcher) Session_dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.store == nil {
		return ""
	}
	return w.store.Session_dir(w.started)
}
