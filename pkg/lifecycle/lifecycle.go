// Package lifecycle tracks in-flight backend requests and keeps a bounded
// history of recent ones.
//
// Each request is a [Record] that starts pending and moves exactly once to a
// terminal status (success, error or cancelled). The [Tracker] owns every
// record; callers only ever see value snapshots.
//
// # Events
//
// Registered [Listener] values are notified synchronously on start, complete
// and cancel. A listener that panics is recovered and logged, and the
// remaining listeners still receive the event:
//
//	unsubscribe := tracker.Subscribe(lifecycle.ListenerFuncs{
//	    Complete: func(r lifecycle.Record) { fmt.Println(r.ID, r.Status) },
//	})
//	defer unsubscribe()
package lifecycle

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// DefaultHistorySize is the default number of records kept in history.
const DefaultHistorySize = 50

// Status is the state of a request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}

// Record describes one tracked request.
type Record struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time,omitzero"`
	Duration    time.Duration `json:"duration,omitempty"`
	Status      Status        `json:"status"`
	Result      any           `json:"-"`
	Err         error         `json:"-"`
}

// Error returns the failure message, or "" for records without an error.
func (r Record) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// NewID returns a fresh request id of the form "<kind>-<uuid>".
func NewID(kind string) string {
	return fmt.Sprintf("%s-%s", kind, uuid.NewString())
}

// Listener receives lifecycle events.
type Listener interface {
	OnStart(Record)
	OnComplete(Record)
	OnCancel(Record)
}

// ListenerFuncs adapts plain functions to [Listener]. Nil fields are skipped.
type ListenerFuncs struct {
	Start    func(Record)
	Complete func(Record)
	Cancel   func(Record)
}

func (f ListenerFuncs) OnStart(r Record) {
	if f.Start != nil {
		f.Start(r)
	}
}

func (f ListenerFuncs) OnComplete(r Record) {
	if f.Complete != nil {
		f.Complete(r)
	}
}

func (f ListenerFuncs) OnCancel(r Record) {
	if f.Cancel != nil {
		f.Cancel(r)
	}
}

// Options configures a [Tracker].
type Options struct {
	HistorySize int         // maximum history length; 0 means DefaultHistorySize
	Logger      *log.Logger // defaults to log.Default()
}

// Tracker holds the active request set and the request history.
// It is safe for concurrent use.
type Tracker struct {
	logger *log.Logger
	now    func() time.Time

	mu        sync.Mutex
	active    map[string]*Record
	history   []*Record // oldest first
	maxHist   int
	listeners map[int]Listener
	nextSub   int
}

// New creates a Tracker.
func New(opts Options) *Tracker {
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Tracker{
		logger:    opts.Logger,
		now:       time.Now,
		active:    make(map[string]*Record),
		maxHist:   opts.HistorySize,
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers l and returns a function that removes it again.
func (t *Tracker) Subscribe(l Listener) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.listeners[id] = l
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.listeners, id)
			t.mu.Unlock()
		})
	}
}

// Start registers a pending request and appends it to history.
// Starting an id that is already active replaces the active record.
func (t *Tracker) Start(id, description string) Record {
	t.mu.Lock()
	rec := &Record{
		ID:          id,
		Description: description,
		StartTime:   t.now(),
		Status:      StatusPending,
	}
	t.active[id] = rec
	t.history = append(t.history, rec)
	if over := len(t.history) - t.maxHist; over > 0 {
		clear(t.history[:over])
		t.history = t.history[over:]
	}
	snap := *rec
	listeners := t.snapshotListeners()
	t.mu.Unlock()

	t.logger.Debug("request started", "id", id, "description", description)
	t.emit(listeners, snap, Listener.OnStart, "start")
	return snap
}

// Complete finishes an active request with success, or with error when err
// is non-nil. Unknown ids are ignored and reported as false.
func (t *Tracker) Complete(id string, result any, err error) (Record, bool) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	snap, listeners, ok := t.finish(id, status, result, err)
	if !ok {
		return Record{}, false
	}
	t.logger.Debug("request completed", "id", id, "status", snap.Status, "duration", snap.Duration)
	t.emit(listeners, snap, Listener.OnComplete, "complete")
	return snap, true
}

// Cancel marks an active request as cancelled. Unknown ids are ignored and
// reported as false.
func (t *Tracker) Cancel(id string) (Record, bool) {
	snap, listeners, ok := t.finish(id, StatusCancelled, nil, nil)
	if !ok {
		return Record{}, false
	}
	t.logger.Debug("request cancelled", "id", id, "duration", snap.Duration)
	t.emit(listeners, snap, Listener.OnCancel, "cancel")
	return snap, true
}

func (t *Tracker) finish(id string, status Status, result any, err error) (Record, []Listener, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.active[id]
	if !ok || rec.Status.Terminal() {
		return Record{}, nil, false
	}
	delete(t.active, id)

	rec.EndTime = t.now()
	rec.Duration = rec.EndTime.Sub(rec.StartTime)
	rec.Status = status
	rec.Result = result
	rec.Err = err
	return *rec, t.snapshotListeners(), true
}

// Active returns the active record with the given id.
func (t *Tracker) Active(id string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.active[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// ActiveRecords returns all pending requests, oldest first.
func (t *Tracker) ActiveRecords() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, 0, len(t.active))
	for _, rec := range t.active {
		out = append(out, *rec)
	}
	slices.SortFunc(out, func(a, b Record) int { return a.StartTime.Compare(b.StartTime) })
	return out
}

// History returns the retained records, newest first.
func (t *Tracker) History() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.history))
	for i, rec := range t.history {
		out[len(t.history)-1-i] = *rec
	}
	return out
}

// ClearHistory drops the history. Active requests are unaffected.
func (t *Tracker) ClearHistory() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = nil
}

// must hold t.mu
func (t *Tracker) snapshotListeners() []Listener {
	if len(t.listeners) == 0 {
		return nil
	}
	ids := make([]int, 0, len(t.listeners))
	for id := range t.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = t.listeners[id]
	}
	return out
}

func (t *Tracker) emit(listeners []Listener, rec Record, fn func(Listener, Record), event string) {
	for _, l := range listeners {
		t.deliver(l, rec, fn, event)
	}
}

func (t *Tracker) deliver(l Listener, rec Record, fn func(Listener, Record), event string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("lifecycle listener panicked", "event", event, "id", rec.ID, "panic", r)
		}
	}()
	fn(l, rec)
}
