// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/crux/internal/models"
)

// Journal is an append-only, concurrency-safe log of named calls shared by the recorders below.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *Journal) Add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

// Entries returns a copy of everything recorded so far.
func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// Matching returns the entries that start with prefix.
func (j *Journal) Matching(prefix string) []string {
	var out []string
	for _, e := range j.Entries() {
		if strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return out
}

func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
}

// Recorder is a [events.CrudEvents] test double that journals every callback.
//
// Fail maps a callback name (e.g. "OnBeforeCreate") to the error it should return.
// Label, when set, is appended to entity callbacks as "Name:label".
type Recorder[E, In, ID any] struct {
	Journal *Journal
	Fail    map[string]error
	Label   func(E) string
}

// NewRecorder creates a Recorder writing to j.
func NewRecorder[E, In, ID any](j *Journal) *Recorder[E, In, ID] {
	return &Recorder[E, In, ID]{Journal: j, Fail: map[string]error{}}
}

func (r *Recorder[E, In, ID]) recordEntity(name string, e E) error {
	if r.Label != nil {
		r.Journal.Add(name + ":" + r.Label(e))
	} else {
		r.Journal.Add(name)
	}
	return r.Fail[name]
}

func (r *Recorder[E, In, ID]) OnFind(_ context.Context, e E) error {
	return r.recordEntity("OnFind", e)
}

func (r *Recorder[E, In, ID]) OnFindMany(_ context.Context, es []E, _ []ID) error {
	r.Journal.Add(fmt.Sprintf("OnFindMany:%d", len(es)))
	return r.Fail["OnFindMany"]
}

func (r *Recorder[E, In, ID]) OnCount(_ context.Context, n int64) error {
	r.Journal.Add(fmt.Sprintf("OnCount:%d", n))
	return r.Fail["OnCount"]
}

func (r *Recorder[E, In, ID]) OnExists(_ context.Context, ok bool, _ ID) error {
	r.Journal.Add(fmt.Sprintf("OnExists:%t", ok))
	return r.Fail["OnExists"]
}

func (r *Recorder[E, In, ID]) OnPage(_ context.Context, p models.Page[E]) error {
	r.Journal.Add(fmt.Sprintf("OnPage:%d", p.Len()))
	return r.Fail["OnPage"]
}

func (r *Recorder[E, In, ID]) OnBeforeCreate(_ context.Context, _ In, e E) error {
	return r.recordEntity("OnBeforeCreate", e)
}

func (r *Recorder[E, In, ID]) OnAfterCreate(_ context.Context, _ In, e E) error {
	return r.recordEntity("OnAfterCreate", e)
}

func (r *Recorder[E, In, ID]) OnBeforeUpdate(_ context.Context, _ In, e E) error {
	return r.recordEntity("OnBeforeUpdate", e)
}

func (r *Recorder[E, In, ID]) OnAfterUpdate(_ context.Context, _ In, e E) error {
	return r.recordEntity("OnAfterUpdate", e)
}

func (r *Recorder[E, In, ID]) OnBeforeDelete(_ context.Context, e E) error {
	return r.recordEntity("OnBeforeDelete", e)
}

func (r *Recorder[E, In, ID]) OnAfterDelete(_ context.Context, e E) error {
	return r.recordEntity("OnAfterDelete", e)
}

func (r *Recorder[E, In, ID]) EachEntity(_ context.Context, e E) error {
	return r.recordEntity("EachEntity", e)
}

// HookRecorder journals "before:OP" and "after:OP" entries.
// Fail maps those same entries to the error the hook should return.
type HookRecorder struct {
	Journal *Journal
	Fail    map[string]error
}

func NewHookRecorder(j *Journal) *HookRecorder {
	return &HookRecorder{Journal: j, Fail: map[string]error{}}
}

func (h *HookRecorder) Before(_ context.Context, op models.Operation) error {
	name := "before:" + op.String()
	h.Journal.Add(name)
	return h.Fail[name]
}

func (h *HookRecorder) After(_ context.Context, op models.Operation) error {
	name := "after:" + op.String()
	h.Journal.Add(name)
	return h.Fail[name]
}

// TxRecorder is a transaction double that journals begin, commit and rollback.
type TxRecorder struct {
	Journal *Journal
}

func (tx *TxRecorder) WithTransaction(ctx context.Context, work func(context.Context) error) error {
	tx.Journal.Add("tx:begin")
	if err := work(ctx); err != nil {
		tx.Journal.Add("tx:rollback")
		return err
	}
	tx.Journal.Add("tx:commit")
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// SampleInputs returns a small, valid set of track inputs for fixtures.
func SampleInputs() []models.TrackInput {
	return []models.TrackInput{
		{Service: "spotify", ServiceID: "sp-1", Title: "Paranoid Android", Artist: "Radiohead", Album: "OK Computer", Duration: 387, ISRC: "GBAYE9700116"},
		{Service: "spotify", ServiceID: "sp-2", Title: "Karma Police", Artist: "Radiohead", Album: "OK Computer", Duration: 264, ISRC: "GBAYE9700117"},
		{Service: "youtube", ServiceID: "yt-1", Title: "Hyperballad", Artist: "Bjork", Album: "Post", Duration: 321},
		{Service: "local", Title: "Windowlicker", Artist: "Aphex Twin", Duration: 366},
	}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
