// Package store persists per-session and per-pane status and context.
//
// The on-disk format is a single JSON object keyed by identity.Key:
//
//	{
//	  "<hex key>": {
//	    "session_name": "proj",
//	    "session_id": "$3",
//	    "session_created": 1718000000,
//	    "status": "working",
//	    "context": "refactoring the parser",
//	    "panes": {"%1": {"status": "done"}}
//	  }
//	}
//
// A Store is loaded once, mutated in memory, and written back with Save
// after every mutation. There is no locking across processes: the last
// Save wins.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/jkl-dev/jkl/internal/identity"
	"github.com/jkl-dev/jkl/internal/logging"
)

var storeLog = logging.ForComponent(logging.CompStore)

// Path is the location of the store file.
type Path string

func (p Path) String() string { return string(p) }

// PaneRecord is the metadata kept for one tmux pane.
type PaneRecord struct {
	Status  Status `json:"status,omitempty"`
	Context string `json:"context,omitempty"`
}

// SessionRecord is the metadata kept for one tmux session.
type SessionRecord struct {
	SessionName string `json:"session_name"`
	// SessionID is the last tmux session id seen for this name. It is only
	// a hint for resolving rename hooks, never an identity.
	SessionID string `json:"session_id,omitempty"`
	// SessionCreated is the #{session_created} time of the session that held
	// SessionID. tmux reuses ids after a server restart; the stamp tells a
	// reused id from the one recorded.
	SessionCreated int64                  `json:"session_created,omitempty"`
	Status         Status                 `json:"status,omitempty"`
	Context        string                 `json:"context,omitempty"`
	Panes          map[string]*PaneRecord `json:"panes"`
}

// Clone returns a deep copy of r.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Panes = make(map[string]*PaneRecord, len(r.Panes))
	for id, p := range r.Panes {
		cp := *p
		out.Panes[id] = &cp
	}
	return &out
}

// PaneIDs returns the pane ids of r in sorted order.
func (r *SessionRecord) PaneIDs() []string {
	ids := make([]string, 0, len(r.Panes))
	for id := range r.Panes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Ptr returns a pointer to v. Option fields use nil for "leave unchanged".
func Ptr[T any](v T) *T { return &v }

// UpsertOptions selects which session fields UpsertSession changes. A nil
// field is left as is; a pointer to the zero value clears the field.
type UpsertOptions struct {
	SessionID string
	// SessionCreated goes with SessionID and is ignored without it. Zero
	// means unknown.
	SessionCreated int64
	Status         *Status
	Context        *string
}

// PaneOptions selects which pane fields UpsertPane changes.
type PaneOptions struct {
	Status  *Status
	Context *string
}

// Entry pairs a record with its key, for ordered iteration.
type Entry struct {
	Key    identity.Key
	Record *SessionRecord
}

// Store is the in-memory copy of the store file.
type Store struct {
	path     Path
	records  map[identity.Key]*SessionRecord
	problems []string
}

// New returns an empty store that will be saved to path.
func New(path Path) *Store {
	return &Store{path: path, records: make(map[identity.Key]*SessionRecord)}
}

// Load reads the store at path. A missing (or blank) file yields an empty
// store; the file is created by the first Save.
func Load(path Path) (*Store, error) {
	raw, err := os.ReadFile(string(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			storeLog.Debug("store_missing", slog.String("path", path.String()))
			return New(path), nil
		}
		return nil, &IOError{Op: "read", Path: path.String(), Err: err}
	}

	s := New(path)
	if len(bytes.TrimSpace(raw)) == 0 {
		return s, nil
	}

	var decoded map[string]*SessionRecord
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &CorruptStoreError{Path: path.String(), Err: err}
	}
	s.normalize(decoded)

	storeLog.Debug("store_loaded",
		slog.String("path", path.String()),
		slog.Int("sessions", len(s.records)))
	return s, nil
}

// normalize re-keys decoded records by the hash of their session name.
// Correctly keyed records are placed first so they win any merge.
func (s *Store) normalize(decoded map[string]*SessionRecord) {
	rawKeys := make([]string, 0, len(decoded))
	for k := range decoded {
		rawKeys = append(rawKeys, k)
	}
	sort.Strings(rawKeys)

	var misplaced []string
	for _, raw := range rawKeys {
		rec := decoded[raw]
		if rec == nil {
			continue
		}
		s.problems = append(s.problems, fixRecord(rec)...)
		if rec.SessionName == "" && !identity.Valid(raw) {
			s.problems = append(s.problems, fmt.Sprintf("record %q has no session_name", raw))
		}
		if rec.SessionName == "" || identity.KeyFor(rec.SessionName) == identity.Key(raw) {
			s.records[identity.Key(raw)] = rec
			continue
		}
		misplaced = append(misplaced, raw)
	}

	for _, raw := range misplaced {
		rec := decoded[raw]
		key := identity.KeyFor(rec.SessionName)
		if target, ok := s.records[key]; ok {
			mergeRecord(target, rec)
		} else {
			s.records[key] = rec
		}
		storeLog.Info("store_rekeyed",
			slog.String("session", rec.SessionName),
			slog.String("from", raw),
			slog.String("to", key.Short()))
	}
}

// fixRecord repairs a decoded record in place and describes every value it
// had to drop.
func fixRecord(rec *SessionRecord) []string {
	var problems []string
	if rec.Panes == nil {
		rec.Panes = make(map[string]*PaneRecord)
	}
	if st, ok := fixStatus(rec.Status); ok {
		rec.Status = st
	} else {
		problems = append(problems, fmt.Sprintf("session %q: unknown status %q cleared", rec.SessionName, rec.Status))
		rec.Status = StatusNone
	}
	for _, id := range rec.PaneIDs() {
		p := rec.Panes[id]
		if p == nil {
			rec.Panes[id] = &PaneRecord{}
			continue
		}
		if st, ok := fixStatus(p.Status); ok {
			p.Status = st
		} else {
			problems = append(problems, fmt.Sprintf("session %q pane %s: unknown status %q cleared", rec.SessionName, id, p.Status))
			p.Status = StatusNone
		}
	}
	for _, msg := range problems {
		storeLog.Warn("store_value_dropped", slog.String("detail", msg))
	}
	return problems
}

// fixStatus accepts hand-edited statuses the way ParseStatus does.
func fixStatus(s Status) (Status, bool) {
	v := Status(strings.ToLower(strings.TrimSpace(string(s))))
	if v == StatusNone || v == "none" {
		return StatusNone, true
	}
	return v, v.Valid()
}

// mergeRecord fills fields missing on target from source.
func mergeRecord(target, source *SessionRecord) {
	if target.SessionName == "" {
		target.SessionName = source.SessionName
	}
	if target.SessionID == "" {
		target.SessionID = source.SessionID
		target.SessionCreated = source.SessionCreated
	}
	if target.Status == StatusNone {
		target.Status = source.Status
	}
	if target.Context == "" {
		target.Context = source.Context
	}
	for id, p := range source.Panes {
		dst, ok := target.Panes[id]
		if !ok {
			cp := *p
			target.Panes[id] = &cp
			continue
		}
		if dst.Status == StatusNone {
			dst.Status = p.Status
		}
		if dst.Context == "" {
			dst.Context = p.Context
		}
	}
}

// Path returns the file this store saves to.
func (s *Store) Path() Path { return s.path }

// Problems lists the values Load had to drop or could not place, in file
// order. Empty for a clean file.
func (s *Store) Problems() []string { return s.problems }

// Len returns the number of session records.
func (s *Store) Len() int { return len(s.records) }

// Get returns a copy of the record stored under key.
func (s *Store) Get(key identity.Key) (*SessionRecord, bool) {
	rec, ok := s.records[key]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Lookup returns a copy of the record for sessionName.
func (s *Store) Lookup(sessionName string) (*SessionRecord, bool) {
	return s.Get(identity.KeyFor(sessionName))
}

// ensure returns the record for name, creating a bare one if needed.
func (s *Store) ensure(name string) (identity.Key, *SessionRecord) {
	key := identity.KeyFor(name)
	rec, ok := s.records[key]
	if !ok {
		rec = &SessionRecord{Panes: make(map[string]*PaneRecord)}
		s.records[key] = rec
	}
	rec.SessionName = name
	return key, rec
}

// UpsertSession creates or updates the record for name. Only the fields
// set in opts change.
func (s *Store) UpsertSession(name string, opts UpsertOptions) identity.Key {
	key, rec := s.ensure(name)
	if opts.SessionID != "" {
		s.releaseSessionID(opts.SessionID, key)
		rec.SessionID = opts.SessionID
		rec.SessionCreated = opts.SessionCreated
	}
	if opts.Status != nil {
		rec.Status = *opts.Status
	}
	if opts.Context != nil {
		rec.Context = *opts.Context
	}
	return key
}

// releaseSessionID clears id from every record except keep. tmux session
// ids are unique among live sessions, so an older holder is stale.
func (s *Store) releaseSessionID(id string, keep identity.Key) {
	for key, rec := range s.records {
		if key != keep && rec.SessionID == id {
			rec.SessionID, rec.SessionCreated = "", 0
		}
	}
}

// UpsertPane creates or updates the pane record paneID under sessionName,
// creating a bare session record first if needed.
func (s *Store) UpsertPane(sessionName, paneID string, opts PaneOptions) identity.Key {
	key, rec := s.ensure(sessionName)
	pane, ok := rec.Panes[paneID]
	if !ok {
		pane = &PaneRecord{}
		rec.Panes[paneID] = pane
	}
	if opts.Status != nil {
		pane.Status = *opts.Status
	}
	if opts.Context != nil {
		pane.Context = *opts.Context
	}
	return key
}

// Rename moves the record of oldName to newName's key, replacing whatever
// was stored there. Renaming to a name with the same key is a no-op.
func (s *Store) Rename(oldName, newName string) error {
	oldKey, newKey := identity.KeyFor(oldName), identity.KeyFor(newName)
	if oldKey == newKey {
		return nil
	}
	rec, ok := s.records[oldKey]
	if !ok {
		return &NotFoundError{Name: oldName}
	}
	if _, clobber := s.records[newKey]; clobber {
		storeLog.Info("rename_replaced_stale",
			slog.String("session", newName),
			slog.String("key", newKey.Short()))
	}
	delete(s.records, oldKey)
	rec.SessionName = newName
	s.records[newKey] = rec

	storeLog.Info("rename_applied",
		slog.String("from", oldName),
		slog.String("to", newName))
	return nil
}

// ResolveRename renames the session identified by idOrName. A value that
// matches a stored session id wins over a session name.
//
// created is the #{session_created} time of the live session that now holds
// the id, or zero when unknown. When it is known, an id match counts only if
// the record carries the same stamp; a record holding the id from an earlier
// server loses the id instead of being moved.
func (s *Store) ResolveRename(idOrName, newName string, created int64) (identity.Key, error) {
	newKey := identity.KeyFor(newName)
	if created != 0 {
		s.dropStaleSessionID(idOrName, created)
	}
	if rec := s.findBySessionID(idOrName, newKey); rec != nil {
		if err := s.Rename(rec.SessionName, newName); err != nil {
			return "", err
		}
		return newKey, nil
	}
	if err := s.Rename(idOrName, newName); err != nil {
		return "", err
	}
	return newKey, nil
}

// dropStaleSessionID clears id from records whose stamp differs from
// created.
func (s *Store) dropStaleSessionID(id string, created int64) {
	if id == "" {
		return
	}
	for key, rec := range s.records {
		if rec.SessionID != id || rec.SessionCreated == created {
			continue
		}
		storeLog.Info("session_id_stale",
			slog.String("session", rec.SessionName),
			slog.String("id", id),
			slog.Int64("recorded", rec.SessionCreated),
			slog.Int64("live", created),
			slog.String("key", key.Short()))
		rec.SessionID, rec.SessionCreated = "", 0
	}
}

// findBySessionID returns the record holding id. When several do, a
// record not already stored at prefer is chosen, lowest key first.
func (s *Store) findBySessionID(id string, prefer identity.Key) *SessionRecord {
	if id == "" {
		return nil
	}
	var match *SessionRecord
	for _, e := range s.entries() {
		if e.Record.SessionID != id {
			continue
		}
		if e.Key != prefer {
			return e.Record
		}
		match = e.Record
	}
	return match
}

// Remove deletes the record under key together with its panes.
func (s *Store) Remove(key identity.Key) bool {
	if _, ok := s.records[key]; !ok {
		return false
	}
	delete(s.records, key)
	return true
}

// PrunePanes drops pane records of live sessions whose pane no longer
// exists. live maps session name to the set of its pane ids; sessions not
// present in live are left alone. It returns the number of panes removed.
func (s *Store) PrunePanes(live map[string]map[string]struct{}) int {
	removed := 0
	for _, rec := range s.records {
		ids, ok := live[rec.SessionName]
		if !ok {
			continue
		}
		for paneID := range rec.Panes {
			if _, alive := ids[paneID]; !alive {
				delete(rec.Panes, paneID)
				removed++
			}
		}
	}
	return removed
}

// entries returns the live records ordered by session name, then key.
func (s *Store) entries() []Entry {
	out := make([]Entry, 0, len(s.records))
	for k, r := range s.records {
		out = append(out, Entry{Key: k, Record: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Record.SessionName != out[j].Record.SessionName {
			return out[i].Record.SessionName < out[j].Record.SessionName
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Entries returns copies of all records ordered by session name, then key.
func (s *Store) Entries() []Entry {
	es := s.entries()
	for i := range es {
		es[i].Record = es[i].Record.Clone()
	}
	return es
}

// Keys returns the stored keys in Entries order.
func (s *Store) Keys() []identity.Key {
	es := s.entries()
	keys := make([]identity.Key, len(es))
	for i, e := range es {
		keys[i] = e.Key
	}
	return keys
}

// Records returns copies of the stored records in Entries order.
func (s *Store) Records() []*SessionRecord {
	es := s.entries()
	recs := make([]*SessionRecord, len(es))
	for i, e := range es {
		recs[i] = e.Record.Clone()
	}
	return recs
}

// Clone returns a deep copy of s.
func (s *Store) Clone() *Store {
	out := New(s.path)
	for k, r := range s.records {
		out.records[k] = r.Clone()
	}
	return out
}

// Equal reports whether a and b hold the same records.
func Equal(a, b *Store) bool {
	return reflect.DeepEqual(a.records, b.records)
}

// Save writes the store to its path. The data goes to a temporary file in
// the same directory which is synced and then renamed over the target, so
// readers see either the old file or the new one.
func (s *Store) Save() error {
	path := s.path.String()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &IOError{Op: "create directory", Path: dir, Err: err}
	}

	out := make(map[identity.Key]*SessionRecord, len(s.records))
	for k, r := range s.records {
		out[k] = r
	}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return &IOError{Op: "encode", Path: path, Err: err}
	}
	raw = append(raw, '\n')

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &IOError{Op: "create temp file", Path: dir, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		cleanup()
		return &IOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return &IOError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &IOError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return &IOError{Op: "chmod", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return &IOError{Op: "replace", Path: path, Err: err}
	}

	storeLog.Debug("store_saved",
		slog.String("path", path),
		slog.Int("sessions", len(s.records)))
	return nil
}

// String summarizes the store for log and debug output.
func (s *Store) String() string {
	return fmt.Sprintf("store(%s, %d sessions)", s.path, len(s.records))
}
