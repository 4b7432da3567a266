package inmemdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/attendance"
	"github.com/trezcool/garderie/core/daycare"
)

type (
	DB struct {
		mutex     sync.RWMutex
		path      string // JSON snapshot, rewritten after every write; empty: memory only
		settings  *attendance.SchoolSettings
		guardians map[string]*daycare.Guardian
		children  []*daycare.Child // insertion order
		codes     map[string]*daycare.Code
		records   map[recordKey]*daycare.Record
	}

	recordKey struct {
		childID string
		day     string
	}

	snapshot struct {
		Settings  *attendance.SchoolSettings `json:"settings"`
		Guardians []*daycare.Guardian        `json:"guardians"`
		Children  []*daycare.Child           `json:"children"`
		Codes     []*daycare.Code            `json:"codes"`
		Records   []*daycare.Record          `json:"records"`
	}
)

func Open() (*DB, error) {
	db := &DB{}
	db.reset()
	return db, nil
}

// OpenFile opens a DB persisted at path. A missing file is an empty DB; it is created on the first write.
func OpenFile(path string) (*DB, error) {
	db := &DB{path: path}
	db.reset()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return db, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var snap snapshot
	if err = json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}

	db.settings = snap.Settings
	db.children = snap.Children
	for _, g := range snap.Guardians {
		db.guardians[g.ID] = g
	}
	for _, c := range snap.Codes {
		db.codes[c.Value] = c
	}
	for _, r := range snap.Records {
		db.records[recordKey{childID: r.ChildID, day: r.Day}] = r
	}
	return db, nil
}

// Reset drops every table. Used by tests.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.reset()
}

func (db *DB) reset() {
	db.settings = nil
	db.guardians = make(map[string]*daycare.Guardian)
	db.children = nil
	db.codes = make(map[string]*daycare.Code)
	db.records = make(map[recordKey]*daycare.Record)
}

// flushLocked writes the snapshot of a file backed DB. The write lock must be held.
// A failed write leaves memory ahead of the file and is reported as a shutdown error.
func (db *DB) flushLocked() error {
	if db.path == "" {
		return nil
	}
	if err := db.writeSnapshotLocked(); err != nil {
		return core.NewShutdownError(fmt.Sprintf("persisting %s: %v", db.path, err))
	}
	return nil
}

func (db *DB) writeSnapshotLocked() error {
	snap := snapshot{Settings: db.settings, Children: db.children}
	for _, g := range db.guardians {
		snap.Guardians = append(snap.Guardians, g)
	}
	sort.Slice(snap.Guardians, func(i, j int) bool { return snap.Guardians[i].Username < snap.Guardians[j].Username })
	for _, c := range db.codes {
		snap.Codes = append(snap.Codes, c)
	}
	sort.Slice(snap.Codes, func(i, j int) bool { return snap.Codes[i].Value < snap.Codes[j].Value })
	for _, r := range db.records {
		snap.Records = append(snap.Records, r)
	}
	sort.Slice(snap.Records, func(i, j int) bool {
		a, b := snap.Records[i], snap.Records[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.ChildID < b.ChildID
	})

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	if err = os.MkdirAll(filepath.Dir(db.path), 0o755); err != nil {
		return errors.Wrap(err, "creating data dir")
	}
	tmp := db.path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "writing snapshot")
	}
	return errors.Wrap(os.Rename(tmp, db.path), "replacing snapshot")
}
