package inmemdb

import (
	"github.com/pkg/errors"

	"github.com/trezcool/garderie/core/attendance"
	"github.com/trezcool/garderie/core/daycare"
)

var (
	errIDRequired   = errors.New("id is required")
	errDuplicateKey = errors.New("duplicate key")
)

type daycareRepository struct {
	db *DB
}

var _ daycare.Repository = (*daycareRepository)(nil)

func NewDaycareRepository(db *DB) daycare.Repository {
	return &daycareRepository{db: db}
}

func (repo *daycareRepository) GetSettings() (attendance.SchoolSettings, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if repo.db.settings == nil {
		return attendance.SchoolSettings{}, daycare.ErrNotFound
	}
	return *repo.db.settings, nil
}

func (repo *daycareRepository) SaveSettings(settings attendance.SchoolSettings) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.settings = &settings
	return repo.db.flushLocked()
}

func (repo *daycareRepository) CreateGuardian(g daycare.Guardian) (daycare.Guardian, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if g.ID == "" {
		return daycare.Guardian{}, errIDRequired
	}
	for _, other := range repo.db.guardians {
		if other.ID == g.ID || (g.Username != "" && other.Username == g.Username) {
			return daycare.Guardian{}, errors.Wrap(errDuplicateKey, "guardian")
		}
	}
	repo.db.guardians[g.ID] = &g
	if err := repo.db.flushLocked(); err != nil {
		return daycare.Guardian{}, err
	}
	return g, nil
}

func (repo *daycareRepository) GetGuardianByID(id string) (daycare.Guardian, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if g, ok := repo.db.guardians[id]; ok {
		return *g, nil
	}
	return daycare.Guardian{}, daycare.ErrNotFound
}

func (repo *daycareRepository) CreateChild(c daycare.Child) (daycare.Child, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if c.ID == "" {
		return daycare.Child{}, errIDRequired
	}
	for _, other := range repo.db.children {
		if other.ID == c.ID {
			return daycare.Child{}, errors.Wrap(errDuplicateKey, "child")
		}
	}
	c.GuardianIDs = append([]string(nil), c.GuardianIDs...)
	repo.db.children = append(repo.db.children, &c)
	if err := repo.db.flushLocked(); err != nil {
		return daycare.Child{}, err
	}
	return c, nil
}

func (repo *daycareRepository) QueryChildrenByGuardian(guardianID string) ([]daycare.Child, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	children := make([]daycare.Child, 0)
	for _, c := range repo.db.children {
		if c.HasGuardian(guardianID) {
			children = append(children, *c)
		}
	}
	return children, nil
}

func (repo *daycareRepository) CreateCode(c daycare.Code) (daycare.Code, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.codes[c.Value]; ok {
		return daycare.Code{}, errors.Wrap(errDuplicateKey, "code")
	}
	repo.db.codes[c.Value] = &c
	if err := repo.db.flushLocked(); err != nil {
		return daycare.Code{}, err
	}
	return c, nil
}

func (repo *daycareRepository) GetCode(value string) (daycare.Code, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.codes[value]; ok {
		return *c, nil
	}
	return daycare.Code{}, daycare.ErrNotFound
}

func (repo *daycareRepository) GetRecord(childID, day string) (daycare.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.records[recordKey{childID: childID, day: day}]; ok {
		return *r, nil
	}
	return daycare.Record{}, daycare.ErrNotFound
}

// SaveRecord inserts r or replaces the record of the same child and day. Replacing requires the same ID.
func (repo *daycareRepository) SaveRecord(r daycare.Record) (daycare.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if r.ID == "" {
		return daycare.Record{}, errIDRequired
	}
	key := recordKey{childID: r.ChildID, day: r.Day}
	if orig, ok := repo.db.records[key]; ok && orig.ID != r.ID {
		return daycare.Record{}, errors.Wrap(errDuplicateKey, "record")
	}
	repo.db.records[key] = &r
	if err := repo.db.flushLocked(); err != nil {
		return daycare.Record{}, err
	}
	return r, nil
}
