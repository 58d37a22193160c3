package services

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/wordbank/lexstore/internal/common"
	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/models"
	changesrepo "github.com/wordbank/lexstore/internal/repositories/changes"
	chunkmetarepo "github.com/wordbank/lexstore/internal/repositories/chunkmeta"
	chunksrepo "github.com/wordbank/lexstore/internal/repositories/chunks"
	entriesrepo "github.com/wordbank/lexstore/internal/repositories/entries"
	handlesrepo "github.com/wordbank/lexstore/internal/repositories/handles"
	locksrepo "github.com/wordbank/lexstore/internal/repositories/locks"
	pubsrepo "github.com/wordbank/lexstore/internal/repositories/publications"
)

// In-memory fakes for the repository interfaces. The services still run
// their transactions against a sqlmock DB; the fakes ignore the DBTX they
// are handed.

func newTxDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func expectTx(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectCommit()
}

func expectTxRollback(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectRollback()
}

// expectAppendTx expects the transaction of a history append: the shared
// side of the chunk-GC advisory lock is taken right after Begin.
func expectAppendTx(mock sqlmock.Sqlmock, commit bool) {
	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock_shared`).
		WithArgs(dbx.ChunkGCLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

func checkExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet transaction expectations: %v", err)
	}
}

type fakeRM struct {
	chunks  *fakeChunksRepo
	entries *fakeEntriesRepo
	changes *fakeChangesRepo
	locks   *fakeLocksRepo
	handles *fakeHandlesRepo
	pubs    *fakePubsRepo
}

func newFakeRM() *fakeRM {
	return &fakeRM{
		chunks:  &fakeChunksRepo{store: map[string]*models.Chunk{}},
		entries: &fakeEntriesRepo{byID: map[int64]*models.Entry{}},
		changes: &fakeChangesRepo{byID: map[int64]*models.ChangeRecord{}},
		locks:   &fakeLocksRepo{byEntry: map[int64]*models.EntryLock{}},
		handles: &fakeHandlesRepo{},
		pubs:    &fakePubsRepo{},
	}
}

func (f *fakeRM) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f *fakeRM) Chunks(dbx.DBTX) chunksrepo.Repository { return f.chunks }
func (f *fakeRM) Entries(dbx.DBTX) entriesrepo.Repository { return f.entries }
func (f *fakeRM) Changes(dbx.DBTX) changesrepo.Repository { return f.changes }
func (f *fakeRM) Locks(dbx.DBTX) locksrepo.Repository { return f.locks }
func (f *fakeRM) Handles(dbx.DBTX) handlesrepo.Repository { return f.handles }
func (f *fakeRM) Publications(dbx.DBTX) pubsrepo.Repository { return f.pubs }
func (f *fakeRM) ChunkMetadata(dbx.DBTX) chunkmetarepo.Repository { return nil }

// --- chunks ---

type fakeChunksRepo struct {
	store map[string]*models.Chunk
}

func (f *fakeChunksRepo) Insert(_ context.Context, chunk *models.Chunk) error {
	if _, ok := f.store[chunk.Hash]; !ok {
		f.store[chunk.Hash] = chunk
	}
	return nil
}

func (f *fakeChunksRepo) Get(_ context.Context, hash string) (*models.Chunk, error) {
	if c, ok := f.store[hash]; ok {
		return c, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeChunksRepo) SelectUnreferenced(context.Context) ([]*models.Chunk, error) {
	return nil, nil
}

func (f *fakeChunksRepo) IsReferenced(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fakeChunksRepo) Delete(_ context.Context, hashes []string) error {
	for _, h := range hashes {
		delete(f.store, h)
	}
	return nil
}

// --- entries ---

type fakeEntriesRepo struct {
	byID   map[int64]*models.Entry
	nextID int64
}

func (f *fakeEntriesRepo) Create(_ context.Context, headword string) (*models.Entry, error) {
	f.nextID++
	e := &models.Entry{ID: f.nextID, Headword: headword}
	f.byID[e.ID] = e
	return e, nil
}

func (f *fakeEntriesRepo) GetByID(_ context.Context, id int64) (*models.Entry, error) {
	if e, ok := f.byID[id]; ok {
		copy := *e
		return &copy, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeEntriesRepo) GetByHeadword(_ context.Context, headword string) (*models.Entry, error) {
	for _, e := range f.byID {
		if e.Headword == headword {
			copy := *e
			return &copy, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeEntriesRepo) SetLatest(_ context.Context, entryID, changeID int64) error {
	e, ok := f.byID[entryID]
	if !ok {
		return common.ErrNotFound
	}
	e.LatestID = sql.NullInt64{Int64: changeID, Valid: true}
	return nil
}

func (f *fakeEntriesRepo) SetLatestPublished(_ context.Context, entryID int64, changeID sql.NullInt64) error {
	e, ok := f.byID[entryID]
	if !ok {
		return common.ErrNotFound
	}
	e.LatestPublishedID = changeID
	return nil
}

func (f *fakeEntriesRepo) UpdateHeadword(_ context.Context, entryID int64, headword string) error {
	e, ok := f.byID[entryID]
	if !ok {
		return common.ErrNotFound
	}
	e.Headword = headword
	return nil
}

func (f *fakeEntriesRepo) SetDeleted(_ context.Context, entryID int64, deleted bool) error {
	e, ok := f.byID[entryID]
	if !ok {
		return common.ErrNotFound
	}
	e.Deleted = deleted
	return nil
}

// --- changes ---

type fakeChangesRepo struct {
	byID   map[int64]*models.ChangeRecord
	nextID int64
}

func (f *fakeChangesRepo) Insert(_ context.Context, rec *models.ChangeRecord) (*models.ChangeRecord, error) {
	f.nextID++
	rec.ID = f.nextID
	stored := *rec
	f.byID[rec.ID] = &stored
	return rec, nil
}

func (f *fakeChangesRepo) GetByID(_ context.Context, id int64) (*models.ChangeRecord, error) {
	if r, ok := f.byID[id]; ok {
		copy := *r
		return &copy, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeChangesRepo) perEntry(entryID int64, keep func(*models.ChangeRecord) bool) []*models.ChangeRecord {
	var out []*models.ChangeRecord
	for _, r := range f.byID {
		if r.EntryID == entryID && keep(r) {
			copy := *r
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Datetime.After(out[j].Datetime) })
	return out
}

func (f *fakeChangesRepo) SelectVisible(_ context.Context, entryID int64) ([]*models.ChangeRecord, error) {
	return f.perEntry(entryID, func(r *models.ChangeRecord) bool { return !r.Hidden }), nil
}

func (f *fakeChangesRepo) LatestPublished(_ context.Context, entryID int64) (*models.ChangeRecord, error) {
	published := f.perEntry(entryID, func(r *models.ChangeRecord) bool { return r.Published })
	if len(published) == 0 {
		return nil, common.ErrNotFound
	}
	return published[0], nil
}

func (f *fakeChangesRepo) CountVisible(_ context.Context, entryID int64) (int, error) {
	return len(f.perEntry(entryID, func(r *models.ChangeRecord) bool { return !r.Hidden })), nil
}

func (f *fakeChangesRepo) SetPublished(_ context.Context, id int64, published bool) error {
	r, ok := f.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	r.Published = published
	return nil
}

func (f *fakeChangesRepo) Hide(_ context.Context, id int64) error {
	r, ok := f.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	r.Hidden = true
	return nil
}

func (f *fakeChangesRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeChangesRepo) SelectCollapseCandidates(context.Context, time.Time) ([]*models.ChangeRecord, error) {
	return nil, nil
}

func (f *fakeChangesRepo) SelectHideCandidates(context.Context, time.Time, []string) ([]*models.ChangeRecord, error) {
	return nil, nil
}

// --- locks ---

type fakeLocksRepo struct {
	byEntry map[int64]*models.EntryLock
	audit   []*models.EntryLockChange
}

func (f *fakeLocksRepo) Get(_ context.Context, entryID int64) (*models.EntryLock, error) {
	if l, ok := f.byEntry[entryID]; ok {
		copy := *l
		return &copy, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeLocksRepo) Insert(_ context.Context, lock *models.EntryLock) error {
	if _, ok := f.byEntry[lock.EntryID]; ok {
		return common.ErrAlreadyLocked
	}
	stored := *lock
	f.byEntry[lock.EntryID] = &stored
	return nil
}

func (f *fakeLocksRepo) Update(_ context.Context, lock *models.EntryLock) error {
	if _, ok := f.byEntry[lock.EntryID]; !ok {
		return common.ErrNotFound
	}
	stored := *lock
	f.byEntry[lock.EntryID] = &stored
	return nil
}

func (f *fakeLocksRepo) Delete(_ context.Context, entryID int64) error {
	if _, ok := f.byEntry[entryID]; !ok {
		return common.ErrNotFound
	}
	delete(f.byEntry, entryID)
	return nil
}

func (f *fakeLocksRepo) InsertChange(_ context.Context, change *models.EntryLockChange) error {
	stored := *change
	stored.ID = int64(len(f.audit) + 1)
	f.audit = append(f.audit, &stored)
	return nil
}

// --- handles ---

type fakeHandlesRepo struct {
	rows   []*models.Handle
	nextID int64
	// insertConflicts makes the next N Insert calls fail with ErrConflict,
	// simulating a concurrent allocation winning the unique index.
	insertConflicts int
}

func (f *fakeHandlesRepo) Get(_ context.Context, session string, handle int) (*models.Handle, error) {
	for _, h := range f.rows {
		if h.Session == session && h.Handle == handle {
			copy := *h
			return &copy, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeHandlesRepo) GetByEntry(_ context.Context, session string, entryID int64) (*models.Handle, error) {
	for _, h := range f.rows {
		if h.Session == session && h.EntryID.Valid && h.EntryID.Int64 == entryID {
			copy := *h
			return &copy, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeHandlesRepo) SelectHandles(_ context.Context, session string) ([]int, error) {
	var out []int
	for _, h := range f.rows {
		if h.Session == session {
			out = append(out, h.Handle)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (f *fakeHandlesRepo) Insert(_ context.Context, h *models.Handle) error {
	if f.insertConflicts > 0 {
		f.insertConflicts--
		return common.ErrConflict
	}
	for _, existing := range f.rows {
		if existing.Session == h.Session && existing.Handle == h.Handle {
			return common.ErrConflict
		}
	}
	f.nextID++
	stored := *h
	stored.ID = f.nextID
	f.rows = append(f.rows, &stored)
	return nil
}

func (f *fakeHandlesRepo) Bind(_ context.Context, session string, handle int, entryID int64) error {
	for _, existing := range f.rows {
		if existing.Session == session && existing.EntryID.Valid && existing.EntryID.Int64 == entryID && existing.Handle != handle {
			return common.ErrConflict
		}
	}
	for _, existing := range f.rows {
		if existing.Session == session && existing.Handle == handle {
			existing.EntryID = sql.NullInt64{Int64: entryID, Valid: true}
			return nil
		}
	}
	return common.ErrNotFound
}

func (f *fakeHandlesRepo) Delete(_ context.Context, session string, handle int) error {
	for i, h := range f.rows {
		if h.Session == session && h.Handle == handle {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return common.ErrNotFound
}

func (f *fakeHandlesRepo) DeleteSession(_ context.Context, session string) error {
	var kept []*models.Handle
	for _, h := range f.rows {
		if h.Session != session {
			kept = append(kept, h)
		}
	}
	f.rows = kept
	return nil
}

// --- publications ---

type fakePubsRepo struct {
	rows []*models.PublicationChange
}

func (f *fakePubsRepo) Insert(_ context.Context, change *models.PublicationChange) (*models.PublicationChange, error) {
	stored := *change
	stored.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, &stored)
	return &stored, nil
}

func (f *fakePubsRepo) ExistsForRecord(_ context.Context, changeRecordID int64) (bool, error) {
	for _, row := range f.rows {
		if row.ChangeRecordID == changeRecordID {
			return true, nil
		}
	}
	return false, nil
}
