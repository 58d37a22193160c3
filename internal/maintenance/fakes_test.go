package maintenance

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/wordbank/lexstore/internal/common"
	"github.com/wordbank/lexstore/internal/config"
	"github.com/wordbank/lexstore/internal/dbx"
	"github.com/wordbank/lexstore/internal/models"
	changesrepo "github.com/wordbank/lexstore/internal/repositories/changes"
	chunkmetarepo "github.com/wordbank/lexstore/internal/repositories/chunkmeta"
	chunksrepo "github.com/wordbank/lexstore/internal/repositories/chunks"
	entriesrepo "github.com/wordbank/lexstore/internal/repositories/entries"
	handlesrepo "github.com/wordbank/lexstore/internal/repositories/handles"
	locksrepo "github.com/wordbank/lexstore/internal/repositories/locks"
	pubsrepo "github.com/wordbank/lexstore/internal/repositories/publications"
	"github.com/wordbank/lexstore/internal/repositories/repomanager"
)

// Fakes cover only the repository methods the jobs touch; everything else
// panics through the embedded nil interface.

type fakeRM struct {
	changes *fakeChanges
	entries *fakeEntries
	chunks  *fakeChunks
	pubs    *fakePubs
}

var _ repomanager.RepositoryManager = (*fakeRM)(nil)

func newFakeRM() *fakeRM {
	rm := &fakeRM{
		changes: &fakeChanges{byID: map[int64]*models.ChangeRecord{}},
		entries: &fakeEntries{byID: map[int64]*models.Entry{}},
		chunks:  &fakeChunks{store: map[string]*models.Chunk{}, referenced: map[string]bool{}},
		pubs:    &fakePubs{audited: map[int64]bool{}},
	}
	rm.changes.entries = rm.entries
	rm.changes.pubs = rm.pubs
	return rm
}

func (f *fakeRM) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f *fakeRM) Chunks(dbx.DBTX) chunksrepo.Repository { return f.chunks }
func (f *fakeRM) Entries(dbx.DBTX) entriesrepo.Repository { return f.entries }
func (f *fakeRM) Changes(dbx.DBTX) changesrepo.Repository { return f.changes }
func (f *fakeRM) Locks(dbx.DBTX) locksrepo.Repository { return nil }
func (f *fakeRM) Handles(dbx.DBTX) handlesrepo.Repository { return nil }
func (f *fakeRM) Publications(dbx.DBTX) pubsrepo.Repository { return f.pubs }
func (f *fakeRM) ChunkMetadata(dbx.DBTX) chunkmetarepo.Repository { return nil }

type fakeChanges struct {
	changesrepo.Repository
	byID map[int64]*models.ChangeRecord
	// collapseCandidates, when set, overrides the in-memory selection so
	// tests can feed a stale candidate set and watch the checks catch it.
	collapseCandidates []*models.ChangeRecord
	hideCandidates     []*models.ChangeRecord
	deleted            []int64
	hidden             []int64

	entries *fakeEntries
	pubs    *fakePubs
}

func (f *fakeChanges) GetByID(_ context.Context, id int64) (*models.ChangeRecord, error) {
	if r, ok := f.byID[id]; ok {
		copy := *r
		return &copy, nil
	}
	return nil, common.ErrNotFound
}

// SelectCollapseCandidates mirrors the SQL selection: the older member of
// an adjacent duplicate pair, unpublished, visible, older than cutoff,
// not an entry pointer and without publication audit history.
func (f *fakeChanges) SelectCollapseCandidates(_ context.Context, cutoff time.Time) ([]*models.ChangeRecord, error) {
	if f.collapseCandidates != nil {
		return f.collapseCandidates, nil
	}

	var out []*models.ChangeRecord
	for _, c := range f.byID {
		if c.Published || c.Hidden || !c.Datetime.Before(cutoff) {
			continue
		}
		nxt := f.nextNewer(c)
		if nxt == nil || nxt.ChunkHash != c.ChunkHash || nxt.Hidden {
			continue
		}
		if e, ok := f.entries.byID[c.EntryID]; ok {
			if e.LatestID.Valid && e.LatestID.Int64 == c.ID {
				continue
			}
			if e.LatestPublishedID.Valid && e.LatestPublishedID.Int64 == c.ID {
				continue
			}
		}
		if f.pubs.audited[c.ID] {
			continue
		}
		copy := *c
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Datetime.Before(out[j].Datetime) })
	return out, nil
}

func (f *fakeChanges) nextNewer(c *models.ChangeRecord) *models.ChangeRecord {
	var nxt *models.ChangeRecord
	for _, r := range f.byID {
		if r.EntryID != c.EntryID || !r.Datetime.After(c.Datetime) {
			continue
		}
		if nxt == nil || r.Datetime.Before(nxt.Datetime) {
			nxt = r
		}
	}
	return nxt
}

func (f *fakeChanges) SelectHideCandidates(context.Context, time.Time, []string) ([]*models.ChangeRecord, error) {
	return f.hideCandidates, nil
}

func (f *fakeChanges) Delete(_ context.Context, id int64) error {
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeChanges) Hide(_ context.Context, id int64) error {
	if r, ok := f.byID[id]; ok {
		r.Hidden = true
	}
	f.hidden = append(f.hidden, id)
	return nil
}

func (f *fakeChanges) CountVisible(_ context.Context, entryID int64) (int, error) {
	n := 0
	for _, r := range f.byID {
		if r.EntryID == entryID && !r.Hidden {
			n++
		}
	}
	return n, nil
}

type fakeEntries struct {
	entriesrepo.Repository
	byID map[int64]*models.Entry
}

func (f *fakeEntries) GetByID(_ context.Context, id int64) (*models.Entry, error) {
	if e, ok := f.byID[id]; ok {
		copy := *e
		return &copy, nil
	}
	return nil, common.ErrNotFound
}

type fakeChunks struct {
	chunksrepo.Repository
	store      map[string]*models.Chunk
	referenced map[string]bool
	deleted    []string
}

func (f *fakeChunks) SelectUnreferenced(context.Context) ([]*models.Chunk, error) {
	var out []*models.Chunk
	for _, c := range f.store {
		if !f.referenced[c.Hash] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeChunks) IsReferenced(_ context.Context, hash string) (bool, error) {
	return f.referenced[hash], nil
}

func (f *fakeChunks) Delete(_ context.Context, hashes []string) error {
	for _, h := range hashes {
		delete(f.store, h)
		f.deleted = append(f.deleted, h)
	}
	return nil
}

type fakePubs struct {
	pubsrepo.Repository
	audited map[int64]bool
}

func (f *fakePubs) ExistsForRecord(_ context.Context, changeRecordID int64) (bool, error) {
	return f.audited[changeRecordID], nil
}

// memoryObserver collects job messages for assertions.
type memoryObserver struct {
	mu       sync.Mutex
	messages []string
}

func (o *memoryObserver) Message(_ context.Context, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
}

func newTxDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return db, mock
}

func defaultConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}
