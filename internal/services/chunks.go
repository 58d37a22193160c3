// Package services implements the operations of the versioned document
// store on top of the repositories: the content-addressed chunk store, the
// change-history chain, the entry lock manager and the handle table.
package services

import (
	"context"
	"database/sql"
	"encoding/hex"

	"github.com/wordbank/lexstore/internal/models"
	"github.com/wordbank/lexstore/internal/repositories/repomanager"
	"github.com/zeebo/blake3"
)

// HashChunk returns the lowercase hex BLAKE3-256 digest of data. The hash
// is a pure function of the bytes, so identical content always maps to the
// same chunk row.
func HashChunk(data string) string {
	sum := blake3.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// ChunkService is the content-addressed chunk store.
type ChunkService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewChunkService(db *sql.DB, rm repomanager.RepositoryManager) *ChunkService {
	return &ChunkService{db: db, repomanager: rm}
}

// Put stores data if no chunk with the same content exists and returns the
// content hash either way. Writes are idempotent; concurrent puts of
// identical content are resolved by the unique hash constraint.
func (s *ChunkService) Put(ctx context.Context, data string, isNormal bool) (string, error) {
	hash := HashChunk(data)
	repo := s.repomanager.Chunks(s.db)
	if err := repo.Insert(ctx, &models.Chunk{Hash: hash, Data: data, IsNormal: isNormal}); err != nil {
		return "", err
	}
	return hash, nil
}

// Get returns the chunk for hash, or common.ErrNotFound.
func (s *ChunkService) Get(ctx context.Context, hash string) (*models.Chunk, error) {
	return s.repomanager.Chunks(s.db).Get(ctx, hash)
}
