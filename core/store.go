package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Store persists finalized blocks and participant snapshots in LevelDB.
// Blocks are stored in their wire format keyed by hash; participants as JSON
// keyed by id.
type Store struct {
	db *leveldb.DB
}

// OpenStore opens (or creates) the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func blockKey(hash string) []byte {
	return []byte("block:" + hash)
}

func participantKey(id int) []byte {
	return []byte(fmt.Sprintf("participant:%d", id))
}

// PutBlock stores a finalized block under its content hash.
func (s *Store) PutBlock(b *Block) error {
	if err := s.db.Put(blockKey(b.Hash()), []byte(b.Serialize()), nil); err != nil {
		return fmt.Errorf("failed to store block %d: %v", b.Number, err)
	}
	return nil
}

// GetBlock loads a block by hash. The hash is re-derived during
// deserialization, not trusted from storage.
func (s *Store) GetBlock(hash string) (*Block, error) {
	data, err := s.db.Get(blockKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, fmt.Errorf("block %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load block: %v", err)
	}
	return DeserializeBlock(string(data))
}

// PutParticipant stores a participant snapshot.
func (s *Store) PutParticipant(p Participant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal participant %d: %v", p.ID, err)
	}
	if err := s.db.Put(participantKey(p.ID), data, nil); err != nil {
		return fmt.Errorf("failed to store participant %d: %v", p.ID, err)
	}
	return nil
}

// GetParticipant loads a participant snapshot by id.
func (s *Store) GetParticipant(id int) (Participant, error) {
	data, err := s.db.Get(participantKey(id), nil)
	if err == leveldb.ErrNotFound {
		return Participant{}, fmt.Errorf("participant %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Participant{}, fmt.Errorf("failed to load participant: %v", err)
	}
	var p Participant
	if err := json.Unmarshal(data, &p); err != nil {
		return Participant{}, fmt.Errorf("failed to unmarshal participant: %v", err)
	}
	return p, nil
}

// BlockHashes returns the hashes of every stored block.
func (s *Store) BlockHashes() ([]string, error) {
	var hashes []string
	iter := s.db.NewIterator(util.BytesPrefix([]byte("block:")), nil)
	defer iter.Release()
	for iter.Next() {
		hashes = append(hashes, strings.TrimPrefix(string(iter.Key()), "block:"))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %v", err)
	}
	return hashes, nil
}
