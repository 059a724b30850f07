package store

import (
	"encoding/binary"
	"path/filepath"

	"github.com/auric-network/auric/fsm"
	"github.com/auric-network/auric/lib"
	"github.com/dgraph-io/badger/v4"
)

/*
	This file implements the chain store: committed blocks indexed by hash and
	height, each beside the ledger snapshot its commit produced, plus the head
	pointer. The core protocol requires no durability, so the default mode
	keeps the database in memory; pointing it at a directory persists the same
	layout on disk
*/

var (
	blockPrefix  = []byte("b/") // blockPrefix + hash -> block bytes
	heightPrefix = []byte("h/") // heightPrefix + big-endian height -> hash
	ledgerPrefix = []byte("l/") // ledgerPrefix + hash -> ledger bytes
	headKey      = []byte("head")
)

// BlockStore holds the committed chain of one validator
type BlockStore struct {
	db     *badger.DB
	config lib.Config
	log    lib.LoggerI
}

// New() opens the chain store per the configuration: in memory by default,
// on disk under the data directory otherwise
func New(config lib.Config, log lib.LoggerI) (*BlockStore, lib.ErrorI) {
	opts := badger.DefaultOptions(filepath.Join(config.DataDirPath, config.DBName))
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, lib.ErrOpenDB(err)
	}
	return &BlockStore{db: db, config: config, log: log}, nil
}

// Close() releases the underlying database
func (s *BlockStore) Close() {
	if err := s.db.Close(); err != nil {
		s.log.Errorf("closing store: %s", err.Error())
	}
}

// CommitBlock() writes a block, its ledger snapshot, the height index, and
// moves the head pointer in one transaction
func (s *BlockStore) CommitBlock(b *lib.Block, ledger *fsm.StakeLedger) lib.ErrorI {
	blockBz, err := lib.Marshal(b)
	if err != nil {
		return err
	}
	ledgerBz, err := ledger.Marshal()
	if err != nil {
		return err
	}
	hash := b.Hash()
	if er := s.db.Update(func(txn *badger.Txn) error {
		if e := txn.Set(append(blockPrefix, hash...), blockBz); e != nil {
			return e
		}
		if e := txn.Set(append(heightPrefix, heightKey(b.Header.Height)...), hash); e != nil {
			return e
		}
		if e := txn.Set(append(ledgerPrefix, hash...), ledgerBz); e != nil {
			return e
		}
		return txn.Set(headKey, hash)
	}); er != nil {
		return lib.ErrStoreSet(er)
	}
	return nil
}

// GetBlock() returns a committed block by hash
func (s *BlockStore) GetBlock(hash []byte) (*lib.Block, lib.ErrorI) {
	bz, err := s.get(append(blockPrefix, hash...))
	if err != nil {
		return nil, err
	}
	block := new(lib.Block)
	if e := lib.Unmarshal(bz, block); e != nil {
		return nil, e
	}
	return block, nil
}

// GetBlockByHeight() returns a committed block by height
func (s *BlockStore) GetBlockByHeight(height uint64) (*lib.Block, lib.ErrorI) {
	hash, err := s.get(append(heightPrefix, heightKey(height)...))
	if err != nil {
		return nil, err
	}
	return s.GetBlock(hash)
}

// GetLedger() returns the ledger snapshot a block's commit produced
func (s *BlockStore) GetLedger(hash []byte, chainId string, unstakeDelay uint64) (*fsm.StakeLedger, lib.ErrorI) {
	bz, err := s.get(append(ledgerPrefix, hash...))
	if err != nil {
		return nil, err
	}
	return fsm.UnmarshalLedger(bz, chainId, unstakeDelay)
}

// GetHead() returns the current head block
func (s *BlockStore) GetHead() (*lib.Block, lib.ErrorI) {
	hash, err := s.get(headKey)
	if err != nil {
		return nil, err
	}
	return s.GetBlock(hash)
}

// get() reads one key, translating the not-found case
func (s *BlockStore) get(key []byte) (value []byte, e lib.ErrorI) {
	if err := s.db.View(func(txn *badger.Txn) error {
		item, er := txn.Get(key)
		if er != nil {
			return er
		}
		value, er = item.ValueCopy(nil)
		return er
	}); err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, lib.ErrBlockNotFound()
		}
		return nil, lib.ErrStoreGet(err)
	}
	return value, nil
}

// heightKey() returns the big-endian index key of a height
func heightKey(height uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, height)
	return key
}
