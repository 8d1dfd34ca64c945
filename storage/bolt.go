package storage

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
	"github.com/sirupsen/logrus"

	"github.com/leancore/beacon/types"
)

var log = logrus.WithField("prefix", "storage")

// BoltStore persists every table as its own top-level bucket, the same
// shape as the teacher's BeaconDB (blockBucket/mainChainBucket/
// chainInfoBucket opened once at construction and addressed inside a
// single db.update/db.view transaction per call).
type BoltStore struct {
	db *bolt.DB
}

var allTables = []Table{
	TableBeaconBlock, TableBeaconState, TableSlotIndex, TableLeanBlock,
	TableLeanState, TableLatestKnownVotes, TableBlobsAndProofs,
}

const singletonsBucket = "singletons"

// OpenBoltStore opens (creating if absent) a bbolt file at path and
// ensures every named-table bucket and the singleton bucket exist.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, t := range allTables {
			if _, err := tx.CreateBucketIfNotExists([]byte(t)); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucketIfNotExists([]byte(singletonsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: init buckets: %w", err)
	}
	log.Infof("Opened bolt store at %s", path)
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(table Table, key types.Root) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(table)).Get(key[:])
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (s *BoltStore) Insert(table Table, key types.Root, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if err := b.Put(key[:], value); err != nil {
			return err
		}
		return s.indexSlotTx(tx, table, key, value)
	})
	if err == nil {
		boltInsertsTotal.Inc()
	}
	return err
}

func (s *BoltStore) Contains(table Table, key types.Root) bool {
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket([]byte(table)).Get(key[:]) != nil
		return nil
	})
	return found
}

func (s *BoltStore) BatchInsert(entries []Entry) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, e := range entries {
			b := tx.Bucket([]byte(e.Table))
			if err := b.Put(e.Key[:], e.Value); err != nil {
				return err
			}
			if err := s.indexSlotTx(tx, e.Table, e.Key, e.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		boltInsertsTotal.Add(float64(len(entries)))
	}
	return err
}

// indexSlotTx mirrors a beacon_block/lean_block insert into slot_index
// so GetHighestSlot never needs to scan the (larger) block bucket.
func (s *BoltStore) indexSlotTx(tx *bolt.Tx, table Table, key types.Root, value []byte) error {
	if table != TableBeaconBlock && table != TableLeanBlock {
		return nil
	}
	slot, _ := DecodeSlotPrefixed(value)
	return tx.Bucket([]byte(TableSlotIndex)).Put(key[:], EncodeSlotPrefixed(slot, nil))
}

func (s *BoltStore) GetHighestSlot() (types.Root, types.Slot, bool) {
	var best types.Root
	var bestSlot types.Slot
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(TableSlotIndex)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			slot, _ := DecodeSlotPrefixed(v)
			if !found || slot > bestSlot {
				copy(best[:], k)
				bestSlot = slot
				found = true
			}
		}
		return nil
	})
	return best, bestSlot, found
}

func (s *BoltStore) GetAllVotes() (map[types.ValidatorIndex][]byte, error) {
	out := make(map[types.ValidatorIndex][]byte)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(TableLatestKnownVotes)).ForEach(func(k, v []byte) error {
			out[decodeValidatorIndexKey(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) PutVote(index types.ValidatorIndex, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(TableLatestKnownVotes)).Put(encodeValidatorIndexKey(index), value)
	})
}

func (s *BoltStore) GetSingleton(name Singleton) ([]byte, bool) {
	var out []byte
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(singletonsBucket)).Get([]byte(name))
		if v != nil {
			out = append([]byte(nil), v...)
			found = true
		}
		return nil
	})
	return out, found
}

func (s *BoltStore) PutSingleton(name Singleton, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(singletonsBucket)).Put([]byte(name), value)
	})
}

func (s *BoltStore) Close() error { return s.db.Close() }

func encodeValidatorIndexKey(idx types.ValidatorIndex) []byte {
	k := make([]byte, 8)
	v := uint64(idx)
	for i := 0; i < 8; i++ {
		k[i] = byte(v >> (8 * i))
	}
	return k
}

func decodeValidatorIndexKey(k []byte) types.ValidatorIndex {
	var v uint64
	for i := 0; i < 8 && i < len(k); i++ {
		v |= uint64(k[i]) << (8 * i)
	}
	return types.ValidatorIndex(v)
}
