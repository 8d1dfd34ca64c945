package storage

import (
	"sync"

	"github.com/leancore/beacon/types"
)

// slotEntry records a root's slot for the GetHighestSlot scan.
type slotEntry struct {
	root types.Root
	slot types.Slot
}

// MemoryStore is an in-process KVStore, the default backing for a Store
// or LeanChain under test and the natural choice for the lean chain's
// research scenarios where durability across restarts is not required.
type MemoryStore struct {
	mu         sync.RWMutex
	tables     map[Table]map[types.Root][]byte
	slots      map[types.Root]types.Slot
	votes      map[types.ValidatorIndex][]byte
	singletons map[Singleton][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:     make(map[Table]map[types.Root][]byte),
		slots:      make(map[types.Root]types.Slot),
		votes:      make(map[types.ValidatorIndex][]byte),
		singletons: make(map[Singleton][]byte),
	}
}

func (m *MemoryStore) bucket(table Table) map[types.Root][]byte {
	b, ok := m.tables[table]
	if !ok {
		b = make(map[types.Root][]byte)
		m.tables[table] = b
	}
	return b
}

func (m *MemoryStore) Get(table Table, key types.Root) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.tables[table][key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Insert(table Table, key types.Root, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(table)[key] = value
	if table == TableBeaconBlock || table == TableLeanBlock {
		m.slots[key] = decodeSlotHint(value)
	}
	return nil
}

func (m *MemoryStore) Contains(table Table, key types.Root) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tables[table][key]
	return ok
}

func (m *MemoryStore) BatchInsert(entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.bucket(e.Table)[e.Key] = e.Value
		if e.Table == TableBeaconBlock || e.Table == TableLeanBlock {
			m.slots[e.Key] = decodeSlotHint(e.Value)
		}
	}
	return nil
}

func (m *MemoryStore) GetHighestSlot() (types.Root, types.Slot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best types.Root
	var bestSlot types.Slot
	found := false
	for root, slot := range m.slots {
		if !found || slot > bestSlot {
			best, bestSlot, found = root, slot, true
		}
	}
	return best, bestSlot, found
}

func (m *MemoryStore) GetAllVotes() (map[types.ValidatorIndex][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[types.ValidatorIndex][]byte, len(m.votes))
	for k, v := range m.votes {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) PutVote(index types.ValidatorIndex, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes[index] = value
	return nil
}

func (m *MemoryStore) GetSingleton(name Singleton) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.singletons[name]
	return v, ok
}

func (m *MemoryStore) PutSingleton(name Singleton, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.singletons[name] = value
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// decodeSlotHint reads the first 8 little-endian bytes callers are
// expected to prefix onto a stored block's encoding so the slot index
// can be maintained without deserializing the full SSZ container. Store
// and LeanChain both write via EncodeSlotPrefixed (encode.go).
func decodeSlotHint(value []byte) types.Slot {
	if len(value) < 8 {
		return 0
	}
	var slot uint64
	for i := 0; i < 8; i++ {
		slot |= uint64(value[i]) << (8 * i)
	}
	return types.Slot(slot)
}
