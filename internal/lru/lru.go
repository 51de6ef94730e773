package lru

import (
	"container/list"
	"sync"
)

type lruShard struct {
	mu         sync.RWMutex
	lmu        sync.Mutex
	totalBytes uint64
	elemsCount int64
	maxBytes   uint64
	evictList  *list.List
	elems      map[uint64]*list.Element
	onEvict    OnEvict
}

func newLruShard(maxBytes uint64, onEvict OnEvict) *lruShard {
	return &lruShard{
		maxBytes:  maxBytes,
		evictList: list.New(),
		elems:     make(map[uint64]*list.Element),
		onEvict:   onEvict,
	}
}

type payload struct {
	key   uint64
	value []byte
}

func (ls *lruShard) get(key uint64) ([]byte, bool) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	elem, ok := ls.elems[key]
	if !ok {
		return nil, false
	}

	ls.lmu.Lock()
	ls.evictList.MoveToFront(elem)
	ls.lmu.Unlock()

	return elem.Value.(*payload).value, true
}

// add stores value under key, returns whether it was stored and whether
// older payloads had to be evicted to make room for it
func (ls *lruShard) add(key uint64, value []byte) (added bool, evicted bool) {
	size := uint64(len(value))
	if size > ls.maxBytes {
		return false, false
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if elem, ok := ls.elems[key]; ok {
		ls.removeElementUnderLock(elem)
	}

	// until we can safely insert a value of new length
	// remove the oldest payloads
	for ls.totalBytes+size > ls.maxBytes {
		evictedKey, evictedValue, ok := ls.removeOldestUnderLock()
		if !ok {
			break
		}

		evicted = true
		if ls.onEvict != nil {
			ls.onEvict(evictedKey, evictedValue)
		}
	}

	ls.lmu.Lock()
	elem := ls.evictList.PushFront(&payload{key: key, value: value})
	ls.lmu.Unlock()

	ls.totalBytes += size
	ls.elemsCount++
	ls.elems[key] = elem
	return true, evicted
}

func (ls *lruShard) purge() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	for k := range ls.elems {
		delete(ls.elems, k)
	}

	ls.totalBytes = 0
	ls.elemsCount = 0

	ls.lmu.Lock()
	ls.evictList.Init()
	ls.lmu.Unlock()
}

func (ls *lruShard) remove(key uint64) ([]byte, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	elem, ok := ls.elems[key]
	if !ok {
		return nil, false
	}

	_, value := ls.removeElementUnderLock(elem)
	return value, true
}

func (ls *lruShard) removeOldestUnderLock() (uint64, []byte, bool) {
	ls.lmu.Lock()
	elem := ls.evictList.Back()
	ls.lmu.Unlock()

	if elem == nil {
		return 0, nil, false
	}

	k, v := ls.removeElementUnderLock(elem)
	return k, v, true
}

func (ls *lruShard) removeElementUnderLock(elem *list.Element) (uint64, []byte) {
	ls.lmu.Lock()
	ls.evictList.Remove(elem)
	ls.lmu.Unlock()

	p := elem.Value.(*payload)
	delete(ls.elems, p.key)
	ls.totalBytes -= uint64(len(p.value))
	ls.elemsCount--
	return p.key, p.value
}

func (ls *lruShard) count() int64 {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return ls.elemsCount
}

func (ls *lruShard) size() uint64 {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return ls.totalBytes
}
