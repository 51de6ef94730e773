package idb

// position points at a value blob inside the database file
type position struct {
	offset uint64
	size   uint64
}

// entry is what an object store index keeps in memory for a key,
// values stay on disk (or in the payload cache) until they are read.
type entry struct {
	key PK
	pos position
}

func newEntry(key string, pos position) *entry {
	return &entry{key: newPK(key), pos: pos}
}
