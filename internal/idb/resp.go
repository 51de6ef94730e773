package idb

import (
	"bytes"
	"strconv"
)

const (
	versionCommand     = "ver"
	createStoreCommand = "mkstore"
	setCommand         = "set"
	delCommand         = "del"
)

// respSerializer appends commands to buf, pos tracks the file offset
// the next byte of buf will land at.
type respSerializer struct {
	buf bytes.Buffer
	pos int
}

func (rs *respSerializer) serializeVersion(v int) {
	rs.pos += writeRespArray(2, &rs.buf)
	rs.pos += writeRespSimpleString([]byte(versionCommand), &rs.buf)
	rs.pos += writeRespKeyString([]byte(strconv.Itoa(v)), &rs.buf)
}

func (rs *respSerializer) serializeCreateStore(name string) {
	rs.pos += writeRespArray(2, &rs.buf)
	rs.pos += writeRespSimpleString([]byte(createStoreCommand), &rs.buf)
	rs.pos += writeRespKeyString([]byte(name), &rs.buf)
}

// serializeSet returns where the value blob is going to be in the file
func (rs *respSerializer) serializeSet(store string, key string, value []byte) position {
	rs.pos += writeRespArray(4, &rs.buf)
	rs.pos += writeRespSimpleString([]byte(setCommand), &rs.buf)
	rs.pos += writeRespKeyString([]byte(store), &rs.buf)
	rs.pos += writeRespKeyString([]byte(key), &rs.buf)
	prefix, total := writeRespBlob(value, &rs.buf)

	pos := position{
		size:   uint64(len(value)),
		offset: uint64(rs.pos + prefix),
	}

	rs.pos += total
	return pos
}

func (rs *respSerializer) serializeDel(store string, key string) {
	rs.pos += writeRespArray(3, &rs.buf)
	rs.pos += writeRespSimpleString([]byte(delCommand), &rs.buf)
	rs.pos += writeRespKeyString([]byte(store), &rs.buf)
	rs.pos += writeRespKeyString([]byte(key), &rs.buf)
}

func writeRespArray(segments int, buf *bytes.Buffer) int {
	buf.WriteByte('*')
	s := strconv.FormatInt(int64(segments), 10)
	buf.WriteString(s)
	buf.WriteByte('\r')
	buf.WriteByte('\n')

	return 3 + len(s)
}

func writeRespSimpleString(b []byte, buf *bytes.Buffer) int {
	buf.WriteByte('+')
	buf.Write(b)
	buf.WriteByte('\r')
	buf.WriteByte('\n')
	return 3 + len(b)
}

func writeRespKeyString(b []byte, buf *bytes.Buffer) int {
	_, total := writeRespBlob(b, buf)
	return total
}

func writeRespBlob(blob []byte, buf *bytes.Buffer) (int, int) {
	buf.WriteByte('$')
	l := []byte(strconv.FormatInt(int64(len(blob)), 10))
	buf.Write(l)
	buf.WriteByte('\r')
	buf.WriteByte('\n')
	buf.Write(blob)
	buf.WriteByte('\r')
	buf.WriteByte('\n')

	prefix := 1 + len(l) + 2
	total := prefix + len(blob) + 2
	return prefix, total
}
