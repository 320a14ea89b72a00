package record

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/bdeggleston/rowstore/metadata"
	"github.com/bdeggleston/rowstore/serializer"
)

// codec protocol versions. Version1 predates range tombstone and
// counter cell support; decoding a Version1 stream substitutes the
// universally live defaults for the missing features
const (
	Version1 uint32 = 1
	Version2 uint32 = 2

	CurrentVersion = Version2
)

// record wire format:
//   [schemaId (16b)]
//   [topLevel markedForDeleteAt (8b)][topLevel localDeletionTime (4b)]
//   [numRanges (uvarint)][start][end][markedAt (8b)][localDeletion (4b)]...   (Version2+)
//   [numCells (uvarint)]
//   [tag (1b)][name][variant fields]...
// cells are written in comparator order

// encodes the record for the given protocol version. Returns an
// error if the record holds features the version can't carry
func Serialize(r *Record, buf *bufio.Writer, version uint32) error {
	if err := checkVersion(version); err != nil {
		return err
	}
	id := r.metadata.ID()
	if _, err := buf.Write(id[:]); err != nil {
		return err
	}

	di := r.DeletionInfo()
	if err := serializer.WriteInt64(buf, di.TopLevel().MarkedForDeleteAt); err != nil {
		return err
	}
	if err := serializer.WriteInt32(buf, di.TopLevel().LocalDeletionTime); err != nil {
		return err
	}

	ranges := di.Ranges()
	if version < Version2 {
		if len(ranges) > 0 {
			return fmt.Errorf("protocol version %v cannot encode range tombstones", version)
		}
	} else {
		if err := serializer.WriteUvarint(buf, uint64(len(ranges))); err != nil {
			return err
		}
		for _, rt := range ranges {
			if err := serializer.WriteFieldBytes(buf, rt.Start); err != nil {
				return err
			}
			if err := serializer.WriteFieldBytes(buf, rt.End); err != nil {
				return err
			}
			if err := serializer.WriteInt64(buf, rt.MarkedForDeleteAt); err != nil {
				return err
			}
			if err := serializer.WriteInt32(buf, rt.LocalDeletionTime); err != nil {
				return err
			}
		}
	}

	if err := serializer.WriteUvarint(buf, uint64(r.Count())); err != nil {
		return err
	}
	var cellErr error
	r.Each(func(c Cell) bool {
		cellErr = serializeCell(c, buf, version)
		return cellErr == nil
	})
	if cellErr != nil {
		return cellErr
	}
	return buf.Flush()
}

func serializeCell(c Cell, buf *bufio.Writer, version uint32) error {
	if err := buf.WriteByte(byte(c.tag())); err != nil {
		return err
	}
	if err := serializer.WriteFieldBytes(buf, c.Name()); err != nil {
		return err
	}
	switch cell := c.(type) {
	case *LiveCell:
		if err := serializer.WriteFieldBytes(buf, cell.value); err != nil {
			return err
		}
		return serializer.WriteInt64(buf, cell.timestamp)
	case *DeletedCell:
		if err := serializer.WriteInt64(buf, cell.timestamp); err != nil {
			return err
		}
		return serializer.WriteInt32(buf, cell.localDeletionTime)
	case *ExpiringCell:
		if err := serializer.WriteFieldBytes(buf, cell.value); err != nil {
			return err
		}
		if err := serializer.WriteInt64(buf, cell.timestamp); err != nil {
			return err
		}
		if err := serializer.WriteInt32(buf, cell.ttl); err != nil {
			return err
		}
		return serializer.WriteInt32(buf, cell.expiry)
	case *CounterUpdateCell:
		if version < Version2 {
			return fmt.Errorf("protocol version %v cannot encode counter cells", version)
		}
		if err := serializer.WriteInt64(buf, cell.delta); err != nil {
			return err
		}
		return serializer.WriteInt64(buf, cell.timestamp)
	}
	return fmt.Errorf("unhandled cell type: %T", c)
}

// decodes one record. Malformed input is reported as an error, the
// stream position is undefined afterwards, but no other record is
// affected
func Deserialize(buf *bufio.Reader, md *metadata.Metadata, factory Factory, version uint32) (*Record, error) {
	if err := checkVersion(version); err != nil {
		return nil, err
	}
	var id uuid.UUID
	if _, err := io.ReadFull(buf, id[:]); err != nil {
		return nil, fmt.Errorf("reading schema id: %w", err)
	}
	if id != md.ID() {
		logger.Warning("discarding record for unexpected schema %v, wanted %v", id, md.ID())
		return nil, fmt.Errorf("schema id mismatch: got %v, expected %v", id, md.ID())
	}

	r := factory.New(md)

	markedAt, err := serializer.ReadInt64(buf)
	if err != nil {
		return nil, fmt.Errorf("reading deletion mark: %w", err)
	}
	localDeletion, err := serializer.ReadInt32(buf)
	if err != nil {
		return nil, fmt.Errorf("reading deletion time: %w", err)
	}
	topLevel := DeletionTime{MarkedForDeleteAt: markedAt, LocalDeletionTime: localDeletion}
	if !topLevel.IsLive() {
		r.DeleteAt(topLevel)
	}

	if version >= Version2 {
		numRanges, err := serializer.ReadUvarint(buf)
		if err != nil {
			return nil, fmt.Errorf("reading range tombstone count: %w", err)
		}
		for i := uint64(0); i < numRanges; i++ {
			start, err := serializer.ReadFieldBytes(buf)
			if err != nil {
				return nil, fmt.Errorf("reading range tombstone start: %w", err)
			}
			end, err := serializer.ReadFieldBytes(buf)
			if err != nil {
				return nil, fmt.Errorf("reading range tombstone end: %w", err)
			}
			markedAt, err := serializer.ReadInt64(buf)
			if err != nil {
				return nil, fmt.Errorf("reading range tombstone mark: %w", err)
			}
			localDeletion, err := serializer.ReadInt32(buf)
			if err != nil {
				return nil, fmt.Errorf("reading range tombstone deletion time: %w", err)
			}
			r.DeleteRange(NewRangeTombstone(start, end, markedAt, localDeletion))
		}
	}

	numCells, err := serializer.ReadUvarint(buf)
	if err != nil {
		return nil, fmt.Errorf("reading cell count: %w", err)
	}
	for i := uint64(0); i < numCells; i++ {
		cell, err := deserializeCell(buf, version)
		if err != nil {
			return nil, err
		}
		r.AddCell(cell, nil)
	}
	return r, nil
}

func deserializeCell(buf *bufio.Reader, version uint32) (Cell, error) {
	tagByte, err := buf.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("reading cell tag: %w", err)
	}
	tag := cellTag(tagByte)
	if tag > tagCounterUpdate || (version < Version2 && tag == tagCounterUpdate) {
		logger.Warning("corrupt cell tag %v at protocol version %v", tagByte, version)
		return nil, fmt.Errorf("corrupt cell tag: %v", tagByte)
	}
	name, err := serializer.ReadFieldBytes(buf)
	if err != nil {
		return nil, fmt.Errorf("reading cell name: %w", err)
	}

	switch tag {
	case tagLive:
		value, err := serializer.ReadFieldBytes(buf)
		if err != nil {
			return nil, fmt.Errorf("reading cell value: %w", err)
		}
		ts, err := serializer.ReadInt64(buf)
		if err != nil {
			return nil, fmt.Errorf("reading cell timestamp: %w", err)
		}
		return NewCell(name, value, ts), nil
	case tagDeleted:
		ts, err := serializer.ReadInt64(buf)
		if err != nil {
			return nil, fmt.Errorf("reading cell timestamp: %w", err)
		}
		localDeletion, err := serializer.ReadInt32(buf)
		if err != nil {
			return nil, fmt.Errorf("reading cell deletion time: %w", err)
		}
		return NewDeletedCell(name, localDeletion, ts), nil
	case tagExpiring:
		value, err := serializer.ReadFieldBytes(buf)
		if err != nil {
			return nil, fmt.Errorf("reading cell value: %w", err)
		}
		ts, err := serializer.ReadInt64(buf)
		if err != nil {
			return nil, fmt.Errorf("reading cell timestamp: %w", err)
		}
		ttl, err := serializer.ReadInt32(buf)
		if err != nil {
			return nil, fmt.Errorf("reading cell ttl: %w", err)
		}
		expiry, err := serializer.ReadInt32(buf)
		if err != nil {
			return nil, fmt.Errorf("reading cell expiry: %w", err)
		}
		return &ExpiringCell{name: name, value: value, timestamp: ts, ttl: ttl, expiry: expiry}, nil
	case tagCounterUpdate:
		delta, err := serializer.ReadInt64(buf)
		if err != nil {
			return nil, fmt.Errorf("reading counter delta: %w", err)
		}
		ts, err := serializer.ReadInt64(buf)
		if err != nil {
			return nil, fmt.Errorf("reading cell timestamp: %w", err)
		}
		return NewCounterUpdateCell(name, delta, ts), nil
	}
	return nil, fmt.Errorf("corrupt cell tag: %v", tagByte)
}

// encodes the record to a fresh byte slice
func ToBytes(r *Record, version uint32) ([]byte, error) {
	b := &bytes.Buffer{}
	buf := bufio.NewWriter(b)
	if err := Serialize(r, buf, version); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// decodes a record from a byte slice. A nil slice decodes to a
// nil record
func FromBytes(b []byte, md *metadata.Metadata, factory Factory, version uint32) (*Record, error) {
	if b == nil {
		return nil, nil
	}
	return Deserialize(bufio.NewReader(bytes.NewReader(b)), md, factory, version)
}

// the number of bytes Serialize will produce for this record at
// the given version, assuming it is encodable at that version
func SerializedSize(r *Record, version uint32) int {
	size := 16 + 8 + 4
	di := r.DeletionInfo()
	if version >= Version2 {
		size += serializer.NumUvarintBytes(uint64(len(di.Ranges())))
		for _, rt := range di.Ranges() {
			size += serializer.NumBytes(rt.Start) + serializer.NumBytes(rt.End) + 8 + 4
		}
	}
	size += serializer.NumUvarintBytes(uint64(r.Count()))
	r.Each(func(c Cell) bool {
		size += 1 + serializer.NumBytes(c.Name())
		switch cell := c.(type) {
		case *LiveCell:
			size += serializer.NumBytes(cell.value) + 8
		case *DeletedCell:
			size += 8 + 4
		case *ExpiringCell:
			size += serializer.NumBytes(cell.value) + 8 + 4 + 4
		case *CounterUpdateCell:
			size += 8 + 8
		}
		return true
	})
	return size
}

func checkVersion(version uint32) error {
	if version < Version1 || version > CurrentVersion {
		return fmt.Errorf("unknown protocol version: %v", version)
	}
	return nil
}
