/**

common serialize/deserialize functions

 */
package serializer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// writes the field length, then the field to the writer
func WriteFieldBytes(buf *bufio.Writer, bytes []byte) error {
	//write field length
	size := uint32(len(bytes))
	if err := binary.Write(buf, binary.LittleEndian, &size); err != nil {
		return err
	}
	// write field
	n, err := buf.Write(bytes)
	if err != nil {
		return err
	}
	if uint32(n) != size {
		return fmt.Errorf("unexpected num bytes written. Expected %v, got %v", size, n)
	}
	return nil
}

// read field bytes
func ReadFieldBytes(buf *bufio.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(buf, binary.LittleEndian, &size); err != nil {
		return nil, err
	}

	bytes := make([]byte, size)
	if _, err := io.ReadFull(buf, bytes); err != nil {
		return nil, err
	}
	return bytes, nil
}

func WriteFieldString(buf *bufio.Writer, str string) error {
	return WriteFieldBytes(buf, []byte(str))
}

func ReadFieldString(buf *bufio.Reader) (string, error) {
	bytes, err := ReadFieldBytes(buf)
	return string(bytes), err
}

func WriteInt64(buf *bufio.Writer, v int64) error {
	return binary.Write(buf, binary.LittleEndian, &v)
}

func ReadInt64(buf *bufio.Reader) (int64, error) {
	var v int64
	err := binary.Read(buf, binary.LittleEndian, &v)
	return v, err
}

func WriteInt32(buf *bufio.Writer, v int32) error {
	return binary.Write(buf, binary.LittleEndian, &v)
}

func ReadInt32(buf *bufio.Reader) (int32, error) {
	var v int32
	err := binary.Read(buf, binary.LittleEndian, &v)
	return v, err
}

func WriteBool(buf *bufio.Writer, v bool) error {
	var b byte
	if v {
		b = 1
	}
	return buf.WriteByte(b)
}

func ReadBool(buf *bufio.Reader) (bool, error) {
	b, err := buf.ReadByte()
	if err != nil {
		return false, err
	}
	if b > 1 {
		return false, fmt.Errorf("invalid bool byte: %v", b)
	}
	return b == 1, nil
}

func WriteUvarint(buf *bufio.Writer, v uint64) error {
	scratch := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(scratch, v)
	_, err := buf.Write(scratch[:n])
	return err
}

func ReadUvarint(buf *bufio.Reader) (uint64, error) {
	return binary.ReadUvarint(buf)
}

// returns the expected number of bytes needed
// to serialize the given byte field
func NumBytes(b []byte) int {
	return 4 + len(b)
}

func NumStringBytes(s string) int {
	return 4 + len(s)
}

func NumUvarintBytes(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
