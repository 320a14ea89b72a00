package record

// controls where cell name/value buffers land when cells are copied
// into a record during a merge. A nil arena means no copy, the record
// aliases the source cell's buffers
type Arena interface {
	Clone(b []byte) []byte
}

// allocates fresh heap slices
type HeapArena struct{}

func (HeapArena) Clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var Heap Arena = HeapArena{}
