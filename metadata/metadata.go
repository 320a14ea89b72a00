/**

partition schema descriptors

a Metadata instance describes the shape of one partition: how cell
names sort, how values are validated, and whether the partition uses
commutative (counter) merge semantics. Metadata is owned by the schema
layer and shared between every record of the same table; records hold
a non-owning reference and never mutate it.

 */
package metadata

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// defines the sort order of cell names within a partition
type Comparator interface {
	// returns -1, 0, or 1 if a sorts before, equal to,
	// or after b
	Compare(a []byte, b []byte) int

	String() string
}

// validates cell values before insertion
type Validator interface {
	Validate(value []byte) error

	// indicates counter semantics. Commutative values
	// are merged by delta accumulation, not last write wins
	IsCommutative() bool
}

type BytesComparator struct{}

func (c BytesComparator) Compare(a []byte, b []byte) int {
	return bytes.Compare(a, b)
}

func (c BytesComparator) String() string {
	return "BytesComparator"
}

// accepts any value
type BytesValidator struct{}

func (v BytesValidator) Validate(_ []byte) error { return nil }

func (v BytesValidator) IsCommutative() bool { return false }

// marks a partition as holding counter deltas
type CounterValidator struct{}

func (v CounterValidator) Validate(value []byte) error {
	if len(value) != 8 {
		return fmt.Errorf("counter values must be 8 bytes, got %v", len(value))
	}
	return nil
}

func (v CounterValidator) IsCommutative() bool { return true }

// immutable descriptor of a partition's shape. Two records are
// comparable iff their metadata ids are equal
type Metadata struct {
	id         uuid.UUID
	keyspace   string
	name       string
	comparator Comparator
	validator  Validator
}

func NewMetadata(keyspace string, name string, comparator Comparator, validator Validator) *Metadata {
	if comparator == nil {
		panic("metadata requires a comparator")
	}
	if validator == nil {
		validator = BytesValidator{}
	}
	return &Metadata{
		id:         uuid.New(),
		keyspace:   keyspace,
		name:       name,
		comparator: comparator,
		validator:  validator,
	}
}

func (m *Metadata) ID() uuid.UUID { return m.id }

func (m *Metadata) Keyspace() string { return m.keyspace }

func (m *Metadata) Name() string { return m.name }

func (m *Metadata) Comparator() Comparator { return m.comparator }

func (m *Metadata) Validator() Validator { return m.validator }

// true if this partition uses counter merge semantics
func (m *Metadata) IsCommutative() bool { return m.validator.IsCommutative() }

func (m *Metadata) String() string {
	return fmt.Sprintf("Metadata(%v.%v %v)", m.keyspace, m.name, m.id)
}
