/**

lightweight transaction collaborator surface

the paxos coordinator uses the record core's reconciliation to
decide proposal acceptance; this package defines the message payload
it exchanges, carrying a merged record (or nothing, for "no prior
value") through the record codec.

 */
package paxos

import (
	"bufio"
	"io"

	"github.com/google/uuid"

	"github.com/bdeggleston/rowstore/metadata"
	"github.com/bdeggleston/rowstore/record"
	"github.com/bdeggleston/rowstore/serializer"
)

// reply to a paxos prepare request. InProgressUpdates is nil when
// no in-progress proposal was seen
type PrepareResponse struct {
	Promised            bool
	MostRecentCommitted uuid.UUID
	InProgressBallot    uuid.UUID
	InProgressUpdates   *record.Record
}

func NewPrepareResponse(promised bool, mostRecentCommitted uuid.UUID, inProgressBallot uuid.UUID, inProgressUpdates *record.Record) *PrepareResponse {
	return &PrepareResponse{
		Promised:            promised,
		MostRecentCommitted: mostRecentCommitted,
		InProgressBallot:    inProgressBallot,
		InProgressUpdates:   inProgressUpdates,
	}
}

func (m *PrepareResponse) Serialize(buf *bufio.Writer, version uint32) error {
	if err := serializer.WriteBool(buf, m.Promised); err != nil {
		return err
	}
	if _, err := buf.Write(m.MostRecentCommitted[:]); err != nil {
		return err
	}
	if _, err := buf.Write(m.InProgressBallot[:]); err != nil {
		return err
	}
	if err := serializer.WriteBool(buf, m.InProgressUpdates != nil); err != nil {
		return err
	}
	if m.InProgressUpdates != nil {
		if err := record.Serialize(m.InProgressUpdates, buf, version); err != nil {
			return err
		}
	}
	return buf.Flush()
}

func (m *PrepareResponse) Deserialize(buf *bufio.Reader, md *metadata.Metadata, version uint32) error {
	var err error
	if m.Promised, err = serializer.ReadBool(buf); err != nil {
		return err
	}
	if err = readUUID(buf, &m.MostRecentCommitted); err != nil {
		return err
	}
	if err = readUUID(buf, &m.InProgressBallot); err != nil {
		return err
	}
	hasUpdates, err := serializer.ReadBool(buf)
	if err != nil {
		return err
	}
	if hasUpdates {
		// prepare responses are merge inputs owned by a single
		// coordinator, single writer is enough
		m.InProgressUpdates, err = record.Deserialize(buf, md, record.Factory{}, version)
		if err != nil {
			return err
		}
	} else {
		m.InProgressUpdates = nil
	}
	return nil
}

func readUUID(buf *bufio.Reader, u *uuid.UUID) error {
	b := make([]byte, 16)
	if _, err := io.ReadFull(buf, b); err != nil {
		return err
	}
	return u.UnmarshalBinary(b)
}
