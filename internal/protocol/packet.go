// Package protocol implements the Jeux wire format: a fixed 16-byte
// packet header followed by an optional payload of Header.Size bytes.
// All multi-byte fields are network byte order. Payload strings are not
// NUL-terminated; Size delimits them exactly.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/jeuxgo/jeux/internal/game"
)

// HeaderSize is the fixed encoded size of a packet header.
const HeaderSize = 16

// PacketType identifies the kind of a packet.
type PacketType byte

const (
	// NoPacket is a synthetic type reported when the peer closed the
	// connection before a full header arrived. It never goes on the wire.
	NoPacket PacketType = iota

	// Requests from the client.
	Login
	Users
	Invite
	Revoke
	Accept
	Decline
	Move
	Resign

	// Synchronous responses from the server.
	Ack
	Nack

	// Asynchronous notifications to a peer.
	Invited
	Revoked
	Accepted
	Declined
	Moved
	Resigned
	Ended
)

func (t PacketType) String() string {
	switch t {
	case NoPacket:
		return "NONE"
	case Login:
		return "LOGIN"
	case Users:
		return "USERS"
	case Invite:
		return "INVITE"
	case Revoke:
		return "REVOKE"
	case Accept:
		return "ACCEPT"
	case Decline:
		return "DECLINE"
	case Move:
		return "MOVE"
	case Resign:
		return "RESIGN"
	case Ack:
		return "ACK"
	case Nack:
		return "NACK"
	case Invited:
		return "INVITED"
	case Revoked:
		return "REVOKED"
	case Accepted:
		return "ACCEPTED"
	case Declined:
		return "DECLINED"
	case Moved:
		return "MOVED"
	case Resigned:
		return "RESIGNED"
	case Ended:
		return "ENDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}

// Header is the decoded form of the 16-byte packet header.
//
// Wire layout:
//
//	offset 0: type (1 byte)
//	offset 1: invitation id (1 byte)
//	offset 2: game role (1 byte)
//	offset 3: reserved, zero (1 byte)
//	offset 4: payload size (2 bytes, big endian)
//	offset 8: timestamp seconds (4 bytes, big endian)
//	offset 12: timestamp nanoseconds (4 bytes, big endian)
type Header struct {
	Type          PacketType
	ID            uint8
	Role          game.Role
	Size          uint16
	TimestampSec  uint32
	TimestampNsec uint32
}

// Stamp sets the header timestamp to the current wall-clock time.
func (h *Header) Stamp() {
	now := time.Now()
	h.TimestampSec = uint32(now.Unix())
	h.TimestampNsec = uint32(now.Nanosecond())
}

// Encode writes the header into a HeaderSize-byte buffer.
func (h *Header) Encode(buf []byte) {
	buf[0] = byte(h.Type)
	buf[1] = h.ID
	buf[2] = byte(h.Role)
	buf[3] = 0
	binary.BigEndian.PutUint16(buf[4:6], h.Size)
	buf[6], buf[7] = 0, 0
	binary.BigEndian.PutUint32(buf[8:12], h.TimestampSec)
	binary.BigEndian.PutUint32(buf[12:16], h.TimestampNsec)
}

// Decode reads the header from a HeaderSize-byte buffer.
func (h *Header) Decode(buf []byte) {
	h.Type = PacketType(buf[0])
	h.ID = buf[1]
	h.Role = game.Role(buf[2])
	h.Size = binary.BigEndian.Uint16(buf[4:6])
	h.TimestampSec = binary.BigEndian.Uint32(buf[8:12])
	h.TimestampNsec = binary.BigEndian.Uint32(buf[12:16])
}

// WritePacket encodes hdr and payload and writes them to w in a single
// Write call, so a writer serialized by the caller never interleaves
// header and payload with other packets. hdr.Size is forced to len(payload).
func WritePacket(w io.Writer, hdr Header, payload []byte) error {
	if len(payload) > 0xFFFF {
		return fmt.Errorf("payload too large: %d bytes", len(payload))
	}
	hdr.Size = uint16(len(payload))

	buf := make([]byte, HeaderSize+len(payload))
	hdr.Encode(buf[:HeaderSize])
	copy(buf[HeaderSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing %s packet: %w", hdr.Type, err)
	}
	return nil
}

// ReadPacket reads exactly one packet from r. If the connection was closed
// before a complete packet arrived, it returns a header with Type NoPacket
// and no error; the caller terminates the session. Any other failure is
// returned as an error.
func ReadPacket(r io.Reader) (Header, []byte, error) {
	var hbuf [HeaderSize]byte
	if _, err := io.ReadFull(r, hbuf[:]); err != nil {
		if closedConn(err) {
			return Header{Type: NoPacket}, nil, nil
		}
		return Header{}, nil, fmt.Errorf("reading packet header: %w", err)
	}

	var hdr Header
	hdr.Decode(hbuf[:])

	if hdr.Size == 0 {
		return hdr, nil, nil
	}
	payload := make([]byte, hdr.Size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if closedConn(err) {
			return Header{Type: NoPacket}, nil, nil
		}
		return Header{}, nil, fmt.Errorf("reading %d payload bytes: %w", hdr.Size, err)
	}
	return hdr, payload, nil
}

// closedConn reports whether err means the peer is gone rather than that
// the stream is corrupt.
func closedConn(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}
