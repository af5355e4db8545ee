package protocol

import (
	"bytes"

	"github.com/Tnze/go-mc/net/packet"
	"github.com/google/uuid"

	"github.com/skyezerfox/headsync/constants"
	"github.com/skyezerfox/headsync/models"
)

// Message tags.
const (
	TagJoin = iota
	TagJoinAck
	TagPoseUpdate
	TagSnapshot
	TagLeave
)

// Message is one wire message. Every variant round-trips through
// Encode/Decode byte-for-byte.
type Message interface {
	Tag() int32
}

// Join is the first serverbound message on a connection.
type Join struct {
	Version int32
	Name    string
}

// JoinAck answers a Join with the assigned player id and the server's
// broadcast rate, so the client can match its send throttle to it.
type JoinAck struct {
	PlayerID uuid.UUID
	TickHz   int32
}

// PoseUpdate carries the sender's latest head pose.
type PoseUpdate struct {
	Pose models.Pose
}

// Snapshot carries the pose of every connected player.
type Snapshot struct {
	Entries []models.PlayerState
}

// Leave announces a clean disconnect. No payload.
type Leave struct{}

func (Join) Tag() int32       { return TagJoin }
func (JoinAck) Tag() int32    { return TagJoinAck }
func (PoseUpdate) Tag() int32 { return TagPoseUpdate }
func (Snapshot) Tag() int32   { return TagSnapshot }
func (Leave) Tag() int32      { return TagLeave }

// Encode serializes m into a complete frame: varint length, varint tag,
// payload. One frame is always one buffer so a single transport write
// carries a whole message.
func Encode(m Message) []byte {
	body := packet.VarInt(m.Tag()).Encode()
	switch msg := m.(type) {
	case Join:
		body = append(body, packet.VarInt(msg.Version).Encode()...)
		body = append(body, packet.String(msg.Name).Encode()...)
	case JoinAck:
		body = append(body, packet.String(msg.PlayerID.String()).Encode()...)
		body = append(body, packet.VarInt(msg.TickHz).Encode()...)
	case PoseUpdate:
		body = appendPose(body, msg.Pose)
	case Snapshot:
		body = append(body, packet.VarInt(int32(len(msg.Entries))).Encode()...)
		for _, e := range msg.Entries {
			body = append(body, packet.String(e.ID.String()).Encode()...)
			body = appendPose(body, e.Pose)
		}
	case Leave:
	}
	frame := packet.VarInt(int32(len(body))).Encode()
	return append(frame, body...)
}

func appendPose(b []byte, p models.Pose) []byte {
	for _, v := range p.Position {
		b = append(b, packet.Float(v).Encode()...)
	}
	for _, v := range p.Orientation {
		b = append(b, packet.Float(v).Encode()...)
	}
	return b
}

// decodeBody parses one frame body (tag plus payload). All failures here
// are ErrMalformed: the frame boundary itself was already recovered.
func decodeBody(body []byte) (Message, error) {
	r := bytes.NewReader(body)
	var tag packet.VarInt
	if err := tag.Decode(r); err != nil {
		return nil, malformedf("message tag: %v", err)
	}

	var (
		m   Message
		err error
	)
	switch int32(tag) {
	case TagJoin:
		m, err = scanJoin(r)
	case TagJoinAck:
		m, err = scanJoinAck(r)
	case TagPoseUpdate:
		m, err = scanPoseUpdate(r)
	case TagSnapshot:
		m, err = scanSnapshot(r)
	case TagLeave:
		m = Leave{}
	default:
		return nil, malformedf("unknown tag %d", tag)
	}
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, malformedf("%d trailing bytes after tag %d", r.Len(), tag)
	}
	return m, nil
}

func scanJoin(r *bytes.Reader) (Message, error) {
	var version packet.VarInt
	if err := version.Decode(r); err != nil {
		return nil, malformedf("join version: %v", err)
	}
	name, err := scanString(r)
	if err != nil {
		return nil, err
	}
	if len(name) > constants.MaxNameLen {
		return nil, malformedf("join name is %d bytes, limit %d", len(name), constants.MaxNameLen)
	}
	return Join{Version: int32(version), Name: name}, nil
}

func scanJoinAck(r *bytes.Reader) (Message, error) {
	id, err := scanPlayerID(r)
	if err != nil {
		return nil, err
	}
	var tickHz packet.VarInt
	if err := tickHz.Decode(r); err != nil {
		return nil, malformedf("join ack tick rate: %v", err)
	}
	return JoinAck{PlayerID: id, TickHz: int32(tickHz)}, nil
}

func scanPoseUpdate(r *bytes.Reader) (Message, error) {
	pose, err := scanPose(r)
	if err != nil {
		return nil, err
	}
	return PoseUpdate{Pose: pose}, nil
}

func scanSnapshot(r *bytes.Reader) (Message, error) {
	var count packet.VarInt
	if err := count.Decode(r); err != nil {
		return nil, malformedf("snapshot count: %v", err)
	}
	// Smallest possible entry: 1-byte id length prefix plus 7 floats.
	const minEntry = 1 + 7*4
	if count < 0 || int(count)*minEntry > r.Len() {
		return nil, malformedf("snapshot count %d exceeds %d remaining bytes", count, r.Len())
	}
	entries := make([]models.PlayerState, 0, int(count))
	for i := 0; i < int(count); i++ {
		id, err := scanPlayerID(r)
		if err != nil {
			return nil, err
		}
		pose, err := scanPose(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.PlayerState{ID: id, Pose: pose})
	}
	return Snapshot{Entries: entries}, nil
}

func scanPose(r *bytes.Reader) (models.Pose, error) {
	var f [7]packet.Float
	for i := range f {
		if err := f[i].Decode(r); err != nil {
			return models.Pose{}, malformedf("pose component %d: %v", i, err)
		}
	}
	return models.Pose{
		Position:    [3]float32{float32(f[0]), float32(f[1]), float32(f[2])},
		Orientation: [4]float32{float32(f[3]), float32(f[4]), float32(f[5]), float32(f[6])},
	}, nil
}

func scanPlayerID(r *bytes.Reader) (uuid.UUID, error) {
	s, err := scanString(r)
	if err != nil {
		return uuid.UUID{}, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, malformedf("player id %q: %v", s, err)
	}
	return id, nil
}

// scanString reads a varint-prefixed string, refusing declared lengths
// beyond what the frame actually holds so a bad length cannot trigger a
// large allocation.
func scanString(r *bytes.Reader) (string, error) {
	var n packet.VarInt
	if err := n.Decode(r); err != nil {
		return "", malformedf("string length: %v", err)
	}
	if n < 0 || int(n) > r.Len() {
		return "", malformedf("string length %d exceeds %d remaining bytes", n, r.Len())
	}
	b, err := packet.ReadNBytes(r, int(n))
	if err != nil {
		return "", malformedf("string body: %v", err)
	}
	return string(b), nil
}
