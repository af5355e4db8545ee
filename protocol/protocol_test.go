package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/Tnze/go-mc/net/packet"
	"github.com/google/uuid"

	"github.com/skyezerfox/headsync/constants"
	"github.com/skyezerfox/headsync/models"
)

func testPose(seed float32) models.Pose {
	return models.Pose{
		Position:    [3]float32{seed, seed + 1, seed + 2},
		Orientation: [4]float32{0, seed / 10, 0, 1},
	}
}

func roundTripMessages() []Message {
	idA := uuid.MustParse("5f8c7c32-6b9b-4f06-9f6e-27a1c1f0a001")
	idB := uuid.MustParse("5f8c7c32-6b9b-4f06-9f6e-27a1c1f0a002")
	return []Message{
		Join{Version: constants.ProtocolVersion, Name: "alice"},
		Join{Version: constants.ProtocolVersion, Name: ""},
		Join{Version: 7, Name: strings.Repeat("n", constants.MaxNameLen)},
		JoinAck{PlayerID: idA, TickHz: 30},
		PoseUpdate{Pose: testPose(1)},
		PoseUpdate{Pose: models.IdentityPose()},
		Snapshot{Entries: []models.PlayerState{}},
		Snapshot{Entries: []models.PlayerState{
			{ID: idA, Pose: testPose(-3)},
			{ID: idB, Pose: testPose(12.5)},
		}},
		Leave{},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, want := range roundTripMessages() {
		frame := Encode(want)
		got, err := Decode(frame, DefaultMaxFrameBytes)
		if err != nil {
			t.Fatalf("Decode(%T): %v", want, err)
		}
		if wantSnap, ok := want.(Snapshot); ok && len(wantSnap.Entries) == 0 {
			// An empty entry slice may come back as nil-backed; compare length.
			gotSnap, ok := got.(Snapshot)
			if !ok || len(gotSnap.Entries) != 0 {
				t.Fatalf("empty snapshot round-trip: got %#v", got)
			}
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round-trip mismatch: sent %#v, got %#v", want, got)
		}
	}
}

func TestReadFragmented(t *testing.T) {
	var stream bytes.Buffer
	msgs := roundTripMessages()
	for _, m := range msgs {
		stream.Write(Encode(m))
	}

	// One byte per transport read: the reader must reassemble frames.
	fr := NewFrameReader(iotest.OneByteReader(&stream), DefaultMaxFrameBytes)
	for i := range msgs {
		got, err := fr.Read()
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		if got.Tag() != msgs[i].Tag() {
			t.Fatalf("message %d: tag %d, want %d", i, got.Tag(), msgs[i].Tag())
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	for _, m := range roundTripMessages() {
		frame := Encode(m)
		for cut := 0; cut < len(frame); cut++ {
			_, err := Decode(frame[:cut], DefaultMaxFrameBytes)
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("%T truncated at %d/%d: got %v, want ErrMalformed", m, cut, len(frame), err)
			}
		}
	}
}

func TestDecodeOversized(t *testing.T) {
	frame := packet.VarInt(1 << 24).Encode()
	_, err := Decode(frame, DefaultMaxFrameBytes)
	if !errors.Is(err, ErrOversized) {
		t.Fatalf("got %v, want ErrOversized", err)
	}

	// At exactly the limit the length itself is fine.
	frame = Encode(PoseUpdate{Pose: testPose(0)})
	if _, err := Decode(frame, 1+7*4); err != nil {
		t.Fatalf("frame at limit: %v", err)
	}
	if _, err := Decode(frame, 8); !errors.Is(err, ErrOversized) {
		t.Fatalf("frame over limit: got %v, want ErrOversized", err)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	body := packet.VarInt(99).Encode()
	frame := append(packet.VarInt(int32(len(body))).Encode(), body...)
	_, err := Decode(frame, DefaultMaxFrameBytes)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	body := packet.VarInt(TagLeave).Encode()
	body = append(body, 0xde, 0xad)
	frame := append(packet.VarInt(int32(len(body))).Encode(), body...)
	_, err := Decode(frame, DefaultMaxFrameBytes)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestDecodeNameTooLong(t *testing.T) {
	body := packet.VarInt(TagJoin).Encode()
	body = append(body, packet.VarInt(constants.ProtocolVersion).Encode()...)
	body = append(body, packet.String(strings.Repeat("x", constants.MaxNameLen+1)).Encode()...)
	frame := append(packet.VarInt(int32(len(body))).Encode(), body...)
	_, err := Decode(frame, DefaultMaxFrameBytes)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestDecodeLyingStringLength(t *testing.T) {
	// Declared string length far beyond the frame body must fail without
	// allocating the declared size.
	body := packet.VarInt(TagJoin).Encode()
	body = append(body, packet.VarInt(constants.ProtocolVersion).Encode()...)
	body = append(body, packet.VarInt(1<<28).Encode()...)
	frame := append(packet.VarInt(int32(len(body))).Encode(), body...)
	_, err := Decode(frame, DefaultMaxFrameBytes)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestDecodeLyingSnapshotCount(t *testing.T) {
	body := packet.VarInt(TagSnapshot).Encode()
	body = append(body, packet.VarInt(1<<20).Encode()...)
	frame := append(packet.VarInt(int32(len(body))).Encode(), body...)
	_, err := Decode(frame, DefaultMaxFrameBytes)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestDecodeBadPlayerID(t *testing.T) {
	body := packet.VarInt(TagJoinAck).Encode()
	body = append(body, packet.String("not-a-uuid").Encode()...)
	body = append(body, packet.VarInt(30).Encode()...)
	frame := append(packet.VarInt(int32(len(body))).Encode(), body...)
	_, err := Decode(frame, DefaultMaxFrameBytes)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestIsProtocolError(t *testing.T) {
	if !IsProtocolError(malformedf("x")) {
		t.Fatal("malformed not classified as protocol error")
	}
	if IsProtocolError(errors.New("connection reset")) {
		t.Fatal("transport error classified as protocol error")
	}
}
