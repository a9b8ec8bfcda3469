// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package types

import (
	"encoding/binary"
	"fmt"
)

// Record layout matching struct network_event_record in the capture program:
//
//	struct network_event_record {
//	    __u64 timestamp;     // 0   bpf_ktime_get_ns()
//	    __s32 pid;           // 8
//	    __u32 _reserved;     // 12
//	    __u8  tag;           // 16
//	    __u8  _pad[7];       // 17
//	    __u8  payload[80];   // 24  variant body, see below
//	    __u32 buffer_len;    // 104
//	    __u8  buffer[];      // 108
//	};
//
// Variant bodies (offsets relative to payload):
//
//	bind:    addr@0 proto@32
//	listen:  addr@0
//	connect: dst@0 proto@32
//	accept:  src@0 dst@32
//	send:    src@0 dst@32 data.start@64 data.len@66 data_len@68 proto@72
//	receive: same as send
//	close:   original_pid@0 src@4 dst@36
const (
	offTimestamp = 0
	offPid       = 8
	offTag       = 16
	offPayload   = 24
	payloadSize  = 80
	offBufferLen = offPayload + payloadSize
	offBuffer    = offBufferLen + 4

	// HeaderSize is the smallest valid record.
	HeaderSize = offBuffer
)

// Event is one decoded record.
type Event struct {
	// Timestamp is the kernel monotonic clock in nanoseconds.
	Timestamp uint64
	Pid       int32
	Payload   NetworkEvent
	// Buffer is the auxiliary data region. It may be shorter than the
	// buffer references in Payload claim.
	Buffer []byte
}

// DecodeError reports a record that does not match the wire layout.
type DecodeError struct {
	Tag    Tag
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed %s record: %s", e.Tag, e.Reason)
}

// Decode parses one record. The tag is read first and selects the variant
// body; the buffer is copied out of data.
func Decode(data []byte) (*Event, error) {
	if len(data) < HeaderSize {
		return nil, &DecodeError{Tag: 0xff, Reason: fmt.Sprintf("record too short: %d bytes", len(data))}
	}

	tag := Tag(data[offTag])
	body := data[offPayload : offPayload+payloadSize]

	payload, err := decodePayload(tag, body)
	if err != nil {
		return nil, &DecodeError{Tag: tag, Reason: err.Error()}
	}

	bufLen := int(binary.LittleEndian.Uint32(data[offBufferLen:offBuffer]))
	if bufLen > MaxBufferSize {
		bufLen = MaxBufferSize
	}
	if avail := len(data) - offBuffer; bufLen > avail {
		bufLen = avail
	}
	buf := make([]byte, bufLen)
	copy(buf, data[offBuffer:offBuffer+bufLen])

	return &Event{
		Timestamp: binary.LittleEndian.Uint64(data[offTimestamp:offPid]),
		Pid:       int32(binary.LittleEndian.Uint32(data[offPid : offPid+4])),
		Payload:   payload,
		Buffer:    buf,
	}, nil
}

func decodePayload(tag Tag, b []byte) (NetworkEvent, error) {
	switch tag {
	case TagBind:
		addr, err := decodeAddr(b[0:32])
		if err != nil {
			return nil, err
		}
		proto, err := decodeProto(b[32])
		if err != nil {
			return nil, err
		}
		return Bind{Addr: addr, Proto: proto}, nil

	case TagListen:
		addr, err := decodeAddr(b[0:32])
		if err != nil {
			return nil, err
		}
		return Listen{Addr: addr}, nil

	case TagConnect:
		dst, err := decodeAddr(b[0:32])
		if err != nil {
			return nil, err
		}
		proto, err := decodeProto(b[32])
		if err != nil {
			return nil, err
		}
		return Connect{Dst: dst, Proto: proto}, nil

	case TagAccept:
		src, dst, err := decodePair(b, 0)
		if err != nil {
			return nil, err
		}
		return Accept{Src: src, Dst: dst}, nil

	case TagSend, TagReceive:
		src, dst, err := decodePair(b, 0)
		if err != nil {
			return nil, err
		}
		proto, err := decodeProto(b[72])
		if err != nil {
			return nil, err
		}
		data := BufferIndex{
			Start: binary.LittleEndian.Uint16(b[64:66]),
			Len:   binary.LittleEndian.Uint16(b[66:68]),
		}
		dataLen := binary.LittleEndian.Uint32(b[68:72])
		if tag == TagSend {
			return Send{Src: src, Dst: dst, Data: data, DataLen: dataLen, Proto: proto}, nil
		}
		return Receive{Src: src, Dst: dst, Data: data, DataLen: dataLen, Proto: proto}, nil

	case TagClose:
		src, dst, err := decodePair(b, 4)
		if err != nil {
			return nil, err
		}
		return Close{
			OriginalPid: int32(binary.LittleEndian.Uint32(b[0:4])),
			Src:         src,
			Dst:         dst,
		}, nil
	}
	return nil, fmt.Errorf("unknown tag %d", uint8(tag))
}

func decodePair(b []byte, off int) (Addr, Addr, error) {
	src, err := decodeAddr(b[off : off+addrSize])
	if err != nil {
		return nil, nil, fmt.Errorf("src: %w", err)
	}
	dst, err := decodeAddr(b[off+addrSize : off+2*addrSize])
	if err != nil {
		return nil, nil, fmt.Errorf("dst: %w", err)
	}
	return src, dst, nil
}

func decodeProto(b byte) (Proto, error) {
	switch p := Proto(b); p {
	case ProtoTCP, ProtoUDP:
		return p, nil
	}
	return 0, fmt.Errorf("unknown protocol %d", b)
}

// MarshalBinary encodes e in the record layout.
func (e *Event) MarshalBinary() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("event has no payload")
	}
	if len(e.Buffer) > MaxBufferSize {
		return nil, fmt.Errorf("buffer of %d bytes exceeds %d", len(e.Buffer), MaxBufferSize)
	}

	out := make([]byte, HeaderSize+len(e.Buffer))
	binary.LittleEndian.PutUint64(out[offTimestamp:], e.Timestamp)
	binary.LittleEndian.PutUint32(out[offPid:], uint32(e.Pid))
	out[offTag] = uint8(e.Payload.Tag())

	b := out[offPayload : offPayload+payloadSize]
	var err error
	switch v := e.Payload.(type) {
	case Bind:
		err = encodeAddr(b[0:32], v.Addr)
		b[32] = uint8(v.Proto)
	case Listen:
		err = encodeAddr(b[0:32], v.Addr)
	case Connect:
		err = encodeAddr(b[0:32], v.Dst)
		b[32] = uint8(v.Proto)
	case Accept:
		err = encodePair(b, 0, v.Src, v.Dst)
	case Send:
		err = encodePair(b, 0, v.Src, v.Dst)
		encodeData(b, v.Data, v.DataLen, v.Proto)
	case Receive:
		err = encodePair(b, 0, v.Src, v.Dst)
		encodeData(b, v.Data, v.DataLen, v.Proto)
	case Close:
		binary.LittleEndian.PutUint32(b[0:4], uint32(v.OriginalPid))
		err = encodePair(b, 4, v.Src, v.Dst)
	default:
		err = fmt.Errorf("unsupported payload %T", e.Payload)
	}
	if err != nil {
		return nil, err
	}

	binary.LittleEndian.PutUint32(out[offBufferLen:], uint32(len(e.Buffer)))
	copy(out[offBuffer:], e.Buffer)
	return out, nil
}

func encodePair(b []byte, off int, src, dst Addr) error {
	if err := encodeAddr(b[off:off+addrSize], src); err != nil {
		return err
	}
	return encodeAddr(b[off+addrSize:off+2*addrSize], dst)
}

func encodeData(b []byte, data BufferIndex, dataLen uint32, proto Proto) {
	binary.LittleEndian.PutUint16(b[64:66], data.Start)
	binary.LittleEndian.PutUint16(b[66:68], data.Len)
	binary.LittleEndian.PutUint32(b[68:72], dataLen)
	b[72] = uint8(proto)
}
