package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrDecode         = errors.New("malformed message")
	ErrUnexpectedType = errors.New("unexpected message type")
	ErrEncode         = errors.New("cannot encode message")
)

// Encode serializes msg. JSON variants carry their type tag in the "type"
// field; a Chunk encodes as its raw bytes.
func Encode(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil message", ErrEncode)
	case Chunk:
		return m.Data, nil
	case *Chunk:
		return m.Data, nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return withType(msg.Type(), body)
}

// withType splices the type tag into an already-encoded JSON object.
func withType(t MessageType, body []byte) ([]byte, error) {
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%w: %s is not an object", ErrEncode, t)
	}
	tag, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	out := make([]byte, 0, len(body)+len(tag)+9)
	out = append(out, `{"type":`...)
	out = append(out, tag...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// Decode maps the type tag of data to its variant and returns the decoded
// value. Unknown tags, a missing tag and malformed JSON fail with ErrDecode.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	switch head.Type {
	case TypeNodeDiscovery:
		return decodeInto[Announce](data)
	case TypeSendOffer:
		return decodeInto[Offer](data)
	case TypeReceiveConfirm:
		return decodeInto[Accept](data)
	case TypeReceiveReject:
		return decodeInto[Reject](data)
	case TypeFileMeta:
		return decodeInto[FileMeta](data)
	case TypeTransferComplete:
		return decodeInto[Complete](data)
	case TypeAck:
		return decodeInto[Ack](data)
	case TypeError:
		return decodeInto[Error](data)
	case "":
		return nil, fmt.Errorf("%w: missing type tag", ErrDecode)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrDecode, head.Type)
	}
}

func decodeInto[T Message](data []byte) (Message, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, v.Type(), err)
	}
	return v, nil
}

// DecodeAs decodes data and asserts it is the variant T.
func DecodeAs[T Message](data []byte) (T, error) {
	var zero T
	msg, err := Decode(data)
	if err != nil {
		return zero, err
	}
	v, ok := msg.(T)
	if !ok {
		return zero, fmt.Errorf("%w: want %s, got %s", ErrUnexpectedType, zero.Type(), msg.Type())
	}
	return v, nil
}
