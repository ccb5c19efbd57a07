package wire

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes frames.
type Codec interface {
	Encode(f *Frame) ([]byte, error)
	Decode(data []byte) (*Frame, error)

	// Name is the identifier used in format negotiation.
	Name() string

	// Binary reports whether encoded frames are binary rather than text.
	Binary() bool
}

// Codec names.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns the codec called name. Unknown names and "" get JSON.
func GetCodec(name string) Codec {
	if name == CodecNameMsgpack {
		return &MsgpackCodec{}
	}
	return &JSONCodec{}
}

// JSONCodec encodes frames as JSON text.
type JSONCodec struct{}

func (c *JSONCodec) Encode(f *Frame) ([]byte, error) { return json.Marshal(f) }

func (c *JSONCodec) Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *JSONCodec) Name() string { return CodecNameJSON }
func (c *JSONCodec) Binary() bool { return false }

// MsgpackCodec encodes frames as MessagePack.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(f *Frame) ([]byte, error) { return msgpack.Marshal(f) }

func (c *MsgpackCodec) Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *MsgpackCodec) Name() string { return CodecNameMsgpack }
func (c *MsgpackCodec) Binary() bool { return true }
