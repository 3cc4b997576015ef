package publish

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes one record into a wire payload.
type Codec interface {
	Name() string
	Encode(record map[string]interface{}) ([]byte, error)
}

// Codec names.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Formats lists the supported codec names, default first.
var Formats = []string{FormatJSON, FormatMsgpack}

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch name {
	case FormatJSON, "":
		return jsonCodec{}, nil
	case FormatMsgpack:
		return msgpackCodec{}, nil
	}
	return nil, errors.Errorf("unknown format %q", name)
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return FormatJSON }

func (jsonCodec) Encode(record map[string]interface{}) ([]byte, error) {
	b, err := json.Marshal(record)
	return b, errors.Wrap(err, "json encode")
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return FormatMsgpack }

func (msgpackCodec) Encode(record map[string]interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(record)
	return b, errors.Wrap(err, "msgpack encode")
}
