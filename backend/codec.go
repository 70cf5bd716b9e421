package backend

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

type msgpackCodec struct{}

var _ Codec = msgpackCodec{}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "msgpack encode"), ErrEncode)
	}
	return data, nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return errors.Mark(errors.Wrap(err, "msgpack decode"), ErrDecode)
	}
	return nil
}

type yamlCodec struct{}

var _ Codec = yamlCodec{}

func (yamlCodec) Marshal(v any) ([]byte, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "yaml encode"), ErrEncode)
	}
	return data, nil
}

func (yamlCodec) Unmarshal(data []byte, v any) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return errors.Mark(errors.Wrap(err, "yaml decode"), ErrDecode)
	}
	return nil
}

// CanonicalMarshal encodes v as msgpack with map keys sorted, so logically
// equal values always produce identical bytes regardless of map iteration
// order. Key derivation depends on this.
func CanonicalMarshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "canonical encode"), ErrEncode)
	}
	return buf.Bytes(), nil
}
