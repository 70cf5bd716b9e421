package backend

import (
	"github.com/vmihailenco/msgpack/v5"
)

type msgpackFormat struct{ msgpackCodec }

func (msgpackFormat) encodeDoc(doc map[string]docEntry) ([]byte, error) {
	return msgpack.Marshal(doc)
}

func (msgpackFormat) decodeDoc(data []byte) (map[string]docEntry, error) {
	var doc map[string]docEntry
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]docEntry{}
	}
	return doc, nil
}

// NewMsgpack opens the binary-serialized store at path, creating the file
// on the first write. Same whole-document model as the YAML variant, but
// values round-trip through msgpack, so anything msgpack can represent
// can be cached — at the cost of readability.
func NewMsgpack(path string) (Backend, error) {
	return openDocument(path, msgpackFormat{})
}
