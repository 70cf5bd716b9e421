package backend

import (
	"gopkg.in/yaml.v3"
)

// yamlDoc is the top-level document shape, so the file reads as
//
//	entries:
//	    "pkg.Fn/8f3a…":
//	        value: |
//	            …yaml-encoded result…
//	        expires_at: 2026-08-31T10:00:00Z
type yamlDoc struct {
	Entries map[string]docEntry `yaml:"entries"`
}

type yamlFormat struct{ yamlCodec }

func (yamlFormat) encodeDoc(doc map[string]docEntry) ([]byte, error) {
	return yaml.Marshal(yamlDoc{Entries: doc})
}

func (yamlFormat) decodeDoc(data []byte) (map[string]docEntry, error) {
	var d yamlDoc
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	if d.Entries == nil {
		d.Entries = map[string]docEntry{}
	}
	return d.Entries, nil
}

// NewYAML opens the structured-text store at path, creating the file on
// the first write. The document is human-readable and values round-trip
// through YAML, so only YAML-representable values can be cached. Every
// write rewrites the whole document.
func NewYAML(path string) (Backend, error) {
	return openDocument(path, yamlFormat{})
}
