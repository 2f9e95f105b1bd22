package elfkit

import (
	"github.com/wippyai/elfkit/elfyaml"
	"github.com/wippyai/elfkit/object"
	"github.com/wippyai/elfkit/rawimage"
)

// ToYAML decodes an ELF binary and renders it as a YAML document.
func ToYAML(data []byte) ([]byte, error) {
	f, err := object.Decode(data)
	if err != nil {
		return nil, err
	}
	return elfyaml.Dump(f)
}

// FromYAML builds an ELF binary from a YAML document.
func FromYAML(doc []byte) ([]byte, error) {
	f, err := elfyaml.Build(doc)
	if err != nil {
		return nil, err
	}
	return f.Encode()
}

// RawImage decodes an ELF binary and returns its loadable memory image.
func RawImage(data []byte) ([]byte, error) {
	f, err := object.Decode(data)
	if err != nil {
		return nil, err
	}
	return rawimage.Extract(f)
}
