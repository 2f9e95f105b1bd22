package elfyaml

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Document keys. Build accepts exactly these; Dump emits a subset of them.
var (
	documentKeys   = []string{"FileHeader", "Sections", "ProgramHeaders"}
	fileHeaderKeys = []string{"Class", "Data", "OSABI", "ABIVersion", "Type", "Machine", "Flags", "Entry"}
	sectionKeys    = []string{
		"Name", "Type", "Flags", "Address", "Offset", "Link", "AddressAlign", "EntSize", "Info",
		"Content", "Size", "Symbols", "Entries", "Versions",
	}
	symbolKeys        = []string{"Name", "Type", "Binding", "Other", "Section", "Index", "Value", "Size"}
	entryKeys         = []string{"Version", "Flags", "VersionNdx", "Hash", "Names"}
	programHeaderKeys = []string{
		"Type", "Flags", "VAddr", "PAddr", "Align", "FirstSec", "LastSec", "Offset", "FileSize", "MemSize",
	}
)

type document struct {
	FileHeader     fileHeader      `yaml:"FileHeader"`
	Sections       []section       `yaml:"Sections,omitempty"`
	ProgramHeaders []programHeader `yaml:"ProgramHeaders,omitempty"`
}

type fileHeader struct {
	Class      string `yaml:"Class"`
	Data       string `yaml:"Data"`
	OSABI      string `yaml:"OSABI,omitempty"`
	ABIVersion hex64  `yaml:"ABIVersion,omitempty"`
	Type       string `yaml:"Type"`
	Machine    string `yaml:"Machine"`
	Flags      hex64  `yaml:"Flags,omitempty"`
	Entry      hex64  `yaml:"Entry,omitempty"`
}

type section struct {
	Name         string        `yaml:"Name"`
	Type         string        `yaml:"Type"`
	Flags        flowList      `yaml:"Flags,omitempty"`
	Address      *hex64        `yaml:"Address,omitempty"`
	Offset       *hex64        `yaml:"Offset,omitempty"`
	Link         string        `yaml:"Link,omitempty"`
	AddressAlign *hex64        `yaml:"AddressAlign,omitempty"`
	EntSize      hex64         `yaml:"EntSize,omitempty"`
	Info         hex64         `yaml:"Info,omitempty"`
	Content      string        `yaml:"Content,omitempty"`
	Size         hex64         `yaml:"Size,omitempty"`
	Symbols      []symbol      `yaml:"Symbols,omitempty"`
	Entries      []verdefEntry `yaml:"Entries,omitempty"`
	Versions     flowUints     `yaml:"Versions,omitempty"`
}

type symbol struct {
	Name    string `yaml:"Name,omitempty"`
	Type    string `yaml:"Type,omitempty"`
	Binding string `yaml:"Binding,omitempty"`
	Other   hex64  `yaml:"Other,omitempty"`
	Section string `yaml:"Section,omitempty"`
	Index   string `yaml:"Index,omitempty"`
	Value   hex64  `yaml:"Value,omitempty"`
	Size    hex64  `yaml:"Size,omitempty"`
}

// verdefEntry pointers are set together or not at all.
type verdefEntry struct {
	Version    *hex64   `yaml:"Version,omitempty"`
	Flags      *hex64   `yaml:"Flags,omitempty"`
	VersionNdx *hex64   `yaml:"VersionNdx,omitempty"`
	Hash       *hex64   `yaml:"Hash,omitempty"`
	Names      flowList `yaml:"Names,omitempty"`
}

type programHeader struct {
	Type     string   `yaml:"Type"`
	Flags    flowList `yaml:"Flags,omitempty"`
	VAddr    *hex64   `yaml:"VAddr,omitempty"`
	PAddr    *hex64   `yaml:"PAddr,omitempty"`
	Align    hex64    `yaml:"Align,omitempty"`
	FirstSec string   `yaml:"FirstSec,omitempty"`
	LastSec  string   `yaml:"LastSec,omitempty"`
	Offset   *hex64   `yaml:"Offset,omitempty"`
	FileSize *hex64   `yaml:"FileSize,omitempty"`
	MemSize  *hex64   `yaml:"MemSize,omitempty"`
}

// hex64 is an integer rendered as a hexadecimal literal.
type hex64 uint64

func hexPtr(v *uint64) *hex64 {
	if v == nil {
		return nil
	}
	h := hex64(*v)
	return &h
}

func (h hex64) MarshalYAML() (any, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!int",
		Value: fmt.Sprintf("0x%X", uint64(h)),
	}, nil
}

// flowList is a string sequence rendered inline: [ A, B ].
type flowList []string

func (l flowList) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, s := range l {
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s})
	}
	return n, nil
}

type flowUints []uint16

func (l flowUints) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range l {
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatUint(uint64(v), 10)})
	}
	return n, nil
}
