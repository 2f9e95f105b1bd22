// Package elfkit converts ELF objects to and from a YAML description and
// extracts their loadable memory image.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	elfkit/              Root package with whole-file conversions
//	├── object/          Object model, binary decoder, layout engine and encoder
//	├── elfyaml/         YAML dump and build of the object model
//	├── rawimage/        Flat memory image of PT_LOAD segments
//	├── errors/          Structured error types with phase, kind and location
//	└── cmd/elfkit/      obj2yaml, yaml2obj, objcopy, headers and browse commands
//
// # Quick Start
//
// Describe a binary and rebuild it:
//
//	doc, err := elfkit.ToYAML(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	again, err := elfkit.FromYAML(doc)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// bytes.Equal(data, again) for any binary this package produced
//
// # Round Trips
//
// Decoding stores only what layout cannot derive: a field equal to the value
// the encoder would compute is left unset, and string tables keep their
// original bytes when a fresh build would differ. Encoding a decoded file
// therefore reproduces the input, and Dump followed by Build reproduces the
// model.
//
// # Thread Safety
//
// A File is a plain value owned by one conversion. Distinct files may be
// processed concurrently; the package loggers must be set before that starts.
package elfkit
