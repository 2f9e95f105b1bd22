// Package object models ELF object files and converts them to and from the
// binary format.
//
// A File holds the file header, the ordered sections and the ordered program
// headers. Sections are one of a closed set of kinds (raw, NOBITS, string
// table, symbol table, version symbols, version definitions); unknown section
// types are carried as RawSection and re-emitted byte for byte.
//
// References between parts of a File are symbolic. A section's Link and a
// segment's FirstSec/LastSec name sections; Plan resolves them to indices,
// appends implicit string tables, and assigns offsets and addresses:
//
//	l, err := object.Plan(f)   // resolve and lay out
//	data := l.Encode()         // serialize
//
// Decode reverses Encode. Values that layout would derive on its own are left
// implicit in the decoded File, so Decode(Encode(f)) equals f for files in
// that canonical form.
package object
