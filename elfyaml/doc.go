// Package elfyaml converts between the object model and a YAML document.
//
// Dump omits every field that holds its default value and leaves out the
// trailing string tables layout would add by itself, so the output of
//
//	out, err := elfyaml.Dump(f)
//
// reads like a hand-written description. Build accepts the same keys and
// applies the same defaults:
//
//	f, err := elfyaml.Build(out)
//
// Build(Dump(f)) yields a model equal to f for any f produced by
// object.Decode or by Build itself. Build reports problems as
// *errors.Error values carrying the path of the offending field.
package elfyaml
