// Package expand turns a validated definition graph into the concrete
// instance graph of a run
//
// Every DuplicateDef is replaced by one copy of its wrapped definition per
// element of its duplication factor. Copies are addressed by duplication
// path, and edges into or out of a duplication are relinked to the roots
// and leaves of every copy. Nested duplications multiply
package expand
