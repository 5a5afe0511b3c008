// Package query parses and evaluates the embedded expressions used in task
// arguments, output extraction and upload specifications
//
// Expressions are written between <% and %> markers and address a tree
// rooted at $. In a run context the tree has three roots: inputs, outputs
// and storage. Outputs and storage are scoped by duplication path: a
// consumer sees the value of a producer at its own level or above it
// directly, and the values of producers nested below it as mappings from
// duplicate index to value
package query
