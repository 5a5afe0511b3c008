// Package graph builds a validated, flattened view of a task definition tree
//
// Each definition becomes a Node with a qualified ID and a pre-order ordinal.
// Nodes are grouped into scopes: the top scope holds the root definition,
// every GroupDef owns a scope for its members and every DuplicateDef owns a
// scope for the definition it wraps. Parent edges never cross scopes
package graph
