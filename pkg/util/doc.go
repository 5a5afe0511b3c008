// Package util provides common utility functions and data structures
//
// This package includes a generic set and a path-indexed tree used to scope
// values by duplication path
package util
