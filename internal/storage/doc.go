// Package storage tracks the tagged file sets of a workflow run
//
// File content is kept in a gocloud.dev/blob bucket chosen by the run's
// project. File references are indexed by tag and by the duplication path
// of the instance that produced them, so that downloads follow the same
// scoping rules as query expressions
package storage
