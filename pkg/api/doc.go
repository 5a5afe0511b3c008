// Package api defines the core data types shared by the workflow engine
//
// This package contains the immutable task definitions, workflow requests,
// duplication paths, run snapshots, status values and the error taxonomy
// used across the graph model, duplicator, query resolver, storage manager
// and scheduler
package api
