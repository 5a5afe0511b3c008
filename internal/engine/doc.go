// Package engine executes expanded workflow plans
//
// A run expands the workflow's definition tree into instances, then walks
// the instance graph either one instance at a time or through a bounded
// worker pool. Each instance resolves its queries, stages its downloads,
// invokes its action and publishes its outputs and uploads for the
// instances downstream of it
package engine
