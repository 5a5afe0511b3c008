// Package persist stores run snapshots outside the process so that finished
// and in-flight runs can be inspected later
package persist
