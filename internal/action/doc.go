// Package action resolves the action references named by task definitions
// into invocable units. Built-in actions cover common file and process
// helpers, while "lua:", "ale:" and "http(s)://" references are compiled or
// bound on demand
package action
