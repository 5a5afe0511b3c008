// Package definition loads workflows from YAML documents. A node holding
// "action" is an action task, one holding "tasks" is a group, and one
// holding "task" duplicates the wrapped node. Parents are named by sibling
// within the enclosing group
package definition
