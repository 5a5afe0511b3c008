package log_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
	"github.com/OdaNilseng/FLSworkflow/pkg/log"
)

type errStub string

func TestRunID(t *testing.T) {
	attr := log.RunID(api.RunID("run-123"))
	assertAttrEqual(t, attr, "run_id", "run-123")
}

func TestTaskID(t *testing.T) {
	attr := log.TaskID(api.InstanceID("dag/task[0]"))
	assertAttrEqual(t, attr, "task_id", "dag/task[0]")
}

func TestWorkflow(t *testing.T) {
	attr := log.Workflow(api.Name("demo"))
	assertAttrEqual(t, attr, "workflow", "demo")
}

func TestAction(t *testing.T) {
	assertAttrEqual(t, log.Action("builtins.print"), "action", "builtins.print")
}

func TestTag(t *testing.T) {
	assertAttrEqual(t, log.Tag(api.Name("files")), "tag", "files")
}

func TestPath(t *testing.T) {
	path := api.Path{}.Extend("d", 1).Extend("e", 0)
	assertAttrEqual(t, log.Path(path), "path", "[1][0]")
}

func TestStatus(t *testing.T) {
	attr := log.Status(api.TaskSucceeded)
	assertAttrEqual(t, attr, "status", "succeeded")
}

func TestError(t *testing.T) {
	attr := log.Error(nil)
	assertAttrEqual(t, attr, "error", "")

	attr = log.Error(errStub("boom"))
	assertAttrEqual(t, attr, "error", "boom")
}

func TestErrorString(t *testing.T) {
	attr := log.ErrorString("badness")
	assertAttrEqual(t, attr, "error", "badness")
}

func (e errStub) Error() string { return string(e) }

func assertAttrEqual(t *testing.T, attr slog.Attr, key, value string) {
	t.Helper()
	assert.Equal(t, key, attr.Key)
	assert.Equal(t, value, attr.Value.String())
}
