package log

import (
	"fmt"
	"log/slog"
)

func RunID[T ~string](id T) slog.Attr {
	return slog.String("run_id", string(id))
}

func TaskID[T ~string](id T) slog.Attr {
	return slog.String("task_id", string(id))
}

func Workflow[T ~string](name T) slog.Attr {
	return slog.String("workflow", string(name))
}

func Action(ref string) slog.Attr {
	return slog.String("action", ref)
}

func Tag[T ~string](tag T) slog.Attr {
	return slog.String("tag", string(tag))
}

func Path(p fmt.Stringer) slog.Attr {
	return slog.String("path", p.String())
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
