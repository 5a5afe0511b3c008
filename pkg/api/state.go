package api

import "time"

type (
	// RunStatus is the overall status of a workflow run
	RunStatus string

	// TaskStatus is the execution state of a single task instance
	TaskStatus string

	// FileRef identifies one stored file: its tag, the duplication path of
	// the instance that produced it and its base name
	FileRef struct {
		Tag  Name   `json:"tag"`
		Name string `json:"name"`
		Key  string `json:"key"`
		Path Path   `json:"path,omitempty"`
	}

	// InstanceState is a point-in-time view of a task instance
	InstanceState struct {
		StartedAt   time.Time    `json:"started_at,omitzero"`
		CompletedAt time.Time    `json:"completed_at,omitzero"`
		Result      any          `json:"result,omitempty"`
		Kwargs      Args         `json:"kwargs,omitempty"`
		ID          InstanceID   `json:"id"`
		DefID       DefID        `json:"def_id"`
		Name        Name         `json:"name"`
		Action      string       `json:"action"`
		Status      TaskStatus   `json:"status"`
		Error       string       `json:"error,omitempty"`
		WorkDir     string       `json:"work_dir,omitempty"`
		Path        Path         `json:"path,omitempty"`
		Parents     []InstanceID `json:"parents,omitempty"`
		Args        []any        `json:"args,omitempty"`
	}

	// RunSnapshot is a point-in-time view of a run, as handed to the
	// persistence sink
	RunSnapshot struct {
		CreatedAt   time.Time        `json:"created_at"`
		CompletedAt time.Time        `json:"completed_at,omitzero"`
		Inputs      Args             `json:"inputs,omitempty"`
		Outputs     Args             `json:"outputs,omitempty"`
		ID          RunID            `json:"id"`
		Workflow    Name             `json:"workflow"`
		Project     string           `json:"project"`
		Mode        Mode             `json:"mode"`
		Status      RunStatus        `json:"status"`
		Files       []FileRef        `json:"files,omitempty"`
		Instances   []*InstanceState `json:"instances"`
	}
)

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

const (
	TaskPending   TaskStatus = "pending"
	TaskReady     TaskStatus = "ready"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

// Instance returns the state of the instance with the given ID
func (s *RunSnapshot) Instance(id InstanceID) (*InstanceState, bool) {
	for _, inst := range s.Instances {
		if inst.ID == id {
			return inst, true
		}
	}
	return nil, false
}

// ByStatus returns the instances currently in the given status
func (s *RunSnapshot) ByStatus(status TaskStatus) []*InstanceState {
	var res []*InstanceState
	for _, inst := range s.Instances {
		if inst.Status == status {
			res = append(res, inst)
		}
	}
	return res
}
