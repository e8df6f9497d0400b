package alist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
)

// TaskType names an Alist task queue.
type TaskType string

const (
	TaskTypeDownload TaskType = "offline_download"
	TaskTypeTransfer TaskType = "offline_download_transfer"
)

// TaskStatus selects finished or unfinished tasks.
type TaskStatus string

const (
	TaskStatusDone   TaskStatus = "done"
	TaskStatusUndone TaskStatus = "undone"
)

// TaskState is Alist's task lifecycle state.
type TaskState int

const (
	StatePending TaskState = iota
	StateRunning
	StateSucceeded
	StateCanceling
	StateCanceled
	StateErrored
	StateFailing
	StateFailed
	StateWaitingRetry
	StateBeforeRetry
)

var stateNames = map[TaskState]string{
	StatePending:      "pending",
	StateRunning:      "running",
	StateSucceeded:    "succeeded",
	StateCanceling:    "canceling",
	StateCanceled:     "canceled",
	StateErrored:      "errored",
	StateFailing:      "failing",
	StateFailed:       "failed",
	StateWaitingRetry: "waiting_retry",
	StateBeforeRetry:  "before_retry",
}

func (s TaskState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the task will not change state again.
func (s TaskState) Terminal() bool {
	return s == StateSucceeded || s == StateCanceled || s == StateFailed
}

// Task is one entry of an Alist task list. URL and SavePath are parsed from
// download task names; Source and Target from transfer task names.
type Task struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	State    TaskState `json:"state"`
	Status   string    `json:"status"`
	Progress float64   `json:"progress"`
	Error    string    `json:"error"`
	Type     TaskType  `json:"-"`

	URL      string `json:"-"`
	SavePath string `json:"-"`
	Source   string `json:"-"`
	Target   string `json:"-"`
}

// DownloadTask is a task from the offline_download queue.
type DownloadTask = Task

// TransferTask is a task from the offline_download_transfer queue.
type TransferTask = Task

var (
	downloadNamePattern = regexp.MustCompile(`^download (.+) to \((.+)\)$`)
	transferNamePattern = regexp.MustCompile(`^transfer \[(.*)\]\((.+)\) to \[(.*)\]\((.+)\)$`)
)

// parseName fills the type-specific fields derived from the task name.
func (t *Task) parseName() {
	switch t.Type {
	case TaskTypeDownload:
		if match := downloadNamePattern.FindStringSubmatch(t.Name); match != nil {
			t.URL, t.SavePath = match[1], match[2]
		}
	case TaskTypeTransfer:
		if match := transferNamePattern.FindStringSubmatch(t.Name); match != nil {
			t.Source = path.Join("/", match[1], match[2])
			t.Target = path.Join("/", match[3], match[4])
		}
	}
}

// FileName returns the base name of the transferred file.
func (t Task) FileName() string {
	if t.Source == "" {
		return ""
	}
	return path.Base(t.Source)
}

// TaskList is an ordered collection of tasks.
type TaskList []Task

// Concat appends other to l without deduplication.
func (l TaskList) Concat(other TaskList) TaskList {
	out := make(TaskList, 0, len(l)+len(other))
	out = append(out, l...)
	return append(out, other...)
}

// Find returns the task with id.
func (l TaskList) Find(id string) (Task, bool) {
	for _, task := range l {
		if task.ID == id {
			return task, true
		}
	}
	return Task{}, false
}

func decodeTasks(raw json.RawMessage, taskType TaskType) (TaskList, error) {
	var tasks TaskList
	if len(raw) == 0 || string(raw) == "null" {
		return TaskList{}, nil
	}
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Type = taskType
		tasks[i].parseName()
	}
	return tasks, nil
}

func (c *Client) fetchTasks(ctx context.Context, taskType TaskType, status TaskStatus) (TaskList, error) {
	var raw json.RawMessage
	endpoint := fmt.Sprintf("api/task/%s/%s", taskType, status)
	if err := c.call(ctx, request{method: http.MethodGet, endpoint: endpoint}, &raw); err != nil {
		return nil, err
	}
	tasks, err := decodeTasks(raw, taskType)
	if err != nil {
		return nil, fmt.Errorf("alist %s: decode tasks: %w", endpoint, err)
	}
	return tasks, nil
}

// ListTasks returns tasks of taskType. A nil status lists finished tasks
// followed by unfinished ones.
func (c *Client) ListTasks(ctx context.Context, taskType TaskType, status *TaskStatus) (TaskList, error) {
	if status != nil {
		return c.fetchTasks(ctx, taskType, *status)
	}
	done, err := c.fetchTasks(ctx, taskType, TaskStatusDone)
	if err != nil {
		return nil, err
	}
	undone, err := c.fetchTasks(ctx, taskType, TaskStatusUndone)
	if err != nil {
		return nil, err
	}
	return done.Concat(undone), nil
}

// CancelTask cancels task in its queue.
func (c *Client) CancelTask(ctx context.Context, task Task) error {
	if task.ID == "" {
		return fmt.Errorf("alist cancel: task id required")
	}
	if task.Type == "" {
		task.Type = TaskTypeDownload
	}
	return c.call(ctx, request{
		method:   http.MethodPost,
		endpoint: fmt.Sprintf("api/task/%s/cancel", task.Type),
		query:    url.Values{"tid": []string{task.ID}},
	}, nil)
}
