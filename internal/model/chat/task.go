package chat

// TaskState mirrors the backend task system's lifecycle values.
type TaskState string

const (
	TaskPending TaskState = "PENDING"
	TaskSuccess TaskState = "SUCCESS"
	TaskFailure TaskState = "FAILURE"
)

// TitleTask references an asynchronous title finalization job. It exists
// only while the finalization is outstanding; resolution clears it from
// the owning session.
type TitleTask struct {
	ID    string    `json:"taskId"`
	State TaskState `json:"state"`
}
