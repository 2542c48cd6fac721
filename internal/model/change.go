package model

type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// ChangeEvent is emitted for every row-level change on the tasks table.
type ChangeEvent struct {
	Op     ChangeOp `json:"op"`
	TaskID string   `json:"task_id"`
	UserID string   `json:"user_id"`
}
