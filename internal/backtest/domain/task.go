package domain

import "time"

// TaskStatus 回测任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

// BacktestTask 表示一次回测任务的生命周期记录
type BacktestTask struct {
	TaskID    string         `json:"task_id"`
	Config    BacktestConfig `json:"config"`
	Status    TaskStatus     `json:"status"`
	ErrorMsg  string         `json:"error_msg,omitempty"` // 失败原因，仅 FAILED 状态存在
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MarkRunning 标记任务进入重放
func (t *BacktestTask) MarkRunning() {
	t.Status = TaskStatusRunning
	t.UpdatedAt = time.Now()
}

// MarkCompleted 标记任务完成
func (t *BacktestTask) MarkCompleted() {
	t.Status = TaskStatusCompleted
	t.UpdatedAt = time.Now()
}

// MarkFailed 标记任务失败并记录原因
func (t *BacktestTask) MarkFailed(reason string) {
	t.Status = TaskStatusFailed
	t.ErrorMsg = reason
	t.UpdatedAt = time.Now()
}
