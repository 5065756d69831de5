package domain

import (
	"context"
	"time"
)

// LeaderTradeRepository 交易来源适配器：按时间窗口提供带单交易员的历史成交，
// 返回序列必须按成交时间升序排列，引擎不做重排序。
type LeaderTradeRepository interface {
	GetExecutions(ctx context.Context, leaderID string, start, end time.Time) ([]LeaderTrade, error)
}

// BacktestRepository 回测任务与结果的仓储接口
type BacktestRepository interface {
	SaveTask(ctx context.Context, task *BacktestTask) error
	FindTaskByID(ctx context.Context, taskID string) (*BacktestTask, error)
	ListTasksByLeader(ctx context.Context, leaderID string, limit, offset int) ([]*BacktestTask, int64, error)
	SaveResult(ctx context.Context, taskID string, result *BacktestResult) error
	FindResultByTaskID(ctx context.Context, taskID string) (*BacktestResult, error)
}

// CompletionPublisher 回测完成事件发布接口
type CompletionPublisher interface {
	PublishCompleted(ctx context.Context, task *BacktestTask, result *BacktestResult) error
}
