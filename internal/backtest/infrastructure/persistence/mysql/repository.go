package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/copytrading/internal/backtest/domain"
)

// BacktestRepository 回测任务与结果的 MySQL 仓储实现
type BacktestRepository struct {
	db *gorm.DB
}

// NewBacktestRepository 创建回测仓储实例
func NewBacktestRepository(db *gorm.DB) *BacktestRepository {
	return &BacktestRepository{db: db}
}

// SaveTask 保存或更新回测任务，以 task_id 作为冲突键
func (r *BacktestRepository) SaveTask(ctx context.Context, task *domain.BacktestTask) error {
	model := taskToModel(task)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "error_msg", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save backtest task: %w", err)
	}
	return nil
}

// FindTaskByID 根据任务 ID 查询任务，未找到时返回 nil
func (r *BacktestRepository) FindTaskByID(ctx context.Context, taskID string) (*domain.BacktestTask, error) {
	var model BacktestTaskModel
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find backtest task: %w", err)
	}
	return taskFromModel(&model), nil
}

// ListTasksByLeader 分页查询某交易员的回测任务，按创建时间倒序
func (r *BacktestRepository) ListTasksByLeader(ctx context.Context, leaderID string, limit, offset int) ([]*domain.BacktestTask, int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&BacktestTaskModel{}).Where("leader_id = ?", leaderID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count backtest tasks: %w", err)
	}

	var models []*BacktestTaskModel
	err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&models).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list backtest tasks: %w", err)
	}

	tasks := make([]*domain.BacktestTask, 0, len(models))
	for _, m := range models {
		tasks = append(tasks, taskFromModel(m))
	}
	return tasks, total, nil
}

// SaveResult 保存回测结果
func (r *BacktestRepository) SaveResult(ctx context.Context, taskID string, result *domain.BacktestResult) error {
	model, err := resultToModel(taskID, result)
	if err != nil {
		return err
	}
	model.CreatedAt = time.Now()
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}},
			UpdateAll: true,
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save backtest result: %w", err)
	}
	return nil
}

// FindResultByTaskID 根据任务 ID 查询回测结果，未找到时返回 nil
func (r *BacktestRepository) FindResultByTaskID(ctx context.Context, taskID string) (*domain.BacktestResult, error) {
	var model BacktestResultModel
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find backtest result: %w", err)
	}
	return resultFromModel(&model)
}

// LeaderTradeRepository 带单交易员历史成交的 MySQL 仓储实现
type LeaderTradeRepository struct {
	db *gorm.DB
}

// NewLeaderTradeRepository 创建成交历史仓储实例
func NewLeaderTradeRepository(db *gorm.DB) *LeaderTradeRepository {
	return &LeaderTradeRepository{db: db}
}

// GetExecutions 查询交易员在时间窗口内的历史成交，按成交时间升序
func (r *LeaderTradeRepository) GetExecutions(ctx context.Context, leaderID string, start, end time.Time) ([]domain.LeaderTrade, error) {
	var models []*LeaderExecutionModel
	err := r.db.WithContext(ctx).
		Where("leader_id = ? AND executed_at >= ? AND executed_at <= ?", leaderID, start, end).
		Order("executed_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query leader executions: %w", err)
	}

	trades := make([]domain.LeaderTrade, 0, len(models))
	for _, m := range models {
		trades = append(trades, domain.LeaderTrade{
			ExecutedAt: m.ExecutedAt,
			Symbol:     m.Symbol,
			Side:       domain.TradeSide(m.Side),
			Quantity:   m.Quantity,
			Price:      m.Price,
		})
	}
	return trades, nil
}
