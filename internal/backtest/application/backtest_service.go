// Package application 编排回测任务：接收命令、持久化任务状态、异步驱动领域引擎重放，
// 并在完成后落库结果、刷新缓存、发布完成事件。
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/copytrading/internal/backtest/domain"
	"github.com/wyfcoding/copytrading/pkg/metrics"
)

// RunBacktestCommand 运行回测命令
type RunBacktestCommand struct {
	LeaderID                string
	StartTime               time.Time
	EndTime                 time.Time
	InitialCapital          decimal.Decimal
	PositionSizeFraction    decimal.Decimal
	MaxPositionSizeFraction decimal.Decimal
	StopLossFraction        decimal.Decimal
	TakeProfitFraction      decimal.Decimal
	SlippageFraction        decimal.Decimal
	CommissionFraction      decimal.Decimal
}

func (c RunBacktestCommand) toConfig() domain.BacktestConfig {
	return domain.BacktestConfig{
		LeaderID:                c.LeaderID,
		StartTime:               c.StartTime,
		EndTime:                 c.EndTime,
		InitialCapital:          c.InitialCapital,
		PositionSizeFraction:    c.PositionSizeFraction,
		MaxPositionSizeFraction: c.MaxPositionSizeFraction,
		StopLossFraction:        c.StopLossFraction,
		TakeProfitFraction:      c.TakeProfitFraction,
		SlippageFraction:        c.SlippageFraction,
		CommissionFraction:      c.CommissionFraction,
	}
}

// ResultCache 回测结果缓存接口
type ResultCache interface {
	GetResult(ctx context.Context, taskID string) (*domain.BacktestResult, bool, error)
	SetResult(ctx context.Context, taskID string, result *domain.BacktestResult) error
}

// BacktestApplicationService 回测应用服务
type BacktestApplicationService struct {
	engine         *domain.SimulationEngine
	repo           domain.BacktestRepository
	trades         domain.LeaderTradeRepository
	publisher      domain.CompletionPublisher
	cache          ResultCache
	metrics        *metrics.Metrics
	logger         *slog.Logger
	maxHistorySize int
}

// NewBacktestApplicationService 创建回测应用服务。
// publisher 与 cache 允许为 nil，对应能力缺省关闭。
func NewBacktestApplicationService(
	engine *domain.SimulationEngine,
	repo domain.BacktestRepository,
	trades domain.LeaderTradeRepository,
	publisher domain.CompletionPublisher,
	cache ResultCache,
	m *metrics.Metrics,
	logger *slog.Logger,
	maxHistorySize int,
) *BacktestApplicationService {
	return &BacktestApplicationService{
		engine:         engine,
		repo:           repo,
		trades:         trades,
		publisher:      publisher,
		cache:          cache,
		metrics:        m,
		logger:         logger,
		maxHistorySize: maxHistorySize,
	}
}

// RunBacktest 接收运行命令：配置先行校验，任务落库后异步重放，立即返回任务号。
// 配置非法时任务不会创建。
func (s *BacktestApplicationService) RunBacktest(ctx context.Context, cmd RunBacktestCommand) (string, error) {
	cfg := cmd.toConfig()
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	taskID := fmt.Sprintf("BT-%d", time.Now().UnixNano())
	task := &domain.BacktestTask{
		TaskID:    taskID,
		Config:    cfg,
		Status:    domain.TaskStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.repo.SaveTask(ctx, task); err != nil {
		return "", fmt.Errorf("failed to save backtest task: %w", err)
	}

	s.logger.Info("backtest task accepted", "task_id", taskID, "leader_id", cfg.LeaderID)

	// 异步运行回测
	go s.execute(context.Background(), task)

	return taskID, nil
}

// execute 驱动一次完整回测并维护任务状态机
func (s *BacktestApplicationService) execute(ctx context.Context, task *domain.BacktestTask) {
	s.metrics.BacktestsTotal.Inc()
	s.metrics.BacktestsRunning.Inc()
	defer s.metrics.BacktestsRunning.Dec()

	start := time.Now()

	task.MarkRunning()
	if err := s.repo.SaveTask(ctx, task); err != nil {
		s.logger.Error("failed to mark task running", "task_id", task.TaskID, "error", err)
	}

	cfg := task.Config
	trades, err := s.trades.GetExecutions(ctx, cfg.LeaderID, cfg.StartTime, cfg.EndTime)
	if err != nil {
		s.fail(ctx, task, fmt.Errorf("failed to load leader executions: %w", err))
		return
	}
	if s.maxHistorySize > 0 && len(trades) > s.maxHistorySize {
		s.fail(ctx, task, fmt.Errorf("leader history too large: %d executions exceed limit %d", len(trades), s.maxHistorySize))
		return
	}

	result, err := s.engine.Run(ctx, cfg, trades)
	if err != nil {
		s.fail(ctx, task, err)
		return
	}

	if err := s.repo.SaveResult(ctx, task.TaskID, result); err != nil {
		s.fail(ctx, task, fmt.Errorf("failed to save backtest result: %w", err))
		return
	}

	task.MarkCompleted()
	if err := s.repo.SaveTask(ctx, task); err != nil {
		s.logger.Error("failed to mark task completed", "task_id", task.TaskID, "error", err)
	}

	s.metrics.BacktestDuration.Observe(time.Since(start).Seconds())
	s.metrics.SimulatedTrades.Add(float64(len(result.TradeLedger)))
	s.metrics.FailedTrades.Add(float64(result.FailedTrades))
	s.metrics.SkippedTradeEvents.Add(float64(result.SkippedEvents))

	// 缓存与事件均为尽力而为，不影响任务状态
	if s.cache != nil {
		if err := s.cache.SetResult(ctx, task.TaskID, result); err != nil {
			s.logger.Warn("failed to cache backtest result", "task_id", task.TaskID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishCompleted(ctx, task, result); err != nil {
			s.logger.Warn("failed to publish completion event", "task_id", task.TaskID, "error", err)
		}
	}

	s.logger.Info("backtest completed",
		"task_id", task.TaskID,
		"leader_id", cfg.LeaderID,
		"final_capital", result.FinalCapital,
		"total_trades", result.TotalTrades,
		"duration", time.Since(start),
	)
}

func (s *BacktestApplicationService) fail(ctx context.Context, task *domain.BacktestTask, cause error) {
	s.metrics.BacktestsFailed.Inc()
	s.logger.Error("backtest failed", "task_id", task.TaskID, "error", cause)

	task.MarkFailed(cause.Error())
	if err := s.repo.SaveTask(ctx, task); err != nil {
		s.logger.Error("failed to mark task failed", "task_id", task.TaskID, "error", err)
	}
}

// GetTask 查询任务状态
func (s *BacktestApplicationService) GetTask(ctx context.Context, taskID string) (*domain.BacktestTask, error) {
	return s.repo.FindTaskByID(ctx, taskID)
}

// GetResult 查询回测结果，优先命中缓存，未命中时回源数据库并回填
func (s *BacktestApplicationService) GetResult(ctx context.Context, taskID string) (*domain.BacktestResult, error) {
	if s.cache != nil {
		if result, ok, err := s.cache.GetResult(ctx, taskID); err == nil && ok {
			return result, nil
		} else if err != nil {
			s.logger.Warn("result cache lookup failed", "task_id", taskID, "error", err)
		}
	}

	result, err := s.repo.FindResultByTaskID(ctx, taskID)
	if err != nil || result == nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetResult(ctx, taskID, result); err != nil {
			s.logger.Warn("failed to backfill result cache", "task_id", taskID, "error", err)
		}
	}
	return result, nil
}

// ListTasks 按带单交易员分页查询任务
func (s *BacktestApplicationService) ListTasks(ctx context.Context, leaderID string, limit, offset int) ([]*domain.BacktestTask, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTasksByLeader(ctx, leaderID, limit, offset)
}
