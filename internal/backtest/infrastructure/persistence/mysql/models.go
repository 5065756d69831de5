// Package mysql 实现回测服务的 MySQL 仓储层，基于 GORM。
package mysql

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/copytrading/internal/backtest/domain"
)

// BacktestTaskModel 回测任务表
type BacktestTaskModel struct {
	ID        uint      `gorm:"primaryKey"`
	TaskID    string    `gorm:"column:task_id;type:varchar(64);uniqueIndex"`
	LeaderID  string    `gorm:"column:leader_id;type:varchar(64);index"`
	StartTime time.Time `gorm:"column:start_time"`
	EndTime   time.Time `gorm:"column:end_time"`

	InitialCapital          decimal.Decimal `gorm:"column:initial_capital;type:decimal(20,8)"`
	PositionSizeFraction    decimal.Decimal `gorm:"column:position_size_fraction;type:decimal(10,6)"`
	MaxPositionSizeFraction decimal.Decimal `gorm:"column:max_position_size_fraction;type:decimal(10,6)"`
	StopLossFraction        decimal.Decimal `gorm:"column:stop_loss_fraction;type:decimal(10,6)"`
	TakeProfitFraction      decimal.Decimal `gorm:"column:take_profit_fraction;type:decimal(10,6)"`
	SlippageFraction        decimal.Decimal `gorm:"column:slippage_fraction;type:decimal(10,6)"`
	CommissionFraction      decimal.Decimal `gorm:"column:commission_fraction;type:decimal(10,6)"`

	Status    string    `gorm:"column:status;type:varchar(20);index"`
	ErrorMsg  string    `gorm:"column:error_msg;type:varchar(1024)"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (BacktestTaskModel) TableName() string {
	return "backtest_tasks"
}

// BacktestResultModel 回测结果表，资金曲线与成交流水以 JSON 存储
type BacktestResultModel struct {
	ID     uint   `gorm:"primaryKey"`
	TaskID string `gorm:"column:task_id;type:varchar(64);uniqueIndex"`

	FinalCapital       decimal.Decimal `gorm:"column:final_capital;type:decimal(20,8)"`
	TotalReturn        decimal.Decimal `gorm:"column:total_return;type:decimal(20,8)"`
	TotalReturnPercent float64         `gorm:"column:total_return_percent"`
	MaxDrawdown        float64         `gorm:"column:max_drawdown"`
	SharpeRatio        float64         `gorm:"column:sharpe_ratio"`
	WinRate            float64         `gorm:"column:win_rate"`

	TotalTrades      int `gorm:"column:total_trades"`
	SuccessfulTrades int `gorm:"column:successful_trades"`
	FailedTrades     int `gorm:"column:failed_trades"`
	SkippedEvents    int `gorm:"column:skipped_events"`

	ConfigJSON      string `gorm:"column:config_json;type:json"`
	EquityCurveJSON string `gorm:"column:equity_curve_json;type:json"`
	TradeLedgerJSON string `gorm:"column:trade_ledger_json;type:json"`

	CreatedAt time.Time `gorm:"column:created_at"`
}

func (BacktestResultModel) TableName() string {
	return "backtest_results"
}

// LeaderExecutionModel 带单交易员历史成交表（交易来源）
type LeaderExecutionModel struct {
	ID         uint            `gorm:"primaryKey"`
	LeaderID   string          `gorm:"column:leader_id;type:varchar(64);index:idx_leader_time"`
	Symbol     string          `gorm:"column:symbol;type:varchar(32)"`
	Side       string          `gorm:"column:side;type:varchar(8)"`
	Quantity   decimal.Decimal `gorm:"column:quantity;type:decimal(20,8)"`
	Price      decimal.Decimal `gorm:"column:price;type:decimal(20,8)"`
	ExecutedAt time.Time       `gorm:"column:executed_at;index:idx_leader_time"`
}

func (LeaderExecutionModel) TableName() string {
	return "leader_executions"
}

func taskToModel(task *domain.BacktestTask) *BacktestTaskModel {
	return &BacktestTaskModel{
		TaskID:                  task.TaskID,
		LeaderID:                task.Config.LeaderID,
		StartTime:               task.Config.StartTime,
		EndTime:                 task.Config.EndTime,
		InitialCapital:          task.Config.InitialCapital,
		PositionSizeFraction:    task.Config.PositionSizeFraction,
		MaxPositionSizeFraction: task.Config.MaxPositionSizeFraction,
		StopLossFraction:        task.Config.StopLossFraction,
		TakeProfitFraction:      task.Config.TakeProfitFraction,
		SlippageFraction:        task.Config.SlippageFraction,
		CommissionFraction:      task.Config.CommissionFraction,
		Status:                  string(task.Status),
		ErrorMsg:                task.ErrorMsg,
		CreatedAt:               task.CreatedAt,
		UpdatedAt:               task.UpdatedAt,
	}
}

func taskFromModel(m *BacktestTaskModel) *domain.BacktestTask {
	return &domain.BacktestTask{
		TaskID: m.TaskID,
		Config: domain.BacktestConfig{
			LeaderID:                m.LeaderID,
			StartTime:               m.StartTime,
			EndTime:                 m.EndTime,
			InitialCapital:          m.InitialCapital,
			PositionSizeFraction:    m.PositionSizeFraction,
			MaxPositionSizeFraction: m.MaxPositionSizeFraction,
			StopLossFraction:        m.StopLossFraction,
			TakeProfitFraction:      m.TakeProfitFraction,
			SlippageFraction:        m.SlippageFraction,
			CommissionFraction:      m.CommissionFraction,
		},
		Status:    domain.TaskStatus(m.Status),
		ErrorMsg:  m.ErrorMsg,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func resultToModel(taskID string, result *domain.BacktestResult) (*BacktestResultModel, error) {
	configJSON, err := json.Marshal(result.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	curveJSON, err := json.Marshal(result.EquityCurve)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal equity curve: %w", err)
	}
	ledgerJSON, err := json.Marshal(result.TradeLedger)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trade ledger: %w", err)
	}

	return &BacktestResultModel{
		TaskID:             taskID,
		FinalCapital:       result.FinalCapital,
		TotalReturn:        result.TotalReturn,
		TotalReturnPercent: result.TotalReturnPercent,
		MaxDrawdown:        result.MaxDrawdown,
		SharpeRatio:        result.SharpeRatio,
		WinRate:            result.WinRate,
		TotalTrades:        result.TotalTrades,
		SuccessfulTrades:   result.SuccessfulTrades,
		FailedTrades:       result.FailedTrades,
		SkippedEvents:      result.SkippedEvents,
		ConfigJSON:         string(configJSON),
		EquityCurveJSON:    string(curveJSON),
		TradeLedgerJSON:    string(ledgerJSON),
	}, nil
}

func resultFromModel(m *BacktestResultModel) (*domain.BacktestResult, error) {
	result := &domain.BacktestResult{
		FinalCapital:       m.FinalCapital,
		TotalReturn:        m.TotalReturn,
		TotalReturnPercent: m.TotalReturnPercent,
		MaxDrawdown:        m.MaxDrawdown,
		SharpeRatio:        m.SharpeRatio,
		WinRate:            m.WinRate,
		TotalTrades:        m.TotalTrades,
		SuccessfulTrades:   m.SuccessfulTrades,
		FailedTrades:       m.FailedTrades,
		SkippedEvents:      m.SkippedEvents,
	}

	if err := json.Unmarshal([]byte(m.ConfigJSON), &result.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := json.Unmarshal([]byte(m.EquityCurveJSON), &result.EquityCurve); err != nil {
		return nil, fmt.Errorf("failed to unmarshal equity curve: %w", err)
	}
	if err := json.Unmarshal([]byte(m.TradeLedgerJSON), &result.TradeLedger); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trade ledger: %w", err)
	}
	return result, nil
}
