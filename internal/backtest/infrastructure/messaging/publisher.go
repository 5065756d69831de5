// Package messaging 实现回测完成事件的 Kafka 发布。
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/copytrading/internal/backtest/domain"
	"github.com/wyfcoding/copytrading/pkg/mq"
)

// BacktestCompletedEvent 回测完成事件载荷
type BacktestCompletedEvent struct {
	TaskID             string    `json:"task_id"`
	LeaderID           string    `json:"leader_id"`
	Status             string    `json:"status"`
	FinalCapital       string    `json:"final_capital"`
	TotalReturnPercent float64   `json:"total_return_percent"`
	MaxDrawdown        float64   `json:"max_drawdown"`
	SharpeRatio        float64   `json:"sharpe_ratio"`
	WinRate            float64   `json:"win_rate"`
	TotalTrades        int       `json:"total_trades"`
	CompletedAt        time.Time `json:"completed_at"`
}

// KafkaCompletionPublisher 基于 Kafka 的完成事件发布器
type KafkaCompletionPublisher struct {
	producer *mq.KafkaProducer
	topic    string
}

// NewKafkaCompletionPublisher 创建完成事件发布器
func NewKafkaCompletionPublisher(producer *mq.KafkaProducer, topic string) *KafkaCompletionPublisher {
	return &KafkaCompletionPublisher{producer: producer, topic: topic}
}

// PublishCompleted 发布回测完成事件，以任务 ID 作为分区键
func (p *KafkaCompletionPublisher) PublishCompleted(ctx context.Context, task *domain.BacktestTask, result *domain.BacktestResult) error {
	event := BacktestCompletedEvent{
		TaskID:             task.TaskID,
		LeaderID:           task.Config.LeaderID,
		Status:             string(task.Status),
		FinalCapital:       result.FinalCapital.String(),
		TotalReturnPercent: result.TotalReturnPercent,
		MaxDrawdown:        result.MaxDrawdown,
		SharpeRatio:        result.SharpeRatio,
		WinRate:            result.WinRate,
		TotalTrades:        result.TotalTrades,
		CompletedAt:        task.UpdatedAt,
	}
	if err := p.producer.SendMessage(ctx, p.topic, task.TaskID, event); err != nil {
		return fmt.Errorf("failed to publish backtest completed event: %w", err)
	}
	return nil
}
