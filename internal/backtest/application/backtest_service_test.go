package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/copytrading/internal/backtest/domain"
	"github.com/wyfcoding/copytrading/pkg/metrics"
)

type fakeBacktestRepo struct {
	mu      sync.Mutex
	tasks   map[string]*domain.BacktestTask
	results map[string]*domain.BacktestResult
}

func newFakeBacktestRepo() *fakeBacktestRepo {
	return &fakeBacktestRepo{
		tasks:   make(map[string]*domain.BacktestTask),
		results: make(map[string]*domain.BacktestResult),
	}
}

func (r *fakeBacktestRepo) SaveTask(_ context.Context, task *domain.BacktestTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := *task
	r.tasks[task.TaskID] = &snapshot
	return nil
}

func (r *fakeBacktestRepo) FindTaskByID(_ context.Context, taskID string) (*domain.BacktestTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return nil, nil
	}
	snapshot := *task
	return &snapshot, nil
}

func (r *fakeBacktestRepo) ListTasksByLeader(_ context.Context, leaderID string, limit, offset int) ([]*domain.BacktestTask, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var tasks []*domain.BacktestTask
	for _, task := range r.tasks {
		if task.Config.LeaderID == leaderID {
			snapshot := *task
			tasks = append(tasks, &snapshot)
		}
	}
	return tasks, int64(len(tasks)), nil
}

func (r *fakeBacktestRepo) SaveResult(_ context.Context, taskID string, result *domain.BacktestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[taskID] = result
	return nil
}

func (r *fakeBacktestRepo) FindResultByTaskID(_ context.Context, taskID string) (*domain.BacktestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[taskID], nil
}

func (r *fakeBacktestRepo) taskStatus(taskID string) domain.TaskStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return ""
	}
	return task.Status
}

type fakeTradeRepo struct {
	trades []domain.LeaderTrade
	err    error
}

func (r *fakeTradeRepo) GetExecutions(_ context.Context, _ string, _, _ time.Time) ([]domain.LeaderTrade, error) {
	return r.trades, r.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) PublishCompleted(_ context.Context, task *domain.BacktestTask, _ *domain.BacktestResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, task.TaskID)
	return nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fakeResultCache struct {
	mu      sync.Mutex
	entries map[string]*domain.BacktestResult
}

func newFakeResultCache() *fakeResultCache {
	return &fakeResultCache{entries: make(map[string]*domain.BacktestResult)}
}

func (c *fakeResultCache) GetResult(_ context.Context, taskID string) (*domain.BacktestResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, ok := c.entries[taskID]
	return result, ok, nil
}

func (c *fakeResultCache) SetResult(_ context.Context, taskID string, result *domain.BacktestResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[taskID] = result
	return nil
}

func (c *fakeResultCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func newTestService(repo *fakeBacktestRepo, trades *fakeTradeRepo, publisher *fakePublisher, cache *fakeResultCache, maxHistorySize int) *BacktestApplicationService {
	var pub domain.CompletionPublisher
	if publisher != nil {
		pub = publisher
	}
	var rc ResultCache
	if cache != nil {
		rc = cache
	}
	return NewBacktestApplicationService(
		domain.NewSimulationEngine(),
		repo,
		trades,
		pub,
		rc,
		metrics.New("test"),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxHistorySize,
	)
}

func validCommand() RunBacktestCommand {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return RunBacktestCommand{
		LeaderID:                "leader-1",
		StartTime:               start,
		EndTime:                 start.AddDate(0, 1, 0),
		InitialCapital:          decimal.NewFromInt(10000),
		PositionSizeFraction:    decimal.RequireFromString("0.1"),
		MaxPositionSizeFraction: decimal.RequireFromString("0.5"),
	}
}

func sampleTrades() []domain.LeaderTrade {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	return []domain.LeaderTrade{
		{ExecutedAt: start, Symbol: "BTCUSDT", Side: domain.SideBuy, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(10)},
		{ExecutedAt: start.Add(time.Hour), Symbol: "BTCUSDT", Side: domain.SideSell, Quantity: decimal.NewFromInt(100), Price: decimal.NewFromInt(12)},
	}
}

func waitForTerminal(t *testing.T, repo *fakeBacktestRepo, taskID string) domain.TaskStatus {
	t.Helper()
	var status domain.TaskStatus
	require.Eventually(t, func() bool {
		status = repo.taskStatus(taskID)
		return status == domain.TaskStatusCompleted || status == domain.TaskStatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	return status
}

func TestRunBacktestCompletesAndPublishes(t *testing.T) {
	repo := newFakeBacktestRepo()
	publisher := &fakePublisher{}
	cache := newFakeResultCache()
	service := newTestService(repo, &fakeTradeRepo{trades: sampleTrades()}, publisher, cache, 0)

	taskID, err := service.RunBacktest(context.Background(), validCommand())
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	status := waitForTerminal(t, repo, taskID)
	assert.Equal(t, domain.TaskStatusCompleted, status)

	result, err := service.GetResult(context.Background(), taskID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.EquityCurve)

	assert.Equal(t, 1, publisher.published())
	assert.Equal(t, 1, cache.size())
}

func TestRunBacktestRejectsInvalidConfig(t *testing.T) {
	repo := newFakeBacktestRepo()
	service := newTestService(repo, &fakeTradeRepo{trades: sampleTrades()}, nil, nil, 0)

	cmd := validCommand()
	cmd.InitialCapital = decimal.Zero

	_, err := service.RunBacktest(context.Background(), cmd)
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Empty(t, repo.tasks)
}

func TestRunBacktestFailsOnEmptyHistory(t *testing.T) {
	repo := newFakeBacktestRepo()
	service := newTestService(repo, &fakeTradeRepo{trades: nil}, nil, nil, 0)

	taskID, err := service.RunBacktest(context.Background(), validCommand())
	require.NoError(t, err)

	status := waitForTerminal(t, repo, taskID)
	assert.Equal(t, domain.TaskStatusFailed, status)

	task, err := service.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.NotEmpty(t, task.ErrorMsg)
}

func TestRunBacktestFailsOnTradeSourceError(t *testing.T) {
	repo := newFakeBacktestRepo()
	service := newTestService(repo, &fakeTradeRepo{err: errors.New("db gone")}, nil, nil, 0)

	taskID, err := service.RunBacktest(context.Background(), validCommand())
	require.NoError(t, err)

	status := waitForTerminal(t, repo, taskID)
	assert.Equal(t, domain.TaskStatusFailed, status)
}

func TestRunBacktestFailsOnOversizedHistory(t *testing.T) {
	repo := newFakeBacktestRepo()
	service := newTestService(repo, &fakeTradeRepo{trades: sampleTrades()}, nil, nil, 1)

	taskID, err := service.RunBacktest(context.Background(), validCommand())
	require.NoError(t, err)

	status := waitForTerminal(t, repo, taskID)
	assert.Equal(t, domain.TaskStatusFailed, status)

	task, err := service.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Contains(t, task.ErrorMsg, "history too large")
}

func TestGetResultUsesCache(t *testing.T) {
	repo := newFakeBacktestRepo()
	cache := newFakeResultCache()
	service := newTestService(repo, &fakeTradeRepo{trades: sampleTrades()}, nil, cache, 0)

	cached := &domain.BacktestResult{TotalTrades: 7}
	require.NoError(t, cache.SetResult(context.Background(), "BT-1", cached))

	result, err := service.GetResult(context.Background(), "BT-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 7, result.TotalTrades)
}

func TestGetResultBackfillsCache(t *testing.T) {
	repo := newFakeBacktestRepo()
	cache := newFakeResultCache()
	service := newTestService(repo, &fakeTradeRepo{trades: sampleTrades()}, nil, cache, 0)

	stored := &domain.BacktestResult{TotalTrades: 3}
	require.NoError(t, repo.SaveResult(context.Background(), "BT-2", stored))

	result, err := service.GetResult(context.Background(), "BT-2")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 3, result.TotalTrades)
	assert.Equal(t, 1, cache.size())
}

func TestGetResultMissingReturnsNil(t *testing.T) {
	repo := newFakeBacktestRepo()
	service := newTestService(repo, &fakeTradeRepo{trades: sampleTrades()}, nil, nil, 0)

	result, err := service.GetResult(context.Background(), "BT-missing")
	require.NoError(t, err)
	assert.Nil(t, result)
}
