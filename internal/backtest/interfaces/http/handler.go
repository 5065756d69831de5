// Package http 提供回测服务的 HTTP 接口。
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/copytrading/internal/backtest/application"
	"github.com/wyfcoding/copytrading/internal/backtest/domain"
)

// BacktestHandler 回测 HTTP 处理器
type BacktestHandler struct {
	app    *application.BacktestApplicationService
	logger *slog.Logger
}

// NewBacktestHandler 创建回测 HTTP 处理器
func NewBacktestHandler(app *application.BacktestApplicationService, logger *slog.Logger) *BacktestHandler {
	return &BacktestHandler{app: app, logger: logger}
}

// RegisterRoutes 注册回测相关路由
func (h *BacktestHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/backtests")
	{
		api.POST("", h.RunBacktest)
		api.GET("", h.ListBacktests)
		api.GET("/:task_id", h.GetBacktest)
		api.GET("/:task_id/report", h.GetBacktestReport)
	}
}

// RunBacktestRequest 运行回测请求
type RunBacktestRequest struct {
	LeaderID                string `json:"leader_id" binding:"required"`
	StartTime               string `json:"start_time" binding:"required"` // RFC3339
	EndTime                 string `json:"end_time" binding:"required"`   // RFC3339
	InitialCapital          string `json:"initial_capital" binding:"required"`
	PositionSizeFraction    string `json:"position_size_fraction" binding:"required"`
	MaxPositionSizeFraction string `json:"max_position_size_fraction"`
	StopLossFraction        string `json:"stop_loss_fraction"`
	TakeProfitFraction      string `json:"take_profit_fraction"`
	SlippageFraction        string `json:"slippage_fraction"`
	CommissionFraction      string `json:"commission_fraction"`
}

// RunBacktest 创建并异步运行回测任务
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var req RunBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd, err := h.toCommand(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	taskID, err := h.app.RunBacktest(c.Request.Context(), cmd)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidConfig) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("failed to accept backtest task", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create backtest task"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": taskID,
		"status":  string(domain.TaskStatusPending),
	})
}

func (h *BacktestHandler) toCommand(req RunBacktestRequest) (application.RunBacktestCommand, error) {
	var cmd application.RunBacktestCommand
	var err error

	cmd.LeaderID = req.LeaderID

	if cmd.StartTime, err = time.Parse(time.RFC3339, req.StartTime); err != nil {
		return cmd, errors.New("invalid start_time, expect RFC3339")
	}
	if cmd.EndTime, err = time.Parse(time.RFC3339, req.EndTime); err != nil {
		return cmd, errors.New("invalid end_time, expect RFC3339")
	}

	fields := []struct {
		name     string
		raw      string
		dst      *decimal.Decimal
		required bool
	}{
		{"initial_capital", req.InitialCapital, &cmd.InitialCapital, true},
		{"position_size_fraction", req.PositionSizeFraction, &cmd.PositionSizeFraction, true},
		{"max_position_size_fraction", req.MaxPositionSizeFraction, &cmd.MaxPositionSizeFraction, false},
		{"stop_loss_fraction", req.StopLossFraction, &cmd.StopLossFraction, false},
		{"take_profit_fraction", req.TakeProfitFraction, &cmd.TakeProfitFraction, false},
		{"slippage_fraction", req.SlippageFraction, &cmd.SlippageFraction, false},
		{"commission_fraction", req.CommissionFraction, &cmd.CommissionFraction, false},
	}
	for _, f := range fields {
		if f.raw == "" {
			if f.required {
				return cmd, errors.New("missing " + f.name)
			}
			continue
		}
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return cmd, errors.New("invalid " + f.name)
		}
	}
	return cmd, nil
}

// GetBacktest 查询回测任务状态
func (h *BacktestHandler) GetBacktest(c *gin.Context) {
	taskID := c.Param("task_id")

	task, err := h.app.GetTask(c.Request.Context(), taskID)
	if err != nil {
		h.logger.Error("failed to query backtest task", "task_id", taskID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query backtest task"})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "backtest task not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id":    task.TaskID,
		"leader_id":  task.Config.LeaderID,
		"status":     string(task.Status),
		"error_msg":  task.ErrorMsg,
		"created_at": task.CreatedAt,
		"updated_at": task.UpdatedAt,
	})
}

// GetBacktestReport 查询回测报告，任务未完成时返回 409
func (h *BacktestHandler) GetBacktestReport(c *gin.Context) {
	taskID := c.Param("task_id")

	task, err := h.app.GetTask(c.Request.Context(), taskID)
	if err != nil {
		h.logger.Error("failed to query backtest task", "task_id", taskID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query backtest task"})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "backtest task not found"})
		return
	}
	if task.Status != domain.TaskStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "backtest not completed",
			"status": string(task.Status),
		})
		return
	}

	result, err := h.app.GetResult(c.Request.Context(), taskID)
	if err != nil {
		h.logger.Error("failed to query backtest result", "task_id", taskID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query backtest result"})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "backtest result not found"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListBacktests 分页查询某交易员的回测任务
func (h *BacktestHandler) ListBacktests(c *gin.Context) {
	leaderID := c.Query("leader_id")
	if leaderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing leader_id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	tasks, total, err := h.app.ListTasks(c.Request.Context(), leaderID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list backtest tasks", "leader_id", leaderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list backtest tasks"})
		return
	}

	items := make([]gin.H, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, gin.H{
			"task_id":    task.TaskID,
			"leader_id":  task.Config.LeaderID,
			"status":     string(task.Status),
			"error_msg":  task.ErrorMsg,
			"created_at": task.CreatedAt,
			"updated_at": task.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"total": total,
		"items": items,
	})
}
