package domain

import "errors"

// 输入错误属于致命错误：回测在重放开始前即被拒绝，调用方拿到的要么是完整结果，要么是其中之一。
var (
	// ErrEmptyHistory 请求窗口内没有任何领航交易记录
	ErrEmptyHistory = errors.New("empty leader trade history for requested window")
	// ErrUnsortedHistory 领航交易记录未按时间升序排列
	ErrUnsortedHistory = errors.New("leader trade history is not sorted by time")
	// ErrInvalidTrade 领航交易记录字段非法（数量或价格非正）
	ErrInvalidTrade = errors.New("invalid leader trade record")
	// ErrInvalidConfig 回测配置非法
	ErrInvalidConfig = errors.New("invalid backtest config")
	// ErrEmptyEquityCurve 重放结束后资金曲线为空，说明重放从未推进
	ErrEmptyEquityCurve = errors.New("equity curve is empty after replay")
)
