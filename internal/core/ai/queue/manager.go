package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"recipe-resolver/internal/infrastructure/config"
	"recipe-resolver/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrClosed 隊列已關閉
var ErrClosed = errors.New("queue manager is closed")

// Job 交給 worker 執行的工作
type Job func(ctx context.Context) (string, error)

// request 隊列請求
type request struct {
	ctx    context.Context
	job    Job
	result chan result
}

// result 處理結果
type result struct {
	content string
	err     error
}

// Status 隊列狀態
type Status struct {
	QueueLength    int `json:"queue_length"`
	ProcessedCount int `json:"processed_count"`
	MaxQueueSize   int `json:"max_queue_size"`
	Workers        int `json:"workers"`
}

// Manager 固定數量 worker 消化有上限的隊列
type Manager struct {
	queue     chan *request
	workers   int
	maxSize   int
	processed atomic.Int64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewManager 創建並啟動隊列管理器
func NewManager(cfg config.QueueConfig) *Manager {
	workers := max(cfg.Workers, 1)
	maxSize := max(cfg.MaxSize, 0)

	m := &Manager{
		queue:   make(chan *request, maxSize),
		workers: workers,
		maxSize: maxSize,
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.work()
	}

	common.LogInfo("隊列管理器已啟動",
		zap.Int("workers", workers),
		zap.Int("max_queue_size", maxSize),
	)
	return m
}

// Submit 將工作加入隊列並等待結果。隊列滿時立即回傳 common.ErrQueueFull
func (m *Manager) Submit(ctx context.Context, job Job) (string, error) {
	req := &request{ctx: ctx, job: job, result: make(chan result, 1)}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return "", ErrClosed
	}
	select {
	case m.queue <- req:
		m.mu.RUnlock()
	default:
		m.mu.RUnlock()
		common.LogWarn("隊列已滿",
			zap.Int("queue_length", len(m.queue)),
			zap.Int("max_queue_size", m.maxSize),
		)
		return "", common.ErrQueueFull
	}

	select {
	case res := <-req.result:
		return res.content, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) work() {
	defer m.wg.Done()
	for req := range m.queue {
		if err := req.ctx.Err(); err != nil {
			req.result <- result{err: err}
			continue
		}
		content, err := m.run(req)
		m.processed.Add(1)
		req.result <- result{content: content, err: err}
	}
}

// run 工作 panic 時轉為錯誤，避免 worker 消失
func (m *Manager) run(req *request) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			common.LogError("隊列工作發生 panic", zap.Any("panic", r))
			err = common.ErrInternalError
		}
	}()
	return req.job(req.ctx)
}

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		QueueLength:    len(m.queue),
		ProcessedCount: int(m.processed.Load()),
		MaxQueueSize:   m.maxSize,
		Workers:        m.workers,
	}
}

// Close 停止接收新工作，等待已排隊的工作完成
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	m.wg.Wait()
	common.LogInfo("隊列管理器已關閉", zap.Int64("processed", m.processed.Load()))
}
