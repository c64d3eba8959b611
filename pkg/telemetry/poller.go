package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/zoeyai/riftbot/internal/logger"
)

// 默认参数
const (
	DefaultURL      = "https://127.0.0.1:2999/liveclientdata/allgamedata"
	DefaultInterval = 200 * time.Millisecond
	DefaultTimeout  = time.Second
)

// Poller 周期性拉取对局数据并写入 Store
type Poller struct {
	url      string
	interval time.Duration
	store    *Store
	client   *http.Client

	requests atomic.Int64
	failures atomic.Int64
}

// NewPoller 创建轮询器，零值参数使用默认值
func NewPoller(store *Store, url string, interval, timeout time.Duration) *Poller {
	if url == "" {
		url = DefaultURL
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Poller{
		url:      url,
		interval: interval,
		store:    store,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				// 本地回环的自签名证书
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// Store 共享容器
func (p *Poller) Store() *Store {
	return p.store
}

// Requests 已发出的请求数
func (p *Poller) Requests() int64 {
	return p.requests.Load()
}

// Failures 失败次数
func (p *Poller) Failures() int64 {
	return p.failures.Load()
}

// Run 轮询直到 ctx 取消；只在每轮开始时检查取消，不会中断进行中的请求
func (p *Poller) Run(ctx context.Context) {
	logger.Info("对局数据轮询开始: %s (间隔 %s)", p.url, p.interval)
	defer func() {
		logger.Info("对局数据轮询已停止 (请求 %d 次, 失败 %d 次)", p.Requests(), p.Failures())
	}()

	failing := false
	for {
		if ctx.Err() != nil {
			return
		}

		snap, err := p.fetch()
		switch {
		case err != nil && !failing:
			failing = true
			p.failures.Add(1)
			logger.Warn("获取对局数据失败，将持续重试: %v", err)
		case err != nil:
			p.failures.Add(1)
			logger.Debug("获取对局数据失败: %v", err)
		case failing:
			failing = false
			logger.Info("对局数据已恢复")
		}
		// 失败时写入 nil，避免保留过期数据
		p.store.Store(snap)

		time.Sleep(p.interval)
	}
}

// fetch 请求使用独立的超时，不受 ctx 取消影响
func (p *Poller) fetch() (*Snapshot, error) {
	p.requests.Add(1)

	resp, err := p.client.Get(p.url)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("状态码异常: %d", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("解析对局数据失败: %w", err)
	}
	return &snap, nil
}
