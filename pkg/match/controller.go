// Package match 对局生命周期控制：根据客户端推送的阶段事件创建房间、匹配、接受对局、选人，
// 并在对局开始/结束时启动和停止局内循环。
package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/zoeyai/riftbot/internal/logger"
	"github.com/zoeyai/riftbot/pkg/lcu"
)

// ControlClient 控制器使用的客户端操作
type ControlClient interface {
	GameflowPhase(ctx context.Context) (lcu.Phase, error)
	CurrentSummoner(ctx context.Context) (*lcu.Summoner, error)
	OwnedChampions(ctx context.Context, summonerID int64) (map[string]int, error)
	ChampSelectSession(ctx context.Context) (*lcu.ChampSelectSession, error)
	CreateLobby(ctx context.Context, queueID int) error
	StartMatchmaking(ctx context.Context) error
	AcceptReadyCheck(ctx context.Context) error
	PlayAgain(ctx context.Context) error
	CompleteAction(ctx context.Context, actionID int64, championID int) error
}

// ChampionResolver 按名称查英雄 ID (Data Dragon)
type ChampionResolver interface {
	Lookup(ctx context.Context, name string) (int, bool)
}

// Loop 局内后台循环，ctx 取消后返回
type Loop func(ctx context.Context) error

// LoopFactory 每局新建一组局内循环
type LoopFactory func() []Loop

// ErrNoChampions 没有可选英雄
var ErrNoChampions = errors.New("没有可用的英雄")

// Status 控制器状态快照
type Status struct {
	SessionID   string    `json:"session_id"`
	QueueID     int       `json:"queue_id"`
	Phase       lcu.Phase `json:"phase"`
	LoopRunning bool      `json:"loop_running"`
	Matches     int       `json:"matches"`
	StartedAt   time.Time `json:"started_at"`
}

// Option 控制器选项
type Option func(*Controller)

// WithPreferredChampion 偏好英雄名称
func WithPreferredChampion(name string) Option {
	return func(c *Controller) { c.preferred = strings.TrimSpace(name) }
}

// WithChampionResolver 已拥有列表中找不到偏好英雄时的名称解析
func WithChampionResolver(r ChampionResolver) Option {
	return func(c *Controller) { c.resolver = r }
}

// WithRand 指定随机源
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rand = r }
}

// Controller 单次会话的对局生命周期状态机
//
// 所有事件在 Run 的 goroutine 中按到达顺序逐个处理。
type Controller struct {
	client    ControlClient
	resolver  ChampionResolver
	loops     LoopFactory
	queueID   int
	preferred string
	rand      *rand.Rand

	sessionID string
	startedAt time.Time

	// 以下字段仅在 Run 的 goroutine 中读写
	sessionHash   uint64
	readyAccepted bool
	picked        bool
	banned        bool
	summonerID    int64
	owned         map[string]int

	loopCancel context.CancelFunc
	loopWG     sync.WaitGroup

	mu          sync.RWMutex
	lastPhase   lcu.Phase
	loopRunning bool
	matches     int
}

// NewController 创建控制器
func NewController(client ControlClient, loops LoopFactory, queueID int, opts ...Option) *Controller {
	c := &Controller{
		client:    client,
		loops:     loops,
		queueID:   queueID,
		rand:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		sessionID: uuid.NewString(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID 会话 ID
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Status 当前状态
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		SessionID:   c.sessionID,
		QueueID:     c.queueID,
		Phase:       c.lastPhase,
		LoopRunning: c.loopRunning,
		Matches:     c.matches,
		StartedAt:   c.startedAt,
	}
}

// Run 处理事件直到 ctx 取消、事件通道关闭或收到 ClientClosedEvent；返回前停止局内循环
func (c *Controller) Run(ctx context.Context, events <-chan Event) error {
	logger.Info("会话开始: %s (队列 %d)", c.sessionID, c.queueID)
	defer c.stopLoops()

	c.loadChampions(ctx)
	c.syncPhase(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("会话结束: %s", c.sessionID)
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				logger.Info("事件通道已关闭: %s", c.sessionID)
				return nil
			}
			if closed, isClosed := ev.(ClientClosedEvent); isClosed {
				logger.Warn("客户端已关闭")
				return closed.Err
			}
			c.Handle(ctx, ev)
		}
	}
}

// Handle 处理单个事件
func (c *Controller) Handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case PhaseEvent:
		c.handlePhase(ctx, e.Phase)
	case ChampSelectEvent:
		c.handleChampSelect(ctx, e.Session)
	case ReadyCheckEvent:
		c.handleReadyCheck(ctx, e.ReadyCheck)
	case ClientClosedEvent:
		c.stopLoops()
	case ReconnectedEvent:
		logger.Info("事件通道已重连，重新读取当前阶段")
		c.syncPhase(ctx)
	}
}

// syncPhase 主动读取当前阶段，用于启动时和重连后补上没有收到的推送
//
// 阶段未变且仍在选人时重新读取选人会话，会话内容未变时由哈希去重。
func (c *Controller) syncPhase(ctx context.Context) {
	phase, err := c.client.GameflowPhase(ctx)
	if err != nil {
		logger.Warn("读取当前阶段失败: %v", err)
		return
	}
	if phase == "" {
		return
	}

	c.mu.Lock()
	unchanged := phase == c.lastPhase
	c.mu.Unlock()

	if !unchanged {
		c.handlePhase(ctx, phase)
		return
	}
	if phase == lcu.PhaseChampSelect {
		session, err := c.client.ChampSelectSession(ctx)
		if err != nil {
			logger.Warn("读取选人会话失败: %v", err)
			return
		}
		c.handleChampSelect(ctx, session)
	}
}

func (c *Controller) handlePhase(ctx context.Context, phase lcu.Phase) {
	c.mu.Lock()
	prev := c.lastPhase
	if phase == prev {
		c.mu.Unlock()
		logger.Debug("重复阶段: %s", phase)
		return
	}
	c.lastPhase = phase
	c.mu.Unlock()

	logger.Info("阶段切换: %s -> %s", displayPhase(prev), phase)

	if phase != lcu.PhaseReadyCheck {
		c.readyAccepted = false
	}
	if phase != lcu.PhaseChampSelect {
		c.sessionHash = 0
		c.picked = false
		c.banned = false
	}

	switch phase {
	case lcu.PhaseNone:
		c.call("创建房间", func() error { return c.client.CreateLobby(ctx, c.queueID) })
	case lcu.PhaseLobby:
		c.call("开始匹配", func() error { return c.client.StartMatchmaking(ctx) })
	case lcu.PhaseReadyCheck:
		c.acceptReadyCheck(ctx)
	case lcu.PhaseChampSelect:
		session, err := c.client.ChampSelectSession(ctx)
		if err != nil {
			logger.Warn("读取选人会话失败: %v", err)
			return
		}
		c.handleChampSelect(ctx, session)
	case lcu.PhaseGameStart, lcu.PhaseInProgress:
		c.startLoops(ctx)
	case lcu.PhaseEndOfGame:
		c.stopLoops()
		c.call("再来一局", func() error { return c.client.PlayAgain(ctx) })
	}
}

func (c *Controller) handleReadyCheck(ctx context.Context, rc lcu.ReadyCheck) {
	if rc.State != "InProgress" {
		c.readyAccepted = false
		return
	}
	if rc.Pending() {
		c.acceptReadyCheck(ctx)
	}
}

// acceptReadyCheck 每次准备确认只接受一次
func (c *Controller) acceptReadyCheck(ctx context.Context) {
	if c.readyAccepted {
		return
	}
	if c.call("接受对局", func() error { return c.client.AcceptReadyCheck(ctx) }) {
		c.readyAccepted = true
	}
}

func (c *Controller) handleChampSelect(ctx context.Context, session *lcu.ChampSelectSession) {
	if session == nil {
		return
	}

	hash := sessionHash(session)
	if hash == c.sessionHash {
		logger.Debug("选人会话无变化")
		return
	}
	c.sessionHash = hash

	if session.Timer.Phase != lcu.TimerBanPick {
		c.picked = false
		c.banned = false
		return
	}

	if action, ok := session.PendingAction(lcu.ActionBan); ok && !c.banned {
		c.banned = c.ban(ctx, action)
	}
	if action, ok := session.PendingAction(lcu.ActionPick); ok && !c.picked {
		c.picked = c.pick(ctx, action)
	}
}

// pick 优先选择偏好英雄，失败时随机选择已拥有英雄
func (c *Controller) pick(ctx context.Context, action lcu.Action) bool {
	owned := c.ownedChampions(ctx)
	if len(owned) == 0 {
		logger.Error("已拥有英雄列表为空，跳过选人")
		return false
	}

	exclude := map[int]bool{}
	if id, ok := c.preferredID(ctx, owned); ok {
		if c.complete(ctx, "选择英雄", action.ID, id, owned) {
			return true
		}
		exclude[id] = true
	}

	id, err := c.randomChampion(owned, exclude)
	if err != nil {
		logger.Error("选人失败: %v", err)
		return false
	}
	return c.complete(ctx, "随机选择英雄", action.ID, id, owned)
}

// ban 随机禁用一个已拥有英雄，排除偏好英雄
func (c *Controller) ban(ctx context.Context, action lcu.Action) bool {
	owned := c.ownedChampions(ctx)
	if len(owned) == 0 {
		logger.Error("已拥有英雄列表为空，跳过禁用")
		return false
	}

	exclude := map[int]bool{}
	if id, ok := c.preferredID(ctx, owned); ok {
		exclude[id] = true
	}

	id, err := c.randomChampion(owned, exclude)
	if err != nil {
		logger.Error("禁用失败: %v", err)
		return false
	}
	return c.complete(ctx, "禁用英雄", action.ID, id, owned)
}

func (c *Controller) complete(ctx context.Context, what string, actionID int64, championID int, owned map[string]int) bool {
	name, _ := lo.FindKey(owned, championID)
	return c.call(fmt.Sprintf("%s %s (%d)", what, name, championID), func() error {
		return c.client.CompleteAction(ctx, actionID, championID)
	})
}

// preferredID 偏好英雄 ID，需为已拥有英雄
func (c *Controller) preferredID(ctx context.Context, owned map[string]int) (int, bool) {
	if c.preferred == "" {
		return 0, false
	}

	for name, id := range owned {
		if strings.EqualFold(name, c.preferred) && lcu.IsValidChampionID(id) {
			return id, true
		}
	}

	if c.resolver != nil {
		if id, ok := c.resolver.Lookup(ctx, c.preferred); ok && lo.Contains(lo.Values(owned), id) {
			return id, true
		}
	}

	logger.Warn("偏好英雄 %s 不在已拥有列表中", c.preferred)
	return 0, false
}

// randomChampion 在已拥有的有效英雄中随机选择
func (c *Controller) randomChampion(owned map[string]int, exclude map[int]bool) (int, error) {
	valid := lo.Filter(lo.Uniq(lo.Values(owned)), func(id int, _ int) bool {
		return lcu.IsValidChampionID(id) && !exclude[id]
	})
	if len(valid) == 0 {
		return 0, ErrNoChampions
	}
	slices.Sort(valid)
	return valid[c.rand.IntN(len(valid))], nil
}

// ownedChampions 已拥有英雄，首次使用或上次失败时重新加载
func (c *Controller) ownedChampions(ctx context.Context) map[string]int {
	if len(c.owned) == 0 {
		c.loadChampions(ctx)
	}
	return c.owned
}

func (c *Controller) loadChampions(ctx context.Context) {
	if c.summonerID == 0 {
		summoner, err := c.client.CurrentSummoner(ctx)
		if err != nil {
			logger.Warn("读取召唤师信息失败: %v", err)
			return
		}
		c.summonerID = summoner.SummonerID
	}

	owned, err := c.client.OwnedChampions(ctx, c.summonerID)
	if err != nil {
		logger.Warn("读取已拥有英雄失败: %v", err)
		return
	}
	c.owned = owned
	logger.Info("已拥有英雄 %d 个", len(owned))
}

// startLoops 启动局内循环，已在运行时忽略
func (c *Controller) startLoops(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loopRunning {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.loopCancel = cancel
	c.loopRunning = true
	c.matches++

	loops := c.loops()
	for _, loop := range loops {
		c.loopWG.Add(1)
		go func(loop Loop) {
			defer c.loopWG.Done()
			if err := loop(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("局内循环异常退出: %v", err)
			}
		}(loop)
	}
	logger.Info("对局开始，启动 %d 个局内循环", len(loops))
}

// stopLoops 取消并等待局内循环全部退出
func (c *Controller) stopLoops() {
	c.mu.Lock()
	if !c.loopRunning {
		c.mu.Unlock()
		return
	}
	cancel := c.loopCancel
	c.loopCancel = nil
	c.mu.Unlock()

	cancel()
	c.loopWG.Wait()

	c.mu.Lock()
	c.loopRunning = false
	c.mu.Unlock()
	logger.Info("局内循环已停止")
}

// call 执行客户端请求并记录结果，失败只记录不中断
func (c *Controller) call(name string, fn func() error) bool {
	start := time.Now()
	err := fn()
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		logger.LogEvent("LCU", false, elapsed, fmt.Sprintf("%s: %v", name, err))
		return false
	}
	logger.LogEvent("LCU", true, elapsed, name)
	return true
}

// sessionHash 选人会话内容哈希
func sessionHash(s *lcu.ChampSelectSession) uint64 {
	data, err := json.Marshal(s)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

func displayPhase(p lcu.Phase) string {
	if p == "" {
		return "-"
	}
	return string(p)
}
