package match

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoeyai/riftbot/pkg/lcu"
)

// fakeClient 记录所有请求
type fakeClient struct {
	mu        sync.Mutex
	calls     []string
	phase     lcu.Phase
	owned     map[string]int
	session   *lcu.ChampSelectSession
	failPick  map[int]bool
	failLobby bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		owned: map[string]int{"Ahri": 103, "Ashe": 22, "Garen": 86, "Placeholder": -1},
	}
}

func (f *fakeClient) record(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) count(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeClient) GameflowPhase(ctx context.Context) (lcu.Phase, error) {
	return f.phase, nil
}

func (f *fakeClient) CurrentSummoner(ctx context.Context) (*lcu.Summoner, error) {
	return &lcu.Summoner{SummonerID: 77}, nil
}

func (f *fakeClient) OwnedChampions(ctx context.Context, summonerID int64) (map[string]int, error) {
	if f.owned == nil {
		return nil, errors.New("inventory unavailable")
	}
	return f.owned, nil
}

func (f *fakeClient) ChampSelectSession(ctx context.Context) (*lcu.ChampSelectSession, error) {
	if f.session == nil {
		return nil, errors.New("no session")
	}
	return f.session, nil
}

func (f *fakeClient) CreateLobby(ctx context.Context, queueID int) error {
	f.record("lobby %d", queueID)
	if f.failLobby {
		return errors.New("rejected")
	}
	return nil
}

func (f *fakeClient) StartMatchmaking(ctx context.Context) error {
	f.record("search")
	return nil
}

func (f *fakeClient) AcceptReadyCheck(ctx context.Context) error {
	f.record("accept")
	return nil
}

func (f *fakeClient) PlayAgain(ctx context.Context) error {
	f.record("play-again")
	return nil
}

func (f *fakeClient) CompleteAction(ctx context.Context, actionID int64, championID int) error {
	f.record("action %d %d", actionID, championID)
	if f.failPick[championID] {
		return errors.New("champion unavailable")
	}
	return nil
}

type fakeResolver map[string]int

func (r fakeResolver) Lookup(ctx context.Context, name string) (int, bool) {
	id, ok := r[strings.ToLower(name)]
	return id, ok
}

// loopCounter 记录局内循环启动和退出
type loopCounter struct {
	started atomic.Int32
	stopped atomic.Int32
}

func (l *loopCounter) factory(client *fakeClient) LoopFactory {
	return func() []Loop {
		loop := func(ctx context.Context) error {
			l.started.Add(1)
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			l.stopped.Add(1)
			client.record("loop-stopped")
			return ctx.Err()
		}
		return []Loop{loop, loop}
	}
}

func pickSession(phase string, actions ...lcu.Action) *lcu.ChampSelectSession {
	return &lcu.ChampSelectSession{
		LocalPlayerCellID: 2,
		Timer:             lcu.Timer{Phase: phase},
		Actions:           [][]lcu.Action{actions},
	}
}

func newTestController(client *fakeClient, loops LoopFactory, opts ...Option) *Controller {
	opts = append([]Option{WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	return NewController(client, loops, 1700, opts...)
}

func TestDuplicatePhaseTriggersOnce(t *testing.T) {
	client := newFakeClient()
	c := newTestController(client, (&loopCounter{}).factory(client))
	ctx := context.Background()

	c.Handle(ctx, PhaseEvent{Phase: lcu.PhaseNone})
	c.Handle(ctx, PhaseEvent{Phase: lcu.PhaseNone})
	c.Handle(ctx, PhaseEvent{Phase: lcu.PhaseLobby})
	c.Handle(ctx, PhaseEvent{Phase: lcu.PhaseLobby})

	if n := client.count("lobby"); n != 1 {
		t.Errorf("重复 None 阶段应只创建一次房间, 实际 %d", n)
	}
	if n := client.count("search"); n != 1 {
		t.Errorf("重复 Lobby 阶段应只开始一次匹配, 实际 %d", n)
	}
}

func TestFullLifecycle(t *testing.T) {
	client := newFakeClient()
	client.session = pickSession(lcu.TimerBanPick,
		lcu.Action{ID: 5, ActorCellID: 2, Type: lcu.ActionPick, IsInProgress: true})

	loops := &loopCounter{}
	c := newTestController(client, loops.factory(client), WithPreferredChampion("ahri"))

	events := make(chan Event, 16)
	for _, p := range []lcu.Phase{
		lcu.PhaseNone, lcu.PhaseLobby, lcu.PhaseReadyCheck, lcu.PhaseChampSelect,
		lcu.PhaseGameStart, lcu.PhaseInProgress, lcu.PhaseEndOfGame,
	} {
		events <- PhaseEvent{Phase: p}
	}
	close(events)

	if err := c.Run(context.Background(), events); err != nil {
		t.Fatalf("Run 返回错误: %v", err)
	}

	want := []string{
		"lobby 1700",
		"search",
		"accept",
		"action 5 103",
		"loop-stopped",
		"loop-stopped",
		"play-again",
	}
	got := client.Calls()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("请求序列不正确:\n期望 %v\n实际 %v", want, got)
	}
	if loops.started.Load() != 2 || loops.stopped.Load() != 2 {
		t.Errorf("局内循环应启动并停止 2 个, 实际 %d/%d", loops.started.Load(), loops.stopped.Load())
	}

	status := c.Status()
	if status.Phase != lcu.PhaseEndOfGame || status.LoopRunning || status.Matches != 1 {
		t.Errorf("状态不正确: %+v", status)
	}
	if status.SessionID == "" || status.SessionID != c.SessionID() {
		t.Errorf("会话 ID 不正确: %q", status.SessionID)
	}
}

func TestLobbyCreateUsesQueueID(t *testing.T) {
	client := newFakeClient()
	client.phase = lcu.PhaseNone

	c := newTestController(client, (&loopCounter{}).factory(client))
	events := make(chan Event)
	close(events)

	if err := c.Run(context.Background(), events); err != nil {
		t.Fatalf("Run 返回错误: %v", err)
	}
	if calls := client.Calls(); len(calls) != 1 || calls[0] != "lobby 1700" {
		t.Errorf("启动时处于 None 应以队列 1700 创建房间, 实际 %v", calls)
	}
}

func TestRequestFailureIsSkipped(t *testing.T) {
	client := newFakeClient()
	client.failLobby = true
	c := newTestController(client, (&loopCounter{}).factory(client))
	ctx := context.Background()

	c.Handle(ctx, PhaseEvent{Phase: lcu.PhaseNone})
	c.Handle(ctx, PhaseEvent{Phase: lcu.PhaseLobby})

	if calls := client.Calls(); strings.Join(calls, ",") != "lobby 1700,search" {
		t.Errorf("失败的请求不应影响后续事件, 实际 %v", calls)
	}
}

func TestReadyCheckAcceptedOncePerInstance(t *testing.T) {
	client := newFakeClient()
	c := newTestController(client, (&loopCounter{}).factory(client))
	ctx := context.Background()

	pending := ReadyCheckEvent{lcu.ReadyCheck{State: "InProgress", PlayerResponse: "None"}}
	c.Handle(ctx, PhaseEvent{Phase: lcu.PhaseReadyCheck})
	c.Handle(ctx, pending)
	c.Handle(ctx, pending)

	if n := client.count("accept"); n != 1 {
		t.Fatalf("同一次准备确认应只接受一次, 实际 %d", n)
	}

	// 对方拒绝后重新进入队列，新的准备确认需要再次接受
	c.Handle(ctx, ReadyCheckEvent{lcu.ReadyCheck{State: "Invalid", PlayerResponse: "Accepted"}})
	c.Handle(ctx, PhaseEvent{Phase: lcu.PhaseMatchmaking})
	c.Handle(ctx, PhaseEvent{Phase: lcu.PhaseReadyCheck})
	c.Handle(ctx, pending)

	if n := client.count("accept"); n != 2 {
		t.Errorf("新的准备确认应再次接受, 实际 %d", n)
	}
}

func TestReadyCheckIgnoresAnswered(t *testing.T) {
	client := newFakeClient()
	c := newTestController(client, (&loopCounter{}).factory(client))

	c.Handle(context.Background(), ReadyCheckEvent{lcu.ReadyCheck{State: "InProgress", PlayerResponse: "Declined"}})
	if n := client.count("accept"); n != 0 {
		t.Errorf("已响应的准备确认不应接受, 实际 %d", n)
	}
}

func TestPickPreferredFallsBackToRandom(t *testing.T) {
	client := newFakeClient()
	client.failPick = map[int]bool{103: true}
	c := newTestController(client, (&loopCounter{}).factory(client), WithPreferredChampion("Ahri"))

	session := pickSession(lcu.TimerBanPick,
		lcu.Action{ID: 7, ActorCellID: 2, Type: lcu.ActionPick, IsInProgress: true})
	c.Handle(context.Background(), ChampSelectEvent{Session: session})

	calls := client.Calls()
	if len(calls) != 2 || calls[0] != "action 7 103" {
		t.Fatalf("应先尝试偏好英雄再随机, 实际 %v", calls)
	}
	if calls[1] != "action 7 22" && calls[1] != "action 7 86" {
		t.Errorf("随机选择应为有效的其他英雄, 实际 %s", calls[1])
	}
}

func TestPickUsesResolverForUnownedName(t *testing.T) {
	client := newFakeClient()
	client.owned = map[string]int{"阿狸": 103, "艾希": 22}
	c := newTestController(client, (&loopCounter{}).factory(client),
		WithPreferredChampion("Ashe"), WithChampionResolver(fakeResolver{"ashe": 22}))

	session := pickSession(lcu.TimerBanPick,
		lcu.Action{ID: 3, ActorCellID: 2, Type: lcu.ActionPick, IsInProgress: true})
	c.Handle(context.Background(), ChampSelectEvent{Session: session})

	if calls := client.Calls(); len(calls) != 1 || calls[0] != "action 3 22" {
		t.Errorf("应通过名称解析选择 Ashe, 实际 %v", calls)
	}
}

func TestBanExcludesInvalidAndPreferred(t *testing.T) {
	client := newFakeClient()
	client.owned = map[string]int{"Ahri": 103, "Ashe": 22, "None": -1, "Bot": -3}
	c := newTestController(client, (&loopCounter{}).factory(client), WithPreferredChampion("Ahri"))

	session := pickSession(lcu.TimerBanPick,
		lcu.Action{ID: 1, ActorCellID: 2, Type: lcu.ActionBan, IsInProgress: true})
	c.Handle(context.Background(), ChampSelectEvent{Session: session})

	if calls := client.Calls(); len(calls) != 1 || calls[0] != "action 1 22" {
		t.Errorf("禁用只能选择 Ashe, 实际 %v", calls)
	}
}

func TestChampSelectDedupAndPhaseGate(t *testing.T) {
	client := newFakeClient()
	c := newTestController(client, (&loopCounter{}).factory(client))
	ctx := context.Background()

	planning := pickSession("PLANNING",
		lcu.Action{ID: 4, ActorCellID: 2, Type: lcu.ActionPick, IsInProgress: true})
	c.Handle(ctx, ChampSelectEvent{Session: planning})
	if n := len(client.Calls()); n != 0 {
		t.Fatalf("非 BAN_PICK 阶段不应选人, 实际 %d 次请求", n)
	}

	session := pickSession(lcu.TimerBanPick,
		lcu.Action{ID: 4, ActorCellID: 2, Type: lcu.ActionPick, IsInProgress: true})
	c.Handle(ctx, ChampSelectEvent{Session: session})
	c.Handle(ctx, ChampSelectEvent{Session: session})

	if n := client.count("action"); n != 1 {
		t.Errorf("相同选人会话应只处理一次, 实际 %d", n)
	}
}

func TestReconnectResyncsMissedPhase(t *testing.T) {
	client := newFakeClient()
	loops := &loopCounter{}
	c := newTestController(client, loops.factory(client))
	ctx := context.Background()

	c.Handle(ctx, PhaseEvent{Phase: lcu.PhaseInProgress})
	if !c.Status().LoopRunning {
		t.Fatal("进入对局后应启动局内循环")
	}

	// 断线期间对局结束，没有收到 EndOfGame 推送
	client.phase = lcu.PhaseEndOfGame
	c.Handle(ctx, ReconnectedEvent{})

	if c.Status().LoopRunning {
		t.Error("重连后补读到 EndOfGame 应停止局内循环")
	}
	if loops.stopped.Load() != 2 {
		t.Errorf("局内循环应全部退出, 实际 %d", loops.stopped.Load())
	}
	if n := client.count("play-again"); n != 1 {
		t.Errorf("应再来一局 1 次, 实际 %d", n)
	}

	c.Handle(ctx, ReconnectedEvent{})
	if n := client.count("play-again"); n != 1 {
		t.Errorf("阶段未变时重连不应重复操作, 实际 %d", n)
	}
}

func TestReconnectRefreshesChampSelect(t *testing.T) {
	client := newFakeClient()
	c := newTestController(client, (&loopCounter{}).factory(client))
	ctx := context.Background()

	client.session = pickSession("PLANNING",
		lcu.Action{ID: 4, ActorCellID: 2, Type: lcu.ActionPick, IsInProgress: true})
	c.Handle(ctx, PhaseEvent{Phase: lcu.PhaseChampSelect})
	if n := client.count("action"); n != 0 {
		t.Fatalf("非 BAN_PICK 阶段不应选人, 实际 %d", n)
	}

	// 断线期间进入 BAN_PICK，阶段仍是 ChampSelect
	client.phase = lcu.PhaseChampSelect
	client.session = pickSession(lcu.TimerBanPick,
		lcu.Action{ID: 4, ActorCellID: 2, Type: lcu.ActionPick, IsInProgress: true})
	c.Handle(ctx, ReconnectedEvent{})

	if n := client.count("action 4"); n != 1 {
		t.Errorf("重连后应重新读取选人会话并选人, 实际 %v", client.Calls())
	}
}

func TestPickWithoutChampionsIsSkipped(t *testing.T) {
	client := newFakeClient()
	client.owned = nil
	c := newTestController(client, (&loopCounter{}).factory(client))

	session := pickSession(lcu.TimerBanPick,
		lcu.Action{ID: 4, ActorCellID: 2, Type: lcu.ActionPick, IsInProgress: true})
	c.Handle(context.Background(), ChampSelectEvent{Session: session})

	if n := len(client.Calls()); n != 0 {
		t.Errorf("没有英雄列表时应跳过选人, 实际 %v", client.Calls())
	}
}

func TestClientClosedStopsLoops(t *testing.T) {
	client := newFakeClient()
	loops := &loopCounter{}
	c := newTestController(client, loops.factory(client))

	closedErr := errors.New("client closed")
	events := make(chan Event, 4)
	events <- PhaseEvent{Phase: lcu.PhaseInProgress}
	events <- ClientClosedEvent{Err: closedErr}

	if err := c.Run(context.Background(), events); !errors.Is(err, closedErr) {
		t.Fatalf("应返回客户端关闭错误, 实际 %v", err)
	}
	if loops.stopped.Load() != 2 {
		t.Errorf("客户端关闭后局内循环应全部停止, 实际 %d", loops.stopped.Load())
	}
	if c.Status().LoopRunning {
		t.Error("状态应显示循环已停止")
	}
}

func TestRunCancel(t *testing.T) {
	client := newFakeClient()
	loops := &loopCounter{}
	c := newTestController(client, loops.factory(client))

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, 1)
	events <- PhaseEvent{Phase: lcu.PhaseGameStart}

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, events) }()

	deadline := time.Now().Add(2 * time.Second)
	for loops.started.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("应返回 context.Canceled, 实际 %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("取消后 Run 未退出")
	}
	if loops.stopped.Load() != 2 {
		t.Errorf("取消后局内循环应全部停止, 实际 %d", loops.stopped.Load())
	}
}
