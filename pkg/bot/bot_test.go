package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zoeyai/riftbot/pkg/auto"
	"github.com/zoeyai/riftbot/pkg/auto/input"
	"github.com/zoeyai/riftbot/pkg/config"
	"github.com/zoeyai/riftbot/pkg/telemetry"
	"github.com/zoeyai/riftbot/pkg/vision/ocr"
)

// recorder 记录所有输入动作
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) countExact(event string) int {
	n := 0
	for _, e := range r.Events() {
		if e == event {
			n++
		}
	}
	return n
}

func (r *recorder) ClickPercentOffset(x, y int, px, py float64, button input.Button) error {
	r.add("click %s %d,%d %+.0f,%+.0f", button, x, y, px, py)
	return nil
}

func (r *recorder) Tap(key string)                       { r.add("tap %s", key) }
func (r *recorder) Press(key string, hold time.Duration) { r.add("press %s", key) }
func (r *recorder) Combo(modifier, key string)           { r.add("combo %s+%s", modifier, key) }
func (r *recorder) ScreenCenter() auto.Point             { return auto.Point{X: 960, Y: 540} }

// fakePerception 固定识别结果
type fakePerception struct {
	enemy     *auto.LocatedPoint
	shop      *auto.LocatedPoint
	textErr   error
	textCalls int
	// shopAfter 第 n 次查找后才出现商店
	shopAfter int
}

func (p *fakePerception) LocateEnemy() (*auto.LocatedPoint, error) {
	return p.enemy, nil
}

func (p *fakePerception) LocateText(query string) (*auto.LocatedPoint, error) {
	p.textCalls++
	if p.textErr != nil {
		return nil, p.textErr
	}
	if p.textCalls <= p.shopAfter {
		return nil, nil
	}
	return p.shop, nil
}

func snapshot(level int, current, max float64, events ...string) *telemetry.Snapshot {
	s := &telemetry.Snapshot{}
	s.ActivePlayer.Level = level
	s.ActivePlayer.ChampionStats.CurrentHealth = current
	s.ActivePlayer.ChampionStats.MaxHealth = max
	for _, name := range events {
		s.Events.Events = append(s.Events.Events, telemetry.Event{EventName: name})
	}
	return s
}

type harness struct {
	loop   *CombatLoop
	rec    *recorder
	per    *fakePerception
	store  *telemetry.Store
	sleeps []time.Duration
}

func newHarness(keys config.Keybinds) *harness {
	h := &harness{
		rec:   &recorder{},
		per:   &fakePerception{shop: &auto.LocatedPoint{Point: auto.Point{X: 400, Y: 500}}},
		store: telemetry.NewStore(),
	}
	if keys == nil {
		keys = config.DefaultKeybinds()
	}
	h.loop = NewCombatLoop(Deps{
		Perception:   h.per,
		Actions:      h.rec,
		Store:        h.store,
		Keybinds:     keys,
		Rand:         rand.New(rand.NewPCG(7, 11)),
		Sleep:        func(d time.Duration) { h.sleeps = append(h.sleeps, d) },
		PollInterval: time.Millisecond,
	})
	return h
}

func TestLookupModes(t *testing.T) {
	tests := map[string]int{"arena": 1700, "ARAM": 450, " swiftplay ": 490}
	for name, queue := range tests {
		mode, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q) 失败: %v", name, err)
		}
		if mode.QueueID != queue {
			t.Errorf("%s 队列应为 %d, 实际 %d", name, queue, mode.QueueID)
		}
		if mode.New(Deps{Store: telemetry.NewStore()}) == nil {
			t.Errorf("%s 应能创建局内循环", name)
		}
	}

	if _, err := Lookup("urf"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("未知模式应返回 ErrUnknownMode, 实际 %v", err)
	}
	if names := ModeNames(); strings.Join(names, ",") != "aram,arena,swiftplay" {
		t.Errorf("模式列表不正确: %v", names)
	}
}

func TestShopRunsOncePerLevelGained(t *testing.T) {
	h := newHarness(nil)
	h.store.Store(snapshot(3, 1000, 1000))

	h.loop.Tick()

	if h.loop.shops != 3 {
		t.Fatalf("从 0 升到 3 级应购物 3 次, 实际 %d", h.loop.shops)
	}
	// 每次购物都会升级 R Q W E
	if n := h.rec.countExact("combo ctrl+r"); n != 3 {
		t.Errorf("应升级大招 3 次, 实际 %d", n)
	}
	if h.sleeps[0] != LevelUpSettle {
		t.Errorf("购物前应等待 %v, 实际 %v", LevelUpSettle, h.sleeps[0])
	}

	// 购物全部完成后才进入战斗阶段
	events := h.rec.Events()
	lastShop, firstCamera := -1, -1
	for i, e := range events {
		if e == "combo ctrl+e" {
			lastShop = i
		}
		if e == "press space" && firstCamera < 0 {
			firstCamera = i
		}
	}
	if firstCamera < lastShop {
		t.Errorf("战斗阶段应在购物之后: %v", events)
	}

	// 等级不变不再购物
	h.loop.Tick()
	if h.loop.shops != 3 {
		t.Errorf("等级不变时不应购物, 实际 %d", h.loop.shops)
	}

	h.store.Store(snapshot(4, 1000, 1000))
	h.loop.Tick()
	if h.loop.shops != 4 {
		t.Errorf("升到 4 级应再购物 1 次, 实际 %d", h.loop.shops)
	}
}

func TestNoDataKeepsPreviousLevel(t *testing.T) {
	h := newHarness(nil)
	h.store.Store(snapshot(2, 1000, 1000))
	h.loop.Tick()

	h.store.Store(nil)
	h.loop.Tick()
	h.store.Store(snapshot(2, 1000, 1000))
	h.loop.Tick()

	if h.loop.shops != 2 {
		t.Errorf("无数据时应保留上次等级, 购物次数 %d", h.loop.shops)
	}
	if h.loop.prevLevel != 2 {
		t.Errorf("prevLevel 应为 2, 实际 %d", h.loop.prevLevel)
	}
}

func TestBuyRecommendedItems(t *testing.T) {
	h := newHarness(nil)

	if err := h.loop.BuyRecommendedItems(); err != nil {
		t.Fatalf("购买失败: %v", err)
	}

	want := []string{
		"click left 400,500 +0,-60",
		"click right 400,500 +15,-25",
		"click right 400,500 +15,-25",
		"click right 400,500 +15,-25",
		"tap p",
	}
	if got := h.rec.Events(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("购买动作不正确:\n期望 %v\n实际 %v", want, got)
	}
}

func TestBuyOpensShopAndRetriesOnce(t *testing.T) {
	h := newHarness(nil)
	h.per.shopAfter = 1

	if err := h.loop.BuyRecommendedItems(); err != nil {
		t.Fatalf("购买失败: %v", err)
	}
	events := h.rec.Events()
	if len(events) != 6 || events[0] != "tap p" || events[5] != "tap p" {
		t.Errorf("应先打开商店再购买并关闭: %v", events)
	}
	if h.per.textCalls != 2 {
		t.Errorf("应查找 2 次, 实际 %d", h.per.textCalls)
	}
}

func TestBuySkipsWhenShopMissing(t *testing.T) {
	h := newHarness(nil)
	h.per.shopAfter = 10

	if err := h.loop.BuyRecommendedItems(); err != nil {
		t.Fatalf("找不到商店不应返回错误: %v", err)
	}
	if h.per.textCalls != 2 {
		t.Errorf("只应重试一次, 实际查找 %d 次", h.per.textCalls)
	}
	if events := h.rec.Events(); len(events) != 1 || events[0] != "tap p" {
		t.Errorf("找不到商店时只应尝试打开商店: %v", events)
	}
}

func TestBuyEngineErrorIsDistinct(t *testing.T) {
	h := newHarness(nil)
	h.per.textErr = ocr.ErrEngineUnavailable

	if err := h.loop.BuyRecommendedItems(); !errors.Is(err, ocr.ErrEngineUnavailable) {
		t.Errorf("引擎错误应返回, 实际 %v", err)
	}
	if n := len(h.rec.Events()); n != 0 {
		t.Errorf("引擎错误时不应有任何动作, 实际 %d", n)
	}
}

func TestLevelUpAbilities(t *testing.T) {
	h := newHarness(nil)
	h.loop.LevelUpAbilities()

	want := "combo ctrl+r|combo ctrl+q|combo ctrl+w|combo ctrl+e"
	if got := strings.Join(h.rec.Events(), "|"); got != want {
		t.Errorf("升级顺序不正确: %s", got)
	}
	if h.sleeps[0] != LevelingSettle {
		t.Errorf("升级前应等待 %v", LevelingSettle)
	}
}

func TestLevelUpSkippedWhenKeybindMissing(t *testing.T) {
	tests := map[string]string{"缺少技能键": "spell_3", "缺少修饰键": "hold_to_level"}
	for name, missing := range tests {
		t.Run(name, func(t *testing.T) {
			keys := config.DefaultKeybinds()
			delete(keys, missing)
			h := newHarness(keys)

			h.loop.LevelUpAbilities()
			if n := len(h.rec.Events()); n != 0 {
				t.Errorf("缺少 %s 时不应升级任何技能, 实际 %v", missing, h.rec.Events())
			}
		})
	}
}

func TestCombatAttacksEnemy(t *testing.T) {
	h := newHarness(nil)
	h.per.enemy = &auto.LocatedPoint{Point: auto.Point{X: 700, Y: 300}}
	h.store.Store(snapshot(1, 1000, 1000))

	h.loop.CombatPhase()

	events := h.rec.Events()
	if events[0] != "press space" {
		t.Errorf("应先回正镜头: %v", events)
	}
	if events[1] != "click right 700,300 +0,+0" {
		t.Errorf("应右键敌方位置: %v", events)
	}
	keys := strings.Join(events[2:12], ",")
	if keys != "tap q,tap w,tap e,tap r,tap 1,tap 2,tap 3,tap 4,tap 5,tap 6" {
		t.Errorf("技能和装备顺序不正确: %s", keys)
	}
	if !strings.HasPrefix(events[12], "click right 700,300 ") || len(events) != 13 {
		t.Errorf("最后应有一次随机偏移点击: %v", events)
	}

	last := h.sleeps[len(h.sleeps)-1]
	if last < 100*time.Millisecond || last > 300*time.Millisecond {
		t.Errorf("攻击后随机等待应在 100-300ms, 实际 %v", last)
	}
}

func TestRetreatThreshold(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		retreat bool
	}{
		{"29%撤退", 290, true},
		{"30%不撤退", 300, false},
		{"满血不撤退", 1000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(nil)
			h.per.enemy = &auto.LocatedPoint{Point: auto.Point{X: 700, Y: 300}}
			h.store.Store(snapshot(1, tt.current, 1000))

			h.loop.CombatPhase()

			retreated := h.rec.countExact("tap f2") == 2
			if retreated != tt.retreat {
				t.Errorf("生命 %.0f/1000 撤退 = %v, 期望 %v: %v", tt.current, retreated, tt.retreat, h.rec.Events())
			}
		})
	}
}

func TestRetreatSummonerSpellsAreOptional(t *testing.T) {
	h := newHarness(nil)
	for i := 0; i < 50; i++ {
		h.loop.Retreat()
	}

	d, f := h.rec.countExact("tap d"), h.rec.countExact("tap f")
	if d == 0 || d == 50 || f == 0 || f == 50 {
		t.Errorf("召唤师技能应各自随机使用, d=%d f=%d", d, f)
	}
	if n := h.rec.countExact("tap f2"); n != 100 {
		t.Errorf("每次撤退应两次选中友方, 实际 %d", n)
	}
}

func TestCombatWithoutEnemyMovesToAlly(t *testing.T) {
	h := newHarness(nil)
	h.loop.CombatPhase()

	events := h.rec.Events()
	if len(events) != 3 || events[1] != "tap f2" || !strings.HasPrefix(events[2], "click right 960,540 ") {
		t.Errorf("未发现敌人时应跟随友方: %v", events)
	}
	last := h.sleeps[len(h.sleeps)-1]
	if last < 0 || last > 500*time.Millisecond {
		t.Errorf("随机等待应在 0-500ms, 实际 %v", last)
	}
}

func TestMoveRandomOffsetBounds(t *testing.T) {
	h := newHarness(nil)
	for i := 0; i < 200; i++ {
		h.loop.MoveRandomOffset(auto.Point{X: 10, Y: 10})
	}
	for _, e := range h.rec.Events() {
		var x, y int
		var px, py float64
		if _, err := fmt.Sscanf(e, "click right %d,%d %f,%f", &x, &y, &px, &py); err != nil {
			t.Fatalf("解析点击失败 %q: %v", e, err)
		}
		if px < -MoveOffset || px > MoveOffset || py < -MoveOffset || py > MoveOffset {
			t.Errorf("偏移超出范围: %s", e)
		}
	}
}

func TestWaitForStart(t *testing.T) {
	h := newHarness(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := h.loop.WaitForStart(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("未开局时应等待到超时, 实际 %v", err)
	}

	h.store.Store(snapshot(1, 1000, 1000, "GameStart"))
	if err := h.loop.WaitForStart(context.Background()); err != nil {
		t.Errorf("开局后应立即返回, 实际 %v", err)
	}
}

func TestWaitForStartTimeout(t *testing.T) {
	tests := []struct {
		name string
		snap *telemetry.Snapshot
		want string
	}{
		{"有数据无开局事件", snapshot(1, 100, 100), "未出现 GameStart"},
		{"无数据", nil, "未取得对局数据"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(nil)
			h.loop.startLimit = 20 * time.Millisecond
			h.store.Store(tt.snap)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err := h.loop.WaitForStart(ctx)
			if !errors.Is(err, ErrStartTimeout) {
				t.Fatalf("超过上限应返回 ErrStartTimeout, 实际 %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("错误信息应包含 %q, 实际 %v", tt.want, err)
			}
		})
	}
}

func TestRunGameLoopStopsOnStartTimeout(t *testing.T) {
	h := newHarness(nil)
	h.loop.startLimit = 5 * time.Millisecond

	if err := h.loop.RunGameLoop(context.Background()); !errors.Is(err, ErrStartTimeout) {
		t.Fatalf("未开局时 RunGameLoop 应返回 ErrStartTimeout, 实际 %v", err)
	}
	if h.loop.ticks != 0 || len(h.rec.Events()) != 0 {
		t.Errorf("超时后不应执行任何操作: %v", h.rec.Events())
	}
}

func TestStartTimeoutDefault(t *testing.T) {
	b := NewCombatLoop(Deps{Store: telemetry.NewStore()})
	if b.startLimit != DefaultStartTimeout {
		t.Errorf("默认开局等待上限应为 %s, 实际 %s", DefaultStartTimeout, b.startLimit)
	}
	b = NewCombatLoop(Deps{Store: telemetry.NewStore(), StartTimeout: time.Minute})
	if b.startLimit != time.Minute {
		t.Errorf("应使用配置的上限, 实际 %s", b.startLimit)
	}
}

func TestRunGameLoopStopsBetweenTicks(t *testing.T) {
	h := newHarness(nil)
	h.store.Store(snapshot(1, 1000, 1000, "GameStart"))

	ctx, cancel := context.WithCancel(context.Background())
	// 第 5 次 tick 的战斗阶段中取消
	per := &cancellingPerception{fakePerception: h.per, cancel: cancel, after: 5}
	h.loop.perception = per

	err := h.loop.RunGameLoop(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("应返回 context.Canceled, 实际 %v", err)
	}
	if h.loop.ticks != 5 {
		t.Errorf("取消应在当前 tick 完成后生效, 实际 tick %d", h.loop.ticks)
	}
	// 取消发生在检测敌人时，本次 tick 仍完成跟随友方
	events := h.rec.Events()
	if !strings.HasPrefix(events[len(events)-1], "click right 960,540 ") {
		t.Errorf("被取消的 tick 应完整执行: %v", events[len(events)-3:])
	}
}

type cancellingPerception struct {
	*fakePerception
	cancel context.CancelFunc
	after  int
	calls  int
}

func (p *cancellingPerception) LocateEnemy() (*auto.LocatedPoint, error) {
	p.calls++
	if p.calls == p.after {
		p.cancel()
	}
	return nil, nil
}
