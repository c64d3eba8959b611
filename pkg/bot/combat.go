package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/zoeyai/riftbot/internal/logger"
	"github.com/zoeyai/riftbot/pkg/auto"
	"github.com/zoeyai/riftbot/pkg/auto/input"
	"github.com/zoeyai/riftbot/pkg/config"
	"github.com/zoeyai/riftbot/pkg/telemetry"
)

// 固定时序
const (
	LevelUpSettle    = 3 * time.Second
	ShopSettle       = 500 * time.Millisecond
	LevelingSettle   = 500 * time.Millisecond
	KeyInterval      = 100 * time.Millisecond
	CameraHold       = 100 * time.Millisecond
	RetreatThreshold = 30.0
	// MoveOffset 随机移动的最大窗口百分比偏移
	MoveOffset = 15
	// DefaultStartTimeout 等待 GameStart 的默认上限
	DefaultStartTimeout = 5 * time.Minute
)

// ErrStartTimeout 超时仍未检测到 GameStart，通常是对局数据接口无法访问
var ErrStartTimeout = errors.New("等待开局超时")

// ShopAnchorText 商店界面锚点文字
const ShopAnchorText = "SELL"

// 动作名
var (
	attackKeys    = []string{"spell_1", "spell_2", "spell_3", "spell_4", "item_1", "item_2", "item_3", "item_4", "item_5", "item_6"}
	levelOrder    = []string{"spell_4", "spell_1", "spell_2", "spell_3"}
	allySelectors = []string{"select_ally_1", "select_ally_2", "select_ally_3", "select_ally_4"}
)

// Actions 输入动作
type Actions interface {
	ClickPercentOffset(x, y int, px, py float64, button input.Button) error
	Tap(key string)
	Press(key string, hold time.Duration)
	Combo(modifier, key string)
	ScreenCenter() auto.Point
}

// Deps 局内循环依赖
type Deps struct {
	Perception Perception
	Actions    Actions
	Store      *telemetry.Store
	Keybinds   config.Keybinds
	// Rand 为空时使用随机种子
	Rand *rand.Rand
	// Sleep 为空时使用 time.Sleep
	Sleep func(time.Duration)
	// PollInterval 等待开局的轮询间隔
	PollInterval time.Duration
	// StartTimeout 等待开局的上限，零值使用 DefaultStartTimeout
	StartTimeout time.Duration
}

// CombatLoop 局内循环
//
// WaitForStart -> (ShopPhase * 升级数, CombatPhase) 循环，取消只在两次 tick 之间生效。
type CombatLoop struct {
	perception Perception
	actions    Actions
	store      *telemetry.Store
	keys       config.Keybinds
	rand       *rand.Rand
	sleep      func(time.Duration)
	poll       time.Duration
	startLimit time.Duration

	prevLevel int
	ticks     int
	shops     int
}

// NewCombatLoop 创建局内循环
func NewCombatLoop(deps Deps) *CombatLoop {
	b := &CombatLoop{
		perception: deps.Perception,
		actions:    deps.Actions,
		store:      deps.Store,
		keys:       deps.Keybinds,
		rand:       deps.Rand,
		sleep:      deps.Sleep,
		poll:       deps.PollInterval,
		startLimit: deps.StartTimeout,
	}
	if b.rand == nil {
		b.rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xc0ffee))
	}
	if b.sleep == nil {
		b.sleep = time.Sleep
	}
	if b.poll <= 0 {
		b.poll = auto.DefaultPollInterval
	}
	if b.startLimit <= 0 {
		b.startLimit = DefaultStartTimeout
	}
	if b.keys == nil {
		b.keys = config.Keybinds{}
	}
	return b
}

// RunGameLoop 等待开局后循环执行，直到 ctx 取消
func (b *CombatLoop) RunGameLoop(ctx context.Context) error {
	if err := b.WaitForStart(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			logger.Info("局内循环结束 (共 %d 次 tick, %d 次购物)", b.ticks, b.shops)
			return err
		}
		b.Tick()
	}
}

// WaitForStart 等待遥测数据中出现 GameStart 事件
//
// 等待时间按轮询间隔累计，超过上限返回 ErrStartTimeout。
func (b *CombatLoop) WaitForStart(ctx context.Context) error {
	logger.Info("等待 GameStart 事件 (上限 %s)...", b.startLimit)
	var waited time.Duration
	for {
		if snap := b.store.Load(); snap.Started() {
			logger.Info("检测到 GameStart，开始局内循环")
			return nil
		}
		if waited >= b.startLimit {
			if b.store.Load() == nil {
				return fmt.Errorf("%w: %s 内未取得对局数据", ErrStartTimeout, b.startLimit)
			}
			return fmt.Errorf("%w: %s 内未出现 GameStart", ErrStartTimeout, b.startLimit)
		}
		if !auto.Sleep(ctx, b.poll) {
			return ctx.Err()
		}
		waited += b.poll
	}
}

// Tick 执行一次决策：等级提升时按提升数购物加点，然后进入战斗
func (b *CombatLoop) Tick() {
	b.ticks++

	level, ok := b.store.Level()
	if ok && level > b.prevLevel {
		gained := level - b.prevLevel
		logger.Info("等级提升 %d -> %d", b.prevLevel, level)
		b.sleep(LevelUpSettle)
		for i := 0; i < gained; i++ {
			b.ShopPhase()
		}
	}
	if ok {
		b.prevLevel = level
	}

	b.CombatPhase()
}

// ShopPhase 关闭弹窗、购买推荐装备并升级技能
func (b *CombatLoop) ShopPhase() {
	b.shops++
	if snap := b.store.Load(); snap != nil {
		logger.Info("购物阶段 (等级 %d, 金币 %.0f)", snap.ActivePlayer.Level, snap.ActivePlayer.CurrentGold)
	} else {
		logger.Info("购物阶段")
	}

	center := b.actions.ScreenCenter()
	b.click(center.X, center.Y, 0, 0, input.Left)

	if err := b.BuyRecommendedItems(); err != nil {
		logger.Error("购买装备失败: %v", err)
	}
	b.LevelUpAbilities()
}

// BuyRecommendedItems 打开商店并点击推荐装备；找不到商店时跳过
func (b *CombatLoop) BuyRecommendedItems() error {
	b.sleep(ShopSettle)
	shopKey, hasShop := b.keys.Get("shop")

	anchor, err := b.perception.LocateText(ShopAnchorText)
	if err != nil {
		return err
	}
	if anchor == nil {
		if hasShop {
			b.actions.Tap(shopKey)
		}
		b.sleep(ShopSettle)
		if anchor, err = b.perception.LocateText(ShopAnchorText); err != nil {
			return err
		}
		if anchor == nil {
			logger.Warn("打开商店后仍未找到商店界面，跳过购买")
			return nil
		}
	}

	b.click(anchor.X, anchor.Y, 0, -60, input.Left)
	for i := 0; i < 3; i++ {
		b.click(anchor.X, anchor.Y, 15, -25, input.Right)
	}

	if hasShop {
		b.actions.Tap(shopKey)
	}
	return nil
}

// LevelUpAbilities 按 R Q W E 顺序升级技能，缺少任一按键时跳过
func (b *CombatLoop) LevelUpAbilities() {
	b.sleep(LevelingSettle)

	hold, ok := b.keys.Get("hold_to_level")
	if !ok {
		logger.Error("缺少按键绑定 hold_to_level，跳过升级技能")
		return
	}
	keys := make([]string, 0, len(levelOrder))
	for _, action := range levelOrder {
		key, ok := b.keys.Get(action)
		if !ok {
			logger.Error("缺少按键绑定 %s，跳过升级技能", action)
			return
		}
		keys = append(keys, key)
	}

	for _, key := range keys {
		b.actions.Combo(hold, key)
		b.sleep(KeyInterval)
	}
}

// CombatPhase 回正镜头后攻击敌方英雄，未发现敌人时跟随友方
func (b *CombatLoop) CombatPhase() {
	if key, ok := b.keys.Get("center_camera"); ok {
		b.actions.Press(key, CameraHold)
	}

	enemy, err := b.perception.LocateEnemy()
	if err != nil {
		logger.Warn("检测敌方英雄失败: %v", err)
	}
	if enemy == nil {
		b.MoveToAlly(1)
		b.sleepRandom(0, 500*time.Millisecond)
		return
	}

	b.click(enemy.X, enemy.Y, 0, 0, input.Right)
	for _, action := range attackKeys {
		if key, ok := b.keys.Get(action); ok {
			b.actions.Tap(key)
		}
	}
	b.MoveRandomOffset(enemy.Point)
	b.sleepRandom(100*time.Millisecond, 300*time.Millisecond)

	if snap := b.store.Load(); snap != nil && snap.HealthPercent() < RetreatThreshold {
		logger.Info("生命值 %.0f%%，撤退", snap.HealthPercent())
		b.Retreat()
	}
}

// Retreat 向友方撤退，随机使用召唤师技能
func (b *CombatLoop) Retreat() {
	b.MoveToAlly(1)
	b.sleep(KeyInterval)

	for _, action := range []string{"sum_1", "sum_2"} {
		if b.rand.IntN(2) == 0 {
			continue
		}
		if key, ok := b.keys.Get(action); ok {
			b.actions.Tap(key)
			b.sleep(KeyInterval)
		}
	}
	b.MoveToAlly(1)
}

// MoveToAlly 选中第 n 个友方并在屏幕中心附近随机移动
func (b *CombatLoop) MoveToAlly(n int) {
	if n >= 1 && n <= len(allySelectors) {
		if key, ok := b.keys.Get(allySelectors[n-1]); ok {
			b.actions.Tap(key)
		}
	}
	b.MoveRandomOffset(b.actions.ScreenCenter())
}

// MoveRandomOffset 在 p 附近按窗口百分比随机偏移右键移动
func (b *CombatLoop) MoveRandomOffset(p auto.Point) {
	dx := float64(b.rand.IntN(2*MoveOffset+1) - MoveOffset)
	dy := float64(b.rand.IntN(2*MoveOffset+1) - MoveOffset)
	b.click(p.X, p.Y, dx, dy, input.Right)
}

func (b *CombatLoop) click(x, y int, px, py float64, button input.Button) {
	if err := b.actions.ClickPercentOffset(x, y, px, py, button); err != nil {
		logger.Warn("点击失败: %v", err)
	}
}

func (b *CombatLoop) sleepRandom(min, max time.Duration) {
	b.sleep(min + time.Duration(b.rand.Float64()*float64(max-min)))
}
