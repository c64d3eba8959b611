package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/zoeyai/riftbot/pkg/auto"
	"github.com/zoeyai/riftbot/pkg/auto/input"
	"github.com/zoeyai/riftbot/pkg/auto/window"
	"github.com/zoeyai/riftbot/pkg/bot"
	"github.com/zoeyai/riftbot/pkg/config"
	"github.com/zoeyai/riftbot/pkg/match"
	"github.com/zoeyai/riftbot/pkg/telemetry"
)

// gameWindowTimeout 对局开始后等待游戏窗口的时间
const gameWindowTimeout = 3 * time.Minute

// gameFactory 每局创建新的遥测存储、轮询器和局内循环
type gameFactory struct {
	cfg        *config.Config
	mode       bot.Mode
	perception bot.Perception
	actions    *input.Driver
	current    atomic.Pointer[telemetry.Store]
}

func newGameFactory(cfg *config.Config, mode bot.Mode, perception bot.Perception) *gameFactory {
	return &gameFactory{
		cfg:        cfg,
		mode:       mode,
		perception: perception,
		actions:    input.NewDriver(),
	}
}

// Loops 实现 match.LoopFactory
func (g *gameFactory) Loops() []match.Loop {
	store := telemetry.NewStore()
	g.current.Store(store)

	t := g.cfg.Telemetry
	poller := telemetry.NewPoller(store, t.URL, t.Interval, t.Timeout)
	gameBot := g.mode.New(bot.Deps{
		Perception:   g.perception,
		Actions:      g.actions,
		Store:        store,
		Keybinds:     g.cfg.Keybinds,
		PollInterval: t.Interval,
	})

	return []match.Loop{
		func(ctx context.Context) error {
			poller.Run(ctx)
			return nil
		},
		func(ctx context.Context) error {
			if _, err := window.WaitForWindow(ctx, window.GameWindowTitle, auto.WithTimeout(gameWindowTimeout)); err != nil {
				return fmt.Errorf("游戏窗口未出现，本局停止自动操作: %w", err)
			}
			return gameBot.RunGameLoop(ctx)
		},
	}
}

// Latest 当前对局的最新遥测数据
func (g *gameFactory) Latest() *telemetry.Snapshot {
	if store := g.current.Load(); store != nil {
		return store.Load()
	}
	return nil
}
