// Package bot 局内自动操作：等待开局、升级时购物加点、检测敌方英雄并攻击
package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// ErrUnknownMode 不支持的游戏模式
var ErrUnknownMode = errors.New("不支持的游戏模式")

// GameModeBot 某一游戏模式的局内循环
type GameModeBot interface {
	RunGameLoop(ctx context.Context) error
}

// Mode 游戏模式
type Mode struct {
	Name    string
	QueueID int
	New     func(deps Deps) GameModeBot
}

func newCombatBot(deps Deps) GameModeBot {
	return NewCombatLoop(deps)
}

// Modes 模式名 -> 模式，三种模式共用同一局内循环
var Modes = map[string]Mode{
	"arena":     {Name: "arena", QueueID: 1700, New: newCombatBot},
	"aram":      {Name: "aram", QueueID: 450, New: newCombatBot},
	"swiftplay": {Name: "swiftplay", QueueID: 490, New: newCombatBot},
}

// Lookup 按名称查找模式 (不区分大小写)
func Lookup(name string) (Mode, error) {
	mode, ok := Modes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Mode{}, fmt.Errorf("%w: %q (可选: %s)", ErrUnknownMode, name, strings.Join(ModeNames(), ", "))
	}
	return mode, nil
}

// ModeNames 所有模式名，已排序
func ModeNames() []string {
	names := lo.Keys(Modes)
	slices.Sort(names)
	return names
}
