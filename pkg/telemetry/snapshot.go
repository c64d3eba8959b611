// Package telemetry 轮询本地对局数据接口并发布到共享的单槽容器
package telemetry

import (
	"strings"
	"sync/atomic"
)

// EventGameStart 对局开始事件名
const EventGameStart = "GameStart"

// Snapshot allgamedata 接口返回的对局数据（仅保留用到的字段）
type Snapshot struct {
	ActivePlayer ActivePlayer `json:"activePlayer"`
	Events       EventList    `json:"events"`
	GameData     GameData     `json:"gameData"`
}

// ActivePlayer 当前玩家
type ActivePlayer struct {
	SummonerName  string        `json:"summonerName"`
	Level         int           `json:"level"`
	CurrentGold   float64       `json:"currentGold"`
	ChampionStats ChampionStats `json:"championStats"`
}

// ChampionStats 英雄属性
type ChampionStats struct {
	CurrentHealth float64 `json:"currentHealth"`
	MaxHealth     float64 `json:"maxHealth"`
}

// EventList 事件列表
type EventList struct {
	Events []Event `json:"Events"`
}

// Event 对局事件
type Event struct {
	EventID   int     `json:"EventID"`
	EventName string  `json:"EventName"`
	EventTime float64 `json:"EventTime"`
}

// GameData 对局信息
type GameData struct {
	GameMode string  `json:"gameMode"`
	GameTime float64 `json:"gameTime"`
}

// HealthPercent 当前生命值百分比 (0-100)，最大生命为 0 时返回 100
func (s *Snapshot) HealthPercent() float64 {
	if s == nil || s.ActivePlayer.ChampionStats.MaxHealth <= 0 {
		return 100
	}
	return s.ActivePlayer.ChampionStats.CurrentHealth * 100 / s.ActivePlayer.ChampionStats.MaxHealth
}

// HasEvent 是否包含指定名称的事件（不区分大小写）
func (s *Snapshot) HasEvent(name string) bool {
	if s == nil {
		return false
	}
	for _, e := range s.Events.Events {
		if strings.EqualFold(e.EventName, name) {
			return true
		}
	}
	return false
}

// Started 是否已出现对局开始事件
func (s *Snapshot) Started() bool {
	return s.HasEvent(EventGameStart)
}

// Store 单写多读的共享容器，每次整体替换快照，读者不会看到半更新的数据
//
// nil 表示暂无数据
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore 创建空容器
func NewStore() *Store {
	return &Store{}
}

// Load 读取当前快照，调用方不得修改返回值
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Store 整体替换快照
func (s *Store) Store(snap *Snapshot) {
	s.current.Store(snap)
}

// Level 当前等级，无数据时 ok 为 false
func (s *Store) Level() (int, bool) {
	snap := s.Load()
	if snap == nil {
		return 0, false
	}
	return snap.ActivePlayer.Level, true
}
