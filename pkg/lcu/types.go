// Package lcu 游戏客户端本地控制接口 (REST + WAMP 事件推送)
package lcu

import (
	"errors"

	"github.com/zoeyai/riftbot/pkg/process"
)

// ErrClientNotFound 客户端未运行
var ErrClientNotFound = process.ErrClientNotFound

// ErrConnectionClosed 事件通道已关闭且重连失败
var ErrConnectionClosed = errors.New("客户端事件通道已关闭")

// 事件 URI
const (
	URIGameflowPhase      = "/lol-gameflow/v1/gameflow-phase"
	URIChampSelectSession = "/lol-champ-select/v1/session"
	URIReadyCheck         = "/lol-matchmaking/v1/ready-check"
)

// EventReconnected 重连成功后由 Subscriber 推送的标记消息 (URI 为空)，
// 断线期间的推送已丢失，接收方需要重新读取当前状态
const EventReconnected = "Reconnected"

// Phase 对局阶段
type Phase string

const (
	PhaseNone            Phase = "None"
	PhaseLobby           Phase = "Lobby"
	PhaseMatchmaking     Phase = "Matchmaking"
	PhaseReadyCheck      Phase = "ReadyCheck"
	PhaseChampSelect     Phase = "ChampSelect"
	PhaseGameStart       Phase = "GameStart"
	PhaseInProgress      Phase = "InProgress"
	PhaseWaitingForStats Phase = "WaitingForStats"
	PhasePreEndOfGame    Phase = "PreEndOfGame"
	PhaseEndOfGame       Phase = "EndOfGame"
)

// 选人阶段计时器取值
const TimerBanPick = "BAN_PICK"

// 动作类型
const (
	ActionPick = "pick"
	ActionBan  = "ban"
)

// 无效英雄 ID
const (
	InvalidChampionNone = -1
	InvalidChampionBot  = -3
)

// Summoner 当前召唤师
type Summoner struct {
	SummonerID  int64  `json:"summonerId"`
	AccountID   int64  `json:"accountId"`
	PUUID       string `json:"puuid"`
	GameName    string `json:"gameName"`
	DisplayName string `json:"displayName"`
}

// Champion 已拥有英雄
type Champion struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Alias string `json:"alias"`
}

// Action 选人/禁用动作
type Action struct {
	ID           int64  `json:"id"`
	ActorCellID  int64  `json:"actorCellId"`
	ChampionID   int    `json:"championId"`
	Completed    bool   `json:"completed"`
	IsInProgress bool   `json:"isInProgress"`
	Type         string `json:"type"`
}

// Timer 选人计时器
type Timer struct {
	Phase string `json:"phase"`
}

// ChampSelectSession 选人会话
type ChampSelectSession struct {
	LocalPlayerCellID int64      `json:"localPlayerCellId"`
	Actions           [][]Action `json:"actions"`
	Timer             Timer      `json:"timer"`
}

// PendingAction 返回本地玩家正在进行的指定类型动作
func (s *ChampSelectSession) PendingAction(actionType string) (Action, bool) {
	if s == nil {
		return Action{}, false
	}
	for _, group := range s.Actions {
		for _, a := range group {
			if a.ActorCellID == s.LocalPlayerCellID && a.Type == actionType && a.IsInProgress && !a.Completed {
				return a, true
			}
		}
	}
	return Action{}, false
}

// ReadyCheck 准备确认状态
type ReadyCheck struct {
	State          string `json:"state"`
	PlayerResponse string `json:"playerResponse"`
}

// Pending 是否等待本地玩家响应
func (r ReadyCheck) Pending() bool {
	return r.State == "InProgress" && r.PlayerResponse == "None"
}

// IsValidChampionID 排除占位 ID
func IsValidChampionID(id int) bool {
	return id > 0 && id != InvalidChampionNone && id != InvalidChampionBot
}
