package match

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/zoeyai/riftbot/internal/logger"
	"github.com/zoeyai/riftbot/pkg/lcu"
)

// Event 控制器事件
type Event interface {
	isEvent()
}

// PhaseEvent 对局阶段变化
type PhaseEvent struct {
	Phase lcu.Phase
}

// ChampSelectEvent 选人会话创建或更新
type ChampSelectEvent struct {
	Session *lcu.ChampSelectSession
}

// ReadyCheckEvent 准备确认状态更新
type ReadyCheckEvent struct {
	lcu.ReadyCheck
}

// ClientClosedEvent 客户端关闭
type ClientClosedEvent struct {
	Err error
}

// ReconnectedEvent 事件通道重连成功，断线期间的推送已丢失
type ReconnectedEvent struct{}

func (PhaseEvent) isEvent()        {}
func (ChampSelectEvent) isEvent()  {}
func (ReadyCheckEvent) isEvent()   {}
func (ClientClosedEvent) isEvent() {}
func (ReconnectedEvent) isEvent()  {}

// FromMessage 将客户端推送转换为控制器事件，无关推送返回 false
func FromMessage(msg lcu.Message) (Event, bool) {
	if msg.URI == "" && msg.EventType == lcu.EventReconnected {
		return ReconnectedEvent{}, true
	}
	eventType := strings.ToLower(msg.EventType)

	switch msg.URI {
	case lcu.URIGameflowPhase:
		if eventType != "update" {
			return nil, false
		}
		var phase lcu.Phase
		if err := json.Unmarshal(msg.Data, &phase); err != nil {
			logger.Warn("解析阶段事件失败: %v", err)
			return nil, false
		}
		return PhaseEvent{Phase: phase}, true

	case lcu.URIChampSelectSession:
		if eventType != "create" && eventType != "update" {
			return nil, false
		}
		var session lcu.ChampSelectSession
		if err := json.Unmarshal(msg.Data, &session); err != nil {
			logger.Warn("解析选人事件失败: %v", err)
			return nil, false
		}
		return ChampSelectEvent{Session: &session}, true

	case lcu.URIReadyCheck:
		if eventType != "update" {
			return nil, false
		}
		var rc lcu.ReadyCheck
		if err := json.Unmarshal(msg.Data, &rc); err != nil {
			logger.Warn("解析准备确认事件失败: %v", err)
			return nil, false
		}
		return ReadyCheckEvent{ReadyCheck: rc}, true
	}

	return nil, false
}

// MessageSource 客户端推送来源
type MessageSource interface {
	Run(ctx context.Context, out chan<- lcu.Message) error
}

// Subscribe 启动推送来源并转换为事件流；来源结束时发送 ClientClosedEvent 并关闭通道
func Subscribe(ctx context.Context, src MessageSource) <-chan Event {
	msgs := make(chan lcu.Message, 64)
	events := make(chan Event, 64)

	var runErr error
	go func() {
		runErr = src.Run(ctx, msgs)
		close(msgs)
	}()

	go func() {
		defer close(events)
		for msg := range msgs {
			ev, ok := FromMessage(msg)
			if !ok {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		select {
		case events <- ClientClosedEvent{Err: runErr}:
		case <-ctx.Done():
		}
	}()

	return events
}
