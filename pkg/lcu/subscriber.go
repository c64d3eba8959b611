package lcu

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zoeyai/riftbot/internal/logger"
	"github.com/zoeyai/riftbot/pkg/process"
)

// WAMP 操作码
const (
	wampSubscribe = 5
	wampEvent     = 8
)

// jsonAPIEvent 订阅全部 JSON API 事件
const jsonAPIEvent = "OnJsonApiEvent"

// DefaultReconnectDelays 断线后的重连等待序列
var DefaultReconnectDelays = []time.Duration{
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
}

// Message 客户端推送的原始事件
type Message struct {
	URI       string          `json:"uri"`
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// Subscriber WAMP 事件订阅
type Subscriber struct {
	URL             string
	Password        string
	ReconnectDelays []time.Duration

	dialer   websocket.Dialer
	received atomic.Int64
}

// NewSubscriber 使用进程凭据创建订阅者
func NewSubscriber(creds *process.Credentials) *Subscriber {
	return NewSubscriberWithURL(creds.WebSocketURL(), creds.Password)
}

// NewSubscriberWithURL 使用指定地址创建订阅者
func NewSubscriberWithURL(url, password string) *Subscriber {
	return &Subscriber{
		URL:             url,
		Password:        password,
		ReconnectDelays: DefaultReconnectDelays,
		dialer: websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			TLSClientConfig:  &tls.Config{InsecureSkipVerify: true},
		},
	}
}

// Received 已接收的事件数
func (s *Subscriber) Received() int64 {
	return s.received.Load()
}

// Run 连接并持续推送事件到 out，直到 ctx 取消 (返回 nil) 或重连全部失败 (返回 ErrConnectionClosed)
//
// 每次重连成功后先推送一条 EventType 为 EventReconnected 的消息。
// 重连次数在连接收到过事件后才重新计算，连上即断的连接会消耗重连次数。
func (s *Subscriber) Run(ctx context.Context, out chan<- Message) error {
	conn, err := s.connect(ctx)
	if err != nil {
		return fmt.Errorf("连接客户端事件通道失败: %w", err)
	}

	attempt := 0
	for {
		before := s.received.Load()
		err := s.receiveLoop(ctx, conn, out)
		conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("客户端事件通道断开: %v", err)

		if s.received.Load() > before {
			attempt = 0
		}
		conn, attempt, err = s.attemptReconnect(ctx, attempt)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case out <- Message{EventType: EventReconnected}:
		case <-ctx.Done():
			conn.Close()
			return nil
		}
	}
}

// connect 建立连接并订阅
func (s *Subscriber) connect(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	token := base64.StdEncoding.EncodeToString([]byte("riot:" + s.Password))
	header.Set("Authorization", "Basic "+token)

	conn, _, err := s.dialer.DialContext(ctx, s.URL, header)
	if err != nil {
		return nil, err
	}

	sub, err := json.Marshal([]interface{}{wampSubscribe, jsonAPIEvent})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("序列化订阅消息失败: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("发送订阅消息失败: %w", err)
	}

	logger.Info("已订阅客户端事件: %s", s.URL)
	return conn, nil
}

// receiveLoop 读取事件直到出错或 ctx 取消
func (s *Subscriber) receiveLoop(ctx context.Context, conn *websocket.Conn, out chan<- Message) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		msg, ok := decodeEvent(data)
		if !ok {
			continue
		}
		s.received.Add(1)

		select {
		case out <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// attemptReconnect 从第 attempt 个延迟开始按序列重连，返回连接和下一次的序号
func (s *Subscriber) attemptReconnect(ctx context.Context, attempt int) (*websocket.Conn, int, error) {
	for ; attempt < len(s.ReconnectDelays); attempt++ {
		delay := s.ReconnectDelays[attempt]
		logger.Info("第 %d/%d 次重连，等待 %s", attempt+1, len(s.ReconnectDelays), delay)

		select {
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		case <-time.After(delay):
		}

		conn, err := s.connect(ctx)
		if err == nil {
			logger.Info("重连成功")
			return conn, attempt + 1, nil
		}
		logger.Debug("重连失败: %v", err)
	}

	logger.Error("重连全部失败，客户端可能已关闭")
	return nil, attempt, ErrConnectionClosed
}

// decodeEvent 解析 [8, topic, {uri, eventType, data}]
func decodeEvent(data []byte) (Message, bool) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) != 3 {
		return Message{}, false
	}

	var opcode int
	if err := json.Unmarshal(frame[0], &opcode); err != nil || opcode != wampEvent {
		return Message{}, false
	}

	var msg Message
	if err := json.Unmarshal(frame[2], &msg); err != nil {
		logger.Warn("解析客户端事件失败: %v", err)
		return Message{}, false
	}
	return msg, msg.URI != ""
}
