package lcu

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zoeyai/riftbot/internal/logger"
	"github.com/zoeyai/riftbot/pkg/process"
)

// DefaultTimeout 单次请求超时
const DefaultTimeout = 5 * time.Second

// Client 客户端 REST 接口
type Client struct {
	baseURL    string
	password   string
	httpClient *http.Client
}

// NewClient 使用进程凭据创建客户端
func NewClient(creds *process.Credentials) *Client {
	return NewClientWithURL(creds.BaseURL(), creds.Password, nil)
}

// NewClientWithURL 使用指定地址创建客户端，httpClient 为空时使用跳过证书校验的默认客户端
func NewClientWithURL(baseURL, password string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		password:   password,
		httpClient: httpClient,
	}
}

// do 发送请求，out 非空时解析响应 JSON
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求失败: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.SetBasicAuth("riot", c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求 %s %s 失败: %w", method, path, err)
	}
	defer resp.Body.Close()

	logger.Debug("LCU %s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("请求 %s %s 失败: 状态码 %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应 %s 失败: %w", path, err)
	}
	return nil
}

// GameflowPhase 当前对局阶段
func (c *Client) GameflowPhase(ctx context.Context) (Phase, error) {
	var phase Phase
	if err := c.do(ctx, http.MethodGet, URIGameflowPhase, nil, &phase); err != nil {
		return "", err
	}
	return phase, nil
}

// CurrentSummoner 当前登录的召唤师
func (c *Client) CurrentSummoner(ctx context.Context) (*Summoner, error) {
	var s Summoner
	if err := c.do(ctx, http.MethodGet, "/lol-summoner/v1/current-summoner", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// OwnedChampions 已拥有英雄 名称 -> ID
func (c *Client) OwnedChampions(ctx context.Context, summonerID int64) (map[string]int, error) {
	var list []Champion
	path := fmt.Sprintf("/lol-champions/v1/inventories/%d/champions-minimal", summonerID)
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}

	owned := make(map[string]int, len(list))
	for _, ch := range list {
		owned[ch.Name] = ch.ID
	}
	return owned, nil
}

// ChampSelectSession 当前选人会话
func (c *Client) ChampSelectSession(ctx context.Context) (*ChampSelectSession, error) {
	var s ChampSelectSession
	if err := c.do(ctx, http.MethodGet, URIChampSelectSession, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateLobby 以指定队列创建房间
func (c *Client) CreateLobby(ctx context.Context, queueID int) error {
	return c.do(ctx, http.MethodPost, "/lol-lobby/v2/lobby", map[string]int{"queueId": queueID}, nil)
}

// StartMatchmaking 开始匹配
func (c *Client) StartMatchmaking(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/lol-lobby/v2/lobby/matchmaking/search", nil, nil)
}

// AcceptReadyCheck 接受对局
func (c *Client) AcceptReadyCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/lol-matchmaking/v1/ready-check/accept", nil, nil)
}

// PlayAgain 对局结束后返回房间
func (c *Client) PlayAgain(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/lol-lobby/v2/play-again", nil, nil)
}

// CompleteAction 提交选人/禁用动作
func (c *Client) CompleteAction(ctx context.Context, actionID int64, championID int) error {
	path := fmt.Sprintf("%s/actions/%d", URIChampSelectSession, actionID)
	body := map[string]interface{}{"championId": championID, "completed": true}
	return c.do(ctx, http.MethodPatch, path, body, nil)
}
