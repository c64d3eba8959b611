package lcu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultDataDragonURL Data Dragon 静态数据地址
const DefaultDataDragonURL = "https://ddragon.leagueoflegends.com"

// DataDragon 英雄静态数据，用于已拥有列表缺少偏好英雄时按名称查 ID
type DataDragon struct {
	BaseURL    string
	HTTPClient *http.Client

	mu    sync.Mutex
	cache map[string]int
}

// NewDataDragon 创建 Data Dragon 查询器
func NewDataDragon() *DataDragon {
	return &DataDragon{
		BaseURL:    DefaultDataDragonURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type ddChampion struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// ChampionIDs 英雄名称(小写) -> ID，名称与内部 id 均可查
func (d *DataDragon) ChampionIDs(ctx context.Context) (map[string]int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cache != nil {
		return d.cache, nil
	}

	var versions []string
	if err := d.getJSON(ctx, "/api/versions.json", &versions); err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("Data Dragon 版本列表为空")
	}

	var payload struct {
		Data map[string]ddChampion `json:"data"`
	}
	if err := d.getJSON(ctx, fmt.Sprintf("/cdn/%s/data/en_US/champion.json", versions[0]), &payload); err != nil {
		return nil, err
	}

	ids := make(map[string]int, len(payload.Data)*2)
	for _, ch := range payload.Data {
		key, err := strconv.Atoi(ch.Key)
		if err != nil {
			continue
		}
		ids[strings.ToLower(ch.Name)] = key
		ids[strings.ToLower(ch.ID)] = key
	}
	d.cache = ids
	return ids, nil
}

// Lookup 按名称查英雄 ID (不区分大小写)
func (d *DataDragon) Lookup(ctx context.Context, name string) (int, bool) {
	ids, err := d.ChampionIDs(ctx)
	if err != nil {
		return 0, false
	}
	id, ok := ids[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

func (d *DataDragon) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(d.BaseURL, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求 Data Dragon 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("请求 Data Dragon %s 失败: 状态码 %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析 Data Dragon 响应失败: %w", err)
	}
	return nil
}
