// Package hotkey 全局紧急停止热键
package hotkey

import (
	"context"
	"fmt"
	"strings"
)

// 虚拟键码
var virtualKeys = map[string]uint32{
	"end":    0x23,
	"home":   0x24,
	"insert": 0x2D,
	"delete": 0x2E,
	"escape": 0x1B,
	"esc":    0x1B,
	"pause":  0x13,
}

// ParseKey 按键名转换为虚拟键码，支持 f1-f12、字母和数字
func ParseKey(name string) (uint32, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if code, ok := virtualKeys[name]; ok {
		return code, nil
	}

	var n int
	if _, err := fmt.Sscanf(name, "f%d", &n); err == nil && n >= 1 && n <= 12 && name == fmt.Sprintf("f%d", n) {
		return 0x70 + uint32(n-1), nil
	}
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return uint32(c - 'a' + 'A'), nil
		case c >= '0' && c <= '9':
			return uint32(c), nil
		}
	}
	return 0, fmt.Errorf("不支持的热键: %q", name)
}

// Watch 监听热键，按下时关闭返回的通道；ctx 结束后停止监听
//
// 仅 Windows 支持全局键盘钩子，其他平台返回的通道永不关闭。
func Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	code, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	fired := make(chan struct{})
	if err := watch(ctx, code, fired); err != nil {
		return nil, fmt.Errorf("安装键盘钩子失败: %w", err)
	}
	return fired, nil
}
