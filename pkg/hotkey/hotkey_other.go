//go:build !windows

package hotkey

import (
	"context"

	"github.com/zoeyai/riftbot/internal/logger"
)

func watch(ctx context.Context, code uint32, fired chan struct{}) error {
	logger.Debug("当前平台不支持全局热键 (0x%02X)", code)
	return nil
}
