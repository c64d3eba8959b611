//go:build windows

package hotkey

import (
	"context"

	"github.com/moutend/go-hook/pkg/keyboard"
	"github.com/moutend/go-hook/pkg/types"
	"github.com/zoeyai/riftbot/internal/logger"
)

func watch(ctx context.Context, code uint32, fired chan struct{}) error {
	events := make(chan types.KeyboardEvent, 100)
	if err := keyboard.Install(nil, events); err != nil {
		return err
	}

	go func() {
		defer keyboard.Uninstall()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				if ev.Message == types.WM_KEYDOWN && uint32(ev.VKCode) == code {
					logger.Warn("检测到紧急停止热键")
					close(fired)
					return
				}
			}
		}
	}()
	return nil
}
