package auto

import "time"

// Option 配置选项函数类型
type Option func(*Options)

// Options 等待类操作配置
type Options struct {
	// Timeout 操作超时时间
	Timeout time.Duration
	// PollInterval 轮询间隔
	PollInterval time.Duration
}

// DefaultOptions 默认配置
func DefaultOptions() *Options {
	return &Options{
		Timeout:      60 * time.Second,
		PollInterval: DefaultPollInterval,
	}
}

// ApplyOptions 应用配置选项
func ApplyOptions(opts ...Option) *Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithTimeout 设置超时时间
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.PollInterval = d
		}
	}
}
