// Package config 提供机器人配置的加载与保存
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Keybinds 逻辑动作名 -> 物理按键
type Keybinds map[string]string

// Get 获取动作对应的按键，未配置或为空时 ok 为 false
func (k Keybinds) Get(action string) (string, bool) {
	key, ok := k[action]
	if !ok || strings.TrimSpace(key) == "" {
		return "", false
	}
	return key, true
}

// GeneralConfig 常规配置
type GeneralConfig struct {
	PreferredChampion string `json:"preferred_champion" mapstructure:"preferred_champion"`
	SelectedGameMode  string `json:"selected_game_mode" mapstructure:"selected_game_mode"`
}

// PerceptionConfig 识别相关配置
type PerceptionConfig struct {
	// OCREngine tesseract 或 paddle
	OCREngine string `json:"ocr_engine" mapstructure:"ocr_engine"`
	// TesseractLanguage tesseract 语言包
	TesseractLanguage string `json:"tesseract_language" mapstructure:"tesseract_language"`
	// PaddleModelDir PaddleOCR 模型目录 (paddle 引擎使用)
	PaddleModelDir string `json:"paddle_model_dir" mapstructure:"paddle_model_dir"`
	// DebugDumpDir 非空时保存带标注的截图
	DebugDumpDir string `json:"debug_dump_dir" mapstructure:"debug_dump_dir"`
}

// TelemetryConfig 对局数据轮询配置
type TelemetryConfig struct {
	URL      string        `json:"url" mapstructure:"url"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
}

// StatusConfig 运行状态服务配置，地址为空表示不启用
type StatusConfig struct {
	HTTPAddr string `json:"http_addr" mapstructure:"http_addr"`
	GRPCAddr string `json:"grpc_addr" mapstructure:"grpc_addr"`
}

// Config 机器人配置
type Config struct {
	Keybinds   Keybinds         `json:"Keybinds" mapstructure:"keybinds"`
	General    GeneralConfig    `json:"General" mapstructure:"general"`
	Perception PerceptionConfig `json:"Perception" mapstructure:"perception"`
	Telemetry  TelemetryConfig  `json:"Telemetry" mapstructure:"telemetry"`
	Status     StatusConfig     `json:"Status" mapstructure:"status"`
	// StopHotkey 紧急停止热键
	StopHotkey string `json:"stop_hotkey" mapstructure:"stop_hotkey"`
}

// DefaultKeybinds 默认按键绑定
func DefaultKeybinds() Keybinds {
	return Keybinds{
		"spell_1":       "q",
		"spell_2":       "w",
		"spell_3":       "e",
		"spell_4":       "r",
		"sum_1":         "d",
		"sum_2":         "f",
		"item_1":        "1",
		"item_2":        "2",
		"item_3":        "3",
		"item_4":        "4",
		"item_5":        "5",
		"item_6":        "6",
		"shop":          "p",
		"center_camera": "space",
		"select_ally_1": "f2",
		"select_ally_2": "f3",
		"hold_to_level": "ctrl",
	}
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Keybinds: DefaultKeybinds(),
		General: GeneralConfig{
			PreferredChampion: "",
			SelectedGameMode:  "arena",
		},
		Perception: PerceptionConfig{
			OCREngine:         "tesseract",
			TesseractLanguage: "eng",
		},
		Telemetry: TelemetryConfig{
			URL:      "https://127.0.0.1:2999/liveclientdata/allgamedata",
			Interval: 200 * time.Millisecond,
			Timeout:  time.Second,
		},
		StopHotkey: "end",
	}
}

// fillDefaults 为缺失字段补默认值
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Keybinds == nil {
		c.Keybinds = def.Keybinds
	}
	if c.General.SelectedGameMode == "" {
		c.General.SelectedGameMode = def.General.SelectedGameMode
	}
	if c.Perception.OCREngine == "" {
		c.Perception.OCREngine = def.Perception.OCREngine
	}
	if c.Perception.TesseractLanguage == "" {
		c.Perception.TesseractLanguage = def.Perception.TesseractLanguage
	}
	if c.Telemetry.URL == "" {
		c.Telemetry.URL = def.Telemetry.URL
	}
	if c.Telemetry.Interval <= 0 {
		c.Telemetry.Interval = def.Telemetry.Interval
	}
	if c.Telemetry.Timeout <= 0 {
		c.Telemetry.Timeout = def.Telemetry.Timeout
	}
	if c.StopHotkey == "" {
		c.StopHotkey = def.StopHotkey
	}
}

// Manager 配置管理器
type Manager struct {
	configDir  string
	configFile string
	mu         sync.RWMutex
}

// NewManager 创建配置管理器
func NewManager() *Manager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return NewManagerWithDir(filepath.Join(homeDir, ".riftbot"))
}

// NewManagerWithDir 使用指定目录创建配置管理器
func NewManagerWithDir(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configFile: filepath.Join(configDir, "config.json"),
	}
}

// Load 加载配置
func (m *Manager) Load() (*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := os.Stat(m.configFile); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(m.configFile)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return DefaultConfig(), fmt.Errorf("解析配置文件失败: %w", err)
	}
	config.fillDefaults()

	return &config, nil
}

// Save 保存配置
func (m *Manager) Save(config *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(m.configFile, data, 0600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// Clear 清除配置
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.configFile); os.IsNotExist(err) {
		return nil
	}

	return os.Remove(m.configFile)
}

// GetConfigFile 获取配置文件路径
func (m *Manager) GetConfigFile() string {
	return m.configFile
}

// Exists 检查配置文件是否存在
func (m *Manager) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := os.Stat(m.configFile)
	return err == nil
}

// LoadFile 读取指定配置文件 (json/yaml/toml)，支持 RIFTBOT_ 前缀环境变量覆盖
//
// 例: RIFTBOT_GENERAL_SELECTED_GAME_MODE=aram
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setViperDefaults(v, DefaultConfig())

	v.SetConfigFile(path)
	v.SetEnvPrefix("RIFTBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return DefaultConfig(), fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return DefaultConfig(), fmt.Errorf("解析配置文件失败: %w", err)
	}
	config.fillDefaults()

	return &config, nil
}

func setViperDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("general.preferred_champion", def.General.PreferredChampion)
	v.SetDefault("general.selected_game_mode", def.General.SelectedGameMode)
	v.SetDefault("perception.ocr_engine", def.Perception.OCREngine)
	v.SetDefault("perception.tesseract_language", def.Perception.TesseractLanguage)
	v.SetDefault("perception.paddle_model_dir", def.Perception.PaddleModelDir)
	v.SetDefault("perception.debug_dump_dir", def.Perception.DebugDumpDir)
	v.SetDefault("telemetry.url", def.Telemetry.URL)
	v.SetDefault("telemetry.interval", def.Telemetry.Interval)
	v.SetDefault("telemetry.timeout", def.Telemetry.Timeout)
	v.SetDefault("status.http_addr", def.Status.HTTPAddr)
	v.SetDefault("status.grpc_addr", def.Status.GRPCAddr)
	v.SetDefault("stop_hotkey", def.StopHotkey)
}

// 全局配置管理器
var defaultManager = NewManager()

// GetDefaultManager 获取默认配置管理器
func GetDefaultManager() *Manager {
	return defaultManager
}

// Load 使用默认管理器加载配置
func Load() (*Config, error) {
	return defaultManager.Load()
}

// Save 使用默认管理器保存配置
func Save(config *Config) error {
	return defaultManager.Save(config)
}
