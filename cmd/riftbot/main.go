package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zoeyai/riftbot/internal/logger"
	"github.com/zoeyai/riftbot/pkg/auto"
	"github.com/zoeyai/riftbot/pkg/auto/window"
	"github.com/zoeyai/riftbot/pkg/bot"
	"github.com/zoeyai/riftbot/pkg/config"
	"github.com/zoeyai/riftbot/pkg/hotkey"
	"github.com/zoeyai/riftbot/pkg/lcu"
	"github.com/zoeyai/riftbot/pkg/match"
	"github.com/zoeyai/riftbot/pkg/permissions"
	"github.com/zoeyai/riftbot/pkg/process"
	"github.com/zoeyai/riftbot/pkg/status"
	"github.com/zoeyai/riftbot/pkg/vision/ocr"
)

// 版本信息 (可通过 ldflags 注入)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// 启动等待
const (
	clientWindowTimeout = 2 * time.Minute
	shutdownTimeout     = 5 * time.Second
)

func main() {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径 (json/yaml/toml)，默认 ~/.riftbot/config.json")
		mode        = flag.String("mode", "", "游戏模式: "+strings.Join(bot.ModeNames(), "/"))
		champion    = flag.String("champion", "", "偏好英雄名称")
		logDir      = flag.String("log-dir", "logs", "日志目录")
		debug       = flag.Bool("debug", false, "输出调试日志")
		noColor     = flag.Bool("no-color", false, "关闭控制台彩色输出")
		quiet       = flag.Bool("quiet", false, "只写日志文件，不输出到控制台")
		saveConfig  = flag.Bool("save", false, "保存配置到本地")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}
	if *showHelp {
		printHelp()
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("[WARN] 加载配置失败: %v\n", err)
	}

	// 命令行参数优先级高于配置文件
	if *mode != "" {
		cfg.General.SelectedGameMode = *mode
	}
	if *champion != "" {
		cfg.General.PreferredChampion = *champion
	}

	if *saveConfig {
		if err := config.Save(cfg); err != nil {
			fmt.Printf("[WARN] 保存配置失败: %v\n", err)
		} else {
			fmt.Printf("[INFO] 配置已保存到 %s\n", config.GetDefaultManager().GetConfigFile())
		}
	}

	if *debug {
		logger.Default().SetLevel(logger.DEBUG)
	}
	if *noColor {
		logger.Default().SetColor(false)
	}
	if *quiet {
		logger.Default().SetConsole(false)
	}
	if _, err := logger.Default().OpenSessionFile(*logDir); err != nil {
		fmt.Printf("[WARN] 创建日志文件失败: %v\n", err)
	}
	defer logger.Default().Close()

	if err := run(cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("%v", err)
		logger.Default().Close()
		os.Exit(1)
	}
	logger.Info("已退出")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// run 启动各组件并运行控制器，直到客户端关闭、收到退出信号或按下停止热键
func run(cfg *config.Config) error {
	mode, err := bot.Lookup(cfg.General.SelectedGameMode)
	if err != nil {
		return err
	}

	fmt.Println("========================================")
	fmt.Printf("  RiftBot v%s\n", Version)
	fmt.Println("========================================")
	fmt.Printf("模式: %s (队列 %d)\n", mode.Name, mode.QueueID)
	if cfg.General.PreferredChampion != "" {
		fmt.Printf("偏好英雄: %s\n", cfg.General.PreferredChampion)
	}
	fmt.Printf("停止热键: %s\n", cfg.StopHotkey)
	if path := logger.Default().FilePath(); path != "" {
		fmt.Printf("日志文件: %s\n", path)
	}
	fmt.Println()

	if perm := permissions.Check(); !perm.AllGranted() {
		permissions.OpenSettings(perm)
		return fmt.Errorf("缺少系统权限: %s\n%s", strings.Join(perm.Missing(), ", "), perm.Instructions())
	}

	locator, err := ocr.InitGlobalLocator(ocrConfig(cfg.Perception))
	if err != nil {
		return fmt.Errorf("初始化文字识别失败: %w", err)
	}
	defer locator.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if fired, err := hotkey.Watch(ctx, cfg.StopHotkey); err != nil {
		logger.Warn("停止热键不可用: %v", err)
	} else {
		go func() {
			select {
			case <-fired:
				logger.Warn("按下 %s，正在停止", cfg.StopHotkey)
				stop()
			case <-ctx.Done():
			}
		}()
	}

	creds, err := process.FindClientCredentials()
	if err != nil {
		return fmt.Errorf("未能连接游戏客户端，请先启动并登录: %w", err)
	}
	logger.Info("已找到客户端 (pid %d, 端口 %d)", creds.PID, creds.Port)

	if _, err := window.WaitForWindow(ctx, window.ClientWindowTitle, auto.WithTimeout(clientWindowTimeout)); err != nil {
		return err
	}

	client := lcu.NewClient(creds)
	games := newGameFactory(cfg, mode, bot.NewScreenPerception(locator, cfg.Perception.DebugDumpDir))
	controller := match.NewController(client, games.Loops, mode.QueueID,
		match.WithPreferredChampion(cfg.General.PreferredChampion),
		match.WithChampionResolver(lcu.NewDataDragon()),
	)

	server := status.New(controller, games.Latest, status.Options{
		HTTPAddr: cfg.Status.HTTPAddr,
		GRPCAddr: cfg.Status.GRPCAddr,
		Version:  Version,
	})
	if err := server.Start(); err != nil {
		logger.Warn("状态服务启动失败: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("%v", err)
		}
	}()

	events := match.Subscribe(ctx, lcu.NewSubscriber(creds))

	server.SetServing(true)
	logger.Info("已连接客户端，会话 %s，按 Ctrl+C 或 %s 退出", controller.SessionID(), cfg.StopHotkey)
	err = controller.Run(ctx, events)
	server.SetServing(false)

	if errors.Is(err, lcu.ErrConnectionClosed) {
		logger.Info("游戏客户端已关闭")
		return nil
	}
	return err
}

// ocrConfig 由配置生成 OCR 引擎配置
func ocrConfig(p config.PerceptionConfig) ocr.Config {
	if strings.EqualFold(p.OCREngine, ocr.EnginePaddle) {
		return ocr.PaddleConfig(p.PaddleModelDir)
	}
	c := ocr.DefaultConfig()
	if p.OCREngine != "" {
		c.Engine = strings.ToLower(p.OCREngine)
	}
	if p.TesseractLanguage != "" {
		c.Language = p.TesseractLanguage
	}
	return c
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("RiftBot v%s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("RiftBot - 英雄联盟自动对局工具")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  riftbot [选项]")
	fmt.Println()
	fmt.Println("选项:")
	fmt.Println("  -config string      配置文件路径 (json/yaml/toml)")
	fmt.Printf("  -mode string        游戏模式 (%s)\n", strings.Join(bot.ModeNames(), "/"))
	fmt.Println("  -champion string    偏好英雄名称")
	fmt.Println("  -log-dir string     日志目录 (默认 logs)")
	fmt.Println("  -debug              输出调试日志")
	fmt.Println("  -no-color           关闭控制台彩色输出")
	fmt.Println("  -quiet              只写日志文件，不输出到控制台")
	fmt.Println("  -save               保存配置到本地")
	fmt.Println("  -version            显示版本信息")
	fmt.Println("  -help               显示帮助信息")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  # 斗魂竞技场，偏好阿狸")
	fmt.Println("  riftbot -mode arena -champion Ahri")
	fmt.Println()
	fmt.Println("  # 使用 YAML 配置并开启状态服务")
	fmt.Println("  RIFTBOT_STATUS_HTTP_ADDR=127.0.0.1:8765 riftbot -config riftbot.yaml")
	fmt.Println()
	fmt.Printf("配置文件位置: %s\n", config.GetDefaultManager().GetConfigFile())
}
