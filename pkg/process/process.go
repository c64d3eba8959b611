// Package process 查找本地游戏客户端进程及其连接凭据
package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// ClientProcessName 客户端 UI 进程名（不含扩展名）
const ClientProcessName = "LeagueClientUx"

// ErrClientNotFound 客户端未运行
var ErrClientNotFound = errors.New("未找到游戏客户端进程")

// ProcessInfo 进程信息
type ProcessInfo struct {
	PID     int      `json:"pid"`
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Cmdline []string `json:"cmdline,omitempty"`
}

// Credentials 客户端本地接口凭据
type Credentials struct {
	PID      int    `json:"pid"`
	Port     int    `json:"port"`
	Password string `json:"-"`
	Protocol string `json:"protocol"`
}

// BaseURL REST 接口地址
func (c *Credentials) BaseURL() string {
	return fmt.Sprintf("%s://127.0.0.1:%d", c.Protocol, c.Port)
}

// WebSocketURL 事件推送地址
func (c *Credentials) WebSocketURL() string {
	return fmt.Sprintf("wss://127.0.0.1:%d/", c.Port)
}

// FindProcess 按名称查找进程（不区分大小写，忽略 .exe 后缀）
func FindProcess(name string) ([]ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("获取进程列表失败: %w", err)
	}

	name = strings.ToLower(strings.TrimSuffix(name, ".exe"))
	var matches []ProcessInfo

	for _, proc := range procs {
		procName, err := proc.Name()
		if err != nil {
			continue
		}
		if strings.ToLower(strings.TrimSuffix(procName, ".exe")) != name {
			continue
		}

		exe, _ := proc.Exe()
		cmdline, _ := proc.CmdlineSlice()
		matches = append(matches, ProcessInfo{
			PID:     int(proc.Pid),
			Name:    procName,
			Path:    exe,
			Cmdline: cmdline,
		})
	}

	return matches, nil
}

// IsProcessRunning 检查进程是否正在运行
func IsProcessRunning(pid int) bool {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	running, err := proc.IsRunning()
	return err == nil && running
}

// FindClientCredentials 从客户端进程命令行解析端口和令牌，失败时读取 lockfile
func FindClientCredentials() (*Credentials, error) {
	procs, err := FindProcess(ClientProcessName)
	if err != nil {
		return nil, err
	}
	if len(procs) == 0 {
		return nil, ErrClientNotFound
	}

	var lastErr error
	for _, p := range procs {
		creds, err := ParseCommandLine(p.Cmdline)
		if err == nil {
			creds.PID = p.PID
			return creds, nil
		}
		lastErr = err

		if p.Path != "" {
			creds, err := ReadLockfile(filepath.Join(filepath.Dir(p.Path), "lockfile"))
			if err == nil {
				return creds, nil
			}
			lastErr = err
		}
	}
	return nil, fmt.Errorf("解析客户端凭据失败: %w", lastErr)
}

// ParseCommandLine 从 --app-port / --remoting-auth-token 参数解析凭据
func ParseCommandLine(args []string) (*Credentials, error) {
	creds := &Credentials{Protocol: "https"}
	for _, arg := range args {
		arg = strings.Trim(arg, `"`)
		switch {
		case strings.HasPrefix(arg, "--app-port="):
			port, err := strconv.Atoi(strings.TrimPrefix(arg, "--app-port="))
			if err != nil {
				return nil, fmt.Errorf("端口格式错误: %w", err)
			}
			creds.Port = port
		case strings.HasPrefix(arg, "--remoting-auth-token="):
			creds.Password = strings.TrimPrefix(arg, "--remoting-auth-token=")
		case strings.HasPrefix(arg, "--app-pid="):
			creds.PID, _ = strconv.Atoi(strings.TrimPrefix(arg, "--app-pid="))
		}
	}
	if creds.Port == 0 || creds.Password == "" {
		return nil, fmt.Errorf("命令行中缺少端口或令牌")
	}
	return creds, nil
}

// ReadLockfile 读取 lockfile: name:pid:port:password:protocol
func ReadLockfile(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 lockfile 失败: %w", err)
	}
	return ParseLockfile(string(data))
}

// ParseLockfile 解析 lockfile 内容
func ParseLockfile(content string) (*Credentials, error) {
	parts := strings.Split(strings.TrimSpace(content), ":")
	if len(parts) != 5 {
		return nil, fmt.Errorf("lockfile 格式错误: %d 段", len(parts))
	}
	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("lockfile pid 格式错误: %w", err)
	}
	port, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fmt.Errorf("lockfile 端口格式错误: %w", err)
	}
	return &Credentials{PID: pid, Port: port, Password: parts[3], Protocol: parts[4]}, nil
}
