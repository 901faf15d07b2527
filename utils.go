package namechain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"github.com/snowzach/rotatefilehook"
	"github.com/vrecan/death/v3"
)

const (
	logName = "console"

	logsDir  = "logs"        // 日志目录
	coinsDir = "coins"       // 币数据库目录
	namesDB  = "names.db"    // 名字索引数据库文件
	poolFile = "mempool.dat" // 内存池持久化文件
)

// dataDir 返回实例在当前网络下的数据目录
func dataDir(opt *Options) string {
	return filepath.Join(opt.RootPath, opt.Params().Name)
}

// initDirectories 确保所有预定义的文件夹都存在
func initDirectories(opt *Options) error {
	directories := []string{
		dataDir(opt),
		filepath.Join(dataDir(opt), logsDir),
		filepath.Join(dataDir(opt), coinsDir),
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// SetLog 为每一个实例创建一个log文件，记录日志信息
func SetLog(instanceId, logPath string) error {
	var logLevel = logrus.InfoLevel
	filename := filepath.Join(logPath, fmt.Sprintf("%s.log", logName))
	if instanceId != "" {
		filename = filepath.Join(logPath, fmt.Sprintf("%s_%s.log", logName, instanceId))
	}
	// logrus 的回调钩子
	rotateFileHook, err := rotatefilehook.NewRotateFileHook(rotatefilehook.RotateFileConfig{
		Filename:   filename,
		MaxSize:    50, // 文件最大50M
		MaxBackups: 3,
		MaxAge:     28, // 存储28天
		Level:      logLevel,
		Formatter: &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		},
	})
	if err != nil {
		return fmt.Errorf("初始化文件回调钩子失败: %w", err)
	}

	logrus.SetLevel(logLevel)
	logrus.SetOutput(colorable.NewColorableStdout())
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC822,
	})
	logrus.AddHook(rotateFileHook)
	return nil
}

// WaitForShutdown 阻塞直到收到终止信号，然后关闭节点
// syscall.SIGINT 由 ctrl+c 触发，syscall.SIGTERM 在进程被 kill 时触发
func WaitForShutdown(node *Node) error {
	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	return d.WaitForDeath(node)
}

// generateRandomString 生成一个指定长度的随机字符串
func generateRandomString(length int) (string, error) {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	var result strings.Builder
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		result.WriteByte(letters[num.Int64()])
	}
	return result.String(), nil
}
