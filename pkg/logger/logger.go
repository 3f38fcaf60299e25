package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger 全局日志实例，未初始化时各函数退回 logrus 标准实例
	Logger *logrus.Logger
	logMu  sync.Mutex
)

// Config 日志配置
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // text 或 json，默认 text
	OutputFile string // 为空则只输出到 stderr
	MaxSize    int    // MB
	MaxBackups int
	MaxAge     int // 天
	Compress   bool
	NoConsole  bool // 不输出到 stderr
	// Redact 不允许出现在日志里的字符串（私钥、助记词、JWT）
	Redact []string
}

func newFormatter(format string) logrus.Formatter {
	if format == "json" {
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05",
	}
}

// Init 初始化日志系统。stdout 留给 CLI 的表格/JSON 输出，日志只写 stderr 和文件。
func Init(config Config) error {
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	var writers []io.Writer
	if !config.NoConsole {
		writers = append(writers, os.Stderr)
	}
	if config.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0o755); err != nil {
			return err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   config.OutputFile,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
	}
	out := io.Discard
	if len(writers) > 0 {
		out = io.MultiWriter(writers...)
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(newFormatter(config.Format))
	l.SetOutput(out)
	if h := newRedactHook(config.Redact); h != nil {
		l.AddHook(h)
	}

	// 第三方库直接用 logrus 标准实例的地方也走同一输出
	logrus.SetOutput(out)
	logrus.SetLevel(level)
	logrus.SetFormatter(newFormatter(config.Format))

	logMu.Lock()
	Logger = l
	logMu.Unlock()
	return nil
}

// Discard 丢弃所有日志，测试里用
func Discard() {
	l := logrus.New()
	l.SetOutput(io.Discard)
	logMu.Lock()
	Logger = l
	logMu.Unlock()
}

func current() *logrus.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	if Logger == nil {
		return logrus.StandardLogger()
	}
	return Logger
}

func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { current().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { current().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }

// WithField 带字段的日志 entry
func WithField(key string, value interface{}) *logrus.Entry {
	return current().WithField(key, value)
}

// WithFields 带多个字段的日志 entry
func WithFields(fields logrus.Fields) *logrus.Entry {
	return current().WithFields(fields)
}

// redactHook 把敏感字符串替换成 ***
type redactHook struct {
	replacer *strings.Replacer
}

func newRedactHook(secrets []string) *redactHook {
	var pairs []string
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		// 太短的值替换后会误伤正常文本
		if len(s) < 8 {
			continue
		}
		pairs = append(pairs, s, "***")
		if trimmed := strings.TrimPrefix(s, "0x"); trimmed != s {
			pairs = append(pairs, trimmed, "***")
		}
	}
	if len(pairs) == 0 {
		return nil
	}
	return &redactHook{replacer: strings.NewReplacer(pairs...)}
}

func (h *redactHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *redactHook) Fire(e *logrus.Entry) error {
	e.Message = h.replacer.Replace(e.Message)
	for k, v := range e.Data {
		switch val := v.(type) {
		case string:
			e.Data[k] = h.replacer.Replace(val)
		case error:
			e.Data[k] = h.replacer.Replace(val.Error())
		}
	}
	return nil
}
