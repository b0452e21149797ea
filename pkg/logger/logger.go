package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOption 日志初始化参数，由 config.LogConfig.ToLogOption() 转换而来
type LogOption struct {
	Format   string // "console" 或 "json"
	LogDir   string // 日志目录，为空时输出到 stdout
	Level    string // debug / info / warn / error
	Compress bool   // 是否压缩轮转出的旧日志
}

var (
	mu  sync.RWMutex
	log = newDefault() // 未显式 Init 时的兜底 logger（console / stdout），保证测试可用
)

func newDefault() *zap.SugaredLogger {
	encoder := zapcore.NewConsoleEncoder(encoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zapcore.InfoLevel)
	return zap.New(core).Sugar()
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// Init 按配置重建全局 logger。
// LogDir 非空时写入轮转文件（lumberjack），否则输出到 stdout。
func Init(opt LogOption) {
	level := zapcore.InfoLevel
	if err := level.Set(opt.Level); err != nil && opt.Level != "" {
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	if opt.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig())
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig())
	}

	var sink zapcore.WriteSyncer
	if opt.LogDir != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, "indexer.log"),
			MaxSize:    128, // 单文件上限（MB）
			MaxBackups: 10,
			MaxAge:     30, // 天
			Compress:   opt.Compress,
		})
	} else {
		sink = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, sink, level)

	mu.Lock()
	log = zap.New(core).Sugar()
	mu.Unlock()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debugf(format string, args ...interface{}) { get().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { get().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { get().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { get().Errorf(format, args...) }

// Sync 刷新缓冲日志，进程退出前调用
func Sync() {
	_ = get().Sync()
}
