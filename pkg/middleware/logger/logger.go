package logger

import (
	"context"
	"os"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ServiceEnv struct {
	Platform string
	Service  string
	Env      string
}

type LogConfig struct {
	Path       string
	LogLevel   string
	ServiceEnv ServiceEnv
}

var (
	zapLog *zap.Logger
	sugar  *otelzap.SugaredLogger
)

func init() {
	// 未初始化前输出到控制台
	zapLog = zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.AddSync(os.Stdout),
		zapcore.InfoLevel,
	), zap.AddCaller(), zap.AddCallerSkip(2))
	sugar = otelzap.New(zapLog).Sugar()
}

func encoderConfig() zapcore.EncoderConfig {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return encCfg
}

func Init(conf *LogConfig) {
	level, err := zapcore.ParseLevel(conf.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(os.Stdout), level),
	}
	if conf.Path != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   conf.Path,
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), fileWriter, level))
	}

	zapLog = zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddCallerSkip(2),
		zap.Fields(
			zap.String("platform", conf.ServiceEnv.Platform),
			zap.String("service", conf.ServiceEnv.Service),
			zap.String("env", conf.ServiceEnv.Env),
		))
	sugar = otelzap.New(zapLog,
		otelzap.WithMinLevel(level),
		otelzap.WithErrorStatusLevel(zapcore.ErrorLevel),
	).Sugar()
}

func Close() {
	if zapLog != nil {
		_ = zapLog.Sync()
	}
}

func withCtx(ctx context.Context) otelzap.SugaredLoggerWithCtx {
	if ctx == nil {
		ctx = context.Background()
	}
	return sugar.Ctx(ctx)
}

func Debugf(ctx context.Context, format string, args ...any) {
	withCtx(ctx).Debugf(format, args...)
}

func Infof(ctx context.Context, format string, args ...any) {
	withCtx(ctx).Infof(format, args...)
}

func Warnf(ctx context.Context, format string, args ...any) {
	withCtx(ctx).Warnf(format, args...)
}

func Errorf(ctx context.Context, format string, args ...any) {
	withCtx(ctx).Errorf(format, args...)
}

func Fatalf(ctx context.Context, format string, args ...any) {
	withCtx(ctx).Fatalf(format, args...)
}
