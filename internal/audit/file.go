package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/roach88/vaultledger/internal/model"
)

// FileSink appends entries as JSON lines to a size-rotated file.
type FileSink struct {
	logger *zap.Logger
	rotate *lumberjack.Logger
}

// NewFileSink writes to path, rotating at maxSizeMB and keeping maxBackups
// compressed files.
func NewFileSink(path string, maxSizeMB, maxBackups int) *FileSink {
	rotate := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
		LocalTime:  true,
	}
	s := newFileSink(zapcore.AddSync(rotate))
	s.rotate = rotate
	return s
}

func newFileSink(ws zapcore.WriteSyncer) *FileSink {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = ""
	encoderCfg.LevelKey = ""
	encoderCfg.CallerKey = ""
	encoderCfg.StacktraceKey = ""
	encoderCfg.MessageKey = "event"
	encoderCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), ws, zapcore.InfoLevel)
	return &FileSink{logger: zap.New(core)}
}

// Write implements Sink.
func (s *FileSink) Write(_ context.Context, e model.AuditEntry) error {
	s.logger.Info("audit",
		zap.String("id", e.ID),
		zap.Time("created_at", e.CreatedAt),
		zap.String("actor", e.Actor),
		zap.String("action", e.Action),
		zap.String("target", e.Target),
		zap.Any("before", e.Before),
		zap.Any("after", e.After),
		zap.Any("metadata", e.Metadata),
	)
	if err := s.logger.Sync(); err != nil {
		return fmt.Errorf("sync audit file: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	_ = s.logger.Sync()
	if s.rotate == nil {
		return nil
	}
	return s.rotate.Close()
}
