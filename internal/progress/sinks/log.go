package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/frisbee/internal/progress"
)

// LogSink writes one debug line per event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("project", evt.Project),
			zap.String("stage", string(evt.Stage)),
			zap.String("engine", evt.Engine),
			zap.String("domain", evt.Domain),
			zap.Bool("derived", evt.Derived),
		}
		if evt.Finished() {
			fields = append(fields, zap.Int("emails", evt.Emails), zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
