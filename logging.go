package dynvar

import "time"

// OverlayLogEvent describes a completed overlay invocation, or a hook failure
// that occurred while one was running.
type OverlayLogEvent struct {
	OverlayID string
	Bindings  int
	Duration  time.Duration
	Err       error
}

// OverlayLogger records overlay events.
type OverlayLogger interface {
	LogOverlay(OverlayLogEvent)
}

// OverlayLoggerFunc adapts a function to OverlayLogger.
type OverlayLoggerFunc func(OverlayLogEvent)

// LogOverlay implements OverlayLogger.
func (f OverlayLoggerFunc) LogOverlay(event OverlayLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopOverlayLogger struct{}

func (noopOverlayLogger) LogOverlay(OverlayLogEvent) {}

// EvaluatorLogEvent describes an expression evaluation attempt for logging.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}
