package alarm

import "log/slog"

// Sink is the platform service that turns an (instant, id, payload) tuple
// into a user-visible reminder. The engine only produces the tuple.
// Scheduling an id that is already pending supersedes the prior request
// (idempotent rescheduling); Cancel of an unknown id is a no-op.
type Sink interface {
	Schedule(req Request) error
	Cancel(id int) error
	CancelAll() error
}

// LogSink records requests to the structured log. It is the default sink
// for the daemon and the CLI, where no platform notification service is
// attached.
type LogSink struct {
	Logger *slog.Logger
}

// Schedule implements Sink.
func (s LogSink) Schedule(req Request) error {
	s.logger().Info("alarm scheduled",
		"id", req.ID, "kind", req.Kind.Name(), "at", req.At, "title", req.Title)
	return nil
}

// Cancel implements Sink.
func (s LogSink) Cancel(id int) error {
	s.logger().Info("alarm cancelled", "id", id)
	return nil
}

// CancelAll implements Sink.
func (s LogSink) CancelAll() error {
	s.logger().Info("all alarms cancelled")
	return nil
}

func (s LogSink) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
