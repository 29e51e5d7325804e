package service

import (
	"context"

	"go.uber.org/zap"
)

type overrideNotice struct {
	studentID string
	sectionID string
	reason    string
}

// LogNotifier is the default Notifier. Notices are handed off to a
// buffered channel and written to the structured log by a single
// goroutine; a mail or push delivery can replace it without touching
// the engine. When the buffer is full the notice is dropped with a
// warning rather than blocking the enrollment path.
type LogNotifier struct {
	logger  *zap.Logger
	notices chan overrideNotice
	done    chan struct{}
}

func NewLogNotifier(logger *zap.Logger, bufferSize int) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = 64
	}
	n := &LogNotifier{
		logger:  logger,
		notices: make(chan overrideNotice, bufferSize),
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *LogNotifier) run() {
	for notice := range n.notices {
		n.logger.Sugar().Infow("override enrollment notification",
			"student_id", notice.studentID, "section_id", notice.sectionID, "reason", notice.reason)
	}
	close(n.done)
}

// Close drains pending notices and stops the delivery goroutine.
func (n *LogNotifier) Close() {
	close(n.notices)
	<-n.done
}

func (n *LogNotifier) NotifyOverrideEnrollment(_ context.Context, studentID, sectionID, reason string) {
	select {
	case n.notices <- overrideNotice{studentID: studentID, sectionID: sectionID, reason: reason}:
	default:
		n.logger.Sugar().Warnw("notification buffer full, dropping notice",
			"student_id", studentID, "section_id", sectionID)
	}
}
