// Package worker runs the background side of check-ins: face verification
// of queued events and the periodic sweep that closes overdue sessions.
package worker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"studentattendance/internal/attendance"
	"studentattendance/internal/faceclient"
	"studentattendance/internal/queue"
)

// Attendance is the slice of the attendance service the worker drives.
type Attendance interface {
	ApplyFaceResult(ctx context.Context, recordID string, verified bool, confidence float64) error
	RecomputeStats(ctx context.Context, sessionID string) (attendance.Stats, error)
	CompleteExpired(ctx context.Context, after time.Duration) (int, error)
}

// Verifier compares a check-in photo against a student's enrolled face.
type Verifier interface {
	Verify(ctx context.Context, studentID, imageURL string) (*faceclient.VerifyResult, error)
}

// Consumer yields queued messages until ctx is done.
type Consumer interface {
	Consume(ctx context.Context) (<-chan queue.Message, error)
}

// Processor handles check-in events. A nil verifier disables face checks.
type Processor struct {
	att  Attendance
	face Verifier
	log  logrus.FieldLogger
}

func NewProcessor(att Attendance, face Verifier, log logrus.FieldLogger) *Processor {
	return &Processor{att: att, face: face, log: log}
}

// Run consumes q until its channel closes. Failed messages are logged and
// skipped.
func (p *Processor) Run(ctx context.Context, q Consumer) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return errors.Wrap(err, "starting consumer")
	}
	p.log.Info("worker started, waiting for messages")
	for msg := range messages {
		if err := p.Handle(ctx, msg); err != nil {
			p.log.WithError(err).WithField("type", msg.Type).Error("processing message failed")
		}
	}
	p.log.Info("worker stopped")
	return nil
}

// Handle processes one message. Unknown types are ignored.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != queue.TypeCheckIn {
		p.log.WithField("type", msg.Type).Debug("ignoring message")
		return nil
	}
	evt, err := queue.DecodeCheckIn(msg)
	if err != nil {
		return err
	}
	log := p.log.WithFields(logrus.Fields{"record_id": evt.RecordID, "session_id": evt.SessionID})

	if p.face != nil && evt.ImageURL != "" {
		res, err := p.face.Verify(ctx, evt.StudentID, evt.ImageURL)
		switch {
		case errors.Is(err, faceclient.ErrSkipped):
			log.Debug("face verification skipped")
		case err != nil:
			// the record stays unverified; stats are still refreshed
			log.WithError(err).Warn("face verification failed")
		default:
			if err := p.att.ApplyFaceResult(ctx, evt.RecordID, res.Verified, res.Similarity); err != nil {
				return errors.Wrap(err, "storing face result")
			}
			log.WithFields(logrus.Fields{"verified": res.Verified, "similarity": res.Similarity}).Info("face verified")
		}
	} else if evt.RequireFace {
		log.Warn("face verification required but no image or verifier available")
	}

	if _, err := p.att.RecomputeStats(ctx, evt.SessionID); err != nil {
		return errors.Wrap(err, "recomputing session stats")
	}
	return nil
}
