package pipeline

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/voxrelay/voxrelay-backend/internal/models"
	"github.com/voxrelay/voxrelay-backend/internal/notify"
	"github.com/voxrelay/voxrelay-backend/internal/session"
	"github.com/voxrelay/voxrelay-backend/internal/summary"
)

// Completion drives the post-call steps: summarize the finalized transcript,
// dispatch the notification, evict the session. Notification always runs,
// degraded if summarization failed, and eviction always follows, so the
// store cannot leak entries.
type Completion struct {
	store      session.Store
	summarizer summary.Summarizer
	dispatcher notify.Dispatcher
	logger     *logrus.Logger
}

func NewCompletion(store session.Store, summarizer summary.Summarizer, dispatcher notify.Dispatcher, logger *logrus.Logger) *Completion {
	return &Completion{
		store:      store,
		summarizer: summarizer,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run executes the pipeline for one session. A second invocation for the
// same id finds the session already evicted and is a no-op.
func (p *Completion) Run(ctx context.Context, sessionID string) {
	sess, err := p.store.Get(sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			// Already consumed by an earlier run.
			return
		}
		p.logger.WithError(err).WithField("session_id", sessionID).Error("Completion lookup failed")
		return
	}
	defer p.store.Evict(sessionID)

	summaryText := p.summarize(ctx, sess)

	if err := p.dispatcher.SendSummary(sess.RecipientEmail, summaryText, sessionID); err != nil {
		// Contained: the trigger caller disconnected long ago, logging is
		// the only remaining channel.
		p.logger.WithError(err).WithField("session_id", sessionID).Error("Summary notification failed")
	}
}

func (p *Completion) summarize(ctx context.Context, sess *models.CallSession) string {
	if len(sess.Transcript) == 0 {
		return summary.PlaceholderSummary
	}

	text, err := p.summarizer.Summarize(ctx, sess.Transcript)
	if err != nil {
		p.logger.WithError(err).WithField("session_id", sess.ID).Error("Summarization failed, sending raw transcript")
		return "A summary could not be generated. Raw transcript:\n\n" + summary.FormatTranscript(sess.Transcript)
	}
	return text
}
