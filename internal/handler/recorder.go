package handler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sj-versent/demo-aws-summit-2025/internal/gallery"
	"github.com/sj-versent/demo-aws-summit-2025/internal/generation"
	"github.com/sj-versent/demo-aws-summit-2025/internal/history"
	"github.com/sj-versent/demo-aws-summit-2025/internal/model"
)

// Recorder files every finished generation: ready images go to the gallery,
// and every outcome goes to history. Either store may be nil.
type Recorder struct {
	Gallery *gallery.Gallery
	History *history.Store
	Logger  zerolog.Logger
}

func (r *Recorder) Record(ctx context.Context, prompt string, final generation.Status, latency time.Duration) {
	if r == nil {
		return
	}

	entry := model.HistoryEntry{Prompt: prompt, Latency: latency, Outcome: model.OutcomeFailed}
	if final.Phase == generation.PhaseReady {
		entry.Outcome = model.OutcomeReady
		if r.Gallery != nil {
			r.Gallery.Add(prompt, final.Image)
		}
	} else {
		entry.Message = final.Message
	}

	if r.History == nil {
		return
	}
	// The request context may already be cancelled by a departed client; the
	// outcome is still worth keeping.
	if _, err := r.History.Record(context.WithoutCancel(ctx), entry); err != nil {
		r.Logger.Error().Err(err).Msg("record generation history")
	}
}
