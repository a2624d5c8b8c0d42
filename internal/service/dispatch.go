package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/payflow/internal/models"
)

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "payflow_notifications_total",
	Help: "Best-effort notification attempts, labeled by template and result",
}, []string{"template", "result"})

// notify is best effort: the mutation it reports has already been committed,
// so a failed dispatch is logged and counted but never returned.
func (w *Workflow) notify(ctx context.Context, templateID, to string, data map[string]any) {
	if w.notifier == nil {
		return
	}
	req := models.TemplateEmailRequest{
		To:           []string{to},
		TemplateID:   templateID,
		TemplateData: data,
	}
	// Request cancellation must not abort a notification for a committed change.
	ctx = context.WithoutCancel(ctx)
	if !w.async {
		w.dispatch(ctx, req)
		return
	}
	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		w.dispatch(ctx, req)
	}()
}

func (w *Workflow) dispatch(ctx context.Context, req models.TemplateEmailRequest) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.notifier.SendTemplate(ctx, req); err != nil {
		notificationsTotal.WithLabelValues(req.TemplateID, "failed").Inc()
		w.logger.WarnContext(ctx, "notification failed", "template", req.TemplateID, "to", req.To, "error", err)
		return
	}
	notificationsTotal.WithLabelValues(req.TemplateID, "sent").Inc()
	w.logger.DebugContext(ctx, "notification sent", "template", req.TemplateID)
}
