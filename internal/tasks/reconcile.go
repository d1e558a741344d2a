package tasks

import (
	"context"
	"time"
)

type reconciler interface {
	Run(ctx context.Context) error
}

// NewReconcileTask wraps the retry-queue reconciler as a periodic task.
// It also runs at startup so a restart picks up the backlog immediately.
func NewReconcileTask(svc reconciler, interval time.Duration) Task {
	return Task{
		Name:       "issuance_reconcile",
		Interval:   interval,
		RunOnStart: true,
		Run:        svc.Run,
	}
}
