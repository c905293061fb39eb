package workflow

import (
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	"github.com/GalaDe/ideas-service/internal/services/temporal/activity"
)

const (
	DefaultActivityTimeout = 120 * time.Second
	DefaultTaskQueue       = "idea-submission-task-queue"

	// AwaitPaymentTimeout covers the owner poll cap with room for a retry.
	AwaitPaymentTimeout   = 15 * time.Minute
	AwaitPaymentHeartbeat = 30 * time.Second
	SubmissionRetryWindow = 72 * time.Hour
)

var (
	RetryPolicy3Attempts = &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    3,
	}

	// SubmissionRetryPolicy keeps retrying a paid submission until the retry
	// window closes.
	SubmissionRetryPolicy = &temporal.RetryPolicy{
		InitialInterval:        5 * time.Second,
		BackoffCoefficient:     2.0,
		MaximumInterval:        10 * time.Minute,
		NonRetryableErrorTypes: []string{activity.ErrTypePaymentNotConfirmed},
	}
)

func NewWorker(t client.Client, taskQueue string) worker.Worker {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return worker.New(t, taskQueue, worker.Options{
		MaxConcurrentActivityTaskPollers: 8, // Default is 2
		MaxConcurrentWorkflowTaskPollers: 8, // Default is 2
	})
}
