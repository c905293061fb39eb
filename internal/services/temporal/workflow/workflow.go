package workflow

import (
	"context"

	enums "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"

	"github.com/GalaDe/ideas-service/internal/domain"
	"github.com/GalaDe/ideas-service/internal/services/temporal/activity"
)

const (
	IdeaSubmissionWorkflow = "IdeaSubmissionWorkflow"
)

// Registry is satisfied by a worker and by the Temporal test environment.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
}

func RegisterWorkflows(c Registry) {
	c.RegisterWorkflowWithOptions(ideaSubmissionWorkflow, workflow.RegisterOptions{Name: IdeaSubmissionWorkflow})
}

type IdeaSubmissionInput struct {
	PaymentRef string `json:"payment_ref"`
}

type IdeaSubmissionResult struct {
	Status domain.PaymentStatus `json:"status"`
	IdeaID string               `json:"idea_id,omitempty"`
}

/*
1. Wait for the payment to reach a terminal status (polling, webhook or expiry)
2. If it completed, create the idea, retrying until it exists
*/
func ideaSubmissionWorkflow(ctx workflow.Context, input IdeaSubmissionInput) (*IdeaSubmissionResult, error) {
	logger := workflow.GetLogger(ctx)

	awaitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: AwaitPaymentTimeout,
		HeartbeatTimeout:    AwaitPaymentHeartbeat,
		RetryPolicy:         RetryPolicy3Attempts,
	})

	var status domain.PaymentStatus
	if err := workflow.ExecuteActivity(awaitCtx, activity.AwaitPaymentActivity, input.PaymentRef).Get(ctx, &status); err != nil {
		return nil, err
	}

	result := &IdeaSubmissionResult{Status: status}
	if status != domain.PaymentStatusCompleted {
		logger.Info("payment not completed, nothing to submit", "payment_ref", input.PaymentRef, "status", status)
		return result, nil
	}

	submitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout:    DefaultActivityTimeout,
		ScheduleToCloseTimeout: SubmissionRetryWindow,
		RetryPolicy:            SubmissionRetryPolicy,
	})

	var out activity.SubmitIdeaOutput
	if err := workflow.ExecuteActivity(submitCtx, activity.SubmitIdeaActivity, input.PaymentRef).Get(ctx, &out); err != nil {
		return nil, err
	}
	result.IdeaID = out.IdeaID
	return result, nil
}

func WorkflowID(paymentRef string) string {
	return "idea-submission-" + paymentRef
}

// Starter starts one submission workflow per payment reference.
type Starter struct {
	client    client.Client
	taskQueue string
}

func NewStarter(c client.Client, taskQueue string) *Starter {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &Starter{client: c, taskQueue: taskQueue}
}

// StartSubmission is a no-op for a reference whose workflow is already running.
func (s *Starter) StartSubmission(ctx context.Context, paymentRef string) error {
	_, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                    WorkflowID(paymentRef),
		TaskQueue:             s.taskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}, IdeaSubmissionWorkflow, IdeaSubmissionInput{PaymentRef: paymentRef})
	return err
}
