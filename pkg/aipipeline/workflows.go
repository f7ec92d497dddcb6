package aipipeline

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	activityTimeout = 60 * time.Second
	workflowTimeout = 5 * time.Minute
)

// GenerateSummaryWorkflow runs the durable worker side of the AI summary
// pipeline (spec.md §4.8 "Worker processing"): resolve the anonymized
// structured input, compute deterministic risk flags, render the summary
// (LLM or fallback), persist it, and publish the terminal event.
func GenerateSummaryWorkflow(ctx workflow.Context, input GenerateInput) (GenerateOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: activityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: MaxAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	_ = workflow.ExecuteActivity(ctx, (*Activities).PublishStatus, input.JobID, JobStatus{JobID: input.JobID, State: JobStateRunning}).Get(ctx, nil)

	var resolved ResolveInputOutput
	if err := workflow.ExecuteActivity(ctx, (*Activities).ResolveStructuredInput, input).Get(ctx, &resolved); err != nil {
		return failWorkflow(ctx, input.JobID, err)
	}

	var flagsOut ComputeFlagsOutput
	if err := workflow.ExecuteActivity(ctx, (*Activities).ComputeRiskFlags, input).Get(ctx, &flagsOut); err != nil {
		return failWorkflow(ctx, input.JobID, err)
	}

	var render RenderOutput
	if err := workflow.ExecuteActivity(ctx, (*Activities).RenderSummary, resolved, flagsOut.Flags).Get(ctx, &render); err != nil {
		return failWorkflow(ctx, input.JobID, err)
	}

	var persisted PersistOutput
	if err := workflow.ExecuteActivity(ctx, (*Activities).PersistSummary, input, render, flagsOut.Flags).Get(ctx, &persisted); err != nil {
		return failWorkflow(ctx, input.JobID, err)
	}

	status := JobStatus{JobID: input.JobID, State: JobStateCompleted, SummaryID: &persisted.SummaryID}
	_ = workflow.ExecuteActivity(ctx, (*Activities).PublishStatus, input.JobID, status).Get(ctx, nil)

	return GenerateOutput{SummaryID: &persisted.SummaryID}, nil
}

func failWorkflow(ctx workflow.Context, jobID string, cause error) (GenerateOutput, error) {
	status := JobStatus{JobID: jobID, State: JobStateFailed, FailedReason: cause.Error()}
	_ = workflow.ExecuteActivity(ctx, (*Activities).PublishStatus, jobID, status).Get(ctx, nil)
	return GenerateOutput{FailedReason: cause.Error()}, cause
}
