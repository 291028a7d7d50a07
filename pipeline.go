package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelatlas/pipeline/schemas"
)

// diagnosticTailLines bounds how much of a failing stage's diagnostics the
// run report repeats.
const diagnosticTailLines = 5

// Stage is one orchestrated step of a provider run. Required stages abort
// the run on failure; optional stages log and continue.
type Stage struct {
	Name     string
	Required bool
	// Run does the work and returns its diagnostics, failure or not.
	Run func(ctx context.Context) ([]string, error)
}

// StageStatus is the per-stage outcome in the run report.
type StageStatus struct {
	Name        string
	Required    bool
	Skipped     bool
	Duration    time.Duration
	Err         error
	Diagnostics []string
}

// RunReport summarizes one provider run.
type RunReport struct {
	RunID        string
	Provider     schemas.InferenceProvider
	StartedAt    time.Time
	Total        time.Duration
	Stages       []StageStatus
	FirstFailure string
}

// Failed reports whether a required stage failed.
func (r *RunReport) Failed() bool {
	return r.FirstFailure != ""
}

// Orchestrator runs an ordered stage list for one provider, with a
// per-stage watchdog timeout.
type Orchestrator struct {
	provider     schemas.InferenceProvider
	stageTimeout time.Duration
	logger       schemas.Logger
}

// NewOrchestrator creates an orchestrator for one provider.
func NewOrchestrator(provider schemas.InferenceProvider, stageTimeout time.Duration, logger schemas.Logger) *Orchestrator {
	return &Orchestrator{provider: provider, stageTimeout: stageTimeout, logger: logger}
}

// Run executes the stages in order. After the first required-stage failure
// the remaining stages are recorded as skipped.
func (o *Orchestrator) Run(ctx context.Context, stages []Stage) *RunReport {
	report := &RunReport{
		RunID:     uuid.NewString(),
		Provider:  o.provider,
		StartedAt: time.Now(),
	}
	o.logger.Info("run %s started for %s (%d stages)", report.RunID, o.provider, len(stages))

	aborted := false
	for _, stage := range stages {
		status := StageStatus{Name: stage.Name, Required: stage.Required}
		if aborted {
			status.Skipped = true
			report.Stages = append(report.Stages, status)
			continue
		}

		stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
		started := time.Now()
		diagnostics, err := stage.Run(stageCtx)
		cancel()
		status.Duration = time.Since(started)
		status.Diagnostics = diagnostics
		status.Err = err

		switch {
		case err == nil:
			o.logger.Info("stage %s completed in %s", stage.Name, status.Duration)
		case stage.Required:
			o.logger.Error("required stage %s failed after %s: %v", stage.Name, status.Duration, err)
			report.FirstFailure = stage.Name
			aborted = true
		default:
			o.logger.Warn("optional stage %s failed, continuing: %v", stage.Name, err)
		}
		report.Stages = append(report.Stages, status)
	}

	report.Total = time.Since(report.StartedAt)
	if report.Failed() {
		o.logger.Error("run %s aborted at stage %s after %s", report.RunID, report.FirstFailure, report.Total)
	} else {
		o.logger.Info("run %s completed in %s", report.RunID, report.Total)
	}
	return report
}

// Render formats the run report for the per-run report file.
func (r *RunReport) Render() []string {
	lines := []string{
		fmt.Sprintf("run: %s", r.RunID),
		fmt.Sprintf("provider: %s", r.Provider),
		fmt.Sprintf("started: %s", r.StartedAt.UTC().Format(time.RFC3339)),
		fmt.Sprintf("total time: %s", r.Total.Round(time.Millisecond)),
	}
	if r.Failed() {
		lines = append(lines, fmt.Sprintf("first failing required stage: %s", r.FirstFailure))
	}
	lines = append(lines, "")
	for _, stage := range r.Stages {
		switch {
		case stage.Skipped:
			lines = append(lines, fmt.Sprintf("%-24s SKIPPED", stage.Name))
		case stage.Err != nil:
			lines = append(lines, fmt.Sprintf("%-24s FAILED in %s: %v", stage.Name, stage.Duration.Round(time.Millisecond), stage.Err))
			for _, diagnostic := range tail(stage.Diagnostics, diagnosticTailLines) {
				lines = append(lines, "    "+diagnostic)
			}
		default:
			lines = append(lines, fmt.Sprintf("%-24s OK in %s", stage.Name, stage.Duration.Round(time.Millisecond)))
		}
	}
	return lines
}

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
