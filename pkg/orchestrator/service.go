package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/dhi-engine/dhi/pkg/extractor"
	"github.com/dhi-engine/dhi/pkg/governance"
	"github.com/dhi-engine/dhi/pkg/interceptor"
	"github.com/dhi-engine/dhi/pkg/sandbox"
	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

// Interceptor runs one governed generation-and-verification attempt.
// *interceptor.Service is the production implementation.
type Interceptor interface {
	ProcessRequest(ctx context.Context, payload governance.ContextPayload, mode taxonomy.Mode) interceptor.Response
}

// Recorder observes every completed orchestration. The VEIL observer is the
// production implementation.
type Recorder interface {
	Record(result Result)
}

// Service is the bounded circuit-breaker loop for autonomous code
// generation. Attempt 1 sends the caller's content; attempts 2-3 send a
// repair prompt embedding the previous failure evidence.
type Service struct {
	interceptor Interceptor
	recorder    Recorder
	logger      *slog.Logger
}

// NewService builds the orchestrator. A nil recorder disables VEIL writes.
func NewService(ic Interceptor, recorder Recorder) *Service {
	return &Service{
		interceptor: ic,
		recorder:    recorder,
		logger:      slog.Default().With("component", "orchestrator"),
	}
}

// Run executes the retry loop and returns the final orchestration result.
// The loop halts immediately on a passing result, a non-retryable failure
// class, a terminal violation event, extraction failure, or budget
// exhaustion.
func (s *Service) Run(ctx context.Context, requestID, content string, files []string, mode taxonomy.Mode) Result {
	// One sandbox budget covers the whole loop.
	ctx, cancel := context.WithTimeout(ctx, sandbox.TotalBudget)
	defer cancel()

	originalContent := content
	var attempts []AttemptRecord
	finalStatus := taxonomy.StatusFail
	var terminalEvent taxonomy.ViolationEvent

	for attemptNumber := 1; attemptNumber <= MaxAttempts; attemptNumber++ {
		s.logger.Info("starting attempt",
			"request_id", requestID, "attempt", attemptNumber, "max_attempts", MaxAttempts)

		payload := governance.ContextPayload{
			RequestID: requestID,
			Attempt:   attemptNumber,
			Files:     files,
			Content:   content,
		}

		response := s.interceptor.ProcessRequest(ctx, payload, mode)
		verification := response.VerificationResult

		// Extraction-syntax promotion: a candidate that failed the
		// pre-handoff syntax validator still participates in the retry
		// budget as a retryable syntax failure.
		if verification == nil && !response.ExtractionSuccess &&
			extractor.IsSyntaxError(response.ExtractionError) {
			s.logger.Info("extraction syntax failure treated as retryable",
				"request_id", requestID, "attempt", attemptNumber)
			verification = syntheticSyntaxFailure(requestID, attemptNumber, mode, response.ExtractionError)
		}

		attempts = append(attempts, AttemptRecord{
			Attempt:            attemptNumber,
			ExtractionSuccess:  response.ExtractionSuccess,
			ExtractionError:    response.ExtractionError,
			VerificationResult: verification,
			Timestamp:          time.Now().UTC(),
		})

		if verification == nil {
			s.logger.Warn("extraction failed, halting",
				"request_id", requestID, "attempt", attemptNumber,
				"error", response.ExtractionError)
			break
		}

		if verification.Status == taxonomy.StatusPass {
			s.logger.Info("attempt passed",
				"request_id", requestID, "attempt", attemptNumber)
			finalStatus = taxonomy.StatusPass
			break
		}

		decision := DecideRetry(verification, attemptNumber)
		s.logger.Info("attempt failed",
			"request_id", requestID, "attempt", attemptNumber, "reason", decision.Reason)

		if !decision.ShouldRetry {
			if attemptNumber >= MaxAttempts {
				terminalEvent = taxonomy.MaxRetriesExceeded
			} else if verification.TerminalEvent != "" {
				terminalEvent = verification.TerminalEvent
			}
			break
		}

		// Repair prompts always build from the caller's original content,
		// never from a previously-built repair prompt.
		content = BuildRepairPrompt(originalContent, verification)
	}

	result := Result{
		RequestID:     requestID,
		AttemptCount:  len(attempts),
		RetryCount:    len(attempts) - 1,
		FinalStatus:   finalStatus,
		TerminalEvent: terminalEvent,
		Attempts:      attempts,
	}

	if s.recorder != nil {
		s.recorder.Record(result)
	}

	return result
}

// syntheticSyntaxFailure keeps pre-handoff syntax validation inside the
// retry loop: the result mirrors what the sandbox would report for code
// that cannot parse.
func syntheticSyntaxFailure(requestID string, attempt int, mode taxonomy.Mode, extractionError string) *taxonomy.VerificationResult {
	return &taxonomy.VerificationResult{
		RequestID:     requestID,
		Attempt:       attempt,
		SchemaVersion: taxonomy.ResultSchemaVersion,
		Mode:          mode,
		Tier:          taxonomy.TierL0,
		Status:        taxonomy.StatusFail,
		FailureClass:  taxonomy.FailureSyntax,
		ExitCode:      -1,
		DurationMS:    0,
		Stdout:        "",
		Stderr:        extractionError,
		Artifacts:     []string{},
		SkippedChecks: []string{},
		RuntimeConfig: map[string]any{"source": "extractor"},
	}
}
