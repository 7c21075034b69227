// Package interceptor composes the end-to-end safe generation pipeline:
// governance, cloud generation, candidate extraction, sandbox verification.
package interceptor

import (
	"context"
	"log/slog"

	"github.com/dhi-engine/dhi/pkg/extractor"
	"github.com/dhi-engine/dhi/pkg/gateway"
	"github.com/dhi-engine/dhi/pkg/governance"
	"github.com/dhi-engine/dhi/pkg/sandbox"
	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

// Verifier runs candidate code under sandbox policy. *sandbox.Executor is
// the production implementation.
type Verifier interface {
	Run(ctx context.Context, code, requestID string, attempt int, mode taxonomy.Mode) taxonomy.VerificationResult
}

// Response is the combined outcome of governance, extraction and sandbox
// verification for a single attempt.
type Response struct {
	RequestID          string                       `json:"request_id"`
	Audit              governance.AuditRecord       `json:"audit"`
	LLMNotes           string                       `json:"llm_notes"`
	ExtractionSuccess  bool                         `json:"extraction_success"`
	ExtractionError    string                       `json:"extraction_error,omitempty"`
	VerificationResult *taxonomy.VerificationResult `json:"verification_result,omitempty"`
}

// Service wires the pipeline stages together. Stateless between requests.
type Service struct {
	pipeline *governance.Pipeline
	llm      gateway.Client
	verifier Verifier
	logger   *slog.Logger
}

// NewService builds an interceptor over explicit collaborators.
func NewService(pipeline *governance.Pipeline, llm gateway.Client, verifier Verifier) *Service {
	return &Service{
		pipeline: pipeline,
		llm:      llm,
		verifier: verifier,
		logger:   slog.Default().With("component", "interceptor"),
	}
}

// ProcessRequest runs governance, cloud generation, extraction and sandbox
// verification for one attempt. Policy blocks and gateway or extraction
// failures all return a structured Response; nothing escapes as an error.
func (s *Service) ProcessRequest(ctx context.Context, payload governance.ContextPayload, mode taxonomy.Mode) Response {
	// The sandbox budget spans the whole request; respect a caller-supplied
	// deadline (the orchestrator sets one across attempts).
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sandbox.TotalBudget)
		defer cancel()
	}

	s.logger.Info("running governance",
		"request_id", payload.RequestID, "attempt", payload.Attempt)
	safePayload, audit := s.pipeline.Run(payload)

	if audit.Blocked {
		reason := audit.BlockReason
		if reason == "" {
			reason = "Unknown governance policy block."
		}
		s.logger.Warn("request blocked by governance",
			"request_id", payload.RequestID, "reason", reason)
		return Response{
			RequestID:       payload.RequestID,
			Audit:           audit,
			ExtractionError: "Blocked by governance: " + reason,
		}
	}

	s.logger.Info("requesting cloud candidate", "request_id", payload.RequestID)
	rawResponse, err := s.llm.Generate(ctx, gateway.BuildMessages(safePayload))
	if err != nil {
		s.logger.Error("llm gateway failed",
			"request_id", payload.RequestID, "error", err)
		return Response{
			RequestID:       payload.RequestID,
			Audit:           audit,
			ExtractionError: err.Error(),
		}
	}

	s.logger.Info("extracting candidate code", "request_id", payload.RequestID)
	extraction := extractor.Extract(rawResponse)
	if !extraction.Success {
		s.logger.Error("extraction failed",
			"request_id", payload.RequestID, "error", extraction.Error)
		return Response{
			RequestID:       payload.RequestID,
			Audit:           audit,
			LLMNotes:        extraction.Notes,
			ExtractionError: extraction.Error,
		}
	}

	s.logger.Info("submitting candidate to sandbox", "request_id", payload.RequestID)
	verification := s.verifier.Run(ctx, extraction.Code, payload.RequestID, payload.Attempt, mode)

	return Response{
		RequestID:          payload.RequestID,
		Audit:              audit,
		LLMNotes:           extraction.Notes,
		ExtractionSuccess:  true,
		VerificationResult: &verification,
	}
}
