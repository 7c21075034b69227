package api

import (
	"encoding/json"
	"net/http"

	"github.com/dhi-engine/dhi/pkg/attestation"
	"github.com/dhi-engine/dhi/pkg/governance"
	"github.com/dhi-engine/dhi/pkg/interceptor"
	"github.com/dhi-engine/dhi/pkg/orchestrator"
)

// ServiceName and Version identify the gateway in health responses.
const (
	ServiceName = "dhi"
	Version     = "0.1.0"
)

// handleHealth is the baseline liveness endpoint.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "ok",
		"service": ServiceName,
		"version": Version,
	})
}

// verifyResponse pairs a sandbox result with its attestation manifest.
type verifyResponse struct {
	Result   any                   `json:"result"`
	Manifest *attestation.Manifest `json:"manifest"`
}

// handleVerify runs the sandbox on caller-supplied code, bypassing the LLM.
func (s *Service) handleVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	mode, err := req.mode()
	if err != nil {
		writeSchemaError(w, err.Error())
		return
	}

	result := s.verifier.Run(r.Context(), req.Content, req.RequestID, req.Attempt, mode)

	manifest, err := attestation.Build(&result, 0, nil)
	if err != nil {
		writeInternal(w, err)
		return
	}
	s.store.Put(manifest)

	writeJSON(w, verifyResponse{Result: result, Manifest: manifest})
}

// interceptResponse pairs the single-attempt pipeline outcome with the
// manifest, when verification produced one.
type interceptResponse struct {
	Result   interceptor.Response  `json:"result"`
	Manifest *attestation.Manifest `json:"manifest"`
}

// handleIntercept runs governance, generation, extraction and sandbox
// verification for exactly one attempt.
func (s *Service) handleIntercept(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	mode, err := req.mode()
	if err != nil {
		writeSchemaError(w, err.Error())
		return
	}

	llm, err := s.newLLM(req.llmOptions(s.llmDefaults))
	if err != nil {
		writeSchemaError(w, err.Error())
		return
	}

	payload := governance.ContextPayload{
		RequestID: req.RequestID,
		Attempt:   req.Attempt,
		Files:     req.Files,
		Content:   req.Content,
	}

	ic := interceptor.NewService(s.pipeline, llm, s.verifier)
	response := ic.ProcessRequest(r.Context(), payload, mode)

	var manifest *attestation.Manifest
	if response.VerificationResult != nil {
		manifest, err = attestation.Build(response.VerificationResult, 0, nil)
		if err != nil {
			writeInternal(w, err)
			return
		}
		s.store.Put(manifest)
	}

	writeJSON(w, interceptResponse{Result: response, Manifest: manifest})
}

// orchestrateResponse pairs the full retry-loop outcome with the final
// attempt's manifest.
type orchestrateResponse struct {
	Result   orchestrator.Result   `json:"result"`
	Manifest *attestation.Manifest `json:"manifest"`
}

// handleOrchestrate runs the full circuit breaker, up to three attempts.
func (s *Service) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	mode, err := req.mode()
	if err != nil {
		writeSchemaError(w, err.Error())
		return
	}

	llm, err := s.newLLM(req.llmOptions(s.llmDefaults))
	if err != nil {
		writeSchemaError(w, err.Error())
		return
	}

	ic := interceptor.NewService(s.pipeline, llm, s.verifier)
	orch := orchestrator.NewService(ic, s.recorder)
	result := orch.Run(r.Context(), req.RequestID, req.Content, req.Files, mode)

	var manifest *attestation.Manifest
	if n := len(result.Attempts); n > 0 {
		if last := result.Attempts[n-1].VerificationResult; last != nil {
			manifest, err = attestation.Build(last, result.RetryCount, nil)
			if err != nil {
				writeInternal(w, err)
				return
			}
			s.store.Put(manifest)
		}
	}

	writeJSON(w, orchestrateResponse{Result: result, Manifest: manifest})
}

// handleManifest retrieves a stored manifest by request id.
func (s *Service) handleManifest(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")
	manifest := s.store.Get(requestID)
	if manifest == nil {
		writeNotFound(w, "No manifest recorded for request "+requestID)
		return
	}
	writeJSON(w, manifest)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
