package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dhi-engine/dhi/pkg/gateway"
	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

// validate holds the compiled struct validation rules.
var validate = validator.New(validator.WithRequiredStructEnabled())

// GenerationRequest is the shared body of the verify, intercept and
// orchestrate endpoints.
type GenerationRequest struct {
	RequestID string   `json:"request_id"`
	Attempt   int      `json:"attempt" validate:"omitempty,min=1,max=3"`
	Files     []string `json:"files"`
	Content   string   `json:"content" validate:"required"`
	Mode      string   `json:"mode" validate:"omitempty,oneof=fast balanced strict"`

	ModelName      string         `json:"model_name"`
	LLMProvider    string         `json:"llm_provider" validate:"omitempty,oneof=openai nvidia custom"`
	LLMAPIBase     string         `json:"llm_api_base"`
	LLMAPIKey      string         `json:"llm_api_key"`
	LLMExtraBody   map[string]any `json:"llm_extra_body"`
	LLMTimeoutS    float64        `json:"llm_timeout_s" validate:"omitempty,gt=0,lte=600"`
	LLMMaxTokens   int            `json:"llm_max_tokens" validate:"omitempty,gt=0,lte=32768"`
	LLMTemperature *float64       `json:"llm_temperature" validate:"omitempty,gte=0,lte=2"`
	LLMTopP        *float64       `json:"llm_top_p" validate:"omitempty,gt=0,lte=1"`
}

// decodeRequest parses and validates the body, filling defaults. A false
// return means a 422 was already written.
func decodeRequest(w http.ResponseWriter, r *http.Request) (GenerationRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSchemaError(w, "Invalid request body: "+err.Error())
		return GenerationRequest{}, false
	}

	if err := validate.Struct(req); err != nil {
		writeSchemaError(w, "Request validation failed: "+err.Error())
		return GenerationRequest{}, false
	}

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.Attempt == 0 {
		req.Attempt = 1
	}
	return req, true
}

// mode parses the requested isolation mode, defaulting to balanced.
func (req GenerationRequest) mode() (taxonomy.Mode, error) {
	mode, err := taxonomy.ParseMode(req.Mode)
	if err != nil {
		return "", fmt.Errorf("invalid mode %q", req.Mode)
	}
	return mode, nil
}

// llmOptions maps the request's provider tuning onto gateway options.
func (req GenerationRequest) llmOptions(defaults gateway.Options) gateway.Options {
	opts := defaults
	if req.ModelName != "" {
		opts.Model = req.ModelName
	}
	if req.LLMProvider != "" {
		opts.Provider = req.LLMProvider
	}
	if req.LLMAPIBase != "" {
		opts.APIBase = req.LLMAPIBase
	}
	if req.LLMAPIKey != "" {
		opts.APIKey = req.LLMAPIKey
	}
	if req.LLMExtraBody != nil {
		opts.ExtraBody = req.LLMExtraBody
	}
	if req.LLMTimeoutS > 0 {
		opts.Timeout = time.Duration(req.LLMTimeoutS * float64(time.Second))
	}
	if req.LLMMaxTokens > 0 {
		opts.MaxTokens = req.LLMMaxTokens
	}
	if req.LLMTemperature != nil {
		opts.Temperature = req.LLMTemperature
	}
	if req.LLMTopP != nil {
		opts.TopP = req.LLMTopP
	}
	return opts
}
