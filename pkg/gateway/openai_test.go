package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderValidation(t *testing.T) {
	_, err := NewCompletionClient(Options{Provider: "bard"})
	assert.Error(t, err)

	_, err = NewCompletionClient(Options{Provider: ProviderCustom})
	assert.Error(t, err, "custom requires an api base")

	_, err = NewCompletionClient(Options{Provider: ProviderCustom, APIBase: "http://localhost:9000/v1"})
	assert.NoError(t, err)
}

func TestNVIDIARequiresKey(t *testing.T) {
	t.Setenv("NVIDIA_API_KEY", "")
	t.Setenv("NVIDIA_API_BASE", "")

	_, err := NewCompletionClient(Options{Provider: ProviderNVIDIA})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NVIDIA_API_KEY")

	t.Setenv("NVIDIA_API_KEY", "nvapi-test")
	client, err := NewCompletionClient(Options{Provider: ProviderNVIDIA})
	require.NoError(t, err)
	assert.Equal(t, defaultNVIDIABase, client.base)
}

func TestTimeoutCeiling(t *testing.T) {
	_, err := NewCompletionClient(Options{Provider: ProviderOpenAI, Timeout: MaxTimeout + 1})
	assert.Error(t, err)
}

func TestGenerateSendsStrictJSONFormat(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "generated text"}}]}`))
	}))
	defer server.Close()

	client, err := NewCompletionClient(Options{
		Provider: ProviderCustom,
		APIBase:  server.URL,
		Model:    "test-model",
	})
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "generated text", text)
	assert.Equal(t, "test-model", captured["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, captured["response_format"])
}

func TestNVIDIADropsResponseFormat(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "x"}}]}`))
	}))
	defer server.Close()

	client, err := NewCompletionClient(Options{
		Provider: ProviderNVIDIA,
		APIBase:  server.URL,
		APIKey:   "nvapi-test",
	})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	_, hasFormat := captured["response_format"]
	assert.False(t, hasFormat, "NVIDIA endpoint must not receive response_format")
}

func TestProviderErrorsWrapAsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewCompletionClient(Options{Provider: ProviderCustom, APIBase: server.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)

	var gatewayErr *GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.Contains(t, gatewayErr.Error(), "502")
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewCompletionClient(Options{Provider: ProviderCustom, APIBase: server.URL})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = client.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
		require.Error(t, err)
	}

	// The breaker is now open; the request never reaches the server.
	_, err = client.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker")
}

func TestEmptyChoicesIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client, err := NewCompletionClient(Options{Provider: ProviderCustom, APIBase: server.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.Error(t, err)
}

func TestBuildMessagesShape(t *testing.T) {
	messages := BuildMessages(testPayload())

	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "valid JSON object")
	assert.Equal(t, "user", messages[1].Role)
	assert.Contains(t, messages[1].Content, "Request ID: req-gateway")
	assert.Contains(t, messages[1].Content, "CONTEXT FILES:\nsrc/a.py, src/b.py")
	assert.Contains(t, messages[1].Content, "CONTEXT CONTENT:\nthe governed content")
}
