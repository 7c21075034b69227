package attestation

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhi-engine/dhi/pkg/taxonomy"
)

func passingResult() *taxonomy.VerificationResult {
	return &taxonomy.VerificationResult{
		RequestID:     "req-attest",
		Attempt:       1,
		SchemaVersion: taxonomy.ResultSchemaVersion,
		Mode:          taxonomy.ModeBalanced,
		Tier:          taxonomy.TierL0,
		Status:        taxonomy.StatusPass,
		ExitCode:      0,
		DurationMS:    1200,
		Artifacts:     []string{"logs/run.txt"},
		SkippedChecks: []string{},
		RuntimeConfig: map[string]any{"command": "python /source/candidate.py"},
	}
}

func TestBuildManifest(t *testing.T) {
	manifest, err := Build(passingResult(), 1, nil)
	require.NoError(t, err)

	assert.Equal(t, "req-attest", manifest.RequestID)
	assert.Equal(t, SchemaVersion, manifest.SchemaVersion)
	assert.Equal(t, taxonomy.TierL0, manifest.Tier)
	assert.False(t, manifest.HumanReviewRequired)
	assert.Equal(t, 1, manifest.RetriesUsed)
	assert.Equal(t, []string{"python /source/candidate.py"}, manifest.CommandsRun)
	assert.Equal(t, []string{"logs/run.txt"}, manifest.ArtifactRefs)
	assert.False(t, manifest.CreatedAt.IsZero())
}

func TestBuildRejectsBadInputs(t *testing.T) {
	_, err := Build(nil, 0, nil)
	assert.Error(t, err)

	_, err = Build(passingResult(), 3, nil)
	assert.Error(t, err)
}

func TestExplicitCommandsWin(t *testing.T) {
	manifest, err := Build(passingResult(), 0, []string{"pytest -q", "python main.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pytest -q", "python main.py"}, manifest.CommandsRun)
}

func TestNoCommandsToInfer(t *testing.T) {
	result := passingResult()
	result.RuntimeConfig = map[string]any{}
	manifest, err := Build(result, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, manifest.CommandsRun)
}

func TestHumanReviewRequiredIffAITestsOnly(t *testing.T) {
	result := passingResult()
	result.RuntimeConfig["ai_tests_only"] = true

	manifest, err := Build(result, 0, nil)
	require.NoError(t, err)

	assert.Equal(t, taxonomy.TierAITestsOnly, manifest.Tier)
	assert.True(t, manifest.HumanReviewRequired)
}

func TestAssertComplete(t *testing.T) {
	manifest, err := Build(passingResult(), 0, nil)
	require.NoError(t, err)
	assert.NoError(t, AssertComplete(manifest))

	var incomplete *ManifestIncompleteError

	err = AssertComplete(nil)
	require.ErrorAs(t, err, &incomplete)

	broken := *manifest
	broken.RequestID = ""
	err = AssertComplete(&broken)
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "request_id", incomplete.Field)

	broken = *manifest
	broken.Status = ""
	err = AssertComplete(&broken)
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "status", incomplete.Field)
}

func TestTierMapping(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*taxonomy.VerificationResult)
		want   taxonomy.Tier
	}{
		{
			name:   "default is L0",
			mutate: func(r *taxonomy.VerificationResult) {},
			want:   taxonomy.TierL0,
		},
		{
			name: "skipped check marks ai tests only",
			mutate: func(r *taxonomy.VerificationResult) {
				r.SkippedChecks = []string{"AI_TESTS_ONLY"}
			},
			want: taxonomy.TierAITestsOnly,
		},
		{
			name: "tier label marks ai tests only",
			mutate: func(r *taxonomy.VerificationResult) {
				r.RuntimeConfig["tier_label"] = "AI_Tests_Only"
			},
			want: taxonomy.TierAITestsOnly,
		},
		{
			name: "integration tests pass is L2",
			mutate: func(r *taxonomy.VerificationResult) {
				r.RuntimeConfig["integration_tests"] = true
			},
			want: taxonomy.TierL2,
		},
		{
			name: "e2e tests on a fail stay L0",
			mutate: func(r *taxonomy.VerificationResult) {
				r.RuntimeConfig["e2e_tests"] = true
				r.Status = taxonomy.StatusFail
				r.FailureClass = taxonomy.FailureDeterministic
				r.ExitCode = 1
			},
			want: taxonomy.TierL0,
		},
		{
			name: "user tests pass is L1",
			mutate: func(r *taxonomy.VerificationResult) {
				r.RuntimeConfig["user_tests"] = true
			},
			want: taxonomy.TierL1,
		},
		{
			name: "ai tests only beats integration",
			mutate: func(r *taxonomy.VerificationResult) {
				r.RuntimeConfig["ai_tests_only"] = true
				r.RuntimeConfig["integration_tests"] = true
			},
			want: taxonomy.TierAITestsOnly,
		},
		{
			name: "result tier L1 mirrored on pass",
			mutate: func(r *taxonomy.VerificationResult) {
				r.Tier = taxonomy.TierL1
			},
			want: taxonomy.TierL1,
		},
		{
			name: "result tier AI_TESTS_ONLY mirrored regardless of status",
			mutate: func(r *taxonomy.VerificationResult) {
				r.Tier = taxonomy.TierAITestsOnly
				r.Status = taxonomy.StatusFail
				r.FailureClass = taxonomy.FailureDeterministic
				r.ExitCode = 1
			},
			want: taxonomy.TierAITestsOnly,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := passingResult()
			tc.mutate(result)
			assert.Equal(t, tc.want, MapTier(result))
		})
	}
}

func TestStorePutGet(t *testing.T) {
	store := NewStore()
	assert.Nil(t, store.Get("missing"))

	manifest, err := Build(passingResult(), 0, nil)
	require.NoError(t, err)
	store.Put(manifest)

	assert.Equal(t, manifest, store.Get("req-attest"))
	assert.Equal(t, 1, store.Len())

	// A later attempt replaces the earlier entry for the same request.
	replacement, err := Build(passingResult(), 1, nil)
	require.NoError(t, err)
	store.Put(replacement)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, store.Get("req-attest").RetriesUsed)
}

func TestSignManifest(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer := NewSigner("dhi-gateway", priv)

	manifest, err := Build(passingResult(), 0, nil)
	require.NoError(t, err)
	envelope := &SignedManifest{Manifest: manifest}

	require.NoError(t, signer.Sign(envelope))
	require.Len(t, envelope.Signatures, 1)
	assert.Equal(t, "ed25519", envelope.Signatures[0].Algorithm)
	assert.NotEmpty(t, envelope.Signatures[0].Signature)
	assert.NotEmpty(t, envelope.Signatures[0].PublicKeyID)
}

func TestSignRefusesIncompleteManifest(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer := NewSigner("dhi-gateway", priv)

	manifest, err := Build(passingResult(), 0, nil)
	require.NoError(t, err)
	manifest.RequestID = ""

	var incomplete *ManifestIncompleteError
	err = signer.Sign(&SignedManifest{Manifest: manifest})
	require.ErrorAs(t, err, &incomplete)
}
