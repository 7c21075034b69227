// Package veil is the memory layer: an environment fingerprint, a
// determinism gate, and an in-process event ledger that learns only from
// environmentally-reproducible runs.
package veil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
)

// Fingerprint is a deterministic snapshot of the environment that produced a
// run. Two fingerprints are equal iff all five fields are equal; inequality
// in any field fails the gate.
type Fingerprint struct {
	RuntimeImageDigest     string `json:"runtime_image_digest"`
	LanguageRuntimeVersion string `json:"language_runtime_version"`
	LockfileHash           string `json:"lockfile_hash"`
	CommandSetHash         string `json:"command_set_hash"`
	EnvVarNamesHash        string `json:"env_var_names_hash"`
}

// Equal is field-wise equality.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f == other
}

// FingerprintOptions configure Generate. Zero values select the defaults.
type FingerprintOptions struct {
	// SandboxImageFile is the image descriptor hashed as a proxy for the
	// runtime image digest.
	SandboxImageFile string

	// Lockfile is the dependency lockfile to hash.
	Lockfile string

	// Commands is the planned command set.
	Commands []string

	// EnvVarNames overrides the environment variable names to hash. Only
	// names are ever hashed; values never leave the process.
	EnvVarNames []string
}

// Generate computes a fingerprint from the current runtime environment.
// Called once at startup for the baseline, and per-request when desired.
// Two calls within one process with the same inputs yield equal fingerprints.
func Generate(opts FingerprintOptions) Fingerprint {
	imageFile := opts.SandboxImageFile
	if imageFile == "" {
		imageFile = "Dockerfile.sandbox"
	}
	lockfile := opts.Lockfile
	if lockfile == "" {
		lockfile = "go.sum"
	}

	names := opts.EnvVarNames
	if names == nil {
		for _, kv := range os.Environ() {
			name, _, _ := strings.Cut(kv, "=")
			names = append(names, name)
		}
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	return Fingerprint{
		RuntimeImageDigest:     sha256File(imageFile),
		LanguageRuntimeVersion: runtime.Version(),
		LockfileHash:           sha256File(lockfile),
		CommandSetHash:         sha256String(strings.Join(opts.Commands, "\n")),
		EnvVarNamesHash:        sha256String(strings.Join(sorted, "\n")),
	}
}

// sha256File hashes a file, returning "" when it cannot be read.
func sha256File(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sha256String(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
