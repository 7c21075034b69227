package attestation

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// Signature is a detached Ed25519 signature over the canonical manifest.
type Signature struct {
	SignerID    string    `json:"signer_id"`
	Signature   string    `json:"signature"`
	Algorithm   string    `json:"algorithm"`
	SignedAt    time.Time `json:"signed_at"`
	PublicKeyID string    `json:"public_key_id"`
}

// SignedManifest is the manifest plus its accumulated signatures.
type SignedManifest struct {
	Manifest   *Manifest   `json:"manifest"`
	Signatures []Signature `json:"signatures"`
}

// Signer signs manifests with Ed25519 over an RFC 8785 canonical JSON hash.
// Post-hoc signature verification is deliberately out of scope; the envelope
// exists so external auditors can verify with standard tooling.
type Signer struct {
	signerID   string
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewSigner builds a signer around an Ed25519 private key.
func NewSigner(signerID string, privateKey ed25519.PrivateKey) *Signer {
	return &Signer{
		signerID:   signerID,
		privateKey: privateKey,
		publicKey:  privateKey.Public().(ed25519.PublicKey),
	}
}

// Sign appends a detached signature to the envelope. The manifest must be
// complete; signing an incomplete manifest is refused with the same error
// kind the verified-label guard uses.
func (s *Signer) Sign(envelope *SignedManifest) error {
	if err := AssertComplete(envelope.Manifest); err != nil {
		return err
	}

	digest, err := canonicalHash(envelope.Manifest)
	if err != nil {
		return fmt.Errorf("attestation: canonical hash: %w", err)
	}

	sig := ed25519.Sign(s.privateKey, digest)
	envelope.Signatures = append(envelope.Signatures, Signature{
		SignerID:    s.signerID,
		Signature:   base64.StdEncoding.EncodeToString(sig),
		Algorithm:   "ed25519",
		SignedAt:    time.Now().UTC(),
		PublicKeyID: hex.EncodeToString(s.publicKey[:8]),
	})
	return nil
}

// canonicalHash computes SHA-256 over the RFC 8785 canonical JSON form of
// the manifest, signatures excluded.
func canonicalHash(m *Manifest) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(canonical)
	return digest[:], nil
}
