// Package signing provides ed25519 signing and verification for audit
// artifacts. Signatures bind artifacts to producer DIDs: every artifact the
// engine emits is signed by the node's private key, and artifacts received
// for audit are verified against the signer's public key extracted from
// their did:key.
package signing

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/mr-tron/base58"

	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/errors"
)

// Ed25519Signer holds the node's signing identity. Implements canon.Signer.
type Ed25519Signer struct {
	PrivateKey ed25519.PrivateKey
	DID        string
}

// NewEd25519Signer derives the did:key identity from the private key.
func NewEd25519Signer(priv ed25519.PrivateKey) *Ed25519Signer {
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519Signer{PrivateKey: priv, DID: EncodeDIDKey(pub)}
}

// GenerateSigner creates a signer with a fresh random key. Intended for
// tests and first-run setup; production deployments inject key material
// from their key provider.
func GenerateSigner() (*Ed25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate ed25519 key")
	}
	return NewEd25519Signer(priv), nil
}

// Sign returns a detached signature over payload and the signer's DID.
func (s *Ed25519Signer) Sign(payload []byte) ([]byte, string, error) {
	return ed25519.Sign(s.PrivateKey, payload), s.DID, nil
}

// Verify checks that an artifact's signature is valid for its content.
// Returns an error if the signature is present but invalid, or if a signed
// artifact carries no signer DID. Unsigned artifacts pass: whether they are
// acceptable is the audit sink's policy, not the verifier's.
func Verify(a *canon.Artifact) error {
	if len(a.Signature) == 0 {
		return nil
	}

	if a.SignerDID == "" {
		return errors.Newf("artifact %s has signature but no signer DID", a.ID)
	}

	pub, err := DecodeDIDKey(a.SignerDID)
	if err != nil {
		return errors.Wrapf(err, "failed to decode signer DID %s for artifact %s", a.SignerDID, a.ID)
	}

	payload, err := a.SigningPayload()
	if err != nil {
		return errors.Wrapf(err, "failed to produce signing payload for verification of %s", a.ID)
	}

	if !ed25519.Verify(pub, payload, a.Signature) {
		return errors.Newf("invalid signature on artifact %s from %s", a.ID, a.SignerDID)
	}

	return nil
}

// EncodeDIDKey encodes an ed25519 public key as a did:key:z... identifier:
// did:key:z + base58btc(0xed 0x01 + 32-byte pubkey)
func EncodeDIDKey(pub ed25519.PublicKey) string {
	prefixed := append([]byte{0xed, 0x01}, pub...)
	return "did:key:z" + base58.Encode(prefixed)
}

// DecodeDIDKey extracts the ed25519 public key from a did:key:z... identifier.
func DecodeDIDKey(did string) (ed25519.PublicKey, error) {
	const prefix = "did:key:z"
	if len(did) < len(prefix) || did[:len(prefix)] != prefix {
		return nil, errors.Newf("invalid did:key format: %s", did)
	}

	decoded, err := base58.Decode(did[len(prefix):])
	if err != nil {
		return nil, errors.Wrapf(err, "failed to base58-decode did:key %s", did)
	}

	// Expect multicodec prefix 0xed 0x01 followed by 32-byte ed25519 public key
	if len(decoded) != 34 {
		return nil, errors.Newf("unexpected decoded length %d for did:key %s (expected 34)", len(decoded), did)
	}
	if decoded[0] != 0xed || decoded[1] != 0x01 {
		return nil, errors.Newf("unexpected multicodec prefix [%x %x] for did:key %s", decoded[0], decoded[1], did)
	}

	return ed25519.PublicKey(decoded[2:]), nil
}
