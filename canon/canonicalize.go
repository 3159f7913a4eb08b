package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/invar/errors"
)

// StateID is the content hash of a canonical form's byte serialization.
// Two canonical forms are equal iff their StateIDs are equal.
type StateID string

// CanonicalForm is the unique normalized representation of a scenario.
// Produced only by Normalize; owns no reference back to the raw input.
type CanonicalForm struct {
	Root  *Node
	Bytes []byte
}

// Coarse public veto reasons. Specific failure codes stay in internal logs
// and the audit trail per the leakage-resistant disclosure policy.
const (
	ReasonParseFailure      = "parse_failure"
	ReasonValidationFailure = "validation_failure"
)

// Result is the outcome of one canonicalization attempt: either a veto with
// a coarse reason, or a canonical form with its state id and signed artifact.
type Result struct {
	Veto      bool
	Reason    string // coarse public category when vetoed
	Err       error  // full internal error chain when vetoed
	Canonical *CanonicalForm
	StateID   StateID
	Artifact  *Artifact
}

// Artifact binds a canonical form to its state id, creation time and
// producer, with a detached signature over all other fields.
type Artifact struct {
	ID             string    `json:"id"` // ARID: AR + UUID
	StateID        StateID   `json:"state_id"`
	CanonicalBytes []byte    `json:"canonical_bytes"`
	Timestamp      time.Time `json:"timestamp"`
	Producer       string    `json:"producer"`
	SignerDID      string    `json:"signer_did,omitempty"`
	Signature      []byte    `json:"signature,omitempty"`
}

// SigningPayload produces the deterministic byte representation of the
// artifact for signing. Excludes the signature fields themselves.
//
// Go's json.Marshal produces deterministic output for structs (field order
// is declaration order per the Go spec).
func (a *Artifact) SigningPayload() ([]byte, error) {
	wire := struct {
		ID             string  `json:"id"`
		StateID        StateID `json:"state_id"`
		CanonicalBytes []byte  `json:"canonical_bytes"`
		Timestamp      int64   `json:"timestamp"`
		Producer       string  `json:"producer"`
	}{
		ID:             a.ID,
		StateID:        a.StateID,
		CanonicalBytes: a.CanonicalBytes,
		Timestamp:      a.Timestamp.UnixMilli(),
		Producer:       a.Producer,
	}
	return json.Marshal(wire)
}

// Signer is the injected signing capability. The canonicalizer never touches
// key material directly, which keeps the pipeline testable without real keys.
type Signer interface {
	// Sign returns a detached signature over payload and the signer's DID.
	Sign(payload []byte) (signature []byte, signerDID string, err error)
}

// Canonicalizer runs the full pipeline: parse, validate, normalize, hash,
// sign. Stateless and safe for concurrent use from any number of workers;
// identical input yields identical canonical bytes and StateID regardless of
// calling order.
type Canonicalizer struct {
	schema   *Schema
	opts     Options
	signer   Signer // may be nil: artifacts are then unsigned
	producer string
}

// New creates a canonicalizer for the given schema and options.
func New(schema *Schema, opts Options, signer Signer, producer string) *Canonicalizer {
	return &Canonicalizer{schema: schema, opts: opts, signer: signer, producer: producer}
}

// Schema returns the active schema.
func (c *Canonicalizer) Schema() *Schema { return c.schema }

// Options returns the active canonicalizer options.
func (c *Canonicalizer) Options() Options { return c.opts }

// WithOptions returns a canonicalizer sharing this one's schema and signer
// but running under different options. Used by the gauge/intrinsic split.
func (c *Canonicalizer) WithOptions(opts Options) *Canonicalizer {
	return &Canonicalizer{schema: c.schema, opts: opts, signer: c.signer, producer: c.producer}
}

// Canonicalize maps raw bytes to a canonical result. Vetoes are results, not
// errors; the error return is reserved for infrastructure failures (signing).
// Every stage failure is terminal and fail-closed — no best-effort fallback.
func (c *Canonicalizer) Canonicalize(raw []byte) (*Result, error) {
	root, err := Parse(raw)
	if err != nil {
		return &Result{Veto: true, Reason: ReasonParseFailure, Err: err}, nil
	}

	if err := Validate(root, c.schema); err != nil {
		return &Result{Veto: true, Reason: ReasonValidationFailure, Err: err}, nil
	}

	return c.CanonicalizeTree(root)
}

// CanonicalizeTree canonicalizes an already-parsed, already-validated tree.
// The loop-test harness uses this entry point after applying transforms in
// AST space.
func (c *Canonicalizer) CanonicalizeTree(root *Node) (*Result, error) {
	normalized := Normalize(root, c.schema, c.opts)
	bytes := Serialize(normalized)
	stateID := ComputeStateID(bytes)

	artifact := &Artifact{
		ID:             "AR" + uuid.New().String(),
		StateID:        stateID,
		CanonicalBytes: bytes,
		Timestamp:      time.Now().UTC(),
		Producer:       c.producer,
	}

	if c.signer != nil {
		payload, err := artifact.SigningPayload()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to produce signing payload for %s", artifact.ID)
		}
		sig, did, err := c.signer.Sign(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to sign artifact %s", artifact.ID)
		}
		artifact.Signature = sig
		artifact.SignerDID = did
	}

	return &Result{
		Canonical: &CanonicalForm{Root: normalized, Bytes: bytes},
		StateID:   stateID,
		Artifact:  artifact,
	}, nil
}

// ComputeStateID hashes a canonical byte sequence.
func ComputeStateID(canonical []byte) StateID {
	h := sha256.Sum256(canonical)
	return StateID(hex.EncodeToString(h[:]))
}
