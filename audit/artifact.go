package audit

import (
	"github.com/teranos/invar/canon"
	"github.com/teranos/invar/errors"
)

// Artifact reconstructs the signed artifact from a successful log entry, so
// its signature can be re-verified later without the original producer.
func (e *Entry) Artifact() (*canon.Artifact, error) {
	if e.Veto {
		return nil, errors.Newf("audit entry %s is a veto, no artifact exists", e.ID)
	}
	return &canon.Artifact{
		ID:             e.ID,
		StateID:        e.StateID,
		CanonicalBytes: e.Canonical,
		Timestamp:      e.Timestamp,
		Producer:       e.Producer,
		SignerDID:      e.SignerDID,
		Signature:      e.Signature,
	}, nil
}
