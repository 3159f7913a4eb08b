package signing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/invar/canon"
)

func testArtifact() *canon.Artifact {
	return &canon.Artifact{
		ID:             "AR00000000-0000-0000-0000-000000000001",
		StateID:        canon.StateID("abc123"),
		CanonicalBytes: []byte(`{"action":"allocate"}`),
		Timestamp:      time.Unix(1700000000, 0).UTC(),
		Producer:       "invar/test",
	}
}

func TestSignAndVerify(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)

	a := testArtifact()
	payload, err := a.SigningPayload()
	require.NoError(t, err)

	sig, did, err := signer.Sign(payload)
	require.NoError(t, err)
	a.Signature = sig
	a.SignerDID = did

	assert.NoError(t, Verify(a))
}

func TestVerify_RejectsTamperedContent(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)

	a := testArtifact()
	payload, err := a.SigningPayload()
	require.NoError(t, err)
	a.Signature, a.SignerDID, _ = signer.Sign(payload)

	a.CanonicalBytes = []byte(`{"action":"deny"}`)
	assert.Error(t, Verify(a), "signature must cover canonical bytes")
}

func TestVerify_RejectsSignatureWithoutDID(t *testing.T) {
	a := testArtifact()
	a.Signature = []byte("bogus")
	assert.Error(t, Verify(a))
}

func TestVerify_AllowsUnsigned(t *testing.T) {
	assert.NoError(t, Verify(testArtifact()))
}

func TestDIDKeyRoundTrip(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)

	pub, err := DecodeDIDKey(signer.DID)
	require.NoError(t, err)
	assert.Equal(t, signer.PrivateKey.Public(), pub)
}

func TestDecodeDIDKey_RejectsGarbage(t *testing.T) {
	for _, did := range []string{"", "did:key:x123", "did:key:z", "did:key:zQQQQ"} {
		_, err := DecodeDIDKey(did)
		assert.Error(t, err, "did %q should be rejected", did)
	}
}
