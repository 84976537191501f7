package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabkale/kaledao/internal/domain"
)

const testKey = "0000000000000000000000000000000000000000000000000000000000000001"

func TestSignAndVerify(t *testing.T) {
	signer, err := NewSigner(testKey)
	require.NoError(t, err)

	digest := StakeDigest("alpha", signer.Address(), 50)
	sig, err := signer.Sign(digest)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	v := NewVerifier()
	err = v.Verify(domain.Caller{Address: signer.Address(), Signature: sig}, digest)
	assert.NoError(t, err)
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	signer, err := NewSigner(testKey)
	require.NoError(t, err)
	other, err := NewSigner("0000000000000000000000000000000000000000000000000000000000000002")
	require.NoError(t, err)

	digest := StakeDigest("alpha", signer.Address(), 50)
	sig, err := other.Sign(digest)
	require.NoError(t, err)

	err = NewVerifier().Verify(domain.Caller{Address: signer.Address(), Signature: sig}, digest)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerifyRejectsWrongDigest(t *testing.T) {
	signer, err := NewSigner(testKey)
	require.NoError(t, err)

	sig, err := signer.Sign(StakeDigest("alpha", signer.Address(), 50))
	require.NoError(t, err)

	// Same method, different field.
	err = NewVerifier().Verify(
		domain.Caller{Address: signer.Address(), Signature: sig},
		StakeDigest("alpha", signer.Address(), 51),
	)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	signer, err := NewSigner(testKey)
	require.NoError(t, err)

	digest := StakeDigest("alpha", signer.Address(), 50)
	err = NewVerifier().Verify(domain.Caller{Address: signer.Address(), Signature: []byte{1, 2, 3}}, digest)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRecoverAcceptsLegacyRecoveryByte(t *testing.T) {
	signer, err := NewSigner(testKey)
	require.NoError(t, err)

	digest := PredictionDigest("p1", "alpha", "EUR/USD", true, 200, 40, signer.Address())
	sig, err := signer.Sign(digest)
	require.NoError(t, err)

	// Wallets commonly emit v in {27, 28}.
	legacy := make([]byte, 65)
	copy(legacy, sig)
	legacy[64] += 27

	addr, err := NewVerifier().Recover(digest, legacy)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), addr)
}

func TestDigestsAreDistinctAcrossMethods(t *testing.T) {
	a := InitializeDigest("0xa", "0xb", "0xc", "0xd")
	b := UpdateConfigDigest("0xa", "0xb", "0xc", "0xd")
	assert.NotEqual(t, a, b, "same fields under different methods must not collide")

	c := FormTeamDigest("alpha", []string{"0xa", "0xb"})
	d := FormTeamDigest("alpha", []string{"0xb", "0xa"})
	assert.NotEqual(t, c, d, "member order is part of the signed roster")
}

func TestKeystoreRoundTrip(t *testing.T) {
	encrypted, err := EncryptKey(testKey, "hunter2")
	require.NoError(t, err)

	decrypted, err := DecryptKey(encrypted, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, decrypted)

	_, err = DecryptKey(encrypted, "wrong")
	assert.Error(t, err)
}

func TestLoadRelayerKey(t *testing.T) {
	// Raw key takes precedence.
	key, err := LoadRelayerKey(KeySource{RawKey: testKey})
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	// Encrypted file path.
	encrypted, err := EncryptKey(testKey, "hunter2")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "relayer.json")
	require.NoError(t, os.WriteFile(path, encrypted, 0o600))

	key, err = LoadRelayerKey(KeySource{EncryptedPath: path, Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, testKey, key)
}
