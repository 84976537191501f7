package crypto

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/collabkale/kaledao/internal/domain"
)

// Verifier checks caller signatures by recovering the signing address from a
// digest. It implements domain.CallerVerifier.
type Verifier struct{}

// NewVerifier returns a stateless Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Recover returns the checksummed address that produced the signature over
// digest. It accepts recovery bytes in both {0,1} and {27,28}.
func (v *Verifier) Recover(digest, signature []byte) (string, error) {
	if len(signature) != 65 {
		return "", fmt.Errorf("crypto/verifier: signature must be 65 bytes, got %d", len(signature))
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return "", fmt.Errorf("crypto/verifier: recover: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub).Hex(), nil
}

// Verify returns domain.ErrUnauthorized unless the signature over digest
// recovers to the caller's claimed address. Malformed signatures are also
// reported as ErrUnauthorized so callers cannot distinguish a bad key from a
// bad envelope.
func (v *Verifier) Verify(caller domain.Caller, digest []byte) error {
	recovered, err := v.Recover(digest, caller.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if common.HexToAddress(recovered) != common.HexToAddress(caller.Address) {
		return fmt.Errorf("%w: signature does not match %s", domain.ErrUnauthorized, caller.Address)
	}
	return nil
}

// SameAddress reports whether two hex addresses refer to the same account,
// ignoring case and checksum formatting.
func SameAddress(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}

// CanonicalAddress returns the checksummed form of a hex address. Stores key
// identity on this form, so every casing of one account lands on the same
// membership and stake rows.
func CanonicalAddress(a string) string {
	return common.HexToAddress(a).Hex()
}

// Compile-time interface check.
var _ domain.CallerVerifier = (*Verifier)(nil)
