package domain

// Caller is a signature-authenticated principal. Signature is a 65-byte
// secp256k1 signature over the entry point's canonical digest; the verifier
// recovers the signing address and compares it to Address.
type Caller struct {
	Address   string
	Signature []byte
}

// CallerVerifier is the capability check performed at the start of every
// mutating entry point: the call proceeds only when the caller's verified
// identity equals the required principal.
type CallerVerifier interface {
	// Verify returns ErrUnauthorized unless Signature over digest recovers
	// to Address.
	Verify(caller Caller, digest []byte) error
}
