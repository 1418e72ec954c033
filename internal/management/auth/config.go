package auth

// Config selects how bearer tokens are verified. JWKSPath and PublicKeyPEM
// are mutually exclusive: a configured PublicKeyPEM always wins, matching
// an air-gapped deployment's preference for a single pinned key over a key
// set it would otherwise have to keep in sync out of band.
type Config struct {
	// JWKSPath is a local JSON Web Key Set file, resolved by the token's
	// "kid" header. No network fetch is ever performed; JWKS material
	// reaches the host as a file, the same way platform config does.
	JWKSPath string

	// PublicKeyPEM is a single PEM-encoded RSA public key. When set it
	// is used for every token regardless of "kid", bypassing JWKS entirely.
	PublicKeyPEM string

	// Issuer, when non-empty, must match the token's "iss" claim exactly.
	Issuer string

	// Audience, when non-empty, must be present in the token's "aud" claim.
	Audience string

	// ClientID selects the resource_access.<client_id>.roles bucket that
	// is merged into realm_access.roles to produce the operator's roles.
	ClientID string
}
