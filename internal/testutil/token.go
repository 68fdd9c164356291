package testutil

// FixedTokenSource returns the same run token every time.
//
// The harness stamps each scenario run with a token for log correlation;
// production uses UUIDv7, tests use this to keep golden output stable.
//
// Thread-safety: FixedTokenSource is stateless and safe for concurrent use.
type FixedTokenSource struct {
	token string
}

// NewFixedTokenSource creates a source that always yields token. An empty
// token falls back to "test-run-default".
func NewFixedTokenSource(token string) *FixedTokenSource {
	if token == "" {
		token = "test-run-default"
	}
	return &FixedTokenSource{token: token}
}

// Token returns the fixed run token.
func (s *FixedTokenSource) Token() string {
	return s.token
}
