package port

// TokenMetrics receives token lifecycle counters.
type TokenMetrics interface {
	TokenIssued(kind string)
	TokenRejected(reason string)
	TokenRevoked()
}
