package auth

// Permission scopes carried by capability tokens. Every API operation
// checks exactly one of these and fails closed when it is absent.
const (
	ScopeOrdersCreate   = "orders:create"
	ScopeOrdersRead     = "orders:read"
	ScopeOrdersUpdate   = "orders:update"
	ScopeEventsRead     = "events:read"
	ScopePaymentsCreate = "payments:create"
	ScopePaymentsRead   = "payments:read"
	ScopePaymentsUpdate = "payments:update"
)
