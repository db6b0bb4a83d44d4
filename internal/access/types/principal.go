package types

// Principal is the authenticated caller behind a bearer access token.
type Principal struct {
	AccountID int64
	TenantID  int64
	Username  string
	IsAdmin   bool
}
