package domain

// ConnectionResult is the outcome of connect/testConnection calls.
// Expected failures (bad credentials, unreachable platform) are data,
// not error returns: Err carries the classified cause for the caller
// to map onto its own surface.
type ConnectionResult struct {
	Success  bool      `json:"success"`
	Err      error     `json:"-"`
	Message  string    `json:"message,omitempty"`
	Accounts []Account `json:"accounts,omitempty"`
}

// ConnectOK builds a successful result.
func ConnectOK(accounts ...Account) ConnectionResult {
	return ConnectionResult{Success: true, Accounts: accounts}
}

// ConnectFailed builds a failed result carrying the classified error.
func ConnectFailed(err error, msg string) ConnectionResult {
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return ConnectionResult{Success: false, Err: err, Message: msg}
}
