package ir

// Version constants for the journal schema and the client.
const (
	// IRVersion is the intent encoding version recorded with each journal entry.
	IRVersion = "1"

	// ClientVersion is the flame client version.
	ClientVersion = "0.1.0"
)
