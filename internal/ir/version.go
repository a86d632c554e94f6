package ir

// Version constants for the persisted record format and the engine.
const (
	// SchemaVersion is the ledger record schema version.
	SchemaVersion = "1"

	// EngineVersion is the bdt engine version.
	EngineVersion = "0.1.0"
)
