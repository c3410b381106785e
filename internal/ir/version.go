package ir

// Version constants for the persisted encoding and the engine.
const (
	// EncodingVersion is the rule blob schema version.
	EncodingVersion = "1"

	// EngineVersion is the shiftrule engine version.
	EngineVersion = "0.1.0"
)
