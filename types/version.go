package types

// Version is the uvlens release version.
// Snapshot and result payloads carry it so downstream consumers can
// detect shape changes.
const Version = "0.1.0"
