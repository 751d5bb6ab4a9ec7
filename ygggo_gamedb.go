package ygggo_gamedb

// Version returns the current library version.
func Version() string { return instrumentationVersion }
