package strata

// Version is the release of the library and the strata binary.
// Release builds override it with -ldflags "-X github.com/aretw0/strata.Version=...".
var Version = "0.1.0-dev"
