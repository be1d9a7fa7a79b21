package build

// Version is set at link time with -ldflags "-X github.com/integrail/ui-harness/internal/build.Version=...".
var Version = "dev"
