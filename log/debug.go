package log

import (
	hclog "github.com/hashicorp/go-hclog"
)

// EnableTrace drops the level floor to trace, same as setting TRACE in the
// environment before startup.
func EnableTrace() {
	L.SetLevel(hclog.Trace)
}
