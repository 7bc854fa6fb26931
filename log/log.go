package log

import (
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// L is the process-wide logger. Components accept their own hclog.Logger
// and fall back to L, so embedders can hand each engine a named sublogger.
var L hclog.Logger

func init() {
	L = hclog.New(&hclog.LoggerOptions{
		Name: "systap",
	})
	L.SetLevel(hclog.Info)

	if str := os.Getenv("TRACE"); str != "" {
		L.SetLevel(hclog.Trace)
	}
}
