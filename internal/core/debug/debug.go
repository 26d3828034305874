// The debug package contains optional utilities for inspecting a running
// harness: a pprof endpoint for goroutine/heap dumps and verbose payload
// tracing for the traffic crossing the endpoint.
package debug

import (
	"fmt"
	"net/http"
	// Importing pprof has the side effect of registering its handlers
	// on the default serve mux.
	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
)

// StartPprofServer spins off an HTTP server on pprofPort exposing the
// standard pprof endpoints, which is handy for tracking down a harness that
// has wedged mid-test.
func StartPprofServer(logger *logrus.Logger, pprofPort int) {
	logger.Infof("starting pprof server on port %d", pprofPort)

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", pprofPort), nil); err != nil {
			logger.Warnf("pprof server exited: %v", err)
		}
	}()
}

// DumpPayload writes a full dump of payload to the debug log, tagged with
// the direction it traveled.
func DumpPayload(logger *logrus.Logger, direction string, payload []byte) {
	logger.Debugf("%s payload (%d bytes):\n%s", direction, len(payload), spew.Sdump(payload))
}
