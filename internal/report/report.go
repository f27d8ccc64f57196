// Package report renders the human-facing deployment summary.
package report

import (
	"fmt"
	"strings"

	"github.com/calebsnider/deckhand/internal/reconcile"
	"github.com/calebsnider/deckhand/internal/ui"
	"github.com/calebsnider/deckhand/internal/vars"
)

// HostKey is the binding that names the host services are reachable on.
const HostKey = "SERVER_IP"

// UnknownEndpoint is reported when no port binding exists for a service.
// A missing convenience value must never fail the report.
const UnknownEndpoint = "endpoint unknown"

// Endpoint derives a service's access endpoint from the bindings, using
// the <NAME>_PORT naming convention. The second return is false when the
// port binding is absent.
func Endpoint(service string, bindings vars.Bindings) (string, bool) {
	port, ok := bindings.Lookup(vars.PortKey(service))
	if !ok {
		return "", false
	}

	host, ok := bindings.Lookup(HostKey)
	if !ok {
		host = "localhost"
	}

	return fmt.Sprintf("http://%s:%s", host, port), true
}

// Line formats one service's summary line. The three outcome classes stay
// distinguishable: deployed and active, deployed but failed to start, and
// not deployed with the error kind named.
func Line(res reconcile.Result, bindings vars.Bindings) string {
	switch res.State {
	case reconcile.StateActive:
		endpoint, ok := Endpoint(res.Name, bindings)
		if !ok {
			endpoint = UnknownEndpoint
		}
		return fmt.Sprintf("%s: active (%s)", res.Name, endpoint)
	case reconcile.StateFailed:
		return fmt.Sprintf("%s: failed to start (%s: %v)", res.Name, res.Failure, res.Err)
	default:
		return fmt.Sprintf("%s: not deployed (%s: %v)", res.Name, res.Failure, res.Err)
	}
}

// Summary renders the full plain-text summary for an outcome.
func Summary(outcome *reconcile.Outcome) string {
	var b strings.Builder
	for _, res := range outcome.Results {
		b.WriteString(Line(res, outcome.Bindings))
		b.WriteByte('\n')
	}
	for _, orphan := range outcome.Orphans {
		fmt.Fprintf(&b, "%s: orphaned (installed unit has no template)\n", orphan)
	}
	return b.String()
}

// Print writes the summary to the console with state-appropriate colors.
func Print(outcome *reconcile.Outcome) {
	ui.Header("=== Deployment summary ===")
	for _, res := range outcome.Results {
		line := Line(res, outcome.Bindings)
		switch res.State {
		case reconcile.StateActive:
			ui.Success("%s", line)
		case reconcile.StateFailed:
			ui.Error("%s", line)
		default:
			ui.Warning("%s", line)
		}
	}
	for _, orphan := range outcome.Orphans {
		ui.Warning("%s: orphaned (installed unit has no template)", orphan)
	}
}
