package cancel

import (
	"time"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/proxyerr"
)

// Sleep pauses for d, or returns Cancelled as soon as signal fires,
// whichever comes first. Used by the retry engine's post-load-probe
// wait so a client disconnect during the wait aborts the retry instead
// of blocking it to completion.
func Sleep(signal *Signal, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-signal.Done():
		return proxyerr.Cancelled()
	}
}
