package transcode

import (
	"io"

	"github.com/uwuclxdy/ollama-lmstudio-proxy/internal/cancel"
)

// Passthrough forwards body to w unmodified, chunk by chunk, racing
// every read against signal. Used for /v1/* streaming responses, which
// are returned to the client byte-for-byte rather than translated.
// On cancel it stops reading and returns without forwarding the
// remainder.
func Passthrough(signal *cancel.Signal, body io.Reader, w io.Writer, flusher Flusher) error {
	readCh := make(chan readResult, 1)
	go pump(body, readCh)

	for {
		select {
		case <-signal.Done():
			return nil
		case r, ok := <-readCh:
			if !ok {
				return nil
			}
			if r.err != nil {
				if r.err == io.EOF {
					if len(r.data) > 0 {
						if _, err := w.Write(r.data); err != nil {
							return err
						}
						if flusher != nil {
							flusher.Flush()
						}
					}
					return nil
				}
				return r.err
			}
			if _, err := w.Write(r.data); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

