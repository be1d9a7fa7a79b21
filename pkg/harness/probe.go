package harness

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Probe issues a single GET against origin and fails with a ConnectionError
// when nothing answers or the server responds with 5xx. There is no retry:
// the target server is expected to be running already.
func Probe(ctx context.Context, origin string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin, nil)
	if err != nil {
		return &ConnectionError{URL: origin, Err: errors.Wrapf(err, "failed to init request")}
	}
	resp, err := client.Do(req)
	if err != nil {
		return &ConnectionError{URL: origin, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return &ConnectionError{
			URL: origin,
			Err: errors.Errorf("status code %d: %s", resp.StatusCode, string(readBytes(resp.Body, 512))),
		}
	}
	return nil
}

func readBytes(stream io.Reader, limit int64) []byte {
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(io.LimitReader(stream, limit))
	return buf.Bytes()
}
