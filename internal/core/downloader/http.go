package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"
)

// HTTPStream proxies the first media url of v. Opening is retried on
// transport errors and 5xx answers; once a body is returned nothing is retried.
func (d *Downloader) HTTPStream(ctx context.Context, v *Video) (io.ReadCloser, error) {
	v, urls, err := d.resolve(ctx, v)
	if err != nil {
		return nil, err
	}

	var body io.ReadCloser
	attempt := 0
	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urls[0], nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		if headers := v.HTTPHeaders(); len(headers) > 0 {
			for key, value := range headers {
				req.Header.Set(key, value)
			}
		} else {
			req.Header.Set("User-Agent", DefaultUserAgent)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			d.log.WithError(err).WithField("attempt", attempt).Warn("upstream request failed")
			return err
		}
		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
			body = resp.Body
			return nil
		case resp.StatusCode >= 500:
			resp.Body.Close()
			d.log.WithField("status", resp.StatusCode).WithField("attempt", attempt).Warn("upstream unavailable")
			return &UpstreamStatusError{StatusCode: resp.StatusCode}
		default:
			resp.Body.Close()
			return backoff.Permanent(&UpstreamStatusError{StatusCode: resp.StatusCode})
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(d.newBackOff(), d.cfg.Retries), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, fmt.Errorf("open upstream: %w", err)
	}
	return body, nil
}
