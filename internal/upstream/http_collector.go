package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPCollector is the default ChangesetCollector/SnapshotAcquirer,
// backed by an OSM 0.6 API base URL and wrapped with a bounded
// exponential backoff retry for network errors and unexpected HTTP
// statuses (4xx as well as 5xx; a 404 on changeset meta is not retried
// and ends the sweep). The retry is per-request only; a stage that exhausts the budget reports
// the error and is never silently re-entered.
type HTTPCollector struct {
	Client      *http.Client
	OSMBaseURL  string
	OverpassURL string
	MaxElapsed  time.Duration
}

// NewHTTPCollector returns a collector using http.DefaultClient and a
// 30s bounded retry budget.
func NewHTTPCollector(osmBaseURL, overpassURL string) *HTTPCollector {
	return &HTTPCollector{
		Client:      http.DefaultClient,
		OSMBaseURL:  osmBaseURL,
		OverpassURL: overpassURL,
		MaxElapsed:  30 * time.Second,
	}
}

var _ ChangesetCollector = (*HTTPCollector)(nil)
var _ SnapshotAcquirer = (*HTTPCollector)(nil)

func (c *HTTPCollector) retry(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = c.MaxElapsed
	b := backoff.WithContext(eb, ctx)
	return backoff.Retry(op, b)
}

// Meta implements ChangesetCollector.
func (c *HTTPCollector) Meta(ctx context.Context, id int64) (string, bool, error) {
	metaURL := fmt.Sprintf("%s/api/0.6/changeset/%d", c.OSMBaseURL, id)
	var body string
	var found bool
	err := c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, metaURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			found = false
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("upstream: changeset meta %d: status %d", id, resp.StatusCode)
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		body, found = string(b), true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return body, found, nil
}

// Payload implements ChangesetCollector.
func (c *HTTPCollector) Payload(ctx context.Context, id int64) (string, error) {
	downloadURL := fmt.Sprintf("%s/api/0.6/changeset/%d/download", c.OSMBaseURL, id)
	var body string
	err := c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("upstream: changeset download %d: status %d", id, resp.StatusCode)
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		body = string(b)
		return nil
	})
	return body, err
}

// FetchUpstreamAOI implements SnapshotAcquirer via an Overpass-style
// POST with form field "data" carrying "(node(s,w,n,e);<;>>;>;);out meta;".
func (c *HTTPCollector) FetchUpstreamAOI(ctx context.Context, bbox BBox) (io.ReadCloser, error) {
	query := overpassQuery(bbox)

	var rc io.ReadCloser
	err := c.retry(ctx, func() error {
		form := url.Values{"data": {query}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.OverpassURL, strings.NewReader(form.Encode()))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := c.Client.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("upstream: overpass query: status %d", resp.StatusCode)
		}
		rc = resp.Body
		return nil
	})
	return rc, err
}

func overpassQuery(b BBox) string {
	return "(node(" + floatStr(b.South) + "," + floatStr(b.West) + "," + floatStr(b.North) + "," + floatStr(b.East) + ");<;>>;>;);out meta;"
}

func floatStr(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
