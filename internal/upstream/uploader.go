package upstream

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
)

// OAuthCredentials is the subset of OAuth1 three-legged credentials the
// uploader signs requests with. Signing itself is left to the
// http.RoundTripper installed on Client — this struct only carries the
// values a caller's transport needs.
type OAuthCredentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

// HTTPUploader is the default Uploader: create -> upload-contents ->
// close against the OSM 0.6 API, atomic-only. It takes the whole
// osmChange document in one UploadDiff call; chunking above a fixed
// element-count limit is a future extension point.
type HTTPUploader struct {
	Client     *http.Client
	OSMBaseURL string
	Creator    string
}

var _ Uploader = (*HTTPUploader)(nil)

// NewHTTPUploader returns an uploader using client. The uploader does not
// sign requests itself; any OAuth signing (e.g. with OAuthCredentials via
// a golang.org/x/oauth1-style RoundTripper) is done by client's transport.
func NewHTTPUploader(client *http.Client, osmBaseURL, creator string) *HTTPUploader {
	return &HTTPUploader{Client: client, OSMBaseURL: osmBaseURL, Creator: creator}
}

type changesetCreate struct {
	XMLName xml.Name `xml:"osm"`
	Changeset struct {
		Tag []struct {
			K string `xml:"k,attr"`
			V string `xml:"v,attr"`
		} `xml:"tag"`
	} `xml:"changeset"`
}

func newChangesetCreateXML(comment, creator string) []byte {
	var doc changesetCreate
	doc.Changeset.Tag = []struct {
		K string `xml:"k,attr"`
		V string `xml:"v,attr"`
	}{
		{K: "comment", V: comment},
		{K: "created_by", V: creator},
	}
	b, _ := xml.Marshal(doc)
	return append([]byte(xml.Header), b...)
}

// CreateChangeset implements Uploader.
func (u *HTTPUploader) CreateChangeset(ctx context.Context, comment string) (int64, error) {
	body := newChangesetCreateXML(comment, u.Creator)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.OSMBaseURL+"/api/0.6/changeset/create", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	resp, err := u.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upstream: create changeset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("upstream: create changeset: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	var id int64
	if _, err := fmt.Sscanf(string(bytes.TrimSpace(b)), "%d", &id); err != nil {
		return 0, fmt.Errorf("upstream: parse changeset id: %w", err)
	}
	return id, nil
}

// UploadDiff implements Uploader.
func (u *HTTPUploader) UploadDiff(ctx context.Context, changesetID int64, osmChangeXML []byte) error {
	uploadURL := fmt.Sprintf("%s/api/0.6/changeset/%d/upload", u.OSMBaseURL, changesetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(osmChangeXML))
	if err != nil {
		return err
	}
	resp, err := u.Client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: upload diff: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upstream: upload diff: status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// CloseChangeset implements Uploader.
func (u *HTTPUploader) CloseChangeset(ctx context.Context, changesetID int64) error {
	closeURL := fmt.Sprintf("%s/api/0.6/changeset/%d/close", u.OSMBaseURL, changesetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, closeURL, nil)
	if err != nil {
		return err
	}
	resp, err := u.Client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: close changeset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream: close changeset: status %d", resp.StatusCode)
	}
	return nil
}
