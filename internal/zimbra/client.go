// Package zimbra is a client for the mail platform's admin SOAP service.
// It covers authentication, mailbox listing and blob consistency checks.
package zimbra

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dbsmedya/blobrescue/internal/config"
	"github.com/dbsmedya/blobrescue/internal/logger"
	"github.com/dbsmedya/blobrescue/internal/types"
)

// ErrNotAuthenticated is returned when a request is made before Authenticate.
var ErrNotAuthenticated = errors.New("admin session not authenticated")

// Client talks to the admin SOAP endpoint. It is not safe for concurrent use.
type Client struct {
	url       string
	user      string
	password  string
	http      *http.Client
	authToken string
	logger    *logger.Logger
}

// NewClient creates a client from the admin configuration.
func NewClient(cfg *config.AdminConfig, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("admin config is nil")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("admin url is empty")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed admin certificates are common
	}

	return &Client{
		url:      cfg.URL,
		user:     cfg.User,
		password: cfg.Password,
		http: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: log,
	}, nil
}

// Authenticate obtains an admin auth token used by every later request.
func (c *Client) Authenticate(ctx context.Context) error {
	var resp authResponse
	req := authRequest{Name: c.user, Password: c.password}
	if err := c.invoke(ctx, "AuthRequest", req, &resp); err != nil {
		return err
	}
	if resp.AuthToken == "" {
		return fmt.Errorf("AuthRequest returned no auth token")
	}
	c.authToken = resp.AuthToken
	c.logger.Debugw("Authenticated to admin service", "url", c.url, "user", c.user)
	return nil
}

// AllMailboxIDs lists every mailbox id known to the server, in server order.
func (c *Client) AllMailboxIDs(ctx context.Context) ([]int, error) {
	if c.authToken == "" {
		return nil, ErrNotAuthenticated
	}

	var resp getAllMailboxesResponse
	if err := c.invoke(ctx, "GetAllMailboxesRequest", getAllMailboxesRequest{}, &resp); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(resp.Mailboxes))
	for _, m := range resp.Mailboxes {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// CheckBlobConsistency runs the server-side consistency check for one mailbox
// and returns the reports in response order.
func (c *Client) CheckBlobConsistency(ctx context.Context, req types.ConsistencyRequest) ([]types.MailboxReport, error) {
	if c.authToken == "" {
		return nil, ErrNotAuthenticated
	}

	wire := checkBlobConsistencyRequest{
		CheckSize:       req.CheckSize,
		ReportUsedBlobs: req.ReportUsedBlobs,
		Mailboxes:       []idAttr{{ID: req.MailboxID}},
	}
	for _, v := range req.VolumeIDs {
		wire.Volumes = append(wire.Volumes, volumeAttr{ID: v})
	}

	var resp checkBlobConsistencyResponse
	if err := c.invoke(ctx, "CheckBlobConsistencyRequest", wire, &resp); err != nil {
		return nil, fmt.Errorf("consistency check for mailbox %d: %w", req.MailboxID, err)
	}

	reports := make([]types.MailboxReport, 0, len(resp.Mailboxes))
	for _, m := range resp.Mailboxes {
		reports = append(reports, types.MailboxReport{
			MailboxID:    m.ID,
			MissingBlobs: toBlobInfos(m.MissingBlobs),
			UsedBlobs:    toBlobInfos(m.UsedBlobs),
		})
	}
	return reports, nil
}

func toBlobInfos(items []blobItem) []types.BlobInfo {
	if len(items) == 0 {
		return nil
	}
	out := make([]types.BlobInfo, 0, len(items))
	for _, it := range items {
		out = append(out, types.BlobInfo{
			ItemID:   it.ID,
			Revision: it.Revision,
			Size:     it.Size,
			VolumeID: it.VolumeID,
			Path:     it.Path,
			External: it.External,
			Version:  it.Version,
		})
	}
	return out
}

// invoke posts one request envelope and decodes the response body element into out.
func (c *Client) invoke(ctx context.Context, name string, request, out interface{}) error {
	env := requestEnvelope{
		SoapNS: soapNamespace,
		Body:   requestBody{Request: request},
	}
	if c.authToken != "" {
		env.Header = &requestHeader{Context: headerContext{AuthToken: c.authToken}}
	}

	payload, err := xml.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(append([]byte(xml.Header), payload...)))
	if err != nil {
		return fmt.Errorf("build %s: %w", name, err)
	}
	httpReq.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")

	c.logger.Debugw("Invoking admin request", "request", name, "url", c.url)
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", name, err)
	}

	var envResp responseEnvelope
	if err := xml.Unmarshal(body, &envResp); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s failed: HTTP %d", name, httpResp.StatusCode)
		}
		return fmt.Errorf("decode %s response: %w", name, err)
	}

	if f := envResp.Body.Fault; f != nil {
		return &FaultError{Request: name, Code: f.Code, Reason: f.Reason}
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s failed: HTTP %d", name, httpResp.StatusCode)
	}

	if err := xml.Unmarshal(envResp.Body.Inner, out); err != nil {
		return fmt.Errorf("decode %s response body: %w", name, err)
	}
	return nil
}
