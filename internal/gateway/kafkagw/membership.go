package kafkagw

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/ariefcatur/go-chat-orders/internal/gateway"
)

// MembershipClient asks the transport sidecar for a user's channel status:
// GET {base}/channels/{channel}/members/{user} -> {"status": "member"}.
type MembershipClient struct {
	base   string
	client *http.Client
}

func NewMembershipClient(baseURL string, timeout time.Duration) *MembershipClient {
	return &MembershipClient{
		base: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Transport: &acceptTransport{Base: http.DefaultTransport},
			Timeout:   timeout,
		},
	}
}

// acceptTransport asks for JSON and brotli-compressed bodies.
type acceptTransport struct {
	Base http.RoundTripper
}

func (t *acceptTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br")
	return t.Base.RoundTrip(req)
}

type memberResponse struct {
	Status gateway.MemberStatus `json:"status"`
}

func (c *MembershipClient) MembershipStatus(ctx context.Context, channel string, userID int64) (gateway.MemberStatus, error) {
	u := fmt.Sprintf("%s/channels/%s/members/%s", c.base, url.PathEscape(channel), strconv.FormatInt(userID, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	if resp.Header.Get("Content-Encoding") == "br" {
		resp.Body = &readCloser{Reader: brotli.NewReader(resp.Body), Closer: resp.Body}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return gateway.MemberLeft, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("membership: unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var out memberResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("membership: decode: %w", err)
	}
	return out.Status, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
