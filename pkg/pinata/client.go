// Package pinata pins files to IPFS through the Pinata HTTP API.
package pinata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const pinFilePath = "/pinning/pinFileToIPFS"

// Options configures a Client.
type Options struct {
	APIURL  string
	JWT     string
	Gateway string // host only, e.g. gateway.pinata.cloud
	Timeout time.Duration
}

// PinResult is Pinata's pinFileToIPFS response.
type PinResult struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type Client struct {
	client  *resty.Client
	gateway string
}

func NewClient(opts Options) *Client {
	host := strings.TrimSuffix(opts.APIURL, "/")
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(timeout).
		SetAuthToken(opts.JWT).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil || resp == nil {
				return false
			}
			return resp.StatusCode() == 429 || resp.StatusCode() >= 500
		})

	gateway := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(opts.Gateway, "https://"), "http://"), "/")
	return &Client{client: client, gateway: gateway}
}

// PinFile uploads the file at path under the given display name.
func (c *Client) PinFile(ctx context.Context, path, name string) (PinResult, error) {
	meta, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return PinResult{}, errors.Wrap(err, "encode pinata metadata")
	}
	var out PinResult
	resp, err := c.client.R().
		SetContext(ctx).
		SetFile("file", path).
		SetFormData(map[string]string{"pinataMetadata": string(meta)}).
		SetResult(&out).
		Post(pinFilePath)
	if err != nil {
		return PinResult{}, errors.Wrap(err, "pinata request")
	}
	if !resp.IsSuccess() {
		return PinResult{}, parseHTTPError(resp)
	}
	if out.IpfsHash == "" {
		return PinResult{}, errors.Errorf("pinata response missing IpfsHash: %s", resp.String())
	}
	return out, nil
}

// GatewayURL is the public URL of a pinned hash.
func (c *Client) GatewayURL(hash string) string {
	return fmt.Sprintf("https://%s/ipfs/%s", c.gateway, hash)
}

func parseHTTPError(resp *resty.Response) error {
	var body any
	b := resp.Body()
	_ = json.Unmarshal(b, &body)
	if body == nil {
		body = string(b)
	}
	return errors.Errorf("pinata non-2xx %d: %v", resp.StatusCode(), body)
}
