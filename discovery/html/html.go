// Package html implements openid.Discovery by fetching an identity URL and
// scraping its classic OpenID 1.1 <link> discovery tags, for providers that
// don't publish an XRDS document. It is stateless: Next always issues a
// fresh HTTP GET, and Cleanup has nothing to release.
package html

import (
	"context"
	"fmt"
	"net/http"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/go-openid/relyingparty/openid"
	"github.com/go-openid/relyingparty/pkg/platform/sentinel"
)

var (
	serverSelector   = cascadia.MustCompile(`link[rel~="openid.server"]`)
	delegateSelector = cascadia.MustCompile(`link[rel~="openid.delegate"]`)
)

// Discovery implements openid.Discovery via HTML <link> scraping.
type Discovery struct {
	client *http.Client
}

// New builds a Discovery using client, or http.DefaultClient if nil.
func New(client *http.Client) *Discovery {
	if client == nil {
		client = http.DefaultClient
	}
	return &Discovery{client: client}
}

// Next fetches identifier and looks for openid.server / openid.delegate
// <link> tags. There is only ever one candidate per identifier under this
// discovery mechanism; Next keeps no state, so a second call fetches the
// page again and returns the same endpoint.
func (d *Discovery) Next(ctx context.Context, identifier string) (*openid.ServiceEndpoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, identifier, nil)
	if err != nil {
		return nil, fmt.Errorf("html discovery: build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("html discovery: fetch %s: %w", identifier, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("html discovery: %s returned status %d: %w", identifier, resp.StatusCode, sentinel.ErrUnavailable)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("html discovery: parse %s: %w", identifier, err)
	}

	serverNode := serverSelector.MatchFirst(doc)
	if serverNode == nil {
		return nil, nil
	}
	serverURL := attr(serverNode, "href")
	if serverURL == "" {
		return nil, nil
	}

	delegate := identifier
	if delegateNode := delegateSelector.MatchFirst(doc); delegateNode != nil {
		if href := attr(delegateNode, "href"); href != "" {
			delegate = href
		}
	}

	return &openid.ServiceEndpoint{
		IdentityURL: identifier,
		ServerID:    delegate,
		ServerURL:   serverURL,
	}, nil
}

// Cleanup is a no-op: this discovery mechanism keeps no per-identifier
// state between calls.
func (d *Discovery) Cleanup(context.Context, string) error {
	return nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
