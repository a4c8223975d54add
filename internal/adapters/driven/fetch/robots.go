package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// ErrDisallowed is returned for pages excluded by the host's robots.txt.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// robotsCache fetches robots.txt once per host and answers path queries.
// A host whose robots.txt cannot be fetched allows everything.
type robotsCache struct {
	client    *http.Client
	userAgent string

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

func newRobotsCache(client *http.Client, userAgent string) *robotsCache {
	return &robotsCache{
		client:    client,
		userAgent: userAgent,
		groups:    make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether rawURL may be fetched.
func (c *robotsCache) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false, nil
	}

	group, err := c.group(ctx, u)
	if err != nil {
		return false, err
	}
	if group == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path), nil
}

func (c *robotsCache) group(ctx context.Context, u *url.URL) (*robotstxt.Group, error) {
	key := u.Scheme + "://" + u.Host

	c.mu.Lock()
	group, ok := c.groups[key]
	c.mu.Unlock()
	if ok {
		return group, nil
	}

	group, err := c.load(ctx, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.groups[key] = group
	c.mu.Unlock()
	return group, nil
}

// load returns nil when robots.txt is unavailable. Only a cancelled ctx is an error.
func (c *robotsCache) load(ctx context.Context, origin string) (*robotstxt.Group, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, nil
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, nil
	}
	return data.FindGroup(c.userAgent), nil
}
