package discovery

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is a document link found on a listing page.
type Link struct {
	// URL is absolute, without fragment.
	URL string

	// Filename is the unescaped last path segment.
	Filename string

	// Text is the anchor text.
	Text string
}

// DocumentLinks returns the links on an HTML page whose path ends in one of
// the given extensions (".pdf"), resolved against pageURL, in page order and
// without duplicates.
func DocumentLinks(html, pageURL string, extensions ...string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	var links []Link
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		u := base.ResolveReference(ref)
		u.Fragment = ""
		if !hasExtension(u.Path, extensions) {
			return
		}

		abs := u.String()
		if seen[abs] {
			return
		}
		seen[abs] = true

		name := path.Base(u.Path)
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
		links = append(links, Link{
			URL:      abs,
			Filename: name,
			Text:     strings.Join(strings.Fields(s.Text()), " "),
		})
	})

	return links, nil
}

func hasExtension(p string, extensions []string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, want := range extensions {
		if ext == want {
			return true
		}
	}
	return false
}
