package extract

import (
	"errors"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"titlevault/internal/identity"
)

// ErrNoContentID reports a search page without a usable store link.
var ErrNoContentID = errors.New("no content id found")

const storeURLPrefix = "https://store.playstation.com/"

// ContentIDFromSearchLink extracts the content ID from a store link found on
// a search result page. The link must point at the store and mention shortID.
func ContentIDFromSearchLink(href, shortID string) (string, bool) {
	decoded, err := url.QueryUnescape(href)
	if err != nil {
		decoded = href
	}
	if shortID == "" || !strings.HasPrefix(decoded, storeURLPrefix) || !strings.Contains(decoded, shortID) {
		return "", false
	}
	for _, segment := range strings.Split(decoded, "/") {
		if !strings.Contains(segment, shortID) {
			continue
		}
		id := segmentContentID(segment)
		if identity.ValidateCanonicalID(id) && strings.Contains(id, shortID) {
			return id, true
		}
	}
	return "", false
}

// ContentIDFromStoreURL extracts the content ID from a store URL such as
// https://store.playstation.com/#!/en-us/games/x/cid=UP0001-PCSE00001_00-0000000000000000.
func ContentIDFromStoreURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "/cid=") {
		return "", false
	}
	_, rest, _ := strings.Cut(raw, "/cid=")
	id := segmentContentID("cid=" + strings.SplitN(rest, "/", 2)[0])
	if !identity.ValidateCanonicalID(id) {
		return "", false
	}
	return id, true
}

func segmentContentID(segment string) string {
	id, _, _ := strings.Cut(segment, ":")
	id, _, _ = strings.Cut(id, "?")
	return strings.TrimPrefix(id, "cid=")
}

// ScanSearchResults walks the anchors of a saved search result page and
// returns the first content ID whose link mentions shortID.
func ScanSearchResults(r io.Reader, shortID string) (string, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			return "", ErrNoContentID
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					if id, ok := ContentIDFromSearchLink(string(val), shortID); ok {
						return id, nil
					}
				}
				if !more {
					break
				}
			}
		}
	}
}

// IsStoreURL reports whether raw points at the online store.
func IsStoreURL(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), storeURLPrefix)
}
