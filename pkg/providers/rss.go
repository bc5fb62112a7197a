package providers

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/arbiterlab/sportsresolve/core"
	"github.com/arbiterlab/sportsresolve/pkg/fetch"
)

// Default sports news feeds scanned for result headlines when
// SPORTS_RSS_FEEDS does not name its own.
var defaultFeeds = []string{
	"https://www.espn.com/espn/rss/news",
	"https://feeds.bbci.co.uk/sport/rss.xml",
	"https://www.skysports.com/rss/12040",
}

type rssConfig struct {
	env      string
	defaults []string
}

func defaultRSSConfig() rssConfig {
	return rssConfig{env: "SPORTS_RSS_FEEDS", defaults: defaultFeeds}
}

// feedSource is one configured feed with its derived provider id.
type feedSource struct {
	URL      string
	Provider string
}

// sources resolves the feed list from the environment, falling back to the
// defaults. Each feed becomes its own provider named rss:<host>.
func (c rssConfig) sources() []feedSource {
	urls := c.defaults
	if raw := strings.TrimSpace(os.Getenv(c.env)); raw != "" {
		urls = nil
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				urls = append(urls, part)
			}
		}
	}
	out := make([]feedSource, 0, len(urls))
	for _, u := range urls {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Host == "" {
			continue
		}
		out = append(out, feedSource{URL: u, Provider: "rss:" + parsed.Host})
	}
	return out
}

// feedDocument matches the subset of RSS 2.0 the headline scanner needs.
type feedDocument struct {
	Title string     `xml:"channel>title"`
	Items []feedItem `xml:"channel>item"`
}

type feedItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

func parseFeed(body []byte) (*feedDocument, error) {
	var doc feedDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return &doc, nil
}

// feedPayload converts a parsed feed to the generic payload shape the
// normalizer walks.
func feedPayload(doc *feedDocument) map[string]any {
	items := make([]any, 0, len(doc.Items))
	for _, it := range doc.Items {
		items = append(items, map[string]any{
			"title":       it.Title,
			"link":        it.Link,
			"description": it.Description,
			"pubDate":     it.PubDate,
		})
	}
	return map[string]any{"feed": doc.Title, "items": items}
}

func fetchFeed(ctx context.Context, client *fetch.Client, f feedSource) core.ProviderResponse {
	resp := core.ProviderResponse{
		Provider: f.Provider,
		Tier:     3,
		Weight:   core.WeightForTier(3),
		Meta:     map[string]string{"url": f.URL},
	}

	body, err := client.Bytes(ctx, f.URL, nil)
	resp.CollectedAt = time.Now().UTC()
	if err != nil {
		return markFailed(resp, err)
	}
	doc, err := parseFeed(body)
	if err != nil {
		return markFailed(resp, core.WrapError(core.KindProviderFailure, f.Provider, err))
	}
	resp.Payload = feedPayload(doc)
	resp.Meta["status"] = core.EnvelopeOK
	return resp
}
