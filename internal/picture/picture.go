// Package picture is the supplemented Picture module (C12), grounded on
// original_source's my_packages/GetWikiPicture.py: attach an external
// image URL to an Entity by name lookup. Treated, per spec.md §1's
// "out of scope" rule for crawling, as an external contract — a small
// interface with an HTTP-backed default and a no-op stub for tests.
package picture

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/stroke-graphrag/graphrag/internal/graphstore"
	"github.com/stroke-graphrag/graphrag/internal/llm"
	"github.com/stroke-graphrag/graphrag/internal/logging"
)

// Lookup resolves an entity's display name to an image URL, or "" if
// none was found.
type Lookup interface {
	Find(ctx context.Context, entityName string) (string, error)
}

// NoOp always reports no image found; used in tests and in any
// deployment that opts out of the picture feature entirely.
type NoOp struct{}

func (NoOp) Find(context.Context, string) (string, error) { return "", nil }

// wikiSummary is the subset of the Wikipedia REST summary response this
// package needs.
type wikiSummary struct {
	Thumbnail struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
}

// WikipediaLookup queries the public Wikipedia REST summary endpoint for
// a page thumbnail, mirroring GetWikiPicture.py's behavior (search by
// title, take the page thumbnail if present).
type WikipediaLookup struct {
	httpClient *http.Client
	baseURL    string // e.g. "https://zh.wikipedia.org/api/rest_v1/page/summary/"
}

func NewWikipediaLookup(httpClient *http.Client) *WikipediaLookup {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WikipediaLookup{httpClient: httpClient, baseURL: "https://zh.wikipedia.org/api/rest_v1/page/summary/"}
}

func (w *WikipediaLookup) Find(ctx context.Context, entityName string) (string, error) {
	reqURL := w.baseURL + url.PathEscape(entityName)
	var out string
	err := llm.Retry(ctx, 3, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		resp, err := w.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			out = ""
			return nil
		}
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("wikipedia summary: unexpected status %s", resp.Status)
		}
		var sum wikiSummary
		if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
			return fmt.Errorf("wikipedia summary: decode: %w", err)
		}
		out = sum.Thumbnail.Source
		return nil
	})
	return out, err
}

// Run attaches an image URL to every entity in ids that lacks one,
// logging and skipping lookups that fail (spec.md §7: network transient
// failures are retried then skipped, never fatal).
func Run(ctx context.Context, lookup Lookup, g graphstore.GraphDB, ids []string) (int, error) {
	attached := 0
	for _, id := range ids {
		e, ok, err := g.GetEntity(ctx, id)
		if err != nil {
			return attached, fmt.Errorf("get entity %s: %w", id, err)
		}
		if !ok || e.ImageURL != "" {
			continue
		}
		imgURL, err := lookup.Find(ctx, id)
		if err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("entity_id", id).Msg("image lookup failed, skipping")
			continue
		}
		if imgURL == "" {
			continue
		}
		if err := g.SetEntityImageURL(ctx, id, imgURL); err != nil {
			return attached, fmt.Errorf("set image url for %s: %w", id, err)
		}
		attached++
	}
	return attached, nil
}
