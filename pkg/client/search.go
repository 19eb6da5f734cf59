package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kurtheiz/agistme/pkg/listing"
)

// FetchPage fetches one page of results for token. A nil cursor asks for
// the first page. It is not retried.
func (c *Client) FetchPage(ctx context.Context, token string, cursor *string) (listing.Page, error) {
	q := url.Values{"token": {token}}
	if cursor != nil {
		q.Set("cursor", *cursor)
	}
	var page listing.Page
	if err := c.do(ctx, http.MethodGet, "/search", q, nil, &page); err != nil {
		return listing.Page{}, err
	}
	if page.Items == nil {
		page.Items = []listing.Listing{}
	}
	return page, nil
}

// GetListing fetches one listing. A missing listing reports ErrNotFound.
func (c *Client) GetListing(ctx context.Context, id string) (listing.Listing, error) {
	var l listing.Listing
	if err := c.do(ctx, http.MethodGet, "/listings/"+url.PathEscape(id), nil, nil, &l); err != nil {
		return listing.Listing{}, fmt.Errorf("getting listing %s: %w", id, err)
	}
	return l, nil
}
