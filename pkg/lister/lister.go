// Package lister assembles a complete remote listing from paged requests.
package lister

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuya-takeyama/bulklift/pkg/objstore"
)

// DefaultPageSize is used when no page size is configured. Backends clamp it
// to what they can serve in one request.
const DefaultPageSize = 10000

// ErrUnstableListing is returned when record names stop strictly increasing,
// within a page or across the marker it was requested with.
var ErrUnstableListing = errors.New("remote listing is unstable")

// PageLister is the store capability the lister needs.
type PageLister interface {
	ListPage(ctx context.Context, container, marker string, limit int) ([]objstore.ObjectRecord, error)
	MaxPageSize() int
}

// Listing is a complete, ordered container listing.
type Listing struct {
	Records  []objstore.ObjectRecord
	Count    int
	LastName string
	Pages    int
}

type Lister struct {
	client   PageLister
	pageSize int
}

func New(client PageLister, pageSize int) *Lister {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if max := client.MaxPageSize(); max > 0 && pageSize > max {
		pageSize = max
	}
	return &Lister{
		client:   client,
		pageSize: pageSize,
	}
}

// PageSize returns the effective page size after clamping.
func (l *Lister) PageSize() int {
	return l.pageSize
}

// List follows the continuation marker until a short page is returned. Any
// page failure discards what was fetched so far.
func (l *Lister) List(ctx context.Context, container string) (*Listing, error) {
	listing := &Listing{Records: []objstore.ObjectRecord{}}
	marker := ""

	for {
		page, err := l.client.ListPage(ctx, container, marker, l.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list page %d of %s: %w", listing.Pages+1, container, err)
		}
		listing.Pages++

		if len(page) == 0 {
			break
		}

		for _, rec := range page {
			if len(listing.Records) > 0 && rec.Name <= marker {
				return nil, fmt.Errorf("%w: page %d returned %q after %q", ErrUnstableListing, listing.Pages, rec.Name, marker)
			}
			listing.Records = append(listing.Records, rec)
			marker = rec.Name
		}

		if len(page) < l.pageSize {
			break
		}
	}

	listing.Count = len(listing.Records)
	if listing.Count > 0 {
		listing.LastName = listing.Records[listing.Count-1].Name
	}
	return listing, nil
}
