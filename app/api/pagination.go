package api

import (
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
)

// ErrInvalidPage is returned for a page number that is malformed or past
// the end of the result set.
var ErrInvalidPage = errors.New("invalid page")

const (
	DefaultPageSize = 30
	MaxPageSize     = 1000
)

type Paginator struct {
	DefaultSize int
	MaxSize     int
}

func DefaultPaginator() Paginator {
	return Paginator{DefaultSize: DefaultPageSize, MaxSize: MaxPageSize}
}

type PageRequest struct {
	Number int
	Size   int
}

func (p PageRequest) Offset() int {
	return (p.Number - 1) * p.Size
}

// Parse reads page and page_size from the query string. A malformed or
// non-positive page_size falls back to the default; a large one is capped.
// A page whose offset does not fit in an int is invalid.
func (p Paginator) Parse(r *http.Request) (PageRequest, error) {
	req := PageRequest{Number: 1, Size: p.DefaultSize}
	if req.Size < 1 {
		req.Size = DefaultPageSize
	}

	if sStr := r.URL.Query().Get("page_size"); sStr != "" {
		if s, err := strconv.Atoi(sStr); err == nil && s > 0 {
			if s > p.MaxSize {
				s = p.MaxSize
			}
			req.Size = s
		}
	}

	if pStr := r.URL.Query().Get("page"); pStr != "" {
		n, err := strconv.Atoi(pStr)
		if err != nil || n < 1 || n-1 > math.MaxInt/req.Size {
			return req, ErrInvalidPage
		}
		req.Number = n
	}
	return req, nil
}

// IsDefaultSize reports whether req uses the default page size. Only those
// pages are cached.
func (p Paginator) IsDefaultSize(req PageRequest) bool {
	return req.Size == p.DefaultSize
}

type Page[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func EmptyPage[T any]() Page[T] {
	return Page[T]{Results: []T{}}
}

// NewPage wraps one window of results. The first page of an empty set is
// valid; any other page past the end is ErrInvalidPage.
func NewPage[T any](r *http.Request, req PageRequest, total int64, results []T) (Page[T], error) {
	if req.Number > 1 && int64(req.Offset()) >= total {
		return Page[T]{}, ErrInvalidPage
	}
	if results == nil {
		results = []T{}
	}

	page := Page[T]{Count: total, Results: results}
	if total-int64(req.Offset()) > int64(req.Size) {
		next := pageURL(r, req.Number+1)
		page.Next = &next
	}
	if req.Number > 1 {
		prev := pageURL(r, req.Number-1)
		page.Previous = &prev
	}
	return page, nil
}

func pageURL(r *http.Request, number int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	q := r.URL.Query()
	if number == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(number))
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	return u.String()
}
