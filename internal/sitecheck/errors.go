package sitecheck

import "errors"

// Error constants
var (
	ErrBaseURL = errors.New("invalid base url")
	ErrSitemap = errors.New("read sitemap failed")
	ErrFetch   = errors.New("fetch failed")
	ErrStatus  = errors.New("unexpected status")
	ErrFailed  = errors.New("site check failed")
)
