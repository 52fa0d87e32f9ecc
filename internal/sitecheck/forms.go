package sitecheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// sample is a plausible set of birth details used for form checks.
var sample = url.Values{
	"name":           {"Site Check"},
	"dob":            {"1990-01-15"},
	"tob":            {"08:30"},
	"place_of_birth": {"Mumbai"},
}

type formCheck struct {
	path   string
	values url.Values
}

func formChecks() []formCheck {
	pair := url.Values{}
	for k, v := range sample {
		pair["a_"+k] = v
		pair["b_"+k] = v
	}
	return []formCheck{
		{path: "/", values: sample},
		{path: "/compatibility", values: pair},
		{path: "/moon-signs", values: url.Values{"dob": sample["dob"], "place_of_birth": sample["place_of_birth"]}},
	}
}

func (c *Checker) submitForms(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, fc := range formChecks() {
		if !c.claim(http.MethodPost, fc.path) {
			continue
		}
		g.Go(func() error {
			c.record(c.submit(gctx, fc))
			return gctx.Err()
		})
	}
	return g.Wait()
}

// submit posts one form and expects a rendered result.
func (c *Checker) submit(ctx context.Context, fc formCheck) Result {
	res := Result{Method: http.MethodPost, Path: fc.path}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(fc.path), strings.NewReader(fc.values.Encode()))
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrFetch, err)
		return res
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.client.Do(req)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrFetch, err)
		return res
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))
		res.Err = fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
		return res
	}
	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		res.Err = fmt.Errorf("%w: parse %s: %w", ErrFetch, fc.path, err)
		return res
	}
	if !hasResult(doc) {
		res.Err = fmt.Errorf("%w: no result rendered", ErrStatus)
	}
	return res
}

func hasResult(n *html.Node) bool {
	if n.Type == html.ElementNode {
		for _, class := range strings.Fields(attr(n, "class")) {
			if class == "result" || class == "result-card" {
				return true
			}
		}
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if hasResult(ch) {
			return true
		}
	}
	return false
}
