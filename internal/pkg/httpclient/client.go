// Package httpclient builds the outbound HTTP client shared by bot downloads
// and bot-initiated requests.
package httpclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/doeshing/replybot/internal/domain"
)

const maxRedirects = 10

// New returns a client that refuses to follow redirects off HTTPS.
func New() *http.Client {
	return HTTPSOnly(nil)
}

// HTTPSOnly returns a copy of base whose redirect policy rejects any hop to a
// non-HTTPS URL. base may be nil; its transport is shared with the copy.
func HTTPSOnly(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	client := *base
	next := base.CheckRedirect
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if err := domain.RequireHTTPS(req.URL.String()); err != nil {
			return fmt.Errorf("redirect refused: %w", err)
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= maxRedirects {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}
	return &client
}
