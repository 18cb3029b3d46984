// Package hostapi is the backend behind the capabilities bots can call.
//
// One API value is shared by every execution. It exposes logging, the
// bot_storage namespace, HTTPS requests, the clock and app labels; nothing else
// is reachable from a bot.
package hostapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/doeshing/replybot/internal/domain"
	"github.com/doeshing/replybot/internal/pkg/httpclient"
	"github.com/doeshing/replybot/internal/ports"
)

// StorageNamespace holds every value bots write. It is shared by all bots.
const StorageNamespace = "bot_storage"

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// HTTPError reports a non-2xx response to a bot request.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// Options tunes the API.
type Options struct {
	MaxResponseBytes int64
	// Apps maps package identifiers to display labels.
	Apps map[string]string
	Now  func() time.Time
}

// API implements ports.HostAPI.
type API struct {
	store  ports.KeyValueStore
	client *http.Client
	logger ports.Logger
	opts   Options
}

// New wires the backend. Redirects away from HTTPS are refused whatever
// policy client carries.
func New(store ports.KeyValueStore, client *http.Client, logger ports.Logger, opts Options) *API {
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = domain.DefaultMaxResponseBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &API{store: store, client: httpclient.HTTPSOnly(client), logger: logger, opts: opts}
}

// Log forwards a bot message. Unknown levels are logged at debug.
func (a *API) Log(level, message string) {
	if a.logger == nil {
		return
	}
	fields := map[string]interface{}{"source": "bot"}
	switch strings.ToLower(level) {
	case "error":
		a.logger.Error(message, nil, fields)
	case "warn":
		a.logger.Warn(message, fields)
	case "info":
		a.logger.Info(message, fields)
	default:
		a.logger.Debug(message, fields)
	}
}

func (a *API) StorageGet(ctx context.Context, key string) (string, bool, error) {
	return a.store.Get(ctx, StorageNamespace, key)
}

func (a *API) StorageSet(ctx context.Context, key, value string) error {
	return a.store.Set(ctx, StorageNamespace, key, value)
}

func (a *API) StorageRemove(ctx context.Context, key string) error {
	return a.store.Delete(ctx, StorageNamespace, key)
}

func (a *API) StorageKeys(ctx context.Context) ([]string, error) {
	return a.store.Keys(ctx, StorageNamespace)
}

func (a *API) StorageClear(ctx context.Context) error {
	return a.store.Clear(ctx, StorageNamespace)
}

// HTTPRequest performs one HTTPS call and returns the response body. The
// request is bounded only by ctx, which carries the execution deadline.
func (a *API) HTTPRequest(ctx context.Context, opts domain.HTTPRequestOptions) (string, error) {
	if err := domain.RequireHTTPS(opts.URL); err != nil {
		return "", err
	}
	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = http.MethodGet
	}
	if !allowedMethods[method] {
		return "", fmt.Errorf("unsupported HTTP method %q", opts.Method)
	}

	var body io.Reader
	if opts.Body != "" {
		body = strings.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, opts.URL, body)
	if err != nil {
		return "", err
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request %s %s: %w", method, opts.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, a.opts.MaxResponseBytes+1))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > a.opts.MaxResponseBytes {
		return "", fmt.Errorf("response exceeds %d bytes", a.opts.MaxResponseBytes)
	}
	return string(data), nil
}

// CurrentTime returns milliseconds since the Unix epoch.
func (a *API) CurrentTime() int64 {
	return a.opts.Now().UnixMilli()
}

// AppName resolves a display label, falling back to the identifier.
func (a *API) AppName(packageName string) string {
	if label, ok := a.opts.Apps[packageName]; ok && strings.TrimSpace(label) != "" {
		return label
	}
	return packageName
}

var _ ports.HostAPI = (*API)(nil)
