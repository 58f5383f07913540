// Package fetch executes a single politely-retried, redirect-following GET
// against an admitted URL and gates the result on content type.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrorKind classifies why a fetch did not yield a usable page, matching
// the engine-wide error taxonomy so callers can switch on kind instead of
// matching strings.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindHTTPError
	KindRedirectExceeded
	KindContentSkipped
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport-failure"
	case KindHTTPError:
		return "http-error"
	case KindRedirectExceeded:
		return "redirect-exceeded"
	case KindContentSkipped:
		return "content-skipped"
	default:
		return "unknown"
	}
}

// Error wraps a fetch failure with its kind, the URL in play, and the
// underlying cause (if any).
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

const (
	maxAttempts     = 3
	maxRedirectHops = 5
	maxBodyBytes    = 1 << 20 // 1 MiB

	baseConnectTimeout = 30 * time.Second
	baseReadTimeout    = 60 * time.Second
)

var acceptedContentTypes = []string{
	"text/html",
	"application/xhtml+xml",
	"application/xml",
	"text/xml",
}

// Result is a fetched, content-gated HTML document.
type Result struct {
	EffectiveURL string
	Body         []byte
	StatusCode   int
}

// Canonicalizer maps an absolute URL to the engine's canonical string
// form. Fetch applies it to the start URL and to each redirect target
// (after resolving Location against the current URL) to build the
// loop-detection trail, so it shares exactly one notion of URL identity
// with the rest of the engine.
type Canonicalizer func(raw string) (string, error)

// Fetch executes the three nested concerns described for C3: retry with
// backoff, manual redirect chasing with loop detection, and a final
// content-type gate. The caller is responsible for pre-admission checks
// (in-scope, robots-allowed, not-visited) — Fetch only executes the
// network operation.
func Fetch(ctx context.Context, client *http.Client, rawURL, userAgent string, canon Canonicalizer, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := attemptWithRedirects(ctx, client, rawURL, userAgent, attempt, canon, logger)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var fe *Error
		if ok := asFetchError(err, &fe); ok && fe.Kind != KindTransport {
			// HTTP errors, redirect-exceeded, and content-skip are not
			// retried — only transport failures are.
			return nil, err
		}

		if attempt == maxAttempts {
			break
		}

		sleep := backoff(attempt)
		logger.Debug("retrying fetch", zap.String("url", rawURL), zap.Int("attempt", attempt), zap.Duration("sleep", sleep))
		if !sleepOrDone(ctx, sleep) {
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func asFetchError(err error, out **Error) bool {
	fe, ok := err.(*Error)
	if ok {
		*out = fe
	}
	return ok
}

// timeoutForAttempt scales the base read/connect timeout per retry:
// attempt 1 uses the base timeout; each subsequent retry N (N = attempt-1)
// multiplies it by N+2, so attempt 2 is 3x and attempt 3 is 4x.
func timeoutForAttempt(base time.Duration, attempt int) time.Duration {
	if attempt <= 1 {
		return base
	}
	retryIndex := attempt - 1
	return time.Duration(retryIndex+2) * base
}

func backoff(attempt int) time.Duration {
	ms := 1000 * (1 << (attempt - 1))
	if ms > 10000 {
		ms = 10000
	}
	jitter := rand.Intn(1000)
	return time.Duration(ms+jitter) * time.Millisecond
}

// attemptWithRedirects issues one attempt's worth of requests, chasing up
// to maxRedirectHops redirects manually so each hop can be canonicalized
// and checked against the in-flight trail for loops. The read and connect
// timeouts for this attempt are baseReadTimeout and baseConnectTimeout
// scaled by timeoutForAttempt, per the retry ladder in Fetch.
func attemptWithRedirects(ctx context.Context, client *http.Client, startURL, userAgent string, attempt int, canon Canonicalizer, logger *zap.Logger) (*Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeoutForAttempt(baseReadTimeout, attempt))
	defer cancel()
	connectTimeout := timeoutForAttempt(baseConnectTimeout, attempt)

	currentURL := startURL
	startCanonical, err := canon(startURL)
	if err != nil {
		return nil, &Error{Kind: KindTransport, URL: startURL, Err: err}
	}
	trail := map[string]struct{}{startCanonical: {}}

	for hop := 0; ; hop++ {
		connectCtx, cancelConnect := withConnectTimeout(reqCtx, connectTimeout)
		req, err := http.NewRequestWithContext(connectCtx, http.MethodGet, currentURL, nil)
		if err != nil {
			cancelConnect()
			return nil, &Error{Kind: KindTransport, URL: currentURL, Err: err}
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := client.Do(req)
		if err != nil {
			cancelConnect()
			return nil, &Error{Kind: KindTransport, URL: currentURL, Err: err}
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
		cancelConnect()
		if readErr != nil {
			return nil, &Error{Kind: KindTransport, URL: currentURL, Err: readErr}
		}

		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			return gate(currentURL, resp, body)
		}

		// 3xx: resolve Location and decide whether to keep chasing.
		location := resp.Header.Get("Location")
		if location == "" {
			return gate(currentURL, resp, body)
		}

		nextURL, err := resolveLocation(currentURL, location)
		if err != nil {
			return nil, &Error{Kind: KindTransport, URL: currentURL, Err: err}
		}
		nextCanonical, err := canon(nextURL)
		if err != nil {
			return nil, &Error{Kind: KindTransport, URL: nextURL, Err: err}
		}

		if _, seen := trail[nextCanonical]; seen {
			// Redirect loop: stop chasing and hand back the response that
			// tried to re-enter the trail, without erroring.
			logger.Debug("redirect loop detected, returning last response",
				zap.String("url", currentURL), zap.String("would_loop_to", nextCanonical))
			return gate(currentURL, resp, body)
		}

		if hop == maxRedirectHops {
			return nil, &Error{Kind: KindRedirectExceeded, URL: currentURL, Err: fmt.Errorf("exceeded %d redirect hops", maxRedirectHops)}
		}

		trail[nextCanonical] = struct{}{}
		if !sleepOrDone(ctx, redirectPause(hop)) {
			return nil, ctx.Err()
		}
		currentURL = nextURL
	}
}

func gate(effectiveURL string, resp *http.Response, body []byte) (*Result, error) {
	if resp.StatusCode >= 400 {
		return nil, &Error{Kind: KindHTTPError, URL: effectiveURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	contentType := resp.Header.Get("Content-Type")
	if semi := strings.IndexByte(contentType, ';'); semi >= 0 {
		contentType = contentType[:semi]
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	accepted := false
	for _, prefix := range acceptedContentTypes {
		if strings.HasPrefix(contentType, prefix) {
			accepted = true
			break
		}
	}
	if !accepted {
		return nil, &Error{Kind: KindContentSkipped, URL: effectiveURL, Err: fmt.Errorf("content-type %q", contentType)}
	}

	return &Result{EffectiveURL: effectiveURL, Body: body, StatusCode: resp.StatusCode}, nil
}

func resolveLocation(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", base, err)
	}
	locURL, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse Location %q: %w", location, err)
	}
	return baseURL.ResolveReference(locURL).String(), nil
}

// withConnectTimeout derives a context that cancels itself if a connection
// isn't established within timeout, independent of the read-phase deadline
// already on parent. The returned cancel must still be called once the
// request (including body read) has finished, to release the trace timer.
func withConnectTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	timer := time.AfterFunc(timeout, cancel)
	trace := &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) {
			timer.Stop()
		},
	}

	return httptrace.WithClientTrace(ctx, trace), func() {
		timer.Stop()
		cancel()
	}
}

func redirectPause(hop int) time.Duration {
	ms := 200 * (hop + 1)
	if ms > 2000 {
		ms = 2000
	}
	return time.Duration(ms) * time.Millisecond
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
