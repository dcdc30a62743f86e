package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/AmmannChristian/go-authrelay/oauth2client"
)

// DefaultMaxResponseBytes caps how much of a downstream body is read into memory.
const DefaultMaxResponseBytes int64 = 4 << 20

// Logger is an interface for optional logging in OutboundInvoker.
type Logger interface {
	Printf(format string, args ...any)
}

// Observer is notified after every downstream call, typically to export metrics.
type Observer interface {
	OutboundCompleted(method string, statusCode int, err error)
}

// OutboundInvoker issues downstream calls carrying a caller-chosen bearer token.
// It never retries.
type OutboundInvoker struct {
	client   *http.Client
	method   string
	maxBody  int64
	logger   Logger   // optional logger
	observer Observer // optional observer
}

// InvokerOption configures an OutboundInvoker.
type InvokerOption func(*OutboundInvoker)

// WithMethod sets the HTTP method. Defaults to GET.
func WithMethod(method string) InvokerOption {
	return func(i *OutboundInvoker) {
		if method != "" {
			i.method = method
		}
	}
}

// WithMaxResponseBytes sets the largest 2xx body a call accepts. Larger bodies
// fail with ResponseTooLarge instead of being truncated.
func WithMaxResponseBytes(limit int64) InvokerOption {
	return func(i *OutboundInvoker) {
		if limit > 0 {
			i.maxBody = limit
		}
	}
}

// WithLogger sets a logger for failed calls.
func WithLogger(logger Logger) InvokerOption {
	return func(i *OutboundInvoker) {
		i.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
func WithLoggingEnabled() InvokerOption {
	return func(i *OutboundInvoker) {
		i.logger = log.Default()
	}
}

// WithObserver sets an observer for completed calls.
func WithObserver(observer Observer) InvokerOption {
	return func(i *OutboundInvoker) {
		i.observer = observer
	}
}

// NewOutboundInvoker creates an invoker on top of client. A nil client is
// replaced by one with DefaultTimeout. The client must not inject its own
// bearer token; the token is passed to every Call.
func NewOutboundInvoker(client *http.Client, opts ...InvokerOption) *OutboundInvoker {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	i := &OutboundInvoker{
		client:  client,
		method:  http.MethodGet,
		maxBody: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Response is a successful downstream answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the downstream Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Call sends the configured request to targetURL with
// "Authorization: Bearer <token>" and returns the body of a 2xx response.
//
// A non-2xx response yields a *InvocationError of kind UpstreamStatus carrying
// the status and body; a transport failure yields kind Unreachable. A 2xx body
// larger than the configured limit yields kind ResponseTooLarge.
func (i *OutboundInvoker) Call(ctx context.Context, targetURL string, token oauth2client.Token) ([]byte, error) {
	resp, err := i.Do(ctx, targetURL, token)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Do is Call, but also returns the status and headers of the 2xx response.
func (i *OutboundInvoker) Do(ctx context.Context, targetURL string, token oauth2client.Token) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if token.Value == "" {
		return nil, errors.New("httpclient: empty bearer token")
	}

	req, err := http.NewRequestWithContext(ctx, i.method, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}
	req.Header.Set("Authorization", token.AuthorizationHeader())

	resp, err := i.client.Do(req)
	if err != nil {
		callErr := &InvocationError{Kind: Unreachable, URL: targetURL, Err: err}
		i.finish(0, callErr)
		return nil, callErr
	}
	defer resp.Body.Close()

	// One byte past the limit tells a full body from an oversized one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, i.maxBody+1))
	if err != nil {
		callErr := &InvocationError{Kind: Unreachable, URL: targetURL, Err: fmt.Errorf("read body: %w", err)}
		i.finish(resp.StatusCode, callErr)
		return nil, callErr
	}
	oversized := int64(len(body)) > i.maxBody
	if oversized {
		body = body[:i.maxBody]
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		callErr := &InvocationError{Kind: UpstreamStatus, URL: targetURL, StatusCode: resp.StatusCode, Body: body}
		i.finish(resp.StatusCode, callErr)
		return nil, callErr
	}

	if oversized {
		callErr := &InvocationError{Kind: ResponseTooLarge, URL: targetURL, StatusCode: resp.StatusCode, Limit: i.maxBody}
		i.finish(resp.StatusCode, callErr)
		return nil, callErr
	}

	i.finish(resp.StatusCode, nil)
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (i *OutboundInvoker) finish(statusCode int, err error) {
	if i.observer != nil {
		i.observer.OutboundCompleted(i.method, statusCode, err)
	}
	if err != nil && i.logger != nil {
		i.logger.Printf("httpclient: %s call failed: %v", i.method, err)
	}
}
