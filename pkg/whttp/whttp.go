package whttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
)

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
	Body    []byte
}

type WHTTPRes struct {
	StatusCode     int
	ResponseLength int
	ContentType    string
	HTTPTitle      string
	Body           []byte
}

func (r *WHTTPRes) BodyString() string { return string(r.Body) }

// ClientOptions configures NewClient.
type ClientOptions struct {
	Retries int
	// Proxy is an optional proxy URL, e.g. http://127.0.0.1:8080.
	Proxy   string
	Timeout time.Duration
}

// NewClient returns a retrying client. Failed attempts are retried on
// connection errors and 5xx responses; once retries run out the last
// response is handed back as is so callers can inspect its status.
func NewClient(opts ClientOptions) (*retryablehttp.Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.ErrorHandler = lastResponse
	if opts.Timeout > 0 {
		retryClient.HTTPClient.Timeout = opts.Timeout
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		retryClient.HTTPClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		}
	}
	return retryClient, nil
}

// lastResponse keeps the final response when retries are exhausted so a
// 5xx body reaches the caller instead of a generic "giving up" error.
func lastResponse(resp *http.Response, err error, _ int) (*http.Response, error) {
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (*WHTTPRes, error) {
	var body io.Reader
	if wReq.Body != nil {
		body = bytes.NewReader(wReq.Body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, wReq.Method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Cache-Control", "no-transform")
	req.Header.Set("Accept-Language", "en")
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes := &WHTTPRes{
		StatusCode:     resp.StatusCode,
		ContentType:    resp.Header.Get("Content-Type"),
		Body:           bodyBytes,
		ResponseLength: utf8.RuneCount(bodyBytes),
	}
	if strings.Contains(wRes.ContentType, "html") {
		if title, ok := getHTMLTitle(bodyBytes); ok {
			wRes.HTTPTitle = strings.ToValidUTF8(strings.Join(strings.Fields(title), " "), "")
		}
	}
	return wRes, nil
}

// getHTMLTitle returns the page title of an HTML body, typically an IIS or
// proxy error page.
func getHTMLTitle(body []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	sel := doc.Find("title").First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Text(), true
}
