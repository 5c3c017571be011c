// Package star talks to the STAR test reporting SOAP service.
package star

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/antchfx/xpath"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/starlight-qa/starlight/pkg/report"
	"github.com/starlight-qa/starlight/pkg/whttp"
	"github.com/starlight-qa/starlight/pkg/xmltree"
)

const (
	soapNamespace    = "http://schemas.xmlsoap.org/soap/envelope/"
	serviceNamespace = "http://tempuri.org/"

	DefaultUserAgent        = "starlight"
	DefaultOper             = "TMO"
	DefaultDevicesOperation = "GetDevices_AVT"
	DefaultReportOperation  = "GetReport_AVT"
	DefaultUTCOffset        = -6 * time.Hour
)

var (
	ErrNotConfigured = errors.New("star: service URL is not configured")
	// ErrNoReport is returned when the service answers with an empty result,
	// which is what it does for unknown devices.
	ErrNoReport = errors.New("star: no report for device")
)

// TransportError describes a failed call to the service: a network error, a
// non-2xx status or a SOAP fault.
type TransportError struct {
	Operation  string
	StatusCode int
	// Detail is the SOAP fault string or the title of an HTML error page.
	Detail string
	Err    error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "star %s", e.Operation)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

type Config struct {
	URL       string
	UserAgent string
	SID       string
	Oper      string

	DevicesOperation string
	ReportOperation  string

	// UTCOffset is added to device update times, which the service reports
	// in its own clock.
	UTCOffset time.Duration

	Retries int
	Proxy   string
	Timeout time.Duration
}

func (c *Config) setDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Oper == "" {
		c.Oper = DefaultOper
	}
	if c.DevicesOperation == "" {
		c.DevicesOperation = DefaultDevicesOperation
	}
	if c.ReportOperation == "" {
		c.ReportOperation = DefaultReportOperation
	}
}

type Client struct {
	cfg  Config
	http *retryablehttp.Client
	log  report.Logger
}

type Option func(*Client)

func WithLogger(l report.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}
	cfg.setDefaults()
	httpClient, err := whttp.NewClient(whttp.ClientOptions{
		Retries: cfg.Retries,
		Proxy:   cfg.Proxy,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg, http: httpClient, log: nopLogger{}}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Device is one entry of the device list.
type Device struct {
	Name       string    `json:"name"`
	LastUpdate time.Time `json:"last_update,omitempty"`
}

var tablePath = xpath.MustCompile("//Table")

// Devices lists the devices known to the service, in the order it returns
// them.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	raw, err := c.call(ctx, c.cfg.DevicesOperation, "")
	if err != nil {
		return nil, err
	}
	doc, err := xmltree.Load(raw)
	if err != nil {
		return nil, &TransportError{Operation: c.cfg.DevicesOperation, Err: err}
	}
	return parseDevices(doc, c.cfg.UTCOffset, c.log), nil
}

func parseDevices(doc *xmltree.Document, offset time.Duration, log report.Logger) []Device {
	var devices []Device
	for _, table := range doc.Select(tablePath) {
		name, _ := doc.ChildText(table, "Name")
		if name == "" {
			// Nothing to fetch a report for.
			log.Debugf("devices: skipping %s without a name", doc.Path(table))
			continue
		}
		d := Device{Name: name}
		if raw, ok := doc.ChildText(table, "Last_x0020_Update"); ok && raw != "" {
			t, err := parseTimestamp(raw)
			if err != nil {
				log.Warnf("device %s: bad update time %q: %v", name, raw, err)
			} else {
				d.LastUpdate = t.Add(offset)
			}
		}
		devices = append(devices, d)
	}
	return devices
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

func parseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, strings.TrimSpace(s))
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// FetchReport returns the raw SOAP response holding the test report of
// device.
func (c *Client) FetchReport(ctx context.Context, device string) ([]byte, error) {
	op := c.cfg.ReportOperation
	raw, err := c.call(ctx, op, device)
	if err != nil {
		return nil, err
	}
	if len(raw) < smallResponse {
		if empty, ok := emptyResult(raw, op); ok && empty {
			return nil, fmt.Errorf("%w %q", ErrNoReport, device)
		}
	}
	return raw, nil
}

// Responses below this size are checked for an empty result. Real reports
// are far larger.
const smallResponse = 4 << 10

// emptyResult reports whether the <op>Result element of a response carries
// nothing. ok is false when the element cannot be found.
func emptyResult(raw []byte, op string) (empty, ok bool) {
	doc, err := xmltree.Load(raw)
	if err != nil {
		return false, false
	}
	res := doc.FindFirst(op + "Result")
	if res == xmltree.None {
		return false, false
	}
	return len(doc.Children(res)) == 0 && doc.Text(res) == "", true
}

func (c *Client) call(ctx context.Context, op, model string) ([]byte, error) {
	body, err := buildEnvelope(op, c.cfg.Oper, c.cfg.SID, model)
	if err != nil {
		return nil, err
	}

	c.log.Debugf("star: %s %s", op, model)
	start := time.Now()
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method: http.MethodPost,
		URL:    c.cfg.URL,
		Headers: []whttp.WHTTPHeader{
			{Name: "Content-Type", Value: "text/xml; charset=utf-8"},
			{Name: "User-Agent", Value: c.cfg.UserAgent},
			{Name: "SOAPAction", Value: `"` + serviceNamespace + op + `"`},
		},
		Body: body,
	}, c.http)
	if err != nil {
		return nil, &TransportError{Operation: op, Err: err}
	}
	c.log.Debugf("star: %s %s -> %d (%d bytes) in %s", op, model, res.StatusCode, len(res.Body), time.Since(start))

	if fault := soapFault(res.Body); fault != "" {
		return nil, &TransportError{Operation: op, StatusCode: res.StatusCode, Detail: fault}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &TransportError{Operation: op, StatusCode: res.StatusCode, Detail: res.HTTPTitle}
	}
	return res.Body, nil
}

var faultPath = xpath.MustCompile("//soap:Fault")

// soapFault returns the fault string of a SOAP fault response, or "".
func soapFault(body []byte) string {
	if !bytes.Contains(body, []byte("Fault")) {
		return ""
	}
	doc, err := xmltree.Load(body)
	if err != nil {
		return ""
	}
	fault := doc.SelectFirst(faultPath)
	if fault == xmltree.None {
		return ""
	}
	if s, ok := doc.ChildText(fault, "faultstring"); ok && s != "" {
		return s
	}
	return "SOAP fault"
}

type envelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	Soap    string   `xml:"xmlns:soap,attr"`
	Xsi     string   `xml:"xmlns:xsi,attr"`
	Xsd     string   `xml:"xmlns:xsd,attr"`
	Body    struct {
		Operation operation
	} `xml:"soap:Body"`
}

type operation struct {
	XMLName xml.Name
	Xmlns   string `xml:"xmlns,attr"`
	Oper    string `xml:"oper"`
	SID     string `xml:"sid"`
	Model   string `xml:"model,omitempty"`
}

func buildEnvelope(op, oper, sid, model string) ([]byte, error) {
	env := envelope{
		Soap: soapNamespace,
		Xsi:  "http://www.w3.org/2001/XMLSchema-instance",
		Xsd:  "http://www.w3.org/2001/XMLSchema",
	}
	env.Body.Operation = operation{
		XMLName: xml.Name{Local: op},
		Xmlns:   serviceNamespace,
		Oper:    oper,
		SID:     sid,
		Model:   model,
	}
	out, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("building %s envelope: %w", op, err)
	}
	return append([]byte(xml.Header), out...), nil
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}
