// Package report turns a STAR test report into the list of test cases a
// reviewer has to look at.
//
// A run loads the SOAP XML, finds the current and previous binary version
// columns, drops rows outside the chosen categories, builds one TestCase per
// changed row, filters and tags them, and sorts what is left by category and
// display order.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/starlight-qa/starlight/pkg/xmltree"
)

// Logger abstracts logging so callers can pass logrus or anything else with
// the same methods.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Fetcher returns the raw report of a device. Its errors reach the caller of
// Pipeline.Run unchanged.
type Fetcher interface {
	FetchReport(ctx context.Context, device string) ([]byte, error)
}

// Result is the outcome of one run.
type Result struct {
	Device          string
	RunID           string
	TestCases       []TestCase
	Versions        []string
	CurrentVersion  string
	PreviousVersion string
	Total           int
	Elapsed         time.Duration
}

// ElapsedSeconds renders Elapsed with two decimals.
func (r *Result) ElapsedSeconds() string {
	return fmt.Sprintf("%.2f", r.Elapsed.Seconds())
}

func (r *Result) MarshalJSON() ([]byte, error) {
	testCases := r.TestCases
	if testCases == nil {
		testCases = []TestCase{}
	}
	return json.Marshal(struct {
		Device          string     `json:"device"`
		RunID           string     `json:"run_id"`
		CurrentVersion  string     `json:"current_version"`
		PreviousVersion string     `json:"previous_version"`
		Versions        []string   `json:"versions"`
		Total           int        `json:"total"`
		ElapsedSeconds  string     `json:"elapsed_seconds"`
		TestCases       []TestCase `json:"test_cases"`
	}{
		Device:          r.Device,
		RunID:           r.RunID,
		CurrentVersion:  r.CurrentVersion,
		PreviousVersion: r.PreviousVersion,
		Versions:        r.Versions,
		Total:           r.Total,
		ElapsedSeconds:  r.ElapsedSeconds(),
		TestCases:       testCases,
	})
}

// Pipeline builds Results against one category snapshot. It holds no state
// between runs and is safe for concurrent use.
type Pipeline struct {
	snapshot Snapshot
	log      Logger
	now      func() time.Time
}

type Option func(*Pipeline)

func WithLogger(l Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithClock replaces time.Now for elapsed time measurement.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(snapshot Snapshot, opts ...Option) *Pipeline {
	p := &Pipeline{snapshot: snapshot, log: nopLogger{}, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run validates filters, fetches the device report and builds it.
func (p *Pipeline) Run(ctx context.Context, f Fetcher, device string, filters Filters) (*Result, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	raw, err := f.FetchReport(ctx, device)
	if err != nil {
		return nil, err
	}
	return p.Build(device, raw, filters)
}

// Build runs the pipeline on an already fetched report.
func (p *Pipeline) Build(device string, raw []byte, filters Filters) (*Result, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()

	doc, err := xmltree.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("report for %s: %w", device, err)
	}
	if rerr := doc.Recovered(); rerr != nil {
		p.log.Warnf("[%s] report for %s is not well-formed, using what could be read: %v", runID, device, rerr)
	}

	versions := DetectVersions(doc)
	if len(versions) < 2 {
		return nil, fmt.Errorf("report for %s: %w: found %d version column(s) %v", device, ErrInsufficientVersionHistory, len(versions), versions)
	}
	current, previous := versions[len(versions)-1], versions[len(versions)-2]
	numericOrder := numericTypes[columnType(doc, fieldNames[FieldDisplayOrder])]

	allow := filters.allowList(p.snapshot)
	pruned := Prune(doc, allow)
	rows := ExtractRows(pruned, filters.OnlyBlank, current)
	p.log.Debugf("[%s] %s: versions %v, %d changed rows after pruning", runID, device, versions, len(rows))

	start := p.now()
	kept := make([]TestCase, 0, len(rows))
	for _, row := range rows {
		tc := buildTestCase(pruned, row, current, previous)
		if !filters.admit(&tc) {
			continue
		}
		tc.DisplayID = fmt.Sprint(len(kept) + 1)
		kept = append(kept, tc)
	}
	SortTestCases(kept, numericOrder)
	elapsed := p.now().Sub(start)

	res := &Result{
		Device:          device,
		RunID:           runID,
		TestCases:       kept,
		Versions:        versions,
		CurrentVersion:  current,
		PreviousVersion: previous,
		Total:           len(kept),
		Elapsed:         elapsed,
	}
	p.log.Infof("[%s] %s: %d test cases (%s vs %s) in %ss", runID, device, res.Total, current, previous, res.ElapsedSeconds())
	return res, nil
}
