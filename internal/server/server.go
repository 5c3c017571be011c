package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/starlight-qa/starlight/internal/utils"
	"github.com/starlight-qa/starlight/pkg/report"
	"github.com/starlight-qa/starlight/pkg/star"
	"github.com/starlight-qa/starlight/pkg/storage"
	"golang.org/x/sync/errgroup"
)

// DevicesPerPage matches the page size of the device list.
const DevicesPerPage = 112

// Source is the upstream report service.
type Source interface {
	Devices(ctx context.Context) ([]star.Device, error)
	FetchReport(ctx context.Context, device string) ([]byte, error)
}

type Server struct {
	DB       *storage.DB
	STAR     Source
	Username string
	Password string
}

func New(db *storage.DB, src Source, user, pass string) *Server {
	return &Server{
		DB:       db,
		STAR:     src,
		Username: user,
		Password: pass,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Pages
	mux.HandleFunc("GET /{$}", s.basicAuth(s.handleIndex))
	mux.HandleFunc("GET /view/{device}", s.basicAuth(s.handleView))

	// API Group
	mux.HandleFunc("GET /api/devices", s.basicAuth(s.handleAPIDevices))
	mux.HandleFunc("GET /api/view/{device}", s.basicAuth(s.handleAPIView))
	mux.HandleFunc("GET /api/categories", s.basicAuth(s.handleAPICategories))
	mux.HandleFunc("POST /api/categories/active", s.basicAuth(s.handleAPISetCategoryActive))
	mux.HandleFunc("GET /api/teams", s.basicAuth(s.handleAPITeams))

	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	utils.Log.Infof("Starting server on %s", addr)
	return srv.ListenAndServe()
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// buildReport loads the category snapshot and fetches the report at the same
// time, then runs the pipeline.
func (s *Server) buildReport(ctx context.Context, device string, filters report.Filters) (*report.Result, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	var (
		snapshot report.Snapshot
		raw      []byte
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshot, err = s.DB.Snapshot(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		raw, err = s.STAR.FetchReport(gctx, device)
		return err
	})

	err := g.Wait()
	var res *report.Result
	if err == nil {
		log := utils.Log.WithField("device", device)
		res, err = report.New(snapshot, report.WithLogger(log)).Build(device, raw, filters)
	}

	outcome := outcomeOf(err)
	ReportBuildsTotal.WithLabelValues(outcome).Inc()
	ReportBuildDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		utils.Log.Warnf("report for %s failed: %v", device, err)
		return nil, err
	}
	TestCasesIncluded.Observe(float64(res.Total))
	return res, nil
}

func outcomeOf(err error) string {
	var terr *star.TransportError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, star.ErrNoReport):
		return "no_report"
	case errors.As(err, &terr):
		return "transport"
	case errors.Is(err, report.ErrMalformedDocument):
		return "malformed"
	case errors.Is(err, report.ErrInsufficientVersionHistory):
		return "insufficient_versions"
	}
	return "error"
}

// statusOf maps a report or store error to an HTTP status.
func statusOf(err error) int {
	var terr *star.TransportError
	switch {
	case errors.Is(err, report.ErrMissingRequiredFilterKey), errors.Is(err, report.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, star.ErrNoReport), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &terr),
		errors.Is(err, report.ErrMalformedDocument),
		errors.Is(err, report.ErrInsufficientVersionHistory):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
