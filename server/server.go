package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/wilsonhuang01/CMPE-272-2FA/internal/config"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/metrics"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/ui"
	"github.com/wilsonhuang01/CMPE-272-2FA/server/coderepo"
	"github.com/wilsonhuang01/CMPE-272-2FA/server/enrollmentrepo"
	"github.com/wilsonhuang01/CMPE-272-2FA/token"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

// Repos holds the server's storage.
type Repos struct {
	Users       users.UserRepo
	Codes       coderepo.Repo
	Enrollments enrollmentrepo.Repo
	Revoked     token.Revocations
}

// NewInMemoryRepos returns empty in-memory storage for every repo.
func NewInMemoryRepos(userRepo users.UserRepo) Repos {
	return Repos{
		Users:       userRepo,
		Codes:       coderepo.NewInMemoryRepo(),
		Enrollments: enrollmentrepo.NewInMemoryRepo(),
		Revoked:     token.NewRevocationList(),
	}
}

// Server is an in-memory implementation of the auth API for local development
// and end-to-end tests.
type Server struct {
	env      string
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	repos    Repos
	issuer   *token.Issuer
	notifier Notifier
	metrics  *metrics.HTTPMetrics
	gatherer prometheus.Gatherer
	nowTime  func() time.Time
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

// WithNotifier replaces the default delivery of verification codes, which
// only logs them.
func WithNotifier(n Notifier) Option {
	return func(s *Server) {
		s.notifier = n
	}
}

// WithMetrics instruments handlers with m and serves g on /metrics.
func WithMetrics(m *metrics.HTTPMetrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

func New(cfg config.Config, repos Repos, options ...Option) (*Server, error) {
	if repos.Users == nil || repos.Codes == nil || repos.Enrollments == nil || repos.Revoked == nil {
		return nil, fmt.Errorf("[Server New] every repo is required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		repos:    repos,
		notifier: LogNotifier{},
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	if s.metrics == nil {
		reg := prometheus.NewRegistry()
		m, err := metrics.NewHTTPMetrics(metrics.Options{Registerer: reg})
		if err != nil {
			return nil, fmt.Errorf("[Server New] failed to create metrics: %w", err)
		}
		s.metrics, s.gatherer = m, reg
	}

	issuer, err := token.NewIssuer(cfg.GetTokenSecret(), cfg.GetIssuer(), cfg.GetTokenExpiry(), token.WithNowTime(s.now))
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create token issuer: %w", err)
	}
	s.issuer = issuer

	if err := s.InitialiseSystem(context.Background()); err != nil {
		return nil, fmt.Errorf("[Server New] failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Info().Msgf("[%-19s] %s", ui.Method(method), path)
	}
}

// now goes through the field so WithNowTime also reaches the issuer.
func (s *Server) now() time.Time {
	return s.nowTime()
}

// PruneRevocations drops expired revocations every interval until ctx ends.
func (s *Server) PruneRevocations(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.repos.Revoked.Prune(s.now()); n > 0 {
				log.Debug().Int("pruned", n).Msg("Expired revocations pruned")
			}
		}
	}
}
