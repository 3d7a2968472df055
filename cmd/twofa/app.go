package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/wilsonhuang01/CMPE-272-2FA/auth"
	"github.com/wilsonhuang01/CMPE-272-2FA/gateway"
	"github.com/wilsonhuang01/CMPE-272-2FA/guard"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/config"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/metrics"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/ui"
	"github.com/wilsonhuang01/CMPE-272-2FA/sessions"
	"github.com/wilsonhuang01/CMPE-272-2FA/sessions/filestore"
	"github.com/wilsonhuang01/CMPE-272-2FA/sessions/memstore"
	"github.com/wilsonhuang01/CMPE-272-2FA/sessions/redisstore"
)

// app is one run of the terminal front-end.
type app struct {
	cfg        config.Config
	store      *sessions.Store
	controller *auth.Controller
	nav        *guard.Navigator
	registry   *prometheus.Registry
	storedIn   string

	in     *bufio.Reader
	out    io.Writer
	color  bool
	closer []func()
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		in:       bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		color:    term.IsTerminal(int(os.Stdout.Fd())),
	}

	storage, err := a.openStorage()
	if err != nil {
		return nil, err
	}
	a.store = sessions.NewStore(storage)

	gm, err := metrics.NewGatewayMetrics(metrics.Options{Registerer: a.registry})
	if err != nil {
		return nil, err
	}
	client := gateway.New(cfg.GetAPIBaseURL(), a.store,
		gateway.WithSessionClearer(a.store),
		gateway.WithMetrics(gm),
		gateway.WithTimeout(cfg.GetRequestTimeout()),
	)

	if _, ok := a.store.Restore(ctx); ok {
		log.Debug().Msg("Restored stored session")
	}

	a.controller, err = auth.NewController(auth.Deps{Gateway: client, Sessions: a.store}, auth.WithValidation(cfg))
	if err != nil {
		return nil, err
	}
	a.closer = append(a.closer, a.controller.Close)

	a.nav = guard.NewNavigator(a.store, guard.RouteRoot, guard.WithOnRedirect(func(from, to guard.Route) {
		log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("Redirected")
	}))
	a.closer = append(a.closer, a.nav.Close)
	return a, nil
}

func (a *app) openStorage() (sessions.Storage, error) {
	switch backend := a.cfg.GetStoreBackend(); backend {
	case config.StoreMemory:
		return memstore.New(), nil
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.cfg.GetRedisAddr(),
			Password: a.cfg.GetRedisPassword(),
			DB:       a.cfg.GetRedisDB(),
		})
		a.closer = append(a.closer, func() {
			if err := rdb.Close(); err != nil {
				log.Warn().Err(err).Msg("Closing redis client")
			}
		})
		a.storedIn = "redis " + a.cfg.GetRedisAddr()
		return redisstore.New(rdb, a.cfg.GetRedisKeyPrefix()), nil
	case config.StoreFile:
		fs := filestore.New(a.cfg.GetSessionDir())
		a.storedIn = fs.Dir()
		return fs, nil
	default:
		return nil, fmt.Errorf("unknown session store %q", backend)
	}
}

// close releases resources in reverse order and writes the metrics textfile
// when one is configured.
func (a *app) close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		a.closer[i]()
	}
	if path := a.cfg.GetMetricsFile(); path != "" {
		if err := metrics.WriteTextfile(path, a.registry); err != nil {
			log.Warn().Err(err).Msg("Metrics not written")
		}
	}
}

// dispatch routes cmd through the guard first. Protected commands need a
// session; public ones are pointless with one, so they show the dashboard.
func (a *app) dispatch(ctx context.Context, cmd command, args []string) error {
	decision := a.nav.Navigate(cmd.route)
	if !decision.Allowed {
		switch decision.Redirect {
		case guard.RouteLogin:
			return fmt.Errorf("you are not logged in, run `twofa login` first")
		case guard.RouteDashboard:
			fmt.Fprintln(a.out, "You are already logged in.")
			return a.showStatus()
		}
		return fmt.Errorf("cannot open %s", cmd.route)
	}
	return cmd.run(ctx, a, args)
}

func (a *app) paint(color, s string) string {
	return ui.Colorize(a.color, color, s)
}
