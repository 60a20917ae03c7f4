package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	echoadapter "github.com/awslabs/aws-lambda-go-api-proxy/echo"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bzimmer/mapty"
)

func config(c *cli.Context) (*mapty.Config, error) {
	if !c.IsSet("config") {
		log.Info().Str("file", "etc/mapty.json").Msg("config")
		return mapty.DefaultConfig(), nil
	}
	log.Info().Str("file", c.String("config")).Msg("config")
	fp, err := os.Open(c.String("config"))
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return mapty.ReadConfig(fp)
}

func geolocator(c *cli.Context) mapty.Geolocator {
	if c.IsSet("latitude") && c.IsSet("longitude") {
		pos := mapty.LatLng{c.Float64("latitude"), c.Float64("longitude")}
		log.Info().Float64("lat", pos.Lat()).Float64("lng", pos.Lng()).Msg("geolocation")
		return &mapty.StaticGeolocator{Position: pos}
	}
	log.Info().Str("url", c.String("geolocation-url")).Msg("geolocation")
	return mapty.NewIPGeolocator(c.String("geolocation-url"))
}

func newEngine(c *cli.Context) (*echo.Echo, func(), error) {
	cfg, err := config(c)
	if err != nil {
		return nil, nil, err
	}
	store, closer, err := mapty.OpenStorage(c.Context, c.String("storage"))
	if err != nil {
		return nil, nil, err
	}
	t, err := mapty.NewTemplate()
	if err != nil {
		closer()
		return nil, nil, err
	}
	u, err := url.Parse(c.String("base-url"))
	if err != nil {
		closer()
		return nil, nil, err
	}

	page := mapty.NewPage(cfg.FormDelay())
	app := mapty.NewApp(mapty.Options{
		Config:      cfg,
		Storage:     store,
		Geolocator:  geolocator(c),
		MapProvider: page,
		View:        page,
		Alerter:     page,
	})
	app.Start(c.Context)

	engine := echo.New()
	engine.HideBanner = true
	engine.HidePort = true
	engine.Renderer = t
	engine.Use(middleware.Recover())
	engine.Use(mapty.RequestLogger())
	engine.Use(echoprometheus.NewMiddleware("mapty"))
	engine.Use(session.Middleware(sessions.NewCookieStore([]byte(c.String("session-key")))))
	engine.GET("/metrics", echoprometheus.NewHandler())

	base := engine.Group(u.Path)
	mapty.Routes(base, u.Path, app, page)

	return engine, func() {
		app.Close()
		closer()
	}, nil
}

func serve(c *cli.Context) error {
	engine, closer, err := newEngine(c)
	if err != nil {
		return err
	}
	defer closer()
	u, err := url.Parse(c.String("base-url"))
	if err != nil {
		return err
	}
	_, port, _ := net.SplitHostPort(u.Host)
	address := fmt.Sprintf("0.0.0.0:%s", port)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         address,
		Handler:      engine,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		log.Info().Str("address", address).Msg("serving")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	grp.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return grp.Wait()
}

func function(c *cli.Context) error {
	engine, closer, err := newEngine(c)
	if err != nil {
		return err
	}
	defer closer()
	log.Info().Msg("running function")
	el := echoadapter.New(engine)
	lambda.Start(mapty.LambdaHandler(el))
	return nil
}

func list(c *cli.Context) error {
	cfg, err := config(c)
	if err != nil {
		return err
	}
	store, closer, err := mapty.OpenStorage(c.Context, c.String("storage"))
	if err != nil {
		return err
	}
	defer closer()
	workouts, err := mapty.LoadWorkouts(c.Context, store, cfg.StorageKey)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	for _, w := range workouts {
		if err := enc.Encode(w); err != nil {
			return err
		}
	}
	return nil
}

func reset(c *cli.Context) error {
	cfg, err := config(c)
	if err != nil {
		return err
	}
	store, closer, err := mapty.OpenStorage(c.Context, c.String("storage"))
	if err != nil {
		return err
	}
	defer closer()
	log.Info().Str("key", cfg.StorageKey).Msg("reset")
	return store.Remove(c.Context, cfg.StorageKey)
}

func main() {
	app := &cli.App{
		Name:     "mapty",
		HelpName: "mapty",
		Usage:    "Map your workouts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "session-key",
				Usage:   "session keypair",
				EnvVars: []string{"MAPTY_SESSION_KEY"},
			},
			&cli.StringFlag{
				Name:    "base-url",
				Value:   "http://localhost:9001",
				Usage:   "Base URL",
				EnvVars: []string{"BASE_URL"},
			},
			&cli.StringFlag{
				Name:    "storage",
				Value:   "file:.mapty",
				Usage:   "storage location: memory:, file:<dir> or a postgres url",
				EnvVars: []string{"MAPTY_STORAGE"},
			},
			&cli.Float64Flag{
				Name:  "latitude",
				Usage: "fixed latitude instead of looking up the position",
			},
			&cli.Float64Flag{
				Name:  "longitude",
				Usage: "fixed longitude instead of looking up the position",
			},
			&cli.StringFlag{
				Name:    "geolocation-url",
				Usage:   "ip geolocation endpoint",
				EnvVars: []string{"MAPTY_GEOLOCATION_URL"},
			},
			&cli.BoolFlag{
				Name:    "netlify",
				Value:   false,
				Usage:   "run as a netlify function",
				EnvVars: []string{"NETLIFY"},
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "file with map configuration parameters",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "print the persisted workouts",
				Action: list,
			},
			{
				Name:   "reset",
				Usage:  "remove the persisted workouts",
				Action: reset,
			},
		},
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}
			log.Error().Err(err).Msg(c.App.Name)
		},
		Before: func(c *cli.Context) error {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			zerolog.DurationFieldUnit = time.Millisecond
			zerolog.DurationFieldInteger = false
			log.Logger = log.Output(
				zerolog.ConsoleWriter{
					Out:        c.App.ErrWriter,
					NoColor:    false,
					TimeFormat: time.RFC3339,
				},
			)
			return nil
		},
		Action: func(c *cli.Context) error {
			if c.String("session-key") == "" {
				return errors.New("session-key is required")
			}
			if c.IsSet("netlify") {
				return function(c)
			}
			return serve(c)
		},
	}
	if err := app.RunContext(context.Background(), os.Args); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}
