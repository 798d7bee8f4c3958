// Pulse is a terminal client for the FanPulse social/blogging API: register,
// log in, browse the feed, write articles, and exchange direct messages.
// All state lives in the remote API; this process is a fetching and
// presentation layer over it.
//
// Run the client against a server:
//
//	$ go run . -api http://localhost:3000/api/v1
//
// Or boot the bundled in-memory stub API for local development:
//
//	$ go run . -stub
//
// Passing -routes prints generated docs for the stub router.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/docgen"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/global"
	export "go.opentelemetry.io/otel/sdk/export/metric"
	"go.opentelemetry.io/otel/sdk/metric/aggregator/histogram"
	controller "go.opentelemetry.io/otel/sdk/metric/controller/basic"
	processor "go.opentelemetry.io/otel/sdk/metric/processor/basic"
	selector "go.opentelemetry.io/otel/sdk/metric/selector/simple"

	"github.com/fanpulse/pulse/client"
	"github.com/fanpulse/pulse/internal/config"
	"github.com/fanpulse/pulse/internal/query"
	"github.com/fanpulse/pulse/internal/session"
	"github.com/fanpulse/pulse/internal/stubserver"
	"github.com/fanpulse/pulse/internal/view"
)

const ServiceName = "pulse"

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment variables from OS")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	var (
		stub   = flag.Bool("stub", getEnvBool(ServiceName+"_STUB", false), "Serve the in-memory stub API instead of running the client")
		routes = flag.Bool("routes", getEnvBool(ServiceName+"_ROUTES", false), "Generate stub router documentation")
		api    = flag.String("api", getEnv(ServiceName+"_API", cfg.APIBase), "API base URL")
	)
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync() // flushes buffer, if any
	sugar := logger.Sugar()

	exporter, err := newMetricsExporter()
	if err != nil {
		sugar.Panicf("failed to initialize prometheus exporter %v", err)
	}
	meter := global.Meter(ServiceName)
	labels := []attribute.KeyValue{attribute.String("service", ServiceName)}
	completed := metric.Must(meter).NewInt64Counter(
		"http/client/completed_count",
		metric.WithDescription("Count of completed API requests"),
	).Bind(labels...)
	defer completed.Unbind()

	diagRouter := chi.NewRouter()
	diagRouter.Get("/metrics", exporter.ServeHTTP)
	go func() {
		if err := http.ListenAndServe(cfg.DiagAddr, diagRouter); err != nil {
			sugar.Errorw(err.Error())
		}
	}()

	if *stub || *routes {
		runStub(cfg, sugar, *routes)

		return
	}

	store, err := session.Open(cfg.SessionFile, sugar)
	if err != nil {
		sugar.Fatalw("cannot open session store", "err", err)
	}

	apiClient := client.New(*api, sugar)
	apiClient.TokenSource = store.Token
	apiClient.Completed = &completed

	deps := view.Deps{
		API:          apiClient,
		Cache:        query.NewCache(sugar),
		Session:      store,
		Log:          sugar,
		Clock:        query.RealClock(),
		PollInterval: cfg.PollInterval,
	}
	router := view.NewRouter(deps)

	start := view.PathLogin
	if store.LoggedIn() {
		start = view.PathDashboard
	}
	if err := router.Navigate(start); err != nil {
		sugar.Fatalw("cannot mount start view", "err", err)
	}

	repl(router, deps, sugar)
}

func runStub(cfg config.Config, sugar *zap.SugaredLogger, routesOnly bool) {
	s := stubserver.New(sugar, []byte(cfg.Secret))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Mount("/api/v1", s.Routes())

	if routesOnly {
		fmt.Println(docgen.MarkdownRoutesDoc(r, docgen.MarkdownOpts{
			ProjectPath: "github.com/fanpulse/pulse",
			Intro:       "Stub API routes for the Pulse client.",
		}))

		return
	}

	sugar.Infow("stub API listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		sugar.Errorw(err.Error())
	}
}

func repl(router *view.Router, deps view.Deps, sugar *zap.SugaredLogger) {
	ctx := context.Background()
	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 1024*1024), 1024*1024) // inline images make long lines

	fmt.Println(`pulse - type "help" for commands`)
	show(ctx, router)

	for {
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")

		switch cmd {
		case "quit", "exit":
			return
		case "help":
			printHelp()

			continue
		case "open":
			if err := router.Navigate(rest); err != nil {
				fmt.Println(err)

				continue
			}
		case "logout":
			if err := deps.Session.Clear(); err != nil {
				sugar.Warnw("session clear failed", "err", err)
			}
			if err := router.Navigate(view.PathLogin); err != nil {
				fmt.Println(err)
			}
		default:
			if err := dispatch(ctx, router, cmd, rest); err != nil && !errors.Is(err, view.ErrValidation) {
				fmt.Println("error:", err)
			}
		}

		show(ctx, router)
	}
}

// dispatch routes a command to the mounted view.
func dispatch(ctx context.Context, router *view.Router, cmd, rest string) error {
	_, current := router.Current()
	args := strings.Fields(rest)

	switch v := current.(type) {
	case *view.Login:
		if cmd == "login" && len(args) == 2 {
			v.Email, v.Password = args[0], args[1]

			return v.Submit(ctx)
		}
	case *view.Register:
		if cmd == "register" && len(args) == 5 {
			v.Name, v.Phone, v.Email, v.Username, v.Password = args[0], args[1], args[2], args[3], args[4]
			v.ConfirmPassword = v.Password

			return v.Submit(ctx)
		}
	case *view.Editor:
		switch cmd {
		case "write":
			title, content, ok := strings.Cut(rest, "::")
			if !ok {
				return fmt.Errorf("usage: write <title> :: <content>")
			}
			v.Title = strings.TrimSpace(title)
			v.Content = strings.TrimSpace(content)
			_, err := v.Submit(ctx)

			return err
		case "attach":
			return v.AttachImage(rest)
		case "detach":
			v.RemoveImage()

			return nil
		case "edit":
			return v.BeginEdit(ctx, rest)
		case "delete":
			return v.Delete(ctx, rest)
		}
	case *view.Chat:
		switch cmd {
		case "chat":
			v.SelectPeer(ctx, rest)

			return nil
		case "leave":
			v.SelectPeer(ctx, "")

			return nil
		case "say":
			return v.Send(ctx, rest)
		}
	}

	return fmt.Errorf("unknown command %q here (try \"help\")", cmd)
}

// show loads the mounted view's data and prints its rendered state.
func show(ctx context.Context, router *view.Router) {
	path, current := router.Current()
	if current == nil {
		return
	}

	switch v := current.(type) {
	case *view.Feed:
		_, _ = v.Load(ctx)
	case *view.Detail:
		_, _ = v.Load(ctx)
	case *view.Editor:
		_, _ = v.Articles(ctx)
	case *view.Chat:
		if users, err := v.Users(ctx); err == nil && v.Peer() == "" {
			fmt.Println("Users:")
			for _, u := range users {
				fmt.Printf("  [%s] %s\n", u.ID, u.Name)
			}
		}
		_, _ = v.Messages(ctx)
	}

	fmt.Printf("-- %s --\n%s\n", path, current.Render())
}

func printHelp() {
	fmt.Print(`commands:
  open <path>                         navigate (/  /register  /dashboard  /article  /article/<id>  /messages)
  login <email> <password>            at /
  register <name> <phone> <email> <username> <password>   at /register
  write <title> :: <content>          at /article
  attach <file> | detach              at /article
  edit <id> | delete <id>             at /article
  chat <userID> | say <text> | leave  at /messages
  logout
  quit
`)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return value == "1" || strings.EqualFold(value, "true")
	}

	return fallback
}

func newMetricsExporter() (*prometheus.Exporter, error) {
	promConfig := prometheus.Config{}
	c := controller.New(
		processor.New(
			selector.NewWithHistogramDistribution(
				histogram.WithExplicitBoundaries(promConfig.DefaultHistogramBoundaries),
			),
			export.CumulativeExportKindSelector(),
			processor.WithMemory(true),
		),
	)
	exporter, err := prometheus.New(promConfig, c)
	if err != nil {
		return nil, err
	}
	global.SetMeterProvider(exporter.MeterProvider())

	return exporter, nil
}
