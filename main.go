package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-buildgate/buildgate/internal/auth"
	"github.com/go-buildgate/buildgate/internal/backend"
	"github.com/go-buildgate/buildgate/internal/config"
	"github.com/go-buildgate/buildgate/internal/handlers"
	"github.com/go-buildgate/buildgate/internal/metrics"
	"github.com/go-buildgate/buildgate/internal/middleware"
	"github.com/go-buildgate/buildgate/internal/services"
	"github.com/go-buildgate/buildgate/internal/status"
	"github.com/go-buildgate/buildgate/internal/store"
	"github.com/go-buildgate/buildgate/internal/util"
	"github.com/go-buildgate/buildgate/internal/version"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Define flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		version.Print()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "server":
		runServer()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("Authentication and backend-proxy gateway for the build service API")
	fmt.Println("\nCommands:")
	fmt.Println("  server    Start the gateway")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

// buildAuthenticator selects the single active identity-resolution strategy
// for this deployment.
func buildAuthenticator(
	cfg *config.Config,
	db *store.Store,
	userService *services.UserService,
) auth.Authenticator {
	if cfg.AuthMode == config.AuthModeTrustedHeader {
		log.Printf("Authentication mode: trusted header (%s)", cfg.TrustedHeader)
		return auth.NewTrustedHeaderAuthenticator(db)
	}

	var verifier auth.LDAPVerifier
	if cfg.LDAPEnabled {
		verifier = auth.NewLDAPProvider(auth.LDAPConfig{
			URL:          cfg.LDAPURL,
			BaseDN:       cfg.LDAPBaseDN,
			BindDN:       cfg.LDAPBindDN,
			BindPassword: cfg.LDAPBindPassword,
			UserFilter:   cfg.LDAPUserFilter,
			Timeout:      cfg.LDAPTimeout,
			SkipVerify:   cfg.LDAPSkipVerify,
		})
		log.Printf("Authentication mode: password with LDAP (%s)", cfg.LDAPURL)
	} else {
		log.Println("Authentication mode: password (local store)")
	}
	return auth.NewPasswordAuthenticator(db, verifier, userService)
}

func buildNotifier(cfg *config.Config) status.Notifier {
	if cfg.NotifyURL == "" {
		return nil
	}
	notifier, err := status.NewWebhookNotifier(
		cfg.NotifyURL,
		cfg.NotifyAuthMode,
		cfg.NotifyAuthSecret,
		cfg.NotifyAuthHeader,
		cfg.NotifyTimeout,
		cfg.NotifyMaxRetries,
		cfg.NotifyRetryDelay,
	)
	if err != nil {
		log.Fatalf("Failed to initialize error notifier: %v", err)
	}
	log.Printf("Error notifications enabled: %s", cfg.NotifyURL)
	return notifier
}

// sourceRoute dispatches one /source/* request: meta writes and ?cmd=
// sub-commands go to their handlers, everything else passes through.
func sourceRoute(
	proxy *handlers.ProxyHandler,
	source *handlers.SourceHandler,
	table *handlers.CommandTable,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		segments := splitPath(c.Param("path"))

		var project, pkg string
		if len(segments) > 0 {
			project = segments[0]
		}
		if len(segments) > 1 && !strings.HasPrefix(segments[1], "_") {
			pkg = segments[1]
		}
		c.Params = append(c.Params,
			gin.Param{Key: "project", Value: project},
			gin.Param{Key: "package", Value: pkg},
		)

		switch {
		case c.Request.Method == http.MethodPut &&
			len(segments) == 2 && segments[1] == "_meta":
			source.PutProjectMeta(c)
		case c.Request.Method == http.MethodPut &&
			len(segments) == 3 && segments[2] == "_meta":
			source.PutPackageMeta(c)
		case c.Request.Method == http.MethodPost && pkg != "":
			table.Dispatch("package")(c)
		case c.Request.Method == http.MethodPost && project != "" && pkg == "":
			table.Dispatch("project")(c)
		default:
			proxy.PassToBackend(c)
		}
	}
}

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func setupGinMode(cfg *config.Config) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
}

func runServer() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize store
	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize metrics
	prometheusMetrics := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	} else {
		log.Println("Metrics disabled (using noop implementation)")
	}

	// Initialize services
	auditService := services.NewAuditService(db, cfg.EnableAuditLogging, cfg.AuditLogBufferSize)
	userService := services.NewUserService(db, auditService, prometheusMetrics)

	// Authentication pipeline
	extractor := auth.NewExtractor(
		cfg.TrustedHeader,
		cfg.TrustedEmailHeader,
		cfg.TrustedSimulate,
		cfg.TrustedTestUser,
	)
	authenticator := buildAuthenticator(cfg, db, userService)

	// Backend proxy
	defaults := backend.Target{Host: cfg.SourceHost, Port: cfg.SourcePort}
	backendClient := backend.NewClient(cfg.BackendTimeout)
	log.Printf("Backend source server: %s", defaults)

	// Error notification sink
	notifier := buildNotifier(cfg)

	// Handlers
	proxyHandler := handlers.NewProxyHandler(backendClient, prometheusMetrics)
	sourceHandler := handlers.NewSourceHandler(proxyHandler)
	commandTable := handlers.NewCommandTable()
	sourceHandler.RegisterCommands(commandTable)

	// Setup Gin
	setupGinMode(cfg)
	r := gin.New()
	r.Use(metrics.HTTPMetricsMiddleware(prometheusMetrics))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(util.IPMiddleware())
	r.Use(middleware.APIVersion(cfg.APIVersion))
	r.Use(middleware.ErrorTranslator(
		notifier, cfg.IsProduction(), cfg.Environment, prometheusMetrics))

	r.NoRoute(func(c *gin.Context) {
		_ = c.Error(status.NotFound(
			fmt.Sprintf("no route matches %s", c.Request.URL.Path)))
	})

	// Health check endpoint
	r.GET("/health", handlers.Health(db))

	// Prometheus metrics endpoint (with optional authentication)
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Everything else runs behind the authentication pipeline.
	protected := r.Group("")
	protected.Use(middleware.Authenticate(
		extractor, authenticator, defaults, prometheusMetrics, auditService))
	{
		protected.GET("/about", handlers.About(cfg.APIVersion))

		protected.Any("/source/*path",
			sourceRoute(proxyHandler, sourceHandler, commandTable))
		protected.Any("/build/*path", proxyHandler.PassToBackend)
		protected.Any("/published/*path", proxyHandler.PassToBackend)
	}

	// Admin routes (require Admin role)
	admin := r.Group("/admin")
	admin.Use(
		middleware.Authenticate(
			extractor, authenticator, defaults, prometheusMetrics, auditService),
		middleware.RequireAdmin(),
	)
	{
		admin.Any("/*path", proxyHandler.PassToBackend)
	}

	log.Printf("Gateway starting on %s", cfg.ServerAddr)

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Create graceful manager
	m := graceful.NewManager()

	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})

	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})

	m.AddShutdownJob(func() error {
		log.Println("Shutting down audit service...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := auditService.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down audit service: %v", err)
			return err
		}
		return nil
	})

	<-m.Done()
}
