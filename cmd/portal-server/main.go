package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/orthovision/portal/internal/config"
	"github.com/orthovision/portal/internal/domain/account"
	"github.com/orthovision/portal/internal/domain/chat"
	"github.com/orthovision/portal/internal/domain/dentition"
	"github.com/orthovision/portal/internal/domain/patient"
	"github.com/orthovision/portal/internal/domain/radiograph"
	"github.com/orthovision/portal/internal/platform/apiclient"
	"github.com/orthovision/portal/internal/platform/auth"
	"github.com/orthovision/portal/internal/platform/blobstore"
	"github.com/orthovision/portal/internal/platform/db"
	"github.com/orthovision/portal/internal/platform/middleware"
	"github.com/orthovision/portal/internal/platform/overlayimg"
	"github.com/orthovision/portal/internal/platform/session"
	"github.com/orthovision/portal/internal/platform/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-server",
		Short: "OrthoVision clinic portal",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(overlayCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the portal version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the postgres store",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				count, err := db.NewMigrator(pool, db.Migrations()).Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, db.Migrations()).Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	})

	return cmd
}

func withPool(fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}

func overlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overlay",
		Short: "Work with tooth reports offline",
	}

	render := &cobra.Command{
		Use:   "render REPORT.json",
		Short: "Draw a report's tooth overlay as a PNG",
		Long: "Reads a tooth report (a JSON object of tooth number to anomaly list; " +
			"\"-\" reads stdin) and writes the overlay PNG.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			base, _ := cmd.Flags().GetString("base")
			width, _ := cmd.Flags().GetInt("width")
			tooth, _ := cmd.Flags().GetInt("tooth")
			labels, _ := cmd.Flags().GetBool("labels")

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return renderOverlay(in, w, renderFlags{base: base, width: width, tooth: tooth, labels: labels})
		},
	}
	render.Flags().StringP("out", "o", "overlay.png", `Output file ("-" for stdout)`)
	render.Flags().String("base", "", "Radiograph image to draw the regions over (default: tooth diagram)")
	render.Flags().Int("width", overlayimg.DefaultWidth, "Output width in pixels")
	render.Flags().Int("tooth", 0, "Tooth to mark as selected (1-32)")
	render.Flags().Bool("labels", true, "Draw tooth numbers")
	cmd.AddCommand(render)

	return cmd
}

type renderFlags struct {
	base   string
	width  int
	tooth  int
	labels bool
}

func renderOverlay(in io.Reader, w io.Writer, f renderFlags) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	report, err := dentition.DecodeReport(data)
	if err != nil {
		return err
	}

	var opts []dentition.Option
	if f.tooth != 0 {
		id := dentition.ToothID(f.tooth)
		if !id.Valid() {
			return fmt.Errorf("tooth must be between 1 and %d, got %d", dentition.ToothCount, f.tooth)
		}
		opts = append(opts, dentition.WithSelected(id))
	}

	ro := overlayimg.Options{Width: f.width, Labels: f.labels}
	if f.base != "" {
		raw, err := os.ReadFile(f.base)
		if err != nil {
			return err
		}
		img, _, err := overlayimg.Decode(raw, 1)
		if err != nil {
			return fmt.Errorf("decode %s: %w", f.base, err)
		}
		ro.Base = img
	}

	view := dentition.NewOverlay(report, opts...).View()
	return overlayimg.EncodePNG(w, overlayimg.Render(view, ro))
}

// stores are the portal's own state: sessions and published images.
type stores struct {
	sessions session.Store
	images   blobstore.BlobStore
	health   db.Pinger
}

func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, func(), error) {
	if cfg.Store != config.StorePostgres {
		logger.Info().Msg("using in-memory session and image store")
		return &stores{
			sessions: session.NewMemoryStore(),
			images:   blobstore.NewInMemoryBlobStore(),
		}, func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	n, err := db.NewMigrator(pool, db.Migrations()).Up(ctx)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info().Int("applied", n).Msg("connected to database")
	return &stores{
		sessions: session.NewPGStore(pool),
		images:   blobstore.NewPGBlobStore(pool),
		health:   pool,
	}, pool.Close, nil
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	st, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open stores")
	}
	defer closeStores()

	e, sessions, err := newServer(cfg, st, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	sessions.StartPurger(ctx, 5*time.Minute)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("api", cfg.APIBaseURL).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires the portal: middleware, pages, and the image and health
// endpoints.
func newServer(cfg *config.Config, st *stores, logger zerolog.Logger) (*echo.Echo, *session.Manager, error) {
	sessions := session.NewManager(st.sessions, session.Options{
		CookieName: cfg.SessionCookieName,
		Secure:     cfg.SessionCookieSecure,
		TTL:        cfg.SessionTTL,
	}, logger)
	tokens := auth.NewTokenValidator(cfg.APIJWTSecret)
	api := apiclient.New(cfg.APIBaseURL, cfg.APITimeout, logger)

	renderer, err := web.NewRenderer(sessions, logger)
	if err != nil {
		return nil, nil, err
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.HTTPErrorHandler = web.ErrorHandler(sessions, logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction(), apiOrigin(cfg.APIBaseURL)))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))
	e.Use(middleware.BodyLimit("1M", strconv.FormatInt(cfg.MaxUploadBytes, 10)))
	e.Use(echomw.GzipWithConfig(echomw.GzipConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return strings.HasPrefix(p, "/images/") || strings.HasSuffix(p, ".png")
		},
	}))
	e.Use(echomw.CSRFWithConfig(echomw.CSRFConfig{
		TokenLookup:    "form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   cfg.SessionCookieSecure,
		CookieSameSite: http.SameSiteLaxMode,
		Skipper: func(c echo.Context) bool {
			p := c.Path()
			return strings.HasPrefix(p, "/static") || p == "/images/:id" || p == "/health"
		},
	}))

	// Session and auth middleware
	e.Use(sessions.Middleware())
	e.Use(auth.RequireSignIn(tokens, sessions))

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// Pages
	pages := e.Group("")

	accountSvc := account.NewService(account.NewAPIRepository(api), tokens, logger)
	account.NewHandler(accountSvc, sessions, tokens, logger).
		RegisterRoutes(pages, middleware.RateLimit(middleware.SignInRateLimitConfig(cfg.SignInRPM)))

	patientSvc := patient.NewService(patient.NewAPIRepository(api))
	patient.NewHandler(patientSvc, sessions).RegisterRoutes(pages)

	radiographSvc := radiograph.NewService(
		radiograph.NewAPIRepository(api),
		radiograph.NewAPIAnalyzer(api),
		st.images,
		cfg.PublicURL,
		logger,
	)
	radiograph.NewHandler(radiographSvc, sessions, cfg.MaxUploadBytes, logger).RegisterRoutes(pages)

	chatSvc := chat.NewService(chat.NewAPIAssistant(api), radiographSvc, logger)
	chat.NewHandler(chatSvc, sessions).RegisterRoutes(pages)

	// Published images, static assets, health
	blobstore.NewBlobHandler(st.images).RegisterRoutes(e)
	e.StaticFS("/static", web.Static())
	e.GET("/health", db.HealthHandler(st.health))

	return e, sessions, nil
}

// apiOrigin is the scheme and host of the clinic API, which serves some
// radiograph images directly.
func apiOrigin(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
