package main

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RonRicardo/whos-that-pokemon/internal/game"
	"github.com/RonRicardo/whos-that-pokemon/internal/handlers"
	"github.com/RonRicardo/whos-that-pokemon/internal/pokeapi"
	"github.com/RonRicardo/whos-that-pokemon/internal/scores"
)

//go:embed static/*
var embeddedStatic embed.FS

type config struct {
	bind       string
	port       int
	dbPath     string
	pokeapiURL string
	verbose    bool
}

func (c *config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	return nil
}

func newCmd(cfg *config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("WTP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "whos-that-pokemon",
		Short:         "A timed silhouette-guessing game backed by PokeAPI.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: WTP_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: WTP_PORT)")
	fs.StringVar(&cfg.dbPath, "db", "scores.db", "path to the score history database (env: WTP_DB)")
	fs.StringVar(&cfg.pokeapiURL, "pokeapi-url", pokeapi.DefaultBaseURL, "PokeAPI base URL (env: WTP_POKEAPI_URL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log at debug level (env: WTP_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

func serve(cfg *config) error {
	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	_ = mime.AddExtensionType(".js", "application/javascript")
	_ = mime.AddExtensionType(".css", "text/css")

	history, err := scores.Open(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("open score history: %w", err)
	}
	defer history.Close()

	source := pokeapi.NewClient(pokeapi.WithBaseURL(cfg.pokeapiURL))
	store := game.NewStore(source, history)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		return err
	}

	r.Mount("/static", http.StripPrefix("/static", http.FileServer(http.FS(staticFS))))
	r.Get("/", serveIndex(staticFS))
	r.Get("/game/{id}", serveIndex(staticFS))

	handlers.NewHomeHandler(store, history).RegisterRoutes(r)
	handlers.NewGameHandler(store).RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.bind, cfg.port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("listening", "addr", addr)
	return server.ListenAndServe()
}

// serveIndex serves the single-page client; the game id in the path is read
// client-side.
func serveIndex(staticFS fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := fs.ReadFile(staticFS, "index.html")
		if err != nil {
			http.Error(w, "missing index", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(index)
	}
}

func main() {
	_ = godotenv.Load()
	cfg := &config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}
