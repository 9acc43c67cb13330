package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-eco/internal/db"
	"github.com/joeblew999/plat-eco/internal/globalid"
	"github.com/joeblew999/plat-eco/internal/logger"
	"github.com/joeblew999/plat-eco/internal/server"
	"github.com/joeblew999/plat-eco/internal/service"
	"github.com/joeblew999/plat-eco/internal/soato"
)

// Options defines all CLI flags and env vars for the eco server.
// Flags: --host, --port, --data-dir, --redis-url, --log-level, --log-format, --upstream, --fragments
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_REDIS_URL, ...
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir   string `doc:"Directory for selection state, region boundaries and records" default:".data"`
	RedisURL  string `doc:"Redis URL for a selection shared between instances; empty keeps it on disk"`
	LogLevel  string `doc:"Log level: debug, info, warn or error" default:"info"`
	LogFormat string `doc:"Log format: text or json" default:"text"`
	Upstream  string `doc:"Ecology REST API the selection filter is rendered for"`
	Fragments string `doc:"Directory of HTML fragments overriding the embedded ones"`
}

func (o *Options) config(log *slog.Logger) server.Config {
	cfg := server.Config{
		Host:     o.Host,
		Port:     fmt.Sprintf("%d", o.Port),
		DataDir:  o.DataDir,
		RedisURL: o.RedisURL,
		Upstream: o.Upstream,
		Logger:   log,
	}
	if o.Fragments != "" {
		cfg.Fragments = os.DirFS(o.Fragments)
	}
	return cfg
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		log := logger.Setup(logger.Options{Level: opts.LogLevel, Format: opts.LogFormat})
		var (
			srv     *server.Server
			httpSrv *http.Server
		)

		hooks.OnStart(func() {
			var err error
			srv, err = server.New(context.Background(), opts.config(log))
			if err != nil {
				log.Error("server_init", "error", err)
				os.Exit(1)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-eco API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Events:  %s/api/v1/selection/events\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			httpSrv = &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server_error", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if httpSrv != nil {
				httpSrv.Shutdown(ctx)
			}
			if srv != nil {
				if err := srv.Close(); err != nil {
					log.Warn("server_close", "error", err)
				}
			}
		})
	})

	cli.Root().Use = "eco"
	cli.Root().Short = "Shared selection and region geometry for the ecology portal"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			// an in-memory server is enough to describe the routes
			srv, err := server.New(context.Background(), server.Config{Host: opts.Host, Port: fmt.Sprintf("%d", opts.Port)})
			if err != nil {
				fail("Error building server", err)
			}
			defer srv.Close()

			useYAML, _ := cmd.Flags().GetBool("yaml")
			spec := srv.API().OpenAPI()

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fail("Error marshaling spec", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	cli.Root().AddCommand(&cobra.Command{
		Use:   "resolve <code>",
		Short: "Resolve a SOATO code to its region and district",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			code := soato.Parse(args[0])
			printJSON(map[string]any{
				"kind":       code.Kind().String(),
				"valid":      code.Valid(),
				"parent":     code.Parent().String(),
				"resolution": code.Resolve(),
			})
		},
	})

	cli.Root().AddCommand(&cobra.Command{
		Use:   "normalize <id>",
		Short: "Normalize a GlobalID",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			printJSON(map[string]any{
				"normalized": globalid.Normalize(args[0]),
				"braced":     globalid.Canonical(args[0]),
				"valid":      globalid.Valid(args[0]),
			})
		},
	})

	cli.Root().AddCommand(&cobra.Command{
		Use:   "import <file.geojson>",
		Short: "Load ecology records from a GeoJSON file into DuckDB",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			log := logger.Setup(logger.Options{Level: opts.LogLevel, Format: opts.LogFormat})
			f, err := os.Open(args[0])
			if err != nil {
				fail("Error opening source", err)
			}
			defer f.Close()

			conn, err := db.Open(db.Config{DataDir: opts.DataDir, DBName: "eco"})
			if err != nil {
				fail("Error opening database", err)
			}
			defer conn.Close()

			n, err := service.NewRecordService(conn).ImportGeoJSON(context.Background(), f)
			if err != nil {
				fail("Error importing records", err)
			}
			log.Info("records_imported", "file", args[0], "count", n)
			fmt.Printf("Imported %d records from %s\n", n, args[0])
		}),
	})

	cli.Run()
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail("Error marshaling result", err)
	}
	fmt.Println(string(out))
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
