// Command devserver runs the Clarity handler behind a local HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clarity-agent/handler"
	"clarity-agent/internal/app"
	"clarity-agent/internal/config"
	"clarity-agent/internal/logger"
	"clarity-agent/internal/metrics"
)

const maxBodyBytes = 1 << 20

type options struct {
	addr      string
	envFiles  []string
	logFormat string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "devserver",
		Short:         "Serve the Clarity endpoint locally",
		Long:          "Serve the Clarity endpoint at /api/clarity with the same handler the Lambda runs, plus Prometheus metrics at /metrics.",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "", "log format: console or json (default LOG_FORMAT)")
	return cmd
}

func run(ctx context.Context, opts *options) error {
	cfg, err := config.Load(opts.envFiles...)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, resolveLogFormat(opts.logFormat, cfg))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.New(reg)
	if err != nil {
		return err
	}

	answerer, closeFn, err := app.NewAnswerer(ctx, cfg, app.Deps{Logger: log, Metrics: recorder})
	if err != nil {
		return err
	}
	defer closeFn()

	h, err := handler.NewHandler(answerer, handler.WithLogger(log))
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/clarity", proxy(h))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("devserver listening", zap.String("addr", opts.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("devserver shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// resolveLogFormat prefers the --log-format flag over LOG_FORMAT.
func resolveLogFormat(flag string, cfg *config.Config) string {
	if f := strings.TrimSpace(flag); f != "" {
		return f
	}
	return cfg.LogFormat
}

// proxy converts each HTTP request into an API Gateway proxy event for h.
func proxy(h *handler.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		event, err := toProxyRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := h.Handle(r.Context(), event)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeProxyResponse(w, resp)
	})
}

func toProxyRequest(r *http.Request) (events.APIGatewayProxyRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return events.APIGatewayProxyRequest{}, fmt.Errorf("devserver: read body: %w", err)
	}
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[k] = strings.Join(v, ",")
	}
	query := make(map[string]string, len(r.URL.Query()))
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	return events.APIGatewayProxyRequest{
		HTTPMethod:            r.Method,
		Path:                  r.URL.Path,
		Headers:               headers,
		MultiValueHeaders:     r.Header,
		QueryStringParameters: query,
		Body:                  string(body),
	}, nil
}

func writeProxyResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}
