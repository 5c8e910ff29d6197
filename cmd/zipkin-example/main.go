// Command zipkin-example runs a small http service instrumented with the
// zipkin tracing middleware.
//
// Settings are read from an optional YAML file (-config) and overridden by
// the environment:
//
//	ZIPKIN_SERVICE_NAME, ZIPKIN_SERVICE_PORT, ZIPKIN_SAMPLE_RATE,
//	ZIPKIN_COLLECTOR_ADDRESS, ZIPKIN_LOG_LEVEL
package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bellycard/zipkin-tracer/b3"
	"github.com/bellycard/zipkin-tracer/logging"
	"github.com/bellycard/zipkin-tracer/metrics"
	"github.com/bellycard/zipkin-tracer/tracing"
	"github.com/bellycard/zipkin-tracer/zipkin"
)

// envSettings are the environment overrides. Unset variables keep the value
// from the config file.
type envSettings struct {
	ServiceName      string   `envconfig:"SERVICE_NAME"`
	ServicePort      int      `envconfig:"SERVICE_PORT"`
	SampleRate       *float64 `envconfig:"SAMPLE_RATE"`
	CollectorAddress string   `envconfig:"COLLECTOR_ADDRESS"`
	LogLevel         string   `envconfig:"LOG_LEVEL" default:"info"`
}

func main() {
	configPath := flag.String("config", "", "path of a YAML tracer settings file")
	flag.Parse()

	log := logging.New("zipkin-example")
	logging.SetGlobalLogger(log)

	settings, level, err := loadSettings(*configPath)
	if err != nil {
		log.Fatal(err, "Unable to load settings")
	}
	log.SetLevel(level)

	tracer, err := zipkin.NewMiddleware(settings,
		zipkin.WithLogger(log),
		zipkin.WithMetrics(metrics.NewTracerMetrics("zipkinexample", prometheus.DefaultRegisterer)))
	if err != nil {
		log.Fatal(err, "Invalid tracer configuration")
	}
	defer tracer.Close()
	cfg := tracer.Config()

	httpMetrics := metrics.NewHTTPMetrics("zipkinexample", prometheus.DefaultRegisterer)

	r := chi.NewRouter()
	r.Use(metrics.NewPrometheusHandler(nil))
	r.Use(func(next http.Handler) http.Handler {
		return logging.NewRequestLoggerHandler(log, next)
	})
	r.Use(logging.NewPanicHandler)
	r.Use(tracer.Wrap)
	r.Use(httpMetrics.NewHTTPAccessHandler)
	r.Use(logging.NewHTTPAccessHandler)
	r.Get("/hello/{name}", hello)
	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("requested panic")
	})

	hostPort := net.JoinHostPort("", strconv.Itoa(cfg.ServicePort))
	log.Info("Starting service", "address", hostPort, "sampleRate", cfg.SampleRate,
		"collector", cfg.CollectorAddress)
	if err := http.ListenAndServe(hostPort, r); err != nil {
		log.Error(err, "Exiting service")
	}
}

// loadSettings merges the config file and the environment into the key-value
// settings resolved by the middleware.
func loadSettings(path string) (map[string]interface{}, logging.Level, error) {
	settings := map[string]interface{}{}
	if len(path) > 0 {
		m, err := zipkin.LoadConfigFile(path)
		if err != nil {
			return nil, logging.InfoLevel, err
		}
		settings = m
	}

	var env envSettings
	if err := envconfig.Process("zipkin", &env); err != nil {
		return nil, logging.InfoLevel, err
	}
	if len(env.ServiceName) > 0 {
		settings["service_name"] = env.ServiceName
	}
	if env.ServicePort != 0 {
		settings["service_port"] = env.ServicePort
	}
	if env.SampleRate != nil {
		settings["sample_rate"] = *env.SampleRate
	}
	if len(env.CollectorAddress) > 0 {
		settings["collector_address"] = env.CollectorAddress
	}
	level, err := logging.ParseLevel(env.LogLevel)
	if err != nil {
		return nil, logging.InfoLevel, err
	}
	return settings, level, nil
}

// hello greets name and calls itself once to show trace propagation.
func hello(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	log := logging.From(ctx)
	log.Info("Saying hello", "name", name)

	if id, ok := tracing.TraceIDFrom(ctx); ok && r.URL.Query().Get("hop") == "" {
		child := b3.NewChild(id, b3.DefaultGenerator)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("http://%s/hello/%s?hop=1", r.Host, name), nil)
		if err == nil {
			b3.InjectHTTP(child, req.Header)
			if resp, err := http.DefaultClient.Do(req); err != nil {
				log.Error(err, "Downstream call failed")
			} else {
				resp.Body.Close()
			}
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "hello %s\n", name)
}
