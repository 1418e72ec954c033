// Command policyengine serves the video-wall platform's Policy Engine:
// ordered allow/deny rule evaluation for operator/wall/source triples,
// reading its active rule set from the Configuration Authority.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vitaliisemenov/videowall-controlplane/internal/configauthority"
	"github.com/vitaliisemenov/videowall-controlplane/internal/policy"
	"github.com/vitaliisemenov/videowall-controlplane/internal/policy/httpapi"
	"github.com/vitaliisemenov/videowall-controlplane/pkg/logger"
)

func main() {
	root := &cobra.Command{
		Use:   "policyengine",
		Short: "Video-wall platform Policy Engine",
		RunE:  run,
	}

	flags := root.Flags()
	flags.String("config-path", "/etc/videowall/platform.yaml", "path to the declarative platform config document")
	flags.String("event-log-path", "/var/log/videowall/policy-config-events.jsonl", "path to the append-only config event log")
	flags.String("management-url", "http://management:8080", "base URL of the Management Service, for tag enrichment")
	flags.String("host", "0.0.0.0", "bind address")
	flags.Int("port", 8082, "listen port")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "json", "log format: json or text")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	viper.SetEnvPrefix("VW_POLICYENGINE")
	viper.AutomaticEnv()

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logger.NewLogger(logger.Config{Level: viper.GetString("log-level"), Format: viper.GetString("log-format"), Output: "stdout"})

	loader, err := configauthority.NewLoader(nil)
	if err != nil {
		return fmt.Errorf("policyengine: build loader: %w", err)
	}
	events, err := configauthority.NewEventLog(viper.GetString("event-log-path"))
	if err != nil {
		return fmt.Errorf("policyengine: build event log: %w", err)
	}
	holder := configauthority.NewHolder(loader, viper.GetString("config-path"), log, events)
	if _, err := holder.LoadInitial(); err != nil {
		return fmt.Errorf("policyengine: initial load: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := holder.Watch(ctx); err != nil {
			log.Error("config watcher stopped", "error", err)
		}
	}()

	engine := policy.NewEngine()
	tagClient := policy.NewTagClient(viper.GetString("management-url"), log)

	h := httpapi.New(engine, holder, tagClient, log)
	router := httpapi.NewRouter(h, log)

	addr := fmt.Sprintf("%s:%d", viper.GetString("host"), viper.GetInt("port"))
	server := &http.Server{Addr: addr, Handler: router, ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("policy engine listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}
