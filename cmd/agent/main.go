package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/AgentOS/monitor/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/monitor/internal/infrastructure/server"
)

func main() {
	// Flags override the environment
	port := flag.String("port", "", "Sample application port")
	grpcPort := flag.String("grpc-port", "", "Sample gRPC port")
	collectorHost := flag.String("collector", "", "Collector host")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *grpcPort != "" {
		cfg.Server.GRPCPort = *grpcPort
	}
	if *collectorHost != "" {
		cfg.Collector.Host = *collectorHost
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create agent: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runErr := srv.Run(ctx)
	stop()
	srv.Close()

	if runErr != nil {
		log.Fatalf("Agent error: %v", runErr)
	}
}
