package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/config"
	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/device"
	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/discovery"
	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/otp"
	"github.com/Naing-Phone-Aung/CSIT321-FinalYearProject/internal/server"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("MOBCONTROL_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(getEnv("MOBCONTROL_CONFIG", "mobcontrol.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	clock := clockwork.NewRealClock()
	endpoint := fmt.Sprintf("ws://%s:%d", localIP(), cfg.Session.Port)

	log.Info().
		Str("name", cfg.Host.Name).
		Str("endpoint", endpoint).
		Int("discovery_port", cfg.Discovery.Port).
		Msg("starting mobcontrol host")

	// Virtual input driver. A missing /dev/uinput is degraded mode, not a
	// startup failure: discovery and pairing still run, device binds fail.
	driver := device.NewDriver()

	auth := otp.NewAuthenticator()
	rotator := otp.NewRotator(auth, cfg.OTP.Rotation.Std(), clock, func(code string) {
		log.Info().Str("otp", code).Msg("pairing code rotated")
	})

	srvCfg := server.DefaultConfig()
	srvCfg.HeartbeatTick = cfg.Heartbeat.Tick.Std()
	srvCfg.PingAfter = cfg.Heartbeat.PingAfter.Std()
	srvCfg.TimeoutAfter = cfg.Heartbeat.TimeoutAfter.Std()

	srv := server.New(srvCfg, auth, driver, clock, func() {
		log.Debug().Msg("session table changed")
	})
	if srv.Degraded() {
		log.Warn().Msg("virtual input driver unavailable; running degraded")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rotator.Run(ctx)
	go srv.RunHeartbeat(ctx)

	// Discovery broadcast is best effort: a bind failure on the broadcast
	// socket leaves the host reachable by manual address entry.
	broadcaster, err := discovery.NewBroadcaster(cfg.Host.Name, endpoint,
		cfg.Discovery.Port, cfg.Discovery.Interval.Std(), clock)
	if err != nil {
		log.Warn().Err(err).Msg("discovery broadcast unavailable")
	} else {
		defer broadcaster.Close()
		go broadcaster.Run(ctx)
	}

	// The QR payload reuses the discovery datagram format with the trusted
	// session path appended, so a scanned code skips the OTP exchange.
	log.Info().
		Str("qr", string(discovery.Datagram(cfg.Host.Name, endpoint+"/qr"))).
		Msg("trusted pairing payload")

	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Session.Port),
		Handler:     srv.Handler(),
		ReadTimeout: 0, // sessions are long-lived websockets
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("session server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("session server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("session server shutdown failed")
	}

	// Tear down remaining sessions so every virtual device is released
	// before exit.
	srv.Shutdown()
	cancel()

	log.Info().Msg("mobcontrol host shutdown complete")
}

// localIP returns the outbound interface address. The dial never sends a
// packet; it only asks the kernel for a route.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
