package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/config"
	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/httpapi"
	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/journal"
	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/model"
	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/services"
	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/terminal"
	"github.com/Riboost-Studio/perfect-menu-pay-terminal/internal/utils"
)

const (
	appVersion = "1.0.0"

	// How often the agent probes the control channel when idle.
	livenessInterval = 30 * time.Second

	probeTimeout = 300 * time.Millisecond
)

// --- Main ---

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Config error: ", err)
	}
	fmt.Printf("Pay terminal agent v%s: controller=%s terminal=%s:%d driver=%s\n",
		appVersion, cfg.ControllerURL, cfg.TerminalIP, cfg.TerminalPort, cfg.TerminalDriver)

	// 2. Transaction Journal
	jrnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		log.Fatal("Journal error: ", err)
	}
	defer jrnl.Close()

	// 3. Terminal Engine + Orchestrator
	var engine terminal.Engine
	if cfg.TerminalDriver == "mock" {
		engine = terminal.NewMock()
	} else {
		// The vendor bridge is linked in per deployment; without it the
		// orchestrator answers SDK_UNAVAILABLE instead of attempting I/O.
		engine = terminal.Unavailable("vendor bridge not linked into this build")
	}
	orchestrator := services.NewOrchestrator(engine, cfg.TerminalIP, cfg.TerminalPort, jrnl)
	if cfg.TerminalDriver == "vendor" {
		orchestrator.SetProbe(func(ip string, port int) bool {
			return utils.Probe(ip, port, probeTimeout)
		})
	}
	defer orchestrator.Close()

	// 4. Control Channel + Coordinator
	connector := services.NewConnector(cfg.ControllerURL)
	coordinator := services.NewCoordinator(connector)
	coordinator.SetPresets(cfg.PresetAmounts)
	msgs := connector.SubscribeMessages()
	states := connector.SubscribeState()

	// 5. Status API
	api := httpapi.NewServer(connector, coordinator, orchestrator, jrnl)
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Router()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		coordinator.Run(ctx, msgs, states)
		return nil
	})

	g.Go(func() error {
		runPayments(ctx, coordinator, orchestrator, cfg)
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(livenessInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				connector.EnsureConnected()
			}
		}
	})

	g.Go(func() error {
		log.Printf("[HTTP] Status API listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	// Kick off the control channel; failures feed the reconnect loop.
	_ = connector.Connect("")

	fmt.Println("--- System Running ---")
	if err := g.Wait(); err != nil {
		log.Printf("Shutdown with error: %v", err)
	}
	connector.Disconnect()
	fmt.Println("\nShutting down...")
}

// runPayments drives the terminal when the flow reaches the processing
// screen: the chosen amount is charged under the current transaction id.
// Control-channel traffic and terminal I/O stay independent of each other.
func runPayments(ctx context.Context, coordinator *services.Coordinator, orchestrator *services.Orchestrator, cfg *config.Config) {
	screens := coordinator.SubscribeScreen()
	var lastTx string
	for {
		select {
		case <-ctx.Done():
			return
		case screen := <-screens:
			if screen.Kind != model.ScreenProcessing || screen.Amount <= 0 {
				continue
			}
			txID := coordinator.TransactionID()
			if txID == "" || txID == lastTx {
				continue
			}
			lastTx = txID
			amount := fmt.Sprintf("%.2f", screen.Amount)
			log.Printf("[Agent] Starting sale of %s (tx=%s)", amount, txID)
			result := orchestrator.Sale(amount, txID, time.Duration(cfg.SaleTimeoutSec)*time.Second)
			log.Printf("[Agent] Sale finished: success=%v code=%s msg=%s",
				result.Success, result.ResultCode, result.Message)
		}
	}
}
