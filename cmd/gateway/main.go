// Gateway wakes periodically, pulls one DLMS/COSEM push from the M-Bus
// attached meter, and forwards the parsed reading upstream. It also serves
// a debug websocket for live pipeline events and a small HTTP endpoint for
// the AT-style configuration commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/lgmbus_gateway/pkg/cli"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/config"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/cycle"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/diag"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/hw"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/monitor"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/uart"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/uplink"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// stdoutSink prints the finished uplink buffer instead of transmitting it;
// swapping in a real transport is out of scope here.
type stdoutSink struct{}

func (stdoutSink) Ready() bool { return true }

func (stdoutSink) Send(buf []byte) error {
	fmt.Printf("uplink: %x\n", buf)
	return nil
}

// triggerChan lets +SMREAD fire an immediate cycle outside the wake timer.
type triggerChan chan struct{}

func (t triggerChan) TriggerCycle() {
	select {
	case t <- struct{}{}:
	default:
	}
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := config.LoadGatewayConfig(); err != nil {
		logrus.WithError(err).Fatal("gateway: failed to load config")
	}
	diag.InitializeDatabase()

	hub := monitor.NewHub()

	board := hw.NewFake()
	driver := cycle.NewDriver()
	driver.Power = board
	driver.Wake = board
	driver.Watchdog = board
	driver.Reboot = board
	driver.Sink = stdoutSink{}
	driver.Store = diag.CycleStore{}
	driver.Monitor = hub
	driver.UARTConfig = uart.Config{
		Device:   config.ActiveGatewayConfig.SerialDevice,
		Baudrate: config.ActiveGatewayConfig.Baudrate,
	}
	driver.LoadPersistedCounters()

	trigger := make(triggerChan, 1)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return serveHTTP(ctx, hub, trigger)
	})

	g.Go(func() error {
		runLoop(ctx, driver, trigger)
		return nil
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("gateway: exiting")
	}
}

func runLoop(ctx context.Context, driver *cycle.Driver, trigger triggerChan) {
	for {
		settings := config.LoadSettings()
		cfg := cycle.Settings{
			MeasureIntervalMS: settings.MeasureIntervalMS,
			CycleTimeoutMS:    settings.CycleTimeoutMS,
			SendDataType:      uplink.SendDataType(settings.SendDataType),
			DecryptionEnabled: settings.DecryptionEnabled,
			AESKey:            settings.AESKey,
		}
		driver.WithDecryption(cfg)
		driver.RunCycle(cfg)

		select {
		case <-ctx.Done():
			return
		case <-trigger:
		}
	}
}

func serveHTTP(ctx context.Context, hub *monitor.Hub, trigger cli.Trigger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "running"})
	})
	mux.HandleFunc("/ws", hub.ServeHTTP)
	mux.HandleFunc("/cli", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, cli.Dispatch(string(body), trigger))
	})

	addr := fmt.Sprintf("%s:%d", config.ActiveGatewayConfig.MonitorAddress, config.ActiveGatewayConfig.MonitorPort)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	logrus.Infof("gateway: monitor listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
