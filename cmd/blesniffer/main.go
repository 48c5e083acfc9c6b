// Command blesniffer runs the BLE link-layer sniffer core against a real
// UART host link, mirroring the teacher's main.go: flag parsing with
// environment-variable overrides, YAML config load + Validate, then
// wiring every collaborator and launching its goroutines.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwsl/blesniffercore/internal/config"
	"github.com/cwsl/blesniffercore/internal/corelog"
	"github.com/cwsl/blesniffercore/internal/frame"
	"github.com/cwsl/blesniffercore/internal/hostlink"
	"github.com/cwsl/blesniffercore/internal/packetring"
	"github.com/cwsl/blesniffercore/internal/radio"
	"github.com/cwsl/blesniffercore/internal/radiocore"
	"github.com/cwsl/blesniffercore/internal/telemetry"
	"github.com/cwsl/blesniffercore/internal/txring"
	"github.com/cwsl/blesniffercore/internal/webtap"
)

// bleAdvAA is the legacy advertising access address RadioCore uses
// whenever it is in StateStatic, mirrored here since config intentionally
// exposes no static_access_addr field (spec: static mode always listens
// on the advertising AA).
const bleAdvAA = 0x8E89BED6

func main() {
	configPath := flag.String("config", "blesniffer.yaml", "path to YAML config file")
	devicePath := flag.String("device", "", "UART device path (overrides hostlink.device)")
	debug := flag.Bool("debug", false, "enable verbose logging")
	flag.Parse()

	if v := os.Getenv("DEBUG"); v != "" {
		*debug = true
	}
	if v := os.Getenv("BLESNIFFER_DEVICE"); v != "" {
		*devicePath = v
	}

	log := corelog.New("blesniffer: ")
	log.Verbose = *debug

	if err := run(log, *configPath, *devicePath); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(log *corelog.Logger, configPath, deviceOverride string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if deviceOverride != "" {
		cfg.HostLink.Device = deviceOverride
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	port, err := openDevice(cfg.HostLink.Device, cfg.HostLink.BaudRate)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("opened host link on %s at %d baud", cfg.HostLink.Device, cfg.HostLink.BaudRate)

	ring := &packetring.Ring{}
	tx := &txring.Ring{}
	wrapper := newPlaceholderRadio()
	hop := &radio.HopDelay{}
	stop := radio.NewStopDelay(wrapper.Stop)

	rc := radiocore.NewRadioCore(wrapper, hop, stop, ring, tx)
	rc.SetLogger(log)

	if err := applyRadioDefaults(rc, &cfg.RadioDefaults); err != nil {
		return fmt.Errorf("apply radio_defaults: %w", err)
	}
	if err := applyFilter(rc, &cfg.Filter); err != nil {
		return fmt.Errorf("apply filter: %w", err)
	}
	rc.SetMinRssi(cfg.Filter.MinRSSI)
	rc.SetValidateCRC(cfg.RadioDefaults.ValidateCRC)
	rc.SetInstaHop(cfg.RadioDefaults.InstaHop)
	rc.SetFollowConnections(cfg.RadioDefaults.FollowConnections)
	rc.SetAuxAdvEnabled(cfg.RadioDefaults.AuxAdvEnabled)
	rc.SetAdvInterval(cfg.RadioDefaults.AdvIntervalMs)

	metrics := telemetry.NewMetrics()
	var mqttPub *telemetry.MQTTPublisher
	if cfg.Telemetry.MQTT.Enabled {
		mqttPub, err = telemetry.NewMQTTPublisher(telemetry.MQTTConfig{
			Broker:   cfg.Telemetry.MQTT.Broker,
			ClientID: cfg.Telemetry.MQTT.ClientID,
			Topic:    cfg.Telemetry.MQTT.Topic,
		}, log)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer mqttPub.Close()
	}

	hub := webtap.NewHub(log)

	var capLog *captureLog
	if cfg.HostLink.CaptureLogPath != "" {
		capLog, err = openCaptureLog(cfg.HostLink.CaptureLogPath, cfg.HostLink.CaptureLogCompress)
		if err != nil {
			return fmt.Errorf("capture log: %w", err)
		}
		defer capLog.Close()
	}

	if cfg.Telemetry.Prometheus.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Telemetry.Prometheus.Listen, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("prometheus http server: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
	}

	if cfg.HostLink.WebTapListen != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/tap", hub.HandleWebSocket)
		srv := &http.Server{Addr: cfg.HostLink.WebTapListen, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("webtap http server: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
	}

	selfMetricsInterval := time.Duration(cfg.Telemetry.SelfMetricsIntervalSec) * time.Second
	go telemetry.RunSelfMetrics(ctx, metrics, selfMetricsInterval, log)

	writer := hostlink.NewWriter(port)
	reader := hostlink.NewReader(port)
	cmdHandler := hostlink.NewCommandHandler(rc)

	go readCommands(ctx, reader, cmdHandler, log)
	go drainRing(ctx, ring, writer, metrics, mqttPub, hub, capLog, rc, log)

	log.Printf("running")
	if err := rc.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("radio core: %w", err)
	}
	return nil
}

// readCommands forwards every inbound host-link message to the command
// dispatcher until ctx is cancelled or the link closes.
func readCommands(ctx context.Context, r *hostlink.Reader, h *hostlink.CommandHandler, log *corelog.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := r.ReadMessage()
		if err != nil {
			log.Debugf("hostlink read: %v", err)
			continue
		}
		h.Dispatch(msg)
	}
}

// drainRing is the PacketRing's single consumer (spec: exactly one
// goroutine may call Recv): every Frame it drains is written to the host
// UART link, observed by telemetry, optionally mirrored to MQTT and the
// capture log, and broadcast to connected webtap clients.
func drainRing(ctx context.Context, ring *packetring.Ring, w *hostlink.Writer, metrics *telemetry.Metrics,
	mqttPub *telemetry.MQTTPublisher, hub *webtap.Hub, capLog *captureLog, rc *radiocore.RadioCore, log *corelog.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		f := ring.Recv()

		if err := w.WriteMessage(hostlink.EncodeMessage(&f)); err != nil {
			log.Printf("hostlink write: %v", err)
		}

		metrics.Observe(&f)
		metrics.SetRingOccupancy(ring.Len())
		metrics.SetEmptyHops(rc.EmptyHopCount())

		if mqttPub != nil {
			mqttPub.Observe(time.Now().Unix(), &f)
		}
		if capLog != nil {
			if err := capLog.WriteFrame(&f); err != nil {
				log.Printf("capture log: %v", err)
			}
		}
		hub.Broadcast(&f)
	}
}

// applyRadioDefaults pushes the YAML-configured static listening
// parameters into RadioCore, the same way the host would via a
// SetChanAAPHYCRCI command at connect time.
func applyRadioDefaults(rc *radiocore.RadioCore, cfg *config.RadioDefaultsConfig) error {
	phy, err := parsePHY(cfg.StaticPHY)
	if err != nil {
		return err
	}
	rc.SetChanAAPHYCRCI(cfg.StaticChannel, bleAdvAA, phy, cfg.StaticCRCInit)
	return nil
}

func parsePHY(s string) (frame.PHY, error) {
	switch strings.ToLower(s) {
	case "1m":
		return frame.PHY1M, nil
	case "2m":
		return frame.PHY2M, nil
	case "codeds8":
		return frame.PHYCodedS8, nil
	case "codeds2":
		return frame.PHYCodedS2, nil
	default:
		return 0, fmt.Errorf("unrecognized phy %q", s)
	}
}

// applyFilter wires the startup advertiser filter: MAC and RPA filtering
// are mutually exclusive (config.Validate already rejects both being set).
func applyFilter(rc *radiocore.RadioCore, cfg *config.FilterConfig) error {
	if cfg.MACFilter != "" {
		mac, err := parseMAC(cfg.MACFilter)
		if err != nil {
			return fmt.Errorf("filter.mac_filter: %w", err)
		}
		rc.SetMacFilt(true, mac)
	}
	if cfg.RPAFilter != "" {
		irk, err := parseIRK(cfg.RPAFilter)
		if err != nil {
			return fmt.Errorf("filter.rpa_filter: %w", err)
		}
		rc.SetRpaFilt(true, irk)
	}
	return nil
}

// parseMAC parses "AA:BB:CC:DD:EE:FF" into a 6-byte address, preserving
// wire order (RadioTask.c reads AdvA little-endian-on-the-wire but the
// config file states it the conventional colon-hex way).
func parseMAC(s string) ([6]byte, error) {
	var mac [6]byte
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return mac, fmt.Errorf("expected AA:BB:CC:DD:EE:FF, got %q", s)
	}
	for i, p := range parts {
		b, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return mac, fmt.Errorf("invalid octet %q: %w", p, err)
		}
		mac[i] = byte(b)
	}
	return mac, nil
}

// parseIRK parses a 32-hex-character IRK into 16 bytes.
func parseIRK(s string) ([16]byte, error) {
	var irk [16]byte
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return irk, fmt.Errorf("invalid hex: %w", err)
	}
	if len(decoded) != 16 {
		return irk, fmt.Errorf("expected 16 bytes, got %d", len(decoded))
	}
	copy(irk[:], decoded)
	return irk, nil
}
