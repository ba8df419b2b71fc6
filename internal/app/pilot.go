// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/link"
	"github.com/relabs-tech/flight_computer/internal/metrics"
	"github.com/relabs-tech/flight_computer/internal/rigidbody"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

// FramePublisher receives one frame per tick. It may drop frames.
type FramePublisher interface {
	PublishFrame(telemetry.Frame) bool
}

// Pilot is one vehicle in the loop: controller, integrated body and the
// latest operator input.
type Pilot struct {
	ctrl   *flight.Controller
	body   *rigidbody.Body
	sticks *link.Latest
	frames FramePublisher

	prevKeys flight.Keys
	ticks    uint64
	stale    bool
}

// NewPilot builds a controller and a body spawned at the controller's
// reference pose. frames may be nil.
func NewPilot(fc flight.Config, mass float64, sticks *link.Latest, sink flight.EventSink, frames FramePublisher) (*Pilot, error) {
	ctrl, err := flight.New(fc, sink)
	if err != nil {
		return nil, err
	}
	spec := rigidbody.DefaultSpec()
	spec.Mass = mass
	spec.Gravity = fc.Gravity
	return &Pilot{
		ctrl:   ctrl,
		body:   rigidbody.New(spec, fc.InitialRotation),
		sticks: sticks,
		frames: frames,
	}, nil
}

// Controller returns the pilot's controller.
func (p *Pilot) Controller() *flight.Controller { return p.ctrl }

// Body returns the simulated vehicle.
func (p *Pilot) Body() *rigidbody.Body { return p.body }

// Tick runs one control cycle of dt seconds and returns the command applied.
func (p *Pilot) Tick(dt float64) flight.Command {
	start := time.Now()

	in, err := p.sticks.Get()
	if errors.Is(err, link.ErrStale) {
		metrics.StickStale.Inc()
		if !p.stale {
			slog.Warn("pilot: stick input stale, holding zero input")
		}
		p.stale = true
	} else if p.stale {
		slog.Info("pilot: stick input restored")
		p.stale = false
	}

	p.handleKeys(in.Keys)

	cmd := p.ctrl.Tick(in, p.body, dt)
	p.body.Apply(cmd, dt)
	p.ticks++

	state := p.ctrl.State()
	metrics.ObserveState(state)
	if p.frames != nil {
		p.frames.PublishFrame(telemetry.NewFrame(p.ticks, state, p.body, cmd))
	}
	metrics.TickLatency.Observe(time.Since(start).Seconds())
	return cmd
}

// handleKeys runs the command keys on their press edge only.
func (p *Pilot) handleKeys(keys flight.Keys) {
	pressed := keys.Pressed(p.prevKeys)
	p.prevKeys = keys

	if pressed.Has(flight.KeyReset) {
		p.ctrl.Reset()
		p.body.Reset(p.ctrl.Config().InitialRotation)
		slog.Info("pilot: reset")
	}
	if pressed.Has(flight.KeyForceRecovery) {
		p.ctrl.ForceRecovery()
	}
	if pressed.Has(flight.KeyEmergencyFlip) {
		p.ctrl.EmergencyFlip()
	}
}

// Run ticks at the given interval until ctx is done.
func (p *Pilot) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	dt := interval.Seconds()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Tick(dt)
		}
	}
}

// RunPilot flies the software-in-the-loop vehicle from the configured stick
// source, publishing telemetry and serving /metrics until interrupted.
func RunPilot() error {
	cfg := config.Get()
	fc, err := cfg.Controller()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var client mqtt.Client
	if cfg.MQTTBroker != "" {
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientIDPilot).
			SetAutoReconnect(true)
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("mqtt connect %s: %w", cfg.MQTTBroker, token.Error())
		}
		defer client.Disconnect(250)
		slog.Info("pilot: connected to MQTT broker", "broker", cfg.MQTTBroker)
	}

	sticks := link.NewLatest(cfg.StaleAfter())
	sinks := flight.MultiSink{
		flight.LogSink{Logger: slog.Default(), Level: slog.LevelInfo},
		metrics.EventSink{},
	}

	var publisher *telemetry.Publisher
	var frames FramePublisher
	if client != nil {
		publisher = telemetry.NewPublisher(client, telemetry.Options{
			FrameTopic: cfg.TopicTelemetry,
			EventTopic: cfg.TopicEvents,
			RateHz:     cfg.TelemetryRateHz,
		})
		sinks = append(sinks, publisher)
		frames = publisher
		slog.Info("pilot: telemetry enabled", "session", publisher.Session(), "topic", cfg.TopicTelemetry)
	}

	pilot, err := NewPilot(fc, cfg.VehicleMass, sticks, sinks, frames)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	switch cfg.StickSource {
	case config.StickSourceMQTT:
		src := &link.MQTTSource{Topic: cfg.TopicSticks, Latest: sticks}
		if err := src.Subscribe(client); err != nil {
			return err
		}
	case config.StickSourceSerial:
		src := &link.SerialSource{PortName: cfg.StickSerialPort, BaudRate: cfg.StickBaudRate, Latest: sticks}
		g.Go(func() error { return src.Run(ctx) })
	default:
		slog.Warn("pilot: no stick source, flying on zero input")
	}

	if publisher != nil {
		g.Go(func() error { return publisher.Run(ctx) })
	}

	if cfg.MetricsPort > 0 {
		g.Go(func() error { return serveMetrics(ctx, cfg.MetricsPort) })
	}

	g.Go(func() error {
		slog.Info("pilot: flight loop started", "tick", cfg.Tick(), "source", cfg.StickSource)
		return pilot.Run(ctx, cfg.Tick())
	})

	err = g.Wait()
	slog.Info("pilot: stopped", "ticks", pilot.ticks)
	return err
}

func serveMetrics(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("pilot: metrics shutdown", "err", err)
		}
	}()

	slog.Info("pilot: metrics listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
