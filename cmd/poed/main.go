// Command poed drives PoE port enables through a GPIO controller, publishes
// port state changes to MQTT and serves port control over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sweeney/poe-sio/internal/config"
	"github.com/sweeney/poe-sio/internal/dio"
	"github.com/sweeney/poe-sio/internal/logic"
	"github.com/sweeney/poe-sio/internal/mqtt"
	"github.com/sweeney/poe-sio/internal/poe"
	"github.com/sweeney/poe-sio/internal/status"
	"github.com/sweeney/poe-sio/internal/web"
)

// Environment overrides for flag defaults.
const (
	envConfig   = "POED_CONFIG"
	envBroker   = "POED_BROKER"
	envLogLevel = "POED_LOG_LEVEL"
)

type options struct {
	configPath string
	poll       time.Duration
	debounce   time.Duration
	broker     string
	heartbeat  time.Duration
	httpAddr   string
	simulate   bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", envOr(envConfig, "/etc/poed/ports.json"), "Port map file")
	flag.DurationVar(&o.poll, "poll", 500*time.Millisecond, "Port polling interval")
	flag.DurationVar(&o.debounce, "debounce", 250*time.Millisecond, "Debounce duration")
	flag.StringVar(&o.broker, "broker", envOr(envBroker, "tcp://localhost:1883"), "MQTT broker address (empty to disable)")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.httpAddr, "http", ":8080", "HTTP address (empty to disable)")
	flag.BoolVar(&o.simulate, "simulate", false, "Use an in-memory chip instead of hardware")
	logLevel := flag.String("log-level", envOr(envLogLevel, "info"), "Log level")

	flag.Parse()

	log := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("invalid log level: %v", err)
	}
	log.SetLevel(level)

	if err := run(o, log); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options, log *logrus.Logger) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.simulate {
		cfg.Controller = dio.KindSim
	}

	ctrl, err := dio.Open(dio.Options{Kind: cfg.Controller, Chip: cfg.Chip})
	if err != nil {
		return fmt.Errorf("open %s controller: %w", cfg.Controller, err)
	}

	mgr, err := poe.New(ctrl, cfg.Ports, log)
	if err != nil {
		ctrl.Close()
		return err
	}
	defer mgr.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      o.poll.Milliseconds(),
		DebounceMs:  o.debounce.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Broker:      o.broker,
		HTTPAddr:    o.httpAddr,
		ConfigPath:  o.configPath,
	})
	tracker.SetChip(chipInfo(cfg.Controller, ctrl))

	var publisher mqtt.Publisher = nopPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if o.broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:    o.broker,
			OnCommand: commandHandler(mgr, log),
			Log:       log,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
		tracker.SetMQTTConnected(p.IsConnected())
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.WithError(err).Warn("failed to publish startup event")
	}

	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, mgr, log)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	log.WithFields(logrus.Fields{
		"controller": cfg.Controller,
		"ports":      len(cfg.Ports),
		"poll":       o.poll,
		"debounce":   o.debounce,
		"heartbeat":  o.heartbeat,
	}).Info("started")

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop{
		ports:      mgr,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		debounce:   o.debounce,
		heartbeat:  o.heartbeat,
		now:        time.Now,
		log:        log,
	}, mgr.Ports(), ticker.C, sigCh)
}

// portReader samples every configured port.
type portReader interface {
	States() map[int]poe.State
}

type loop struct {
	ports      portReader
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	debounce   time.Duration
	heartbeat  time.Duration
	now        func() time.Time
	log        *logrus.Logger
}

func runLoop(l loop, portNums []int, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := l.now()
	detector := logic.NewDetector(portNums, l.debounce, startTime)

	for {
		select {
		case s := <-sig:
			l.log.Infof("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: l.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if l.tracker != nil {
				l.refreshMQTT()
				snap := l.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := l.publisher.PublishSystem(event); err != nil {
				l.log.WithError(err).Warn("failed to publish shutdown event")
			}
			return nil

		case <-tick:
			t := l.now()
			events := detector.Process(logic.Input{
				States: sample(l.ports.States()),
				Time:   t,
			})

			for _, event := range events {
				l.log.WithField("port", event.Port).Infof("event: %s", event.Type)
				if err := l.publisher.Publish(event); err != nil {
					// Don't crash on publish failure
					l.log.WithError(err).Warn("publish error")
				}
			}

			if l.tracker != nil {
				l.tracker.Update(detector.CurrentState(), detector.IsBaselined(), detector.EventCountsSnapshot())
				l.refreshMQTT()
			}

			if !detector.IsBaselined() {
				continue
			}

			if hbData := detector.CheckHeartbeat(t, l.heartbeat); hbData != nil {
				l.log.Debugf("heartbeat: uptime=%v enabled=%d disabled=%d",
					hbData.Uptime, hbData.Counts.Enabled, hbData.Counts.Disabled)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if l.tracker != nil {
					snap := l.tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := l.publisher.PublishSystem(hbEvent); err != nil {
					l.log.WithError(err).Warn("heartbeat publish error")
				}
			}
		}
	}
}

func (l loop) refreshMQTT() {
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

// sample converts manager states into detector input. Ports in error are
// left out so the detector keeps their last stable state.
func sample(states map[int]poe.State) map[int]bool {
	out := make(map[int]bool, len(states))
	for port, s := range states {
		switch s {
		case poe.StateEnabled:
			out[port] = true
		case poe.StateDisabled:
			out[port] = false
		}
	}
	return out
}

// portSetter switches ports on command.
type portSetter interface {
	SetPortState(port int, state poe.State) error
}

func commandHandler(ports portSetter, log *logrus.Logger) mqtt.CommandHandler {
	return func(cmd mqtt.Command) {
		entry := log.WithField("port", cmd.Port)
		state, err := poe.ParseState(cmd.State)
		if err != nil {
			entry.WithError(err).Warn("ignoring mqtt command")
			return
		}
		if err := ports.SetPortState(cmd.Port, state); err != nil {
			entry.WithError(err).Warn("mqtt command failed")
			return
		}
		entry.Infof("port set %s via mqtt", state)
	}
}

func chipInfo(kind string, ctrl dio.Controller) status.ChipInfo {
	if kind == "" {
		kind = dio.KindIte8783
	}
	info := status.ChipInfo{Controller: kind}
	if id, ok := ctrl.(dio.Identifier); ok {
		info.ChipID = id.ChipID()
		info.BaseAddress = id.BaseAddress()
	}
	return info
}

// nopPublisher is used when MQTT is disabled.
type nopPublisher struct{}

func (nopPublisher) Publish(logic.Event) error            { return nil }
func (nopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (nopPublisher) Close() error                         { return nil }

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
