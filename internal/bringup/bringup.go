// Package bringup sequences the access point bring-up: event loop, network
// interface, NVS, radio, event subscriptions, partition report and HTTP
// responder, then idles until cancelled.
package bringup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/rs/zerolog"

	"github.com/bigbag/papyrix-bringup/internal/eventbus"
	"github.com/bigbag/papyrix-bringup/internal/httpd"
	"github.com/bigbag/papyrix-bringup/internal/log"
	"github.com/bigbag/papyrix-bringup/internal/netif"
	"github.com/bigbag/papyrix-bringup/internal/report"
	"github.com/bigbag/papyrix-bringup/internal/wifi"
)

// Setup steps, in execution order.
const (
	StepEventLoop        = "event loop"
	StepNetif            = "netif"
	StepNVS              = "nvs"
	StepWiFi             = "wifi"
	StepCapabilities     = "capabilities"
	StepConfiguration    = "configuration"
	StepWiFiSubscription = "wifi subscription"
	StepIPSubscription   = "ip subscription"
	StepPartitionTable   = "partition table"
	StepHTTPServer       = "http server"
)

// Defaults for the HTTP responder
const (
	DefaultRoute = "/test"
	DefaultBody  = "Lmao nice"
)

// IdleInterval is how often the idle loop checks for cancellation.
const IdleInterval = time.Second

// StepError reports which setup step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Config holds everything the bring-up needs.
type Config struct {
	AccessPoint wifi.AccessPointConfig
	Prefix      netip.Prefix
	QueueSize   int
	HTTPPort    int
	Route       string
	Body        string
}

// DefaultConfig returns the factory configuration. The access point
// password is empty and must be supplied for WPA2.
func DefaultConfig() Config {
	return Config{
		AccessPoint: wifi.DefaultAccessPoint(),
		Prefix:      netif.DefaultPrefix,
		QueueSize:   eventbus.DefaultQueueSize,
		HTTPPort:    httpd.DefaultPort,
		Route:       DefaultRoute,
		Body:        DefaultBody,
	}
}

// Coordinator runs the bring-up sequence once.
type Coordinator struct {
	cfg      Config
	platform Platform
	report   *report.Writer
	logger   zerolog.Logger
	interval time.Duration

	loop   EventLoop
	radio  Radio
	server Responder
	subs   []*eventbus.Subscription
}

// New creates a coordinator. The partition report is written to out.
func New(cfg Config, platform Platform, out *report.Writer) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		platform: platform,
		report:   out,
		logger:   log.Component("bringup"),
		interval: IdleInterval,
	}
}

// Start runs every setup step in order and stops at the first failure.
// Resources created before the failure stay alive; call Shutdown to
// release them.
func (c *Coordinator) Start() error {
	loop, err := c.platform.NewEventLoop(c.cfg.QueueSize)
	if err != nil {
		return &StepError{StepEventLoop, err}
	}
	c.loop = loop

	stack, err := c.platform.NewNetif(loop, c.cfg.Prefix)
	if err != nil {
		return &StepError{StepNetif, err}
	}

	storage, err := c.platform.OpenNVS()
	if err != nil {
		return &StepError{StepNVS, err}
	}

	radio, err := c.platform.NewRadio(stack, loop, storage)
	if err != nil {
		return &StepError{StepWiFi, err}
	}
	c.radio = radio

	modes, err := radio.Capabilities()
	if err != nil {
		return &StepError{StepCapabilities, err}
	}
	c.logger.Info().Stringers("modes", modeStringers(modes)).Msg("Capabilities")

	// ApStart is queued before WIFI_EVENT has a subscriber, so it is only
	// logged when the dispatcher dequeues it after the subscription below.
	if err := radio.SetConfiguration(c.cfg.AccessPoint); err != nil {
		return &StepError{StepConfiguration, err}
	}

	sub, err := loop.Subscribe(wifi.BaseWiFi, c.onEvent)
	if err != nil {
		return &StepError{StepWiFiSubscription, err}
	}
	c.subs = append(c.subs, sub)

	sub, err = loop.Subscribe(netif.BaseIP, c.onEvent)
	if err != nil {
		return &StepError{StepIPSubscription, err}
	}
	c.subs = append(c.subs, sub)

	if err := c.printPartitions(); err != nil {
		return &StepError{StepPartitionTable, err}
	}

	reg, err := httpd.NewRegistry().Handler(httpd.Handler{
		URI:    c.cfg.Route,
		Method: http.MethodGet,
		Fn:     c.respond,
	})
	if err != nil {
		return &StepError{StepHTTPServer, err}
	}

	server, err := c.platform.Serve(reg, httpd.Config{Port: c.cfg.HTTPPort})
	if err != nil {
		return &StepError{StepHTTPServer, err}
	}
	c.server = server

	c.logger.Info().
		Str("ssid", c.cfg.AccessPoint.SSID).
		Stringer("auth", c.cfg.AccessPoint.Auth).
		Str("http", server.Addr().String()).
		Msg("Bring-up complete")
	return nil
}

func (c *Coordinator) printPartitions() error {
	table, err := c.platform.Partitions()
	if err != nil {
		return err
	}
	n, err := report.Print(c.report, table)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	c.logger.Debug().Int("partitions", n).Msg("Partition table walked")
	return nil
}

func (c *Coordinator) onEvent(ev eventbus.Event) {
	c.logger.Info().Str("base", ev.Base()).Stringer("event", ev).Msg("Event received")
}

func (c *Coordinator) respond(r *httpd.Request) *httpd.Response {
	if q, ok := r.Query(); ok {
		c.logger.Debug().Str("query", q).Msg("Request query")
	}
	return httpd.NewResponse(http.StatusOK, c.cfg.Body)
}

// Idle blocks until ctx is done, checking once per interval. With a
// context that is never cancelled it never returns.
func (c *Coordinator) Idle(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Run starts the bring-up, idles until ctx is cancelled and then shuts
// everything down.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Start(); err != nil {
		c.Shutdown(context.Background())
		return err
	}

	c.Idle(ctx)
	c.logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.Shutdown(shutdownCtx)
}

// Shutdown stops whatever Start created, in reverse order.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	var errs []error

	if c.server != nil {
		errs = append(errs, c.server.Shutdown(ctx))
		c.server = nil
	}
	for _, s := range c.subs {
		s.Unsubscribe()
	}
	c.subs = nil
	if c.radio != nil {
		if err := c.radio.Stop(); err != nil && !errors.Is(err, wifi.ErrNotStarted) {
			errs = append(errs, err)
		}
		c.radio = nil
	}
	if c.loop != nil {
		errs = append(errs, c.loop.Close())
		c.loop = nil
	}

	return errors.Join(errs...)
}

func modeStringers(modes []wifi.Mode) []fmt.Stringer {
	s := make([]fmt.Stringer, len(modes))
	for i, m := range modes {
		s[i] = m
	}
	return s
}
