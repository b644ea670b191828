package dtu

import (
	"context"
	"fmt"
	"time"

	"github.com/ohand/dtugateway/internal/protocol"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Logger is the subset of structured logging the client needs. It is
// satisfied by internal/telemetry/logging.Logger so this package never
// imports slog directly.
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(context.Context, string, ...any)  {}
func (noopLogger) Warn(context.Context, string, ...any)  {}
func (noopLogger) Error(context.Context, string, ...any) {}

// Metrics is the subset of telemetry the client records against. Satisfied
// by internal/telemetry/metrics.Recorder.
type Metrics interface {
	ConnectAttempt()
	ConnectFailure()
	ReconnectPause()
	DTUReset(reason ResetReason)
	CloudPause()
	SetOnline(online bool)
	ObservePowerLimit(percent float64)
	ObserveGrid(voltage, power float64)
	ObserveTemperature(celsius float64)
	ObserveRSSI(percent float64)
	TxRxWatchdogReset()
}

type noopMetrics struct{}

func (noopMetrics) ConnectAttempt()              {}
func (noopMetrics) ConnectFailure()              {}
func (noopMetrics) ReconnectPause()              {}
func (noopMetrics) DTUReset(ResetReason)         {}
func (noopMetrics) CloudPause()                  {}
func (noopMetrics) SetOnline(bool)               {}
func (noopMetrics) ObservePowerLimit(float64)    {}
func (noopMetrics) ObserveGrid(float64, float64) {}
func (noopMetrics) ObserveTemperature(float64)   {}
func (noopMetrics) ObserveRSSI(float64)          {}
func (noopMetrics) TxRxWatchdogReset()           {}

// command is an operator request enqueued from outside the executor
// goroutine.
type command struct {
	kind        commandKind
	server      string
	powerLimit  int
}

type commandKind int

const (
	cmdSetServer commandKind = iota
	cmdSetPowerLimit
	cmdRestartDevice
	cmdGetDataUpdate
	cmdFlush
	cmdSetPreventCloudErrors
)

type snapshotRequest struct {
	reply   chan Snapshot
	consume bool
}

// Client is the DTU protocol client: connection lifecycle, transaction
// sequencing, telemetry validation, and cloud-coexistence scheduling,
// driven by a single executor goroutine (Run).
type Client struct {
	cfg    Config
	log    Logger
	met    Metrics
	tracer oteltrace.Tracer

	transport *Transport
	conn      *connectionManager
	seq       *sequencer
	cloud     cloudScheduler
	validator *validator
	snapshot  Snapshot

	commands  chan command
	snapshots chan snapshotRequest

	now func() time.Time

	connectSpan oteltrace.Span
	txSpan      oteltrace.Span
}

// ClientOption configures optional collaborators at construction time.
type ClientOption func(*Client)

// WithLogger injects a structured logger; defaults to a no-op.
func WithLogger(l Logger) ClientOption { return func(c *Client) { c.log = l } }

// WithMetrics injects a metrics recorder; defaults to a no-op.
func WithMetrics(m Metrics) ClientOption { return func(c *Client) { c.met = m } }

// WithTracer injects an otel tracer used to span connect attempts and
// transactions; defaults to otel's no-op tracer when never set.
func WithTracer(t oteltrace.Tracer) ClientOption { return func(c *Client) { c.tracer = t } }

// withClock overrides the time source, for tests.
func withClock(now func() time.Time) ClientOption { return func(c *Client) { c.now = now } }

// NewClient constructs a Client ready for Run. Run dials cfg.Server and
// cfg.Port as they stand, so set cfg.Server or call Setup before Run.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	c := &Client{
		cfg:       cfg,
		log:       noopLogger{},
		met:       noopMetrics{},
		tracer:    oteltrace.NewNoopTracerProvider().Tracer("dtu"),
		transport: NewTransport(),
		conn:      newConnectionManager(),
		seq:       newSequencer(),
		commands:  make(chan command, 8),
		snapshots: make(chan snapshotRequest, 4),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.validator = newValidator(c.now)
	return c
}

// Setup assigns the initial server address and port. Call it before Run;
// once Run is underway use SetServer instead, which is safe to call
// concurrently with the executor goroutine.
func (c *Client) Setup(server string, port uint16) {
	c.cfg.Server = server
	c.cfg.Port = port
}

// SetServer enqueues a server address change, applied on the next tick.
func (c *Client) SetServer(server string) {
	c.commands <- command{kind: cmdSetServer, server: server}
}

// SetPowerLimit enqueues a power-limit Command for the inverter.
func (c *Client) SetPowerLimit(percent int) {
	c.commands <- command{kind: cmdSetPowerLimit, powerLimit: percent}
}

// RequestRestartDevice enqueues a RestartDevice request.
func (c *Client) RequestRestartDevice() {
	c.commands <- command{kind: cmdRestartDevice}
}

// GetDataUpdate enqueues an out-of-cycle RealDataNew request.
func (c *Client) GetDataUpdate() {
	c.commands <- command{kind: cmdGetDataUpdate}
}

// FlushConnection enqueues a graceful teardown, transitioning to STOPPED.
func (c *Client) FlushConnection() {
	c.commands <- command{kind: cmdFlush}
}

// SetPreventCloudErrors enqueues a toggle of the cloud-coexistence pause.
func (c *Client) SetPreventCloudErrors(enabled bool) {
	v := 0
	if enabled {
		v = 1
	}
	c.commands <- command{kind: cmdSetPreventCloudErrors, powerLimit: v}
}

// Snapshot returns a value copy of the current telemetry snapshot. It does
// not clear UpdateReceived — only the publisher's consumption path does
// that, inside Run.
func (c *Client) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	c.snapshots <- snapshotRequest{reply: reply}
	return <-reply
}

// ConsumeUpdate returns a copy of the snapshot and, if UpdateReceived was
// set, clears it as part of the same executor-goroutine operation — the
// one-shot read/clear a downstream publisher is expected to perform
// (SPEC_FULL.md §4.13).
func (c *Client) ConsumeUpdate() Snapshot {
	reply := make(chan Snapshot, 1)
	c.snapshots <- snapshotRequest{reply: reply, consume: true}
	return <-reply
}

// Run is the executor: it owns the socket, the telemetry snapshot, and
// every state machine, and blocks until ctx is canceled or the connection
// manager reaches STOPPED. This is the single-actor realization of
// SPEC_FULL.md §5: no mutex guards client state because only this
// goroutine ever touches it.
func (c *Client) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	keepAlive := time.NewTicker(c.cfg.KeepAliveInterval)
	defer keepAlive.Stop()
	defer c.transport.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if c.conn.State() == StateStopped {
				return nil
			}
			c.onTick(ctx)

		case <-keepAlive.C:
			if c.conn.State() == StateConnected {
				if err := c.transport.Write([]byte{0x00}); err != nil {
					c.log.Warn(ctx, "keepalive write failed", "error", err)
				}
			}

		case ev := <-c.transport.Events():
			c.onTransportEvent(ctx, ev)

		case cmd := <-c.commands:
			c.onCommand(ctx, cmd)

		case req := <-c.snapshots:
			req.reply <- c.snapshot
			if req.consume {
				c.snapshot.UpdateReceived = false
			}
		}
	}
}

func (c *Client) onTick(ctx context.Context) {
	now := c.now()

	if paused := c.cloud.Tick(now, c.cfg.PreventCloudErrors); paused {
		if c.conn.State() != StateCloudPause {
			c.met.CloudPause()
			c.conn.EnterCloudPause(now)
		}
		return
	}
	if c.conn.State() == StateCloudPause {
		c.conn.ExitCloudPause(now)
	}

	if c.seq.Watchdog(now) {
		c.met.TxRxWatchdogReset()
		c.endTxSpan("watchdog_timeout")
	}

	if c.snapshot.CheckStaleness(now) {
		c.met.DTUReset(ResetReasonNoTime)
	}

	c.met.SetOnline(c.conn.Online(now))

	if c.conn.ReadyToReconnect(now) {
		c.met.ConnectAttempt()
		_, c.connectSpan = c.tracer.Start(ctx, "dtu.connect")
		c.transport.Dial(fmt.Sprintf("%s:%d", c.cfg.Server, c.cfg.Port))
		return
	}

	if c.conn.State() == StateConnected && c.seq.State() == TxRxIdle {
		if req, ok := c.seq.RequestRealData(now); ok {
			_, c.txSpan = c.tracer.Start(ctx, "dtu.transaction")
			c.txSpan.SetAttributes(txrxKindAttr(TxRxWaitRealDataNew))
			_ = c.transport.Write(req)
		}
	}
}

func (c *Client) onTransportEvent(ctx context.Context, ev transportEvent) {
	now := c.now()
	switch ev.kind {
	case eventConnected:
		c.conn.OnConnected(now)
		c.endConnectSpan("connected")
		c.log.Info(ctx, "dtu connected")

	case eventDisconnected:
		c.conn.OnDisconnected(now)
		if c.conn.State() == StateConnectError {
			c.met.ReconnectPause()
		}
		c.log.Warn(ctx, "dtu disconnected", "state", c.conn.State().String())

	case eventError:
		c.met.ConnectFailure()
		c.endConnectSpan("error")
		c.log.Error(ctx, "dtu transport error", "error", ev.err)

	case eventFrame:
		c.onFrame(ctx, ev.frame, now)
	}
}

// txrxKindAttr tags a transaction span with which wait-state it is in.
func txrxKindAttr(state TxRxState) attribute.KeyValue {
	return attribute.String("txrx.kind", state.String())
}

// endConnectSpan ends the span started for the in-flight connect attempt,
// if any. outcome is recorded as a "dtu.connect.outcome" attribute.
func (c *Client) endConnectSpan(outcome string) {
	if c.connectSpan == nil {
		return
	}
	c.connectSpan.SetAttributes(attribute.String("dtu.connect.outcome", outcome))
	c.connectSpan.End()
	c.connectSpan = nil
}

// endTxSpan ends the span started for the in-flight transaction, if any.
func (c *Client) endTxSpan(outcome string) {
	if c.txSpan == nil {
		return
	}
	c.txSpan.SetAttributes(attribute.String("txrx.outcome", outcome))
	c.txSpan.End()
	c.txSpan = nil
}

func (c *Client) onFrame(ctx context.Context, frame protocol.DecodedFrame, now time.Time) {
	outcome := c.seq.OnFrame(frame.Opcode, frame.Body, now)
	if outcome.err != nil {
		c.endTxSpan("decode_error")
		c.log.Warn(ctx, "dtu decode error", "error", outcome.err)
		return
	}
	if outcome.realData != nil {
		if reason := c.snapshot.ApplyRealData(*outcome.realData, c.validator); reason != "" {
			c.met.DTUReset(reason)
			c.log.Warn(ctx, "dtu data reset", "reason", string(reason))
		} else {
			c.met.ObserveGrid(c.snapshot.GridVoltage, c.snapshot.GridPower)
			c.met.ObserveTemperature(c.snapshot.Temperature)
			c.met.ObserveRSSI(float64(c.snapshot.WifiRSSI))
		}
	}
	if outcome.getConfig != nil {
		c.snapshot.ApplyPowerLimit(*outcome.getConfig)
		if c.snapshot.PowerLimitKnown {
			c.met.ObservePowerLimit(float64(c.snapshot.PowerLimit))
		}
	}
	if outcome.chainRequest != nil {
		if err := c.transport.Write(outcome.chainRequest); err != nil {
			c.log.Warn(ctx, "dtu chained write failed", "error", err)
		}
	}
	if c.seq.State() == TxRxIdle {
		c.endTxSpan("ok")
	}
}

func (c *Client) onCommand(ctx context.Context, cmd command) {
	now := c.now()
	switch cmd.kind {
	case cmdSetServer:
		c.cfg.Server = cmd.server

	case cmdSetPowerLimit:
		if req, ok := c.seq.RequestCommand(cmd.powerLimit, now); ok {
			_, c.txSpan = c.tracer.Start(ctx, "dtu.transaction")
			c.txSpan.SetAttributes(txrxKindAttr(TxRxWaitCommand))
			if err := c.transport.Write(req); err != nil {
				c.log.Warn(ctx, "dtu set power limit write failed", "error", err)
			}
		}

	case cmdRestartDevice:
		if req, ok := c.seq.RequestRestartDevice(now); ok {
			_, c.txSpan = c.tracer.Start(ctx, "dtu.transaction")
			c.txSpan.SetAttributes(txrxKindAttr(TxRxWaitRestartDevice))
			_ = c.transport.Write(req)
		}

	case cmdGetDataUpdate:
		// Mirrors the source's getDataUpdate(): emit a real-data request
		// only while connected, otherwise the snapshot is marked stale.
		if c.conn.State() != StateConnected {
			c.snapshot.Uptodate = false
			break
		}
		if req, ok := c.seq.RequestRealData(now); ok {
			_, c.txSpan = c.tracer.Start(ctx, "dtu.transaction")
			c.txSpan.SetAttributes(txrxKindAttr(TxRxWaitRealDataNew))
			_ = c.transport.Write(req)
		}

	case cmdSetPreventCloudErrors:
		c.cfg.PreventCloudErrors = cmd.powerLimit != 0

	case cmdFlush:
		c.transport.Close()
		c.conn.Stop(now)
	}
}
