// Package kernel wires the fulfillment pipeline together: configuration,
// persistence, event journal, metrics, conversation routing, intake, and the
// delivery worker share one lifecycle here.
package kernel

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"fulfiller/pkg/config"
	"fulfiller/pkg/convo"
	"fulfiller/pkg/delivery"
	"fulfiller/pkg/eventlog"
	"fulfiller/pkg/intake"
	"fulfiller/pkg/logx"
	"fulfiller/pkg/market"
	"fulfiller/pkg/metrics"
	"fulfiller/pkg/persistence"
)

// Options carries the external collaborators and identity the kernel cannot
// construct itself.
type Options struct {
	Settings  config.Settings
	Client    delivery.Client
	Source    market.OrderSource
	Messenger market.Messenger
	SellerID  int64

	// Recorder is optional; nil disables metrics.
	Recorder *metrics.Recorder
}

// Kernel owns the pipeline components and their lifecycle. One kernel per
// process; construct with NewKernel, then Start, Dispatch events, Stop.
type Kernel struct {
	// Context is embedded rather than a field to avoid containedctx lint error
	ctx    context.Context //nolint:containedctx // Required for kernel lifecycle management
	cancel context.CancelFunc

	Logger   *logx.Logger
	Settings config.Settings

	Database *sql.DB
	Journal  *eventlog.Writer
	Store    *convo.MemoryStore
	Router   *convo.Router
	Worker   *delivery.Worker
	Intake   *intake.Queue
	Recorder *metrics.Recorder

	running bool
}

// NewKernel creates the kernel and initializes every service: the lot store,
// the history database, the event journal, and the pipeline components.
func NewKernel(parent context.Context, opts Options) (*Kernel, error) {
	ctx, cancel := context.WithCancel(parent)

	k := &Kernel{
		ctx:      ctx,
		cancel:   cancel,
		Logger:   logx.NewLogger("kernel"),
		Settings: opts.Settings,
		Recorder: opts.Recorder,
	}

	if err := k.initializeServices(opts); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize kernel services: %w", err)
	}
	return k, nil
}

// initializeServices sets up storage and the pipeline in dependency order.
func (k *Kernel) initializeServices(opts Options) error {
	if err := config.Load(k.Settings.StorePath); err != nil {
		return fmt.Errorf("failed to load lot store: %w", err)
	}

	if err := k.initializeDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	journal, err := eventlog.NewWriter(k.Settings.EventLogDir)
	if err != nil {
		return fmt.Errorf("failed to create event journal: %w", err)
	}
	k.Journal = journal

	history := persistence.NewHistoryRecorder(persistence.NewDatabaseOperations(k.Database))
	k.Worker = delivery.NewWorker(opts.Client, opts.Messenger, k.Settings, history, k.Journal, k.Recorder)

	k.Store = convo.NewMemoryStore()
	k.Router = convo.NewRouter(k.Store, opts.Source, opts.Messenger, k.Worker, k.Recorder)
	k.Intake = intake.NewQueue(opts.Source, k.Router, opts.Messenger, opts.SellerID, k.Settings, k.Recorder)

	k.Logger.Info("Kernel services initialized successfully")
	return nil
}

// initializeDatabase opens the delivery history database, creating its
// directory if needed.
func (k *Kernel) initializeDatabase() error {
	if dir := filepath.Dir(k.Settings.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := persistence.InitializeDatabase(k.Settings.DBPath)
	if err != nil {
		return err
	}
	k.Database = db

	k.Logger.Info("Database initialized with schema: %s", k.Settings.DBPath)
	return nil
}

// Start marks the kernel running. Dispatch drops events until Start.
func (k *Kernel) Start() error {
	if k.running {
		return fmt.Errorf("kernel already running")
	}
	k.running = true
	k.Logger.Info("Kernel started (seller pipeline live)")
	return nil
}

// Dispatch routes one observed marketplace event into the pipeline. Order
// events feed intake; message events are routed in the caller's goroutine
// since conversation transitions only block on chat sends. Both are
// journaled first, so an offline run can replay the exact input stream.
func (k *Kernel) Dispatch(event *market.Event) {
	if !k.running {
		k.Logger.Debug("Kernel not running, dropping %s event", event.Type)
		return
	}

	if err := k.Journal.WriteEvent(event); err != nil {
		k.Logger.Warn("Journaling %s event failed: %v", event.Type, err)
	}

	switch event.Type {
	case market.EventTypeOrder:
		if event.Order == nil {
			k.Logger.Error("ORDER event %s has no order payload", event.ID)
			return
		}
		k.Intake.Enqueue(k.ctx, *event.Order)

	case market.EventTypeMessage:
		if event.Message == nil {
			k.Logger.Error("MESSAGE event %s has no message payload", event.ID)
			return
		}
		// The enable switch freezes open conversations too: while disabled,
		// chat text must not advance a dialogue or trigger delivery.
		if !k.storeEnabled() {
			k.Logger.Debug("Fulfillment disabled, ignoring MESSAGE event %s", event.ID)
			return
		}
		k.Router.HandleMessage(k.ctx, *event.Message)

	case market.EventTypeDelivery:
		// Deliveries are journal output, not pipeline input.

	default:
		k.Logger.Warn("Unknown event type %q ignored", event.Type)
	}
}

// storeEnabled reads the runtime store's enable switch. Intake re-checks the
// flag itself at drain time; this guards the message path.
func (k *Kernel) storeEnabled() bool {
	snap, err := config.GetSnapshot()
	return err == nil && snap.Enabled
}

// Stop gracefully shuts down the pipeline: cancels in-flight work, waits for
// intake drains, then closes the journal and database.
func (k *Kernel) Stop() error {
	if !k.running {
		return nil
	}

	k.Logger.Info("Stopping kernel services...")
	k.running = false

	// Cancel first so paced deliveries and settle waits return promptly.
	k.cancel()

	done := make(chan struct{})
	go func() {
		k.Intake.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		k.Logger.Warn("Timeout waiting for intake drains to finish")
	}

	if k.Journal != nil {
		if err := k.Journal.Close(); err != nil {
			k.Logger.Error("Error closing event journal: %v", err)
		}
	}
	if k.Database != nil {
		if err := k.Database.Close(); err != nil {
			k.Logger.Error("Error closing database: %v", err)
		}
	}

	k.Logger.Info("Kernel services stopped")
	return nil
}

// Stats reports aggregate delivery history, for the status command.
func (k *Kernel) Stats() (*persistence.DeliveryStats, error) {
	return persistence.NewDatabaseOperations(k.Database).GetStats()
}
