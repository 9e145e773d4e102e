// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/raidpilot/internal/automation"
	"github.com/xkilldash9x/raidpilot/internal/breaks"
	"github.com/xkilldash9x/raidpilot/internal/browser"
	"github.com/xkilldash9x/raidpilot/internal/clock"
	"github.com/xkilldash9x/raidpilot/internal/config"
	"github.com/xkilldash9x/raidpilot/internal/control"
	"github.com/xkilldash9x/raidpilot/internal/humanoid"
	"github.com/xkilldash9x/raidpilot/internal/messaging"
	"github.com/xkilldash9x/raidpilot/internal/observability"
	"github.com/xkilldash9x/raidpilot/internal/screen"
	"github.com/xkilldash9x/raidpilot/internal/settings"
	"github.com/xkilldash9x/raidpilot/internal/status"
	"github.com/xkilldash9x/raidpilot/internal/store"
)

// errBrowserClosed ends the run loop when the operator closes the browser window.
var errBrowserClosed = errors.New("browser closed")

// statusBusBuffer is the per-subscriber queue depth of the status bus.
const statusBusBuffer = 64

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	var (
		headless    bool
		startURL    string
		storeDriver string
		listen      bool
		noConsole   bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Launch the browser and start the raid controller",
		Long: `Launches a browser with a persistent profile and attaches the raid controller to it.
Automation starts switched off unless settings saved by an earlier run say otherwise;
use the console commands (or the control API) to switch it on.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			// Flags override config file and env values only when given explicitly.
			flags := cmd.Flags()
			if flags.Changed("headless") {
				cfg.SetBrowserHeadless(headless)
			}
			if flags.Changed("url") {
				cfg.SetBrowserStartURL(startURL)
			}
			if flags.Changed("store") {
				cfg.SetStoreDriver(storeDriver)
			}
			if flags.Changed("listen") {
				cfg.SetControlEnabled(listen)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			var in io.Reader
			if !noConsole {
				in = cmd.InOrStdin()
			}
			return runPilot(cmd.Context(), cfg, observability.GetLogger(), in, cmd.OutOrStdout())
		},
	}

	runCmd.Flags().BoolVar(&headless, "headless", false, "Run the browser without a window. (Overrides config/env)")
	runCmd.Flags().StringVarP(&startURL, "url", "u", "", "Page to open after launch. (Overrides config/env)")
	runCmd.Flags().StringVar(&storeDriver, "store", "", "State store driver: memory, file or postgres. (Overrides config/env)")
	runCmd.Flags().BoolVar(&listen, "listen", false, "Serve the local control API. (Overrides config/env)")
	runCmd.Flags().BoolVar(&noConsole, "no-console", false, "Do not read commands from stdin.")

	return runCmd
}

// pilotComponents holds the initialized services of one run.
type pilotComponents struct {
	SessionID  string
	KV         store.KV
	Bus        *status.Bus
	Settings   *settings.Store
	Browser    *browser.Session
	Controller *automation.Controller
	Router     *messaging.Router
	Control    *control.Server

	persistCookies bool
	closeStore     func()
}

// Shutdown saves what should survive the run and releases every component. It uses its
// own deadline because the run context is usually already cancelled by now.
func (pc *pilotComponents) Shutdown(logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if pc.Browser != nil {
		if pc.persistCookies && pc.KV != nil {
			if err := pc.Browser.SaveCookies(ctx, pc.KV); err != nil {
				logger.Warn("Failed to save cookies", zap.Error(err))
			}
		}
		pc.Browser.Close()
	}
	if pc.Bus != nil {
		pc.Bus.Shutdown()
	}
	if pc.closeStore != nil {
		pc.closeStore()
	}
}

// pilotPage is everything the controller needs from the browser.
type pilotPage interface {
	screen.Page
	humanoid.Executor
}

// newSource returns an independently seeded random source. Each consumer gets its own
// because *rand.Rand is not safe for concurrent use.
func newSource() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(uuid.New().ID())))
}

// wireController builds the page-facing half of the pilot: classifier, dialog detector,
// break scheduler, input synthesizer and the controller that drives them.
func wireController(cfg config.Interface, page pilotPage, kv store.KV, bus *status.Bus, clk clock.Clock, logger *zap.Logger) (*automation.Controller, *settings.Store, error) {
	classifier, err := screen.NewClassifier(cfg.Screen(), page, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build screen classifier: %w", err)
	}
	detector := screen.NewDialogDetector(cfg.Screen(), page, logger)

	settingsStore := settings.NewStore(kv, bus, cfg.Settings(), logger)
	scheduler := breaks.New(cfg.Breaks(), newSource(), clk, logger)
	synth := humanoid.New(cfg.Humanoid(), newSource(), logger)

	ctrl, err := automation.New(cfg.Automation(), automation.Dependencies{
		Observer: automation.PageWatch{Classifier: classifier, DialogDetector: detector},
		Breaks:   scheduler,
		Synth:    synth,
		Executor: page,
		KV:       kv,
		Settings: settingsStore,
		Bus:      bus,
		Clock:    clk,
		Rand:     newSource(),
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build controller: %w", err)
	}
	return ctrl, settingsStore, nil
}

// initializePilot handles dependency injection for a run.
func initializePilot(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*pilotComponents, error) {
	pc := &pilotComponents{
		SessionID:      uuid.New().String(),
		persistCookies: cfg.Browser().PersistCookies,
	}

	// 1. State store
	kv, closeStore, err := store.Open(ctx, cfg.Store(), logger)
	if err != nil {
		return pc, fmt.Errorf("failed to open state store: %w", err)
	}
	pc.KV, pc.closeStore = kv, closeStore
	pc.Bus = status.New(logger, statusBusBuffer)

	// 2. Browser. It must outlive ctx long enough for Shutdown to save cookies.
	sess, err := browser.Launch(context.WithoutCancel(ctx), cfg.Browser(), logger)
	if err != nil {
		return pc, fmt.Errorf("failed to launch browser: %w", err)
	}
	pc.Browser = sess

	if pc.persistCookies {
		if err := sess.RestoreCookies(ctx, kv); err != nil {
			logger.Warn("Failed to restore cookies; continuing with the profile's own", zap.Error(err))
		}
	}
	if url := cfg.Browser().StartURL; url != "" {
		if err := sess.Navigate(ctx, url); err != nil {
			logger.Warn("Initial navigation failed; navigate manually", zap.String("url", url), zap.Error(err))
		}
	}

	// 3. Controller
	ctrl, settingsStore, err := wireController(cfg, sess, kv, pc.Bus, clock.Real{}, logger)
	if err != nil {
		return pc, err
	}
	pc.Controller, pc.Settings = ctrl, settingsStore
	if err := ctrl.Restore(ctx); err != nil {
		return pc, fmt.Errorf("failed to restore state: %w", err)
	}
	if err := sess.WatchMutations(ctx, ctrl.RequestCheck); err != nil {
		// Periodic ticks still cover the page; only reaction time suffers.
		logger.Warn("Page change notifications unavailable", zap.Error(err))
	}

	// 4. Command surfaces
	pc.Router = messaging.NewRouter(ctrl, logger)
	if cfg.Control().Enabled {
		pc.Control = control.NewServer(cfg.Control(), pc.Router, pc.Bus, logger)
	}
	return pc, nil
}

// runPilot runs the controller, the optional control server and the optional console until
// ctx is done, the operator quits, or the browser goes away.
func runPilot(ctx context.Context, cfg config.Interface, logger *zap.Logger, in io.Reader, out io.Writer) error {
	components, err := initializePilot(ctx, cfg, logger)
	if components != nil {
		logger = logger.With(zap.String("session_id", components.SessionID))
		defer components.Shutdown(logger)
	}
	if err != nil {
		return err
	}

	logger.Info("RaidPilot started",
		zap.String("version", Version),
		zap.String("store", cfg.Store().Driver),
		zap.Bool("control_api", components.Control != nil),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return components.Controller.Run(gctx)
	})
	g.Go(func() error {
		select {
		case <-components.Browser.Done():
			return errBrowserClosed
		case <-gctx.Done():
			return nil
		}
	})
	if components.Control != nil {
		g.Go(func() error {
			logger.Info("Control API listening", zap.String("addr", cfg.Control().ListenAddr))
			return components.Control.Run(gctx)
		})
	}
	if in != nil {
		g.Go(func() error {
			return runConsole(gctx, components.Router, in, out)
		})
	}

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("Shutting down")
		return nil
	case errors.Is(err, errQuit):
		logger.Info("Shutting down at operator request")
		return nil
	case errors.Is(err, errBrowserClosed):
		logger.Info("Browser window closed; shutting down")
		return nil
	default:
		return err
	}
}
