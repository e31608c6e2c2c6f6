package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/metacrafters/atm/app/services/atm/handlers"
	"github.com/metacrafters/atm/business/core/atm"
	"github.com/metacrafters/atm/business/core/session"
	"github.com/metacrafters/atm/foundation/events"
	"github.com/metacrafters/atm/foundation/logger"
	"github.com/metacrafters/atm/foundation/nameservice"
	"github.com/metacrafters/atm/foundation/provider"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ATM")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:120s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			APIHost         string        `conf:"default:0.0.0.0:3000"`
			CORSOrigin      string        `conf:"default:*"`
		}
		Provider struct {
			URL        string        `conf:"default:http://localhost:8545,help:empty runs without a wallet"`
			KeyPath    string        `conf:"help:hex encoded private key file"`
			Keystore   string        `conf:"help:encrypted keystore file preferred over the key file"`
			Passphrase string        `conf:"mask"`
			Timeout    time.Duration `conf:"default:10s"`
			Accounts   string        `conf:"help:folder of named key files to log at startup"`
		}
		Contract struct {
			Address      string        `conf:"default:0x5FbDB2315678afecb367f032d93F642f64180aa3"`
			Artifact     string        `conf:"help:hardhat artifact file or empty for the embedded one"`
			PollInterval time.Duration `conf:"default:1s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "ATM wallet session service",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "ATM"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for account addresses.
	// The names come from the file names in the accounts folder.
	if cfg.Provider.Accounts != "" {
		ns, err := nameservice.New(cfg.Provider.Accounts)
		if err != nil {
			return fmt.Errorf("unable to load account name service: %w", err)
		}

		// Logging the accounts for documentation in the logs.
		for account, name := range ns.Copy() {
			log.Infow("startup", "status", "nameservice", "name", name, "account", account)
		}
	}

	// =========================================================================
	// Contract Support

	if !common.IsHexAddress(cfg.Contract.Address) {
		return fmt.Errorf("invalid contract address %q", cfg.Contract.Address)
	}

	contractABI, err := atm.LoadArtifact(cfg.Contract.Artifact)
	if err != nil {
		return fmt.Errorf("loading contract artifact: %w", err)
	}

	// Every confirmed transaction record is sent to any websocket client
	// that is connected into the system through the events package.
	evts := events.New[session.Record]()
	ev := func(rec session.Record) {
		log.Infow("transaction", "status", "record appended", "record", rec.String(), "txhash", rec.TxHash)
		evts.Publish(rec)
	}

	sess := session.New(session.Config{
		Log:             log,
		ContractAddress: common.HexToAddress(cfg.Contract.Address),
		ContractABI:     contractABI,
		PollInterval:    cfg.Contract.PollInterval,
		EvHandler:       ev,
	})

	// =========================================================================
	// Wallet Provider Support

	// Without a provider url the session stays uninitialized and every
	// request reports that no wallet is installed.
	var wallet provider.Provider
	if cfg.Provider.URL != "" {
		key, err := provider.LoadKey(cfg.Provider.KeyPath, cfg.Provider.Keystore, cfg.Provider.Passphrase)
		if err != nil {
			return fmt.Errorf("loading wallet key: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Provider.Timeout)
		defer cancel()

		p, err := provider.Open(ctx, cfg.Provider.URL, key)
		if err != nil {
			return fmt.Errorf("opening wallet provider: %w", err)
		}
		defer p.Close()

		wallet = p
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Provider.Timeout)
	defer cancel()

	if err := sess.Detect(ctx, wallet); err != nil {
		log.Infow("startup", "status", "wallet detection", "ERROR", err)
	}

	log.Infow("startup", "status", "session", "state", sess.State())

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, sess)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start API Service

	log.Infow("startup", "status", "initializing V1 API support")

	// Construct the mux for the API calls.
	apiMux := handlers.APIMux(handlers.MuxConfig{
		Shutdown:   shutdown,
		Log:        log,
		Session:    sess,
		Evts:       evts,
		CORSOrigin: cfg.Web.CORSOrigin,
	})

	// Construct a server to service the requests against the mux.
	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      apiMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}
