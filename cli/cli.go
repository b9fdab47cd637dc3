// Package cli processes the chain-forge command line.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/Perafan18/chain-forge/api"
	"github.com/Perafan18/chain-forge/config"
	"github.com/Perafan18/chain-forge/ledger"
	"github.com/Perafan18/chain-forge/logging"
	"github.com/Perafan18/chain-forge/storage"
	"github.com/Perafan18/chain-forge/version"
)

// CommandLine dispatches the subcommands. Every command loads its own
// configuration and opens its own store, so invocations are independent.
type CommandLine struct{}

func (cli *CommandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  serve [-config FILE] - run the HTTP API server")
	fmt.Println("  createchain [-config FILE] - create a chain and print its id")
	fmt.Println("  addblock -chain ID -data DATA [-difficulty N] [-config FILE] - mine a block onto a chain")
	fmt.Println("  printchain -chain ID [-config FILE] - print all the blocks of a chain")
	fmt.Println("  validate -chain ID [-config FILE] - check a chain's integrity")
	fmt.Println("  version - print build information")
}

func (cli *CommandLine) validateArgs() {
	if len(os.Args) < 2 {
		cli.printUsage()
		runtime.Goexit()
	}
}

// Run parses os.Args and executes the matching command. Unknown commands
// print usage and unwind through the deferred exit in main.
func (cli *CommandLine) Run() {
	cli.validateArgs()

	var err error
	switch os.Args[1] {
	case "serve":
		err = cli.serve(os.Args[2:])
	case "createchain":
		err = cli.createChain(os.Args[2:])
	case "addblock":
		err = cli.addBlock(os.Args[2:])
	case "printchain":
		err = cli.printChain(os.Args[2:])
	case "validate":
		err = cli.validateChain(os.Args[2:])
	case "version":
		err = cli.version()
	default:
		cli.printUsage()
		runtime.Goexit()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "chain-forge: %v\n", err)
		os.Exit(1)
	}
}

// openService builds the ledger service the offline commands run against.
// The caller closes the returned store.
func openService(cfgPath string) (*ledger.Service, storage.Store, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.Open(storage.Config{
		Engine: cfg.Storage.Engine,
		Path:   cfg.Storage.Path,
	})
	if err != nil {
		return nil, nil, err
	}

	svc := ledger.New(store, ledger.Config{
		DefaultDifficulty: cfg.Chain.DefaultDifficulty,
		MaxDifficulty:     cfg.Chain.MaxDifficulty,
	})
	return svc, store, nil
}

func (cli *CommandLine) serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	store, err := storage.Open(storage.Config{
		Engine: cfg.Storage.Engine,
		Path:   cfg.Storage.Path,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	svc := ledger.New(store, ledger.Config{
		DefaultDifficulty: cfg.Chain.DefaultDifficulty,
		MaxDifficulty:     cfg.Chain.MaxDifficulty,
	})

	srv := api.NewServer(svc, log, api.Config{
		Listen:         cfg.Server.Listen,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		APIKey:         cfg.Server.APIKey,
		RateLimitRate:  cfg.RateLimit.Rate,
		RateLimitBurst: cfg.RateLimit.Burst,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", cfg.Server.Listen, "engine", cfg.Storage.Engine)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func (cli *CommandLine) createChain(args []string) error {
	fs := flag.NewFlagSet("createchain", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, store, err := openService(*cfgPath)
	if err != nil {
		return err
	}
	defer store.Close()

	info, err := svc.CreateChain()
	if err != nil {
		return err
	}

	fmt.Println("Chain created!")
	fmt.Printf("ID: %s\n", info.ID)
	fmt.Printf("Genesis hash: %s\n", info.Genesis.Hash)
	return nil
}

func (cli *CommandLine) addBlock(args []string) error {
	fs := flag.NewFlagSet("addblock", flag.ExitOnError)
	chain := fs.String("chain", "", "chain id")
	data := fs.String("data", "", "block data")
	difficulty := fs.Int("difficulty", 0, "leading zeros required of the hash (0 = configured default)")
	cfgPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *chain == "" || *data == "" {
		fs.Usage()
		os.Exit(1)
	}

	svc, store, err := openService(*cfgPath)
	if err != nil {
		return err
	}
	defer store.Close()

	block, err := svc.AppendBlock(*chain, *data, *difficulty)
	if err != nil {
		return err
	}

	fmt.Println("Success!")
	fmt.Printf("Index: %d\n", block.Index)
	fmt.Printf("Hash: %s\n", block.Hash)
	fmt.Printf("Nonce: %d\n", block.Nonce)
	return nil
}

func (cli *CommandLine) printChain(args []string) error {
	fs := flag.NewFlagSet("printchain", flag.ExitOnError)
	chain := fs.String("chain", "", "chain id")
	cfgPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *chain == "" {
		fs.Usage()
		os.Exit(1)
	}

	svc, store, err := openService(*cfgPath)
	if err != nil {
		return err
	}
	defer store.Close()

	blocks, err := svc.GetChain(*chain)
	if err != nil {
		return err
	}

	for _, block := range blocks {
		fmt.Printf("Index: %d\n", block.Index)
		fmt.Printf("Data: %s\n", block.Data)
		fmt.Printf("Hash: %s\n", block.Hash)
		fmt.Printf("Prev. hash: %s\n", block.PrevHash)
		fmt.Printf("Nonce: %d\n", block.Nonce)
		fmt.Printf("PoW: %s\n", strconv.FormatBool(block.IsHashValid()))
		fmt.Println()
	}
	return nil
}

func (cli *CommandLine) validateChain(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	chain := fs.String("chain", "", "chain id")
	cfgPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *chain == "" {
		fs.Usage()
		os.Exit(1)
	}

	svc, store, err := openService(*cfgPath)
	if err != nil {
		return err
	}
	defer store.Close()

	valid, err := svc.Validate(*chain)
	if err != nil {
		return err
	}
	if !valid {
		return fmt.Errorf("chain %s failed integrity validation", *chain)
	}

	fmt.Printf("Chain %s is valid.\n", *chain)
	return nil
}

func (cli *CommandLine) version() error {
	info := version.Get()
	fmt.Printf("chain-forge %s (%s)\n", info.Version, info.Commit)
	fmt.Printf("%s %s\n", info.GoVersion, info.Platform)
	return nil
}
