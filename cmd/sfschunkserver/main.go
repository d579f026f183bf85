package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leil-io/saunafs-chunkserver/chunkserver"
	"github.com/leil-io/saunafs-chunkserver/config"
	"github.com/leil-io/saunafs-chunkserver/logging"
)

// Exit codes, per §6: 0 success, 1 error, 2 not-alive (isalive probe).
const (
	exitCodeSuccess  = 0
	exitCodeError    = 1
	exitCodeNotAlive = 2
)

var (
	configPath string
	hddPath    string
	logPath    string
)

func main() {
	root := &cobra.Command{
		Use:   "sfschunkserver",
		Short: "SaunaFS chunkserver",
		RunE:  runServe,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "/etc/sfschunkserver.cfg", "path to the main configuration file")
	root.PersistentFlags().StringVar(&hddPath, "hdd-config", "/etc/sfshdd.cfg", "path to the per-disk HDD configuration file")
	root.PersistentFlags().StringVar(&logPath, "log", "/var/log/sfschunkserver.log", "path to the log file")

	isAliveCmd := &cobra.Command{
		Use:   "isalive",
		Short: "probe whether a running chunkserver is responsive",
		RunE:  runIsAlive,
	}
	root.AddCommand(isAliveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeError)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := logging.New(logPath)
	if err != nil {
		return err
	}
	defer log.Close()

	tunables := config.DefaultTunables()
	if f, err := os.Open(configPath); err == nil {
		tunables, err = config.LoadTunables(f)
		f.Close()
		if err != nil {
			log.Println("ERROR: failed to parse configuration:", err)
			os.Exit(exitCodeError)
		}
	} else {
		log.Println("WARN: no configuration file at", configPath, "- using defaults")
	}

	hddEntries, err := loadHDDConfig(hddPath, log)
	if err != nil {
		log.Println("ERROR: failed to parse HDD configuration:", err)
		os.Exit(exitCodeError)
	}
	log.Println("INFO: loaded", len(hddEntries), "HDD configuration entries")

	store := chunkserver.NewDefaultChunkStore(firstDataPath(hddEntries))
	jobs := chunkserver.NewBackgroundJobPool(
		tunables.HDDWorkersPerNetworkWorker*tunables.NetworkWorkers,
		tunables.MaxBGJobsPerNetworkWorker,
	)
	bufPool := chunkserver.NewBufferPool(64)

	workers := make([]*chunkserver.NetworkWorkerThread, tunables.NetworkWorkers)
	for i := range workers {
		workers[i] = chunkserver.NewNetworkWorkerThread(i, store, jobs, bufPool)
	}

	bind := tunables.BindHost
	if bind == "" {
		bind = ":9422"
	}
	acceptor, err := chunkserver.NewConnectionAcceptor(bind, workers)
	if err != nil {
		return err
	}
	log.Println("INFO: listening on", acceptor.Addr())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	serveErr := make(chan error, 1)
	go func() { serveErr <- acceptor.Serve() }()

	select {
	case s := <-sig:
		log.Println("INFO: received", s, "- shutting down")
	case err := <-serveErr:
		if err != nil {
			log.Println("ERROR: accept loop exited:", err)
		}
	}

	if err := acceptor.Stop(); err != nil {
		log.Println("WARN: error stopping acceptor:", err)
	}
	if err := jobs.Stop(); err != nil {
		log.Println("WARN: error stopping job pool:", err)
	}
	return nil
}

func runIsAlive(cmd *cobra.Command, args []string) error {
	tunables := config.DefaultTunables()
	if f, err := os.Open(configPath); err == nil {
		tunables, _ = config.LoadTunables(f)
		f.Close()
	}
	bind := tunables.BindHost
	if bind == "" {
		bind = "localhost:9422"
	}
	if !chunkserver.Probe(bind, 5*time.Second) {
		os.Exit(exitCodeNotAlive)
	}
	return nil
}

func loadHDDConfig(path string, log *logging.Logger) ([]config.HDDEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		log.Println("WARN: no HDD configuration file at", path)
		return nil, nil
	}
	defer f.Close()
	return config.ParseHDDConfig(f)
}

func firstDataPath(entries []config.HDDEntry) string {
	for _, e := range entries {
		if !e.MarkedForRemoval {
			if e.DataPath != "" {
				return e.DataPath
			}
			return e.MetaPath
		}
	}
	return "./data"
}
