// Command arpchat is the CLI entry point wiring the ARP transport core
// to a minimal readline-based terminal front-end (spec.md section 6).
// The full terminal UI (window layout, line wrapping, keystroke editing)
// is explicitly out of scope for the core; this is the smallest
// concrete collaborator that exercises it end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gbonacini/arpchat/internal/ipc"
	"github.com/gbonacini/arpchat/internal/transport"
	"github.com/gbonacini/arpchat/pkg/component"
	"github.com/gbonacini/arpchat/pkg/config"
	"github.com/gbonacini/arpchat/pkg/config/kv"
	"github.com/gbonacini/arpchat/pkg/logger"
)

const (
	defaultConfigPath = "./arpchat.conf"
	defaultLineWidth  = 80
	metricsAddr       = ":9090"
)

func main() {
	os.Exit(run())
}

func run() int {
	ifaceFlag := flag.String("i", "", "network interface to send/receive frames on (required)")
	configFlag := flag.String("f", defaultConfigPath, "path to the arpchat config file")
	debugFlag := flag.Int("d", 1, "debug level: 0 errors only, 1 standard, 2 verbose")
	help := flag.Bool("h", false, "show usage")
	flag.Parse()

	if *help {
		usage()
		return 0
	}
	if *ifaceFlag == "" {
		fmt.Fprintln(os.Stderr, "arpchat: -i <iface> is required")
		usage()
		return 1
	}

	logger.Configure("text", levelFromDebugFlag(*debugFlag), nil)
	mainLog := logger.Get(logger.Main)

	cfg, err := kv.NewLoader().Load(*configFlag)
	if err != nil {
		mainLog.Error("failed to load config", "path", *configFlag, "err", err)
		return 1
	}

	if *debugFlag >= 2 {
		go serveMetrics(mainLog)
		if err := config.SaveSnapshot(*configFlag+".resolved.yaml", cfg); err != nil {
			mainLog.Warn("failed to write resolved config snapshot", "err", err)
		}
	}

	tr, err := transport.New(transport.Options{
		Interface:     *ifaceFlag,
		Config:        cfg,
		IPCSocketPath: ipc.DefaultSocketPath,
		LineWidth:     defaultLineWidth,
	})
	if err != nil {
		mainLog.Error("failed to initialize transport", "err", err)
		return 1
	}

	orch := component.NewOrchestrator()
	orch.Register(tr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		mainLog.Error("failed to start transport", "err", err)
		return 1
	}
	mainLog.Info("arpchat started", "interface", *ifaceFlag)

	stopPoller := make(chan struct{})
	go pollIncoming(tr, mainLog, stopPoller)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     os.ExpandEnv("$HOME/.arpchat_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		mainLog.Error("failed to initialize readline", "err", err)
		close(stopPoller)
		_ = orch.Stop(ctx)
		return 1
	}
	defer rl.Close()

	exitCode := 0
readLoop:
	for {
		select {
		case <-sigCh:
			break readLoop
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == io.EOF || err == readline.ErrInterrupt {
				break readLoop
			}
			mainLog.Error("readline error", "err", err)
			exitCode = 1
			break readLoop
		}

		if err := tr.Send(line); err != nil {
			mainLog.Error("failed to send message", "err", err)
			exitCode = 1
			break readLoop
		}
	}

	close(stopPoller)
	mainLog.Info("shutting down arpchat")
	if err := orch.Stop(ctx); err != nil {
		mainLog.Error("error stopping transport", "err", err)
		exitCode = 1
	}

	return exitCode
}

// pollIncoming runs the UI-side IPC poller: it blocks on each wake-up,
// drains the packet queue into the chat reassembler, and prints any
// newly closed lines. It exits when stop is closed or the transport
// shuts down the notifier out from under it.
func pollIncoming(tr *transport.Transport, log interface{ Error(string, ...any) }, stop <-chan struct{}) {
	printed := 0
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := tr.DrainIncoming(); err != nil {
			log.Error("incoming drain failed", "err", err)
			return
		}

		lines := tr.Lines()
		for _, line := range lines[printed:] {
			fmt.Println(line)
		}
		if len(lines) > 0 {
			printed = len(lines)
		}
	}
}

func levelFromDebugFlag(d int) logger.LogLevel {
	switch d {
	case 0:
		return logger.LogLevelError
	case 2:
		return logger.LogLevelDebug
	default:
		return logger.LogLevelInfo
	}
}

func serveMetrics(log interface{ Info(string, ...any); Error(string, ...any) }) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info("metrics endpoint listening", "addr", metricsAddr)
	if err := http.ListenAndServe(metricsAddr, mux); err != nil {
		log.Error("metrics server stopped", "err", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: arpchat -i <iface> [-f <config_path>] [-d 0|1|2] | -h")
	flag.PrintDefaults()
}
