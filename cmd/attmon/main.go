package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/ashajkofci/attlink"
	"github.com/ashajkofci/attlink/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("attmon", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", config.DefaultPath, "TOML config path")
	device := fs.String("device", "", "serial device path (default: USB discovery)")
	baud := fs.Int("baud", 0, "baud rate")
	mode := fs.String("mode", "", "output mode: jsonl or tui")
	level := fs.String("log-level", "", "log level: trace, debug, info, warn, error, off")
	out := fs.String("out", "", "JSONL output path in jsonl mode, log file in tui mode")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	conf, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "failed to load config:", err)
		return 2
	}
	if *device != "" {
		conf.Port.Device = *device
	}
	if *baud > 0 {
		conf.Port.Baud = *baud
	}
	if *mode != "" {
		conf.Monitor.Mode = *mode
	}
	if *level != "" {
		conf.Log.Level = *level
	}
	if *out != "" {
		conf.Monitor.Output = *out
	}
	if err := conf.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	var sink io.Writer = stdout
	if conf.Monitor.Output != "" {
		file, err := os.Create(conf.Monitor.Output)
		if err != nil {
			fmt.Fprintln(stderr, "failed to open output file:", err)
			return 1
		}
		defer file.Close()
		sink = file
	}

	logOut := stderr
	tui := strings.EqualFold(conf.Monitor.Mode, config.ModeTUI)
	if tui {
		logOut = io.Discard
		if conf.Monitor.Output != "" {
			logOut = sink
		}
	}
	lvl, _ := attlink.ParseLevel(conf.Log.Level)
	logger := attlink.NewLogger("attmon", conf.Log.Format, lvl, logOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	events := make(chan event, 256)
	opts := append(conf.LinkOptions(),
		attlink.WithLogger(logger),
		attlink.WithErrorHandler(func(o attlink.Outcome) {
			publish(ctx, events, errorEvent(o))
		}),
	)
	link := attlink.NewLink(attlink.SerialDialer(conf.SerialPort()), opts...)
	link.SubscribeAll(func(f attlink.Frame) {
		publish(ctx, events, frameEvent(f))
	})

	errc := make(chan error, 1)
	go func() {
		err := link.Run(ctx)
		close(events)
		errc <- err
	}()

	if tui {
		p := tea.NewProgram(newModel(events), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			logger.Error().Err(err).Msg("tui failed")
		}
		stop()
	} else if err := newJSONLWriter(sink).Consume(events); err != nil {
		logger.Error().Err(err).Msg("output failed")
		stop()
		<-errc
		return 1
	}

	return linkExit(<-errc, logger, stderr, tui)
}

// linkExit reports how the link ended. In tui mode the logger may be
// discarded, so the error also goes to stderr.
func linkExit(err error, logger zerolog.Logger, stderr io.Writer, tui bool) int {
	if err == nil {
		return 0
	}
	logger.Error().Err(err).Msg("link stopped")
	if tui {
		fmt.Fprintln(stderr, "link stopped:", err)
	}
	return 1
}
