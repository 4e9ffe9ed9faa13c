// Command stund answers STUN Binding requests.
//
//	stund [-4|-6] [port]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/aethiopicuschan/stund/config"
	"github.com/aethiopicuschan/stund/stun"
	"github.com/aethiopicuschan/stund/stund"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func newFlagSet(out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("stund", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.BoolP("ipv4", "4", false, "listen on IPv4 (default)")
	fs.BoolP("ipv6", "6", false, "listen on IPv6")
	fs.StringP("config", "c", "", "configuration file")
	fs.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	fs.String("log-format", config.DefaultLogFormat, "log format: text or json")
	fs.String("software", config.DefaultSoftware, "SOFTWARE attribute value, empty to omit")
	fs.Bool("fingerprint", false, "add FINGERPRINT to RFC 5389 responses")
	fs.String("compat", config.DefaultCompatibility, "compatibility: rfc3489 or rfc5389")
	fs.Int("max-message-size", stun.MaxMessageSize, "largest accepted datagram in bytes")
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: stund [-4|-6] [port]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	return fs
}

// run starts the responder and blocks until SIGINT or SIGTERM. The exit
// status reflects startup only.
func run(args []string, stderr io.Writer) int {
	fs := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		fmt.Fprintln(stderr, "stund:", err)
		return 1
	}

	log := cfg.Logging.NewLogger()
	log.SetOutput(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := stund.Listen(ctx, cfg.Server.StundConfig(log))
	if err != nil {
		log.WithField("error", err).Error("Startup failed")
		return 1
	}

	if err := srv.ServeContext(ctx); err != nil {
		log.WithField("error", err).Error("Server stopped")
	}
	log.Info("Shutting down")
	return 0
}

// loadConfig merges the positional port and -4/-6 over the loaded
// configuration.
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("unexpected arguments %q", fs.Args()[1:])
	}
	path, _ := fs.GetString("config")

	cfg, err := config.Load(path, fs)
	if err != nil {
		return nil, err
	}

	v4, _ := fs.GetBool("ipv4")
	v6, _ := fs.GetBool("ipv6")
	switch {
	case v4 && v6:
		return nil, errors.New("-4 and -6 are mutually exclusive")
	case v6:
		cfg.Server.Family = "ipv6"
	case v4:
		cfg.Server.Family = "ipv4"
	}

	if fs.NArg() == 1 {
		port, err := strconv.Atoi(fs.Arg(0))
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", fs.Arg(0))
		}
		cfg.Server.Port = port
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
