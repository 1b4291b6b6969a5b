package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"ncat/config"
	"ncat/logger"
	"ncat/relay"
	"ncat/session"
	"ncat/transport"
)

const (
	exitOK    = 0
	exitSetup = 1
	exitUsage = 2
)

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := flag.NewFlagSet("ncat", flag.ContinueOnError)
	configPath := global.String("f", "", "config file (.toml, .yaml)")
	level := global.String("v", "", "log level: debug, info, warn, error")
	global.Usage = func() { showHelp(global) }
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		cfg, err = config.ParseConfig(*configPath)
		if err != nil {
			logger.Log.Errorf("failed to parse config file: %v", err)
			return exitSetup
		}
	} else {
		cfg.SetDefaults()
	}
	if *level != "" {
		cfg.Log.Level = *level
	}

	// 配置文件已给出模式时，位置参数可以直接是 host port
	rest := global.Args()
	mode := cfg.Session.Mode
	if len(rest) > 0 && (mode == "" || slices.Contains(session.Modes, rest[0])) {
		mode, rest = rest[0], rest[1:]
	}
	if mode == "" {
		showHelp(global)
		return exitUsage
	}

	if err := applyModeFlags(mode, rest, cfg); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	if err := logger.Setup(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log settings: %v\n", err)
		return exitUsage
	}

	params, err := paramsFromConfig(cfg)
	if err != nil {
		logger.Log.Error(err)
		return exitSetup
	}
	m, err := session.New(mode, params)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	if interactive(mode, int(os.Stdin.Fd())) {
		logger.Log.Info("stdin is a terminal, press Ctrl+D to end the session")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.WithField("mode", mode).Error(err)
		return exitSetup
	}
	return exitOK
}

// applyModeFlags parses "[flags] host port" for a mode on top of cfg.
func applyModeFlags(mode string, args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet(mode, flag.ContinueOnError)
	ca := fs.String("ca", cfg.TLS.CAFile, "PEM CA bundle added to the trusted roots")
	cert := fs.String("cert", cfg.TLS.CertFile, "PEM certificate chain (tls-listen)")
	key := fs.String("key", cfg.TLS.KeyFile, "PEM RSA private key (tls-listen)")
	proxyURL := fs.String("proxy", cfg.Relay.Proxy, "socks5://host:port to dial through")
	rate := fs.Int64("rate", cfg.Relay.RateLimit, "bytes per second per direction, 0 = unlimited")
	var allow stringList
	fs.Var(&allow, "allow", "source CIDR accepted by listen modes (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.TLS.CAFile, cfg.TLS.CertFile, cfg.TLS.KeyFile = *ca, *cert, *key
	cfg.Relay.Proxy, cfg.Relay.RateLimit = *proxyURL, *rate
	if len(allow) > 0 {
		cfg.Access.Allow = allow
	}

	switch rest := fs.Args(); len(rest) {
	case 0:
		if cfg.Session.Port == 0 {
			return fmt.Errorf("%s: host and port are required", mode)
		}
	case 2:
		port, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", mode, rest[1])
		}
		cfg.Session.Host, cfg.Session.Port = rest[0], port
	default:
		return fmt.Errorf("%s: expected host and port, got %q", mode, rest)
	}
	return nil
}

// interactive reports whether a relay mode reads its stdin from a terminal.
func interactive(mode string, fd int) bool {
	return session.Relays(mode) && term.IsTerminal(fd)
}

func paramsFromConfig(cfg *config.Config) (session.Params, error) {
	endpoint, err := transport.NewEndpoint(cfg.Session.Host, cfg.Session.Port)
	if err != nil {
		return session.Params{}, err
	}
	allow, err := transport.NewAccessList(cfg.Access.Allow)
	if err != nil {
		return session.Params{}, err
	}
	return session.Params{
		Endpoint:  endpoint,
		Stdio:     relay.OSStdio(),
		RateLimit: cfg.Relay.RateLimit,
		Proxy:     cfg.Relay.Proxy,
		Allow:     allow,
		CAFile:    cfg.TLS.CAFile,
		CertFile:  cfg.TLS.CertFile,
		KeyFile:   cfg.TLS.KeyFile,
	}, nil
}

// showHelp 显示帮助信息
func showHelp(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "ncat - relay stdin/stdout over TCP or TLS")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "usage:")
	fmt.Fprintf(out, "  %s [-f config] [-v level] <mode> [flags] host port\n", os.Args[0])
	fmt.Fprintln(out)
	fmt.Fprintln(out, "modes:")
	fmt.Fprintln(out, "  connect         send \"Hello, TCP!\" and exit")
	fmt.Fprintln(out, "  serve           accept forever, print the first chunk of each client")
	fmt.Fprintln(out, "  stream-connect  relay with a plaintext server")
	fmt.Fprintln(out, "  stream-listen   relay with the first plaintext client")
	fmt.Fprintln(out, "  tls-connect     relay with a TLS server [-ca file]")
	fmt.Fprintln(out, "  tls-listen      relay with the first TLS client -cert file -key file [-ca file]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "mode flags: -ca -cert -key -proxy -rate -allow")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "global flags:")
	fs.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "examples:")
	fmt.Fprintf(out, "  %s tls-listen -cert cert.pem -key key.pem 0.0.0.0 8443\n", os.Args[0])
	fmt.Fprintf(out, "  %s tls-connect -ca ca.pem localhost 8443\n", os.Args[0])
	fmt.Fprintf(out, "  %s -f client.toml\n", os.Args[0])
}
