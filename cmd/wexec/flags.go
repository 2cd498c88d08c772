package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andrej220/wexec/internal/lg"
	"github.com/andrej220/wexec/pkg/config"
	"github.com/spf13/pflag"
)

const usageHeader = `wexec runs a command on Windows machines over WinRM.

Usage:
  wexec [flags] QUERY COMMAND

QUERY is an inventory query such as "roles:web platform:windows", or a
whitespace separated host list with --manual-list.

Examples:
  wexec -m "web01 web02" -x Administrator -P secret --auth-protocol basic "ipconfig /all"
  wexec --inventory nodes.yaml -a ipaddress "roles:web" "hostname"
  wexec --config ~/.wexec.toml --returns 0,3010 "name:db*" "wuauclt /detectnow"

Flags:
`

var errUsage = errors.New("usage")

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }
func (e *usageError) Unwrap() error { return errUsage }

// cliOptions is the parsed command line.
type cliOptions struct {
	Overlay config.Overlay
	Log     *lg.Config

	ConfigPath string
	ConfigDB   config.MongoConfig

	Query   string
	Command string
}

// parseArgs parses args. Only flags the user set end up in the overlay so
// persisted settings are not clobbered by flag defaults.
func parseArgs(args []string, out io.Writer) (*cliOptions, error) {
	fs := pflag.NewFlagSet("wexec", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprint(out, usageHeader)
		fs.PrintDefaults()
	}

	var (
		manual, suppress                    bool
		attribute, user, password           string
		authProtocol, transport, verifyMode string
		caTrustFile, returns                string
		port, timeout, concurrency, retries int
		inventoryPath, reportFile           string
		kafkaBrokers                        []string
		kafkaTopic                          string

		opts = &cliOptions{}
	)
	fs.BoolVarP(&manual, "manual-list", "m", false, "QUERY is a space separated list of hosts")
	fs.StringVarP(&attribute, "attribute", "a", config.DefaultAttribute, "dotted attribute path holding the address to connect to")
	fs.StringVarP(&user, "winrm-user", "x", "", "user to authenticate as")
	fs.StringVarP(&password, "winrm-password", "P", "", "password of the user")
	fs.StringVar(&authProtocol, "auth-protocol", config.DefaultAuthProtocol, "basic, negotiate or kerberos")
	fs.StringVarP(&transport, "transport", "t", config.DefaultTransport, "plaintext or tls")
	fs.IntVarP(&port, "port", "p", 0, "WinRM port (default 5985 plaintext, 5986 tls)")
	fs.IntVar(&timeout, "session-timeout", 30, "per-session operation timeout in minutes")
	fs.StringVar(&verifyMode, "ssl-verify-mode", config.DefaultTLSVerifyMode, "verify_peer or verify_none")
	fs.StringVarP(&caTrustFile, "ca-trust-file", "f", "", "PEM file with the CA certificates to trust")
	fs.StringVar(&returns, "returns", "0", "comma separated exit codes that count as success")
	fs.BoolVar(&suppress, "suppress-auth-failure", false, "do not fail on HTTP 401, report it as a result")
	fs.IntVarP(&concurrency, "concurrency", "C", 0, "maximum parallel sessions (0: one per host)")
	fs.IntVar(&retries, "connect-retries", 0, "retries for sessions that could not connect")
	fs.StringVar(&inventoryPath, "inventory", "", "YAML or JSON inventory file to search")
	fs.StringVar(&reportFile, "report-file", "", "write per-host outcomes to this JSON file")
	fs.StringSliceVar(&kafkaBrokers, "report-kafka-brokers", nil, "publish per-host outcomes to these Kafka brokers")
	fs.StringVar(&kafkaTopic, "report-kafka-topic", "wexec-outcomes", "Kafka topic for per-host outcomes")
	fs.StringVar(&opts.ConfigPath, "config", "", "settings file (.yaml or .toml)")
	fs.StringVar(&opts.ConfigDB.URI, "config-mongo-uri", "", "load settings from MongoDB instead of a file")
	fs.StringVar(&opts.ConfigDB.DBName, "config-mongo-db", "wexec", "settings database")
	fs.StringVar(&opts.ConfigDB.CollName, "config-mongo-collection", "settings", "settings collection")
	fs.StringVar(&opts.ConfigDB.ID, "config-profile", "default", "settings document id")
	opts.Log = lg.BindFlags(fs, "wexec")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	rest := fs.Args()
	if len(rest) != 2 {
		fs.Usage()
		return nil, &usageError{msg: fmt.Sprintf("expected QUERY and COMMAND, got %d argument(s)", len(rest))}
	}
	opts.Query, opts.Command = rest[0], rest[1]
	if strings.TrimSpace(opts.Command) == "" {
		return nil, &usageError{msg: "COMMAND is empty"}
	}
	if opts.ConfigPath != "" && opts.ConfigDB.URI != "" {
		return nil, &usageError{msg: "--config and --config-mongo-uri are mutually exclusive"}
	}

	o := &opts.Overlay
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("manual-list", func() { o.Manual = &manual })
	set("attribute", func() { o.Attribute = &attribute })
	set("winrm-user", func() { o.User = &user })
	set("winrm-password", func() { o.Password = &password })
	set("auth-protocol", func() { o.AuthProtocol = &authProtocol })
	set("transport", func() { o.Transport = &transport })
	set("port", func() { o.Port = &port })
	set("session-timeout", func() { o.OperationTimeoutMinutes = &timeout })
	set("ssl-verify-mode", func() { o.TLSVerifyMode = &verifyMode })
	set("ca-trust-file", func() { o.TrustAnchorPath = &caTrustFile })
	set("suppress-auth-failure", func() { o.SuppressAuthFailure = &suppress })
	set("concurrency", func() { o.Concurrency = &concurrency })
	set("connect-retries", func() { o.ConnectRetries = &retries })
	set("inventory", func() { o.Inventory = &config.InventoryConfig{Kind: "file", Path: inventoryPath} })

	if fs.Changed("returns") {
		codes, err := config.ParseReturnCodes(returns)
		if err != nil {
			return nil, &usageError{msg: err.Error()}
		}
		o.AcceptedReturnCodes = codes
	}
	if fs.Changed("report-file") || fs.Changed("report-kafka-brokers") {
		r := &config.ReportConfig{File: reportFile}
		if len(kafkaBrokers) > 0 {
			r.Kafka = config.KafkaConfig{Brokers: kafkaBrokers, Topic: kafkaTopic}
		}
		o.Report = r
	}
	return opts, nil
}

// settings assembles defaults, persisted settings and the command line.
func (c *cliOptions) settings() (config.Settings, error) {
	overlays := make([]config.Overlay, 0, 2)

	var (
		storeType config.StoreType
		storeCfg  any
	)
	switch {
	case c.ConfigPath != "":
		storeType, storeCfg = config.FileStore, &config.FileConfig{Path: c.ConfigPath}
	case c.ConfigDB.URI != "":
		storeType, storeCfg = config.MongoStore, &c.ConfigDB
	}
	if storeCfg != nil {
		store, err := config.NewStore(storeType, storeCfg)
		if err != nil {
			return config.Settings{}, err
		}
		persisted, err := config.LoadOverlay(store)
		if closer, ok := store.(io.Closer); ok {
			_ = closer.Close()
		}
		if err != nil {
			return config.Settings{}, err
		}
		overlays = append(overlays, persisted)
	}
	overlays = append(overlays, c.Overlay)
	return config.Assemble(config.Defaults(), overlays...), nil
}
