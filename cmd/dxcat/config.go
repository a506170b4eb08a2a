package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creachadair/duplex/packet"
	"github.com/pelletier/go-toml/v2"
)

// Config is the configuration for dxcat. It is read from a TOML file, and any
// flags set on the command line override the values from the file.
type Config struct {
	Address     string `toml:"address"`      // where to dial or listen
	Listen      bool   `toml:"listen"`       // accept connections rather than dialing
	Framing     string `toml:"framing"`      // a packet.Named framing
	Compress    bool   `toml:"compress"`     // compress each frame with S2
	MaxSize     int    `toml:"max_size"`     // maximum decompressed payload size, with Compress
	DialTimeout string `toml:"dial_timeout"` // e.g. "5s"; "0" for none
	Wait        string `toml:"wait"`         // how long to wait for replies after input ends
	Echo        bool   `toml:"echo"`         // in listen mode, echo packages back
	MetricsAddr string `toml:"metrics_addr"` // if set, serve metrics here
	LogLevel    string `toml:"log_level"`
}

func defaultConfig() Config {
	return Config{Framing: "prefix32", DialTimeout: "5s", Wait: "0s", LogLevel: "info"}
}

// loadConfig reads a TOML configuration file into cfg. Fields not mentioned
// in the file keep their existing values.
func loadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// bindFlags registers flags on fs for the fields of cfg. The values of cfg
// are the defaults.
func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.BoolVar(&cfg.Listen, "l", cfg.Listen, "Listen for connections rather than dialing")
	fs.StringVar(&cfg.Framing, "f", cfg.Framing, "Channel framing ("+strings.Join(packet.Names(), ", ")+", header:<type>)")
	fs.BoolVar(&cfg.Compress, "z", cfg.Compress, "Compress each frame with S2")
	fs.IntVar(&cfg.MaxSize, "max", cfg.MaxSize, "Maximum decompressed payload size with -z (0 for the default)")
	fs.StringVar(&cfg.DialTimeout, "dial", cfg.DialTimeout, "Timeout on dialing the server (0 for no timeout)")
	fs.StringVar(&cfg.Wait, "wait", cfg.Wait, "After input ends, wait this long for replies")
	fs.BoolVar(&cfg.Echo, "echo", cfg.Echo, "In listen mode, send each package back to its sender")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Serve Prometheus and expvar metrics at this address")
	fs.StringVar(&cfg.LogLevel, "log", cfg.LogLevel, "Log level (debug, info, warn, error)")
}

// parseArgs parses the command line into a Config. If a -config flag names a
// file, its settings are applied first, then any flags set explicitly.
func parseArgs(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	var path string
	fs.StringVar(&path, "config", "", "Read settings from this TOML file")
	flags := cfg
	bindFlags(fs, &flags)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if path != "" {
		if err := loadConfig(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	// Flags set on the command line win over the file.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	override(set, "l", &cfg.Listen, flags.Listen)
	override(set, "f", &cfg.Framing, flags.Framing)
	override(set, "z", &cfg.Compress, flags.Compress)
	override(set, "max", &cfg.MaxSize, flags.MaxSize)
	override(set, "dial", &cfg.DialTimeout, flags.DialTimeout)
	override(set, "wait", &cfg.Wait, flags.Wait)
	override(set, "echo", &cfg.Echo, flags.Echo)
	override(set, "metrics", &cfg.MetricsAddr, flags.MetricsAddr)
	override(set, "log", &cfg.LogLevel, flags.LogLevel)

	if fs.NArg() > 0 {
		cfg.Address = fs.Arg(0)
	}
	if cfg.Address == "" {
		return Config{}, errors.New("no address given")
	}
	return cfg, nil
}

func override[T any](set map[string]bool, name string, dst *T, v T) {
	if set[name] {
		*dst = v
	}
}

// packetizer returns the packetizer described by cfg.
func (c Config) packetizer() (packet.Packetizer[[]byte], error) {
	pz := packet.Named(c.Framing)
	if pz == nil {
		return nil, fmt.Errorf("unknown framing %q", c.Framing)
	}
	if c.Compress {
		pz = packet.Compress(pz, c.MaxSize)
	}
	return pz, nil
}

func (c Config) dialTimeout() (time.Duration, error) {
	return parseDuration("dial_timeout", c.DialTimeout)
}

func (c Config) wait() (time.Duration, error) { return parseDuration("wait", c.Wait) }

func parseDuration(name, s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}
