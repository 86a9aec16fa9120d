// Command poectl runs one-shot PoE port operations: show the chip, read a
// port, switch a port or list every port.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/sweeney/poe-sio/internal/config"
	"github.com/sweeney/poe-sio/internal/dio"
	"github.com/sweeney/poe-sio/internal/poe"
)

const usage = `usage: poectl [flags] <command>

commands:
  chip                 show the controller and chip identity
  get <port>           print a port's state
  set <port> on|off    switch a port
  list                 print every configured port
`

var errUsage = errors.New("invalid usage")

func main() {
	fs := flag.NewFlagSet("poectl", flag.ExitOnError)
	configPath := fs.String("config", envOr("POED_CONFIG", "/etc/poed/ports.json"), "Port map file")
	simulate := fs.Bool("simulate", false, "Use an in-memory chip instead of hardware")
	logLevel := fs.String("log-level", "warn", "Log level")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	log := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("invalid log level: %v", err)
	}
	log.SetLevel(level)

	err = run(fs.Args(), *configPath, *simulate, os.Stdout, log)
	if errors.Is(err, errUsage) {
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func run(args []string, configPath string, simulate bool, out io.Writer, log *logrus.Logger) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if simulate {
		cfg.Controller = dio.KindSim
	}

	ctrl, err := dio.Open(dio.Options{Kind: cfg.Controller, Chip: cfg.Chip})
	if err != nil {
		return fmt.Errorf("open %s controller: %w", cfg.Controller, err)
	}
	return execute(args, cfg, ctrl, out, log)
}

// execute runs the command on ctrl and closes it. Only set initialises pins;
// get and list attach without touching pin configuration.
func execute(args []string, cfg *config.Config, ctrl dio.Controller, out io.Writer, log *logrus.Logger) error {
	if args[0] == "chip" {
		defer ctrl.Close()
		return printChip(out, cfg.Controller, ctrl)
	}

	newManager := poe.Attach
	if args[0] == "set" {
		newManager = poe.New
	}
	mgr, err := newManager(ctrl, cfg.Ports, log)
	if err != nil {
		ctrl.Close()
		return err
	}
	defer mgr.Close()

	return dispatch(args, mgr, out)
}

func dispatch(args []string, mgr *poe.Manager, out io.Writer) error {
	switch args[0] {
	case "get":
		if len(args) != 2 {
			return errUsage
		}
		port, err := parsePort(args[1])
		if err != nil {
			return err
		}
		state, err := mgr.PortState(port)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "port %d: %s\n", port, state)
		return nil

	case "set":
		if len(args) != 3 {
			return errUsage
		}
		port, err := parsePort(args[1])
		if err != nil {
			return err
		}
		state, err := poe.ParseState(args[2])
		if err != nil {
			return err
		}
		if err := mgr.SetPortState(port, state); err != nil {
			return err
		}
		fmt.Fprintf(out, "port %d: %s\n", port, state)
		return nil

	case "list":
		if len(args) != 1 {
			return errUsage
		}
		var failed error
		for _, port := range mgr.Ports() {
			state, err := mgr.PortState(port)
			if err != nil {
				fmt.Fprintf(out, "port %d: %s (%v)\n", port, state, err)
				failed = errors.Join(failed, err)
				continue
			}
			fmt.Fprintf(out, "port %d: %s\n", port, state)
		}
		return failed
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func printChip(out io.Writer, kind string, ctrl dio.Controller) error {
	if kind == "" {
		kind = dio.KindIte8783
	}
	fmt.Fprintf(out, "controller: %s\n", kind)

	id, ok := ctrl.(dio.Identifier)
	if !ok {
		return nil
	}
	fmt.Fprintf(out, "chip id:    0x%04X\n", id.ChipID())
	if id.BaseAddress() == 0 {
		fmt.Fprintln(out, "gpio base:  none (unsupported chip)")
		return nil
	}
	fmt.Fprintf(out, "gpio base:  0x%04X\n", id.BaseAddress())
	return nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 0 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
