package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap/zapcore"

	"github.com/gwillem/roarm-follower/pkg/logger"
	"github.com/gwillem/roarm-follower/pkg/robot"
)

type Options struct {
	Config  string `short:"c" long:"config" default:"roarm.yaml" description:"Configuration file"`
	Verbose bool   `short:"v" long:"verbose" description:"Enable debug logging"`

	Setup    SetupCommand    `command:"setup" description:"Find the follower arm, calibrate it and set its identity"`
	Follower FollowerCommand `command:"follower" alias:"run" description:"Run the follower: report joint positions to the host"`
	SetID    SetIDCommand    `command:"set-id" description:"Set the identity of a running follower"`
	SetMode  SetModeCommand  `command:"set-mode" description:"Switch the operating mode of a running follower"`
	Record   RecordCommand   `command:"record" description:"Record positions of all connected followers"`
	Monitor  MonitorCommand  `command:"monitor" description:"Chart live joint positions of one follower"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "roarm - follower arm telemetry and identity tools"
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if opts.Config == "" {
			opts.Config = robot.DefaultConfigFile
		}
		if opts.Verbose {
			logger.SetLevel(zapcore.DebugLevel)
		}
		if cmd == nil {
			return nil
		}
		return cmd.Execute(args)
	}

	_, err := parser.Parse()
	logger.Sync()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// loadConfig reads the configuration file. When the file does not exist and
// allowDefault is set, defaults are returned instead.
func loadConfig(allowDefault bool) (*robot.Config, error) {
	cfg, err := robot.LoadConfigFrom(opts.Config)
	switch {
	case err == nil:
	case allowDefault && errors.Is(err, os.ErrNotExist):
		cfg = robot.DefaultConfig()
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("no configuration at %s, run 'roarm setup' first", opts.Config)
	default:
		return nil, err
	}

	if !opts.Verbose && cfg.LogLevel != "" {
		level, ok := logger.ParseLogLevel(cfg.LogLevel)
		if !ok {
			return nil, fmt.Errorf("unknown log_level %q", cfg.LogLevel)
		}
		logger.SetLevel(level)
	}
	return cfg, nil
}
