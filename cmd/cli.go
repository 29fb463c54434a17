// SPDX-License-Identifier: MIT
package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"audiosync/internal/config"
	"audiosync/pkg/build"
)

// Commands recognised by main.
const (
	CommandRun     = ""
	CommandList    = "list"
	CommandSelect  = "select"
	CommandReceive = "receive"
)

// flagValues holds the raw flag values. Only flags the user actually set are
// copied over the loaded configuration.
type flagValues struct {
	configPath      string
	deviceID        int
	deviceName      string
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	port            int
	targets         []string
	inputFile       string
	loop            bool
	record          bool
	output          string
	websocket       string
	metrics         string
	verbose         bool
	logLevel        string
	count           int
}

// ParseArgs parses args (without the program name), loads the configuration
// file and applies the flags on top. It returns a nil config when the
// invocation only printed help or version information.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var (
		flags  flagValues
		result *config.Config
	)

	// resolve runs once the command is known.
	resolve := func(cmd *cobra.Command, command string) error {
		cfg, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return err
		}
		cfg.Command = command
		flags.apply(cmd.Flags(), cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		result = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return resolve(cmd, CommandRun)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List available audio devices",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return resolve(cmd, CommandList)
			},
		},
		&cobra.Command{
			Use:   "select",
			Short: "Choose the capture device interactively, then stream",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := resolve(cmd, CommandSelect); err != nil {
					return err
				}
				result.Audio.InputDevice = config.SelectDeviceID
				return nil
			},
		},
	)

	receiveCmd := &cobra.Command{
		Use:   "receive",
		Short: "Listen for audio sync packets and print them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return resolve(cmd, CommandReceive)
		},
	}
	receiveCmd.Flags().IntVarP(&flags.count, "count", "n", 0,
		"Exit after this many valid packets (0 = run until interrupted)")
	rootCmd.AddCommand(receiveCmd)

	pf := rootCmd.PersistentFlags()

	// Configuration file
	pf.StringVar(&flags.configPath, "config", "",
		"Path to a YAML or TOML configuration file (default: ./config.yaml, ./config.toml)")

	// Audio Device Configuration
	pf.IntVarP(&flags.deviceID, "device", "d", config.DefaultDeviceID,
		"Input device ID, -1 for the default (a monitor device if present), -2 to choose interactively")
	pf.StringVar(&flags.deviceName, "device-name", "",
		"Select the first input device whose name contains this text")
	pf.IntVarP(&flags.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Replay
	pf.StringVarP(&flags.inputFile, "input-file", "i", "",
		"Replay a wav, mp3 or ogg file instead of capturing")
	pf.BoolVar(&flags.loop, "loop", false,
		"Restart the input file when it ends")

	// Transport
	pf.IntVarP(&flags.port, "port", "p", config.DefaultUDPPort,
		"UDP port of the audio sync receivers")
	pf.StringSliceVarP(&flags.targets, "target", "t", nil,
		"Additional unicast receiver IPv4 address (repeatable)")
	pf.StringVar(&flags.websocket, "websocket", "",
		"Serve frames as JSON on ws://ADDR/frames, e.g. :8080")
	pf.StringVar(&flags.metrics, "metrics", "",
		"Serve Prometheus metrics on http://ADDR/metrics, e.g. :9090")

	// Recording Configuration
	pf.BoolVarP(&flags.record, "record", "r", false,
		"Record audio from the specified input device")
	pf.StringVarP(&flags.output, "output", "o", "",
		"Output file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	// Debug Configuration
	pf.BoolVarP(&flags.verbose, "verbose", "v", config.DefaultVerbosity,
		"Show verbose output")
	pf.StringVar(&flags.logLevel, "log-level", "",
		"Log level: debug, info, warn, error")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return result, nil
}

// apply copies every flag the user set onto cfg.
func (f *flagValues) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := fs.Changed

	if set("device") {
		cfg.Audio.InputDevice = f.deviceID
	}
	if set("device-name") {
		cfg.Audio.DeviceName = f.deviceName
	}
	if set("channels") {
		cfg.Audio.InputChannels = f.channels
	}
	if set("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if set("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.framesPerBuffer
	}
	if set("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if set("input-file") {
		cfg.Source.InputFile = f.inputFile
	}
	if set("loop") {
		cfg.Source.Loop = f.loop
	}
	if set("port") {
		cfg.Transport.UDPPort = f.port
	}
	if set("target") {
		cfg.Transport.Targets = f.targets
	}
	if set("websocket") {
		cfg.Transport.WebSocketAddress = f.websocket
	}
	if set("metrics") {
		cfg.Metrics.ListenAddress = f.metrics
	}
	if set("record") {
		cfg.Recording.Enabled = f.record
	}
	if set("output") {
		cfg.Recording.OutputFile = f.output
	}
	if set("verbose") {
		cfg.Debug = f.verbose
	}
	if set("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if set("count") {
		cfg.Receive.Count = f.count
	}

	// Defaults
	if cfg.Recording.Enabled && cfg.Recording.OutputFile == "" {
		cfg.Recording.OutputFile = "recording-" +
			time.Now().UTC().Format("02-01-2006-150405") +
			"." + cfg.Recording.Format
	}
}
