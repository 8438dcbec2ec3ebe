package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/charmbracelet/log"
)

var version = "0.1.0"

func configDir() string {
	if d := os.Getenv("XDG_CONFIG_HOME"); d != "" {
		return filepath.Join(d, "keysound")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "keysound")
}

// chooseMode picks the sound source mode from the flags; exactly one
// of file, dir and mapping must be set.
func chooseMode(file, dir, mapping string) (Mode, string, error) {
	var (
		mode   Mode
		source string
		count  int
	)
	if file != "" {
		mode, source = ModeFile, file
		count++
	}
	if dir != "" {
		mode, source = ModeDirectory, dir
		count++
	}
	if mapping != "" {
		mode, source = ModeMapping, mapping
		count++
	}
	if count > 1 {
		return 0, "", fmt.Errorf("specify only one of --file, --dir or --mapping")
	}
	if count == 0 {
		return 0, "", fmt.Errorf("specify one of --file, --dir or --mapping")
	}
	return mode, source, nil
}

// runOptions holds the flags of the default run command.
type runOptions struct {
	file     string
	dir      string
	mapping  string
	volume   float64
	listKeys bool
	logLevel string
	noWatch  bool
}

func (o *runOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.file, "file", "", "single WAV file used for every key")
	fs.StringVar(&o.file, "f", "", "shorthand for -file")
	fs.StringVar(&o.dir, "dir", "", "directory of per-key WAV files")
	fs.StringVar(&o.dir, "d", "", "shorthand for -dir")
	fs.StringVar(&o.mapping, "mapping", "", "YAML mapping of key names to WAV files")
	fs.StringVar(&o.mapping, "m", "", "shorthand for -mapping")
	fs.Float64Var(&o.volume, "volume", 1.0, "playback volume multiplier")
	fs.BoolVar(&o.listKeys, "list-keys", false, "list the keys with configured audio and exit")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	fs.BoolVar(&o.noWatch, "no-watch", false, "disable sound source hot reload")
}

func run(args []string) error {
	fs := flag.NewFlagSet("keysound", flag.ExitOnError)
	var opts runOptions
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	lvl, err := log.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("unknown log level %q", opts.logLevel)
	}
	log.SetLevel(lvl)

	mode, source, err := chooseMode(opts.file, opts.dir, opts.mapping)
	if err != nil {
		return err
	}
	cfg := &Config{Mode: mode, Source: source, Volume: opts.volume}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lib, err := LoadLibrary(cfg.Mode, cfg.Source)
	if err != nil {
		return fmt.Errorf("load sound library: %w", err)
	}

	if opts.listKeys {
		for _, key := range lib.Keys() {
			fmt.Println(key)
		}
		return nil
	}

	var libp atomic.Pointer[Library]
	libp.Store(lib)

	mixer := NewMixer(lib.SampleRate(), lib.Channels())
	player, err := NewPlayer(mixer)
	if err != nil {
		return err
	}
	player.Start()
	defer player.Stop()

	trigger := func(name string) bool {
		l := libp.Load()
		clip := l.ClipFor(name)
		if clip == nil {
			if name != "default" {
				return false
			}
			clip = l.DefaultClip()
		}
		if clip == nil {
			return false
		}
		mixer.Queue(clip, cfg.Volume)
		return true
	}

	engine := NewEngine(EngineConfig{
		Spawn: func(id DeviceID) (Task, error) {
			return StartMonitor(id, trigger)
		},
	})
	if err := engine.Start(); err != nil {
		return fmt.Errorf("start hotplug engine: %w", err)
	}

	if n := engine.Registry().Len(); n == 0 {
		fmt.Println("keysound: no keyboards found, waiting for hotplug")
		fmt.Println("If keyboards are attached, make sure you are in the 'input' group:")
		fmt.Println("  sudo usermod -aG input $USER")
	} else {
		fmt.Printf("keysound: monitoring %d keyboard(s), %d clip(s) loaded\n",
			n, len(lib.Keys()))
	}

	if !opts.noWatch {
		stopWatch, err := watchLibrary(cfg, &libp)
		if err != nil {
			log.Warn("sound source watch disabled", "err", err)
		} else {
			defer stopWatch()
		}
	}

	// Clean shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nkeysound: shutting down")
	engine.Stop()
	return nil
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "init":
			dir := configDir()
			fmt.Printf("keysound: initializing config in %s\n", dir)
			if err := initConfig(dir); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("keysound: config initialized")
			return
		case "doctor":
			os.Exit(runDoctor())
		case "version":
			fmt.Printf("keysound %s\n", version)
			return
		}
	}

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "keysound: %v\n", err)
		os.Exit(1)
	}
}
