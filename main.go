package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/faiface/beep"

	"go-metronome/audio"
	"go-metronome/config"
	"go-metronome/debug"
	"go-metronome/midi"
	"go-metronome/pattern"
	"go-metronome/sequencer"
	"go-metronome/theme"
	"go-metronome/tui"
)

func main() {
	var (
		configPath  = flag.String("config", "", "config file (.json, .yaml); default ~/.config/go-metronome/config.json")
		tempoFlag   = flag.Int("tempo", 0, "initial tempo in BPM")
		patternFlag = flag.String("pattern", "", `initial pattern, e.g. "Xooo Xooo" (X accent, o normal, . muted)`)
		debugFlag   = flag.Bool("debug", false, "write debug log to ~/.config/go-metronome/debug.log")
		headless    = flag.Bool("headless", false, "run without an audio device")
		writeConfig = flag.Bool("write-config", false, "write the effective config to the config path and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *tempoFlag > 0 {
		cfg.InitialTempo = *tempoFlag
	}
	if *patternFlag != "" {
		cfg.InitialPattern = *patternFlag
	}
	if *debugFlag {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *writeConfig {
		if err := cfg.Save(""); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("wrote", cfg.Path())
		return
	}

	if cfg.Debug {
		if err := debug.Enable(); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
		defer debug.Disable()
	}

	if err := run(cfg, *headless); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, headless bool) error {
	var startupErrs []error

	th, err := theme.Load(cfg.Palette)
	if err != nil {
		startupErrs = append(startupErrs, err)
	}

	// Audio: sound bank -> mixer -> device (or headless clock)
	rate := beep.SampleRate(cfg.SampleRate)
	bank := audio.NewBank(rate)
	mixer := audio.NewMixer(bank)

	backend, err := audio.Open(rate, headless)
	if err != nil {
		startupErrs = append(startupErrs, err)
	}
	if err := backend.Start(mixer); err != nil {
		return fmt.Errorf("start audio: %w", err)
	}
	defer backend.Close()

	// Optional MIDI click output mirrors every audible tick
	var sink audio.Sink = mixer
	midiOut := ""
	if cfg.MIDI.OutputPort != "" {
		out, err := midi.OpenClickOutput(cfg.MIDI.OutputPort, mixer, cfg.Click())
		if err != nil {
			startupErrs = append(startupErrs, err)
		} else {
			sink = audio.Tee(mixer, out)
			midiOut = cfg.MIDI.OutputPort
		}
	}
	defer midi.CloseDriver()

	p, err := cfg.Pattern()
	if err != nil {
		return err
	}
	store, err := pattern.NewStore(cfg.Limits(), p)
	if err != nil {
		return err
	}
	manager := sequencer.NewManager(store, mixer, sink, cfg.Options())
	defer manager.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := sequencer.NewBroker()
	worker := sequencer.NewWorker(manager, broker)
	go worker.Run(ctx)

	for _, err := range startupErrs {
		worker.ReportError(err)
	}

	// Sounds load in the background; ticks before a sound is ready are silent
	soundCount := len(cfg.Sounds)
	if soundCount == 0 {
		bank.Synthesize(audio.DefaultClicks)
		soundCount = len(audio.DefaultClicks)
	} else {
		bank.LoadAsync(cfg.Sounds, func(err error) {
			if err != nil {
				worker.ReportError(fmt.Errorf("load sounds: %w", err))
			}
		})
	}

	// Tap input hot-plug
	deviceMgr := midi.NewDeviceManager(cfg.MIDI.TapInputPort)
	go deviceMgr.Run(ctx)

	status := tui.Status{
		NoAudio:    backend.Headless(),
		Bank:       bank,
		SoundCount: soundCount,
		MIDIOut:    midiOut,
	}
	m := tui.NewModel(manager, worker, deviceMgr, th, status)
	prog := tea.NewProgram(m, tea.WithAltScreen())

	_, err = prog.Run()
	return err
}
