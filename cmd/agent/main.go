package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/jiangweiming/opendial/pkg/audio"
	"github.com/jiangweiming/opendial/pkg/config"
	"github.com/jiangweiming/opendial/pkg/devices"
	"github.com/jiangweiming/opendial/pkg/dialogue"
	"github.com/jiangweiming/opendial/pkg/speech"
	"github.com/jiangweiming/opendial/pkg/synth"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, using system environment variables")
	}

	configPath := flag.String("config", "", "path to the YAML settings file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("invalid log level %q", cfg.LogLevel)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	engine, err := devices.NewEngine()
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	format := cfg.Format()
	capture := devices.NewCapture(engine, format)
	playback := devices.NewPlayback(engine)

	state := dialogue.New()
	module := speech.NewWithLogger(capture, playback, state, cfg.SpeechConfig(), &speech.SlogLogger{L: logger})
	module.SetSaver(audio.FileSaver{})
	state.AddListener(module.Trigger)

	var speaker *synth.Remote
	if cfg.Synth.Host != "" {
		apiKey := os.Getenv("SYNTH_API_KEY")
		if apiKey == "" {
			log.Fatal("Error: SYNTH_API_KEY must be set when synth.host is configured.")
		}
		speaker = synth.NewRemote(cfg.Synth.Host, apiKey, format, state, cfg.SpeechConfig().SystemSpeechVar)
		defer speaker.Close()
	}

	if err := module.Start(); err != nil {
		log.Fatal(err)
	}
	module.ActivateVAD(cfg.VAD.Enabled)

	fmt.Printf("Audio agent started (%dHz, %d-bit, %d channel(s)). VAD: %v\n",
		format.SampleRate, format.BitDepth, format.Channels, cfg.VAD.Enabled)
	fmt.Println("Commands: /pause /resume /vad on|off /record /stop; anything else is spoken.")
	fmt.Println("Press Ctrl+C to exit")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	// Visual feedback for microphone levels
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}

			level := module.Volume()
			meter := ""
			dots := int(level / 25)
			if dots > 40 {
				dots = 40
			}
			for i := 0; i < dots; i++ {
				meter += "|"
			}
			fmt.Printf("\r[MIC ENERGY: %-40s] RMS: %.1f", meter, level)
		}
	})

	g.Go(func() error {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "":
			case line == "/pause":
				module.Pause(true)
			case line == "/resume":
				module.Pause(false)
			case line == "/vad on":
				module.ActivateVAD(true)
			case line == "/vad off":
				module.ActivateVAD(false)
			case line == "/record":
				if err := module.StartRecording(0); err != nil {
					fmt.Printf("\r\033[K%v\n", err)
				}
			case line == "/stop":
				module.StopRecording()
			default:
				if speaker == nil {
					fmt.Printf("\r\033[Kno synthesizer configured; set synth.host to speak\n")
					continue
				}
				if err := speaker.Speak(ctx, line); err != nil {
					fmt.Printf("\r\033[Ksynthesis failed: %v\n", err)
				}
			}
		}
		return scanner.Err()
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	fmt.Printf("\nShutting down...\n")
	cancel()
	module.Shutdown()
}
