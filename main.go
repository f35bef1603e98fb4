package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"localwhisper/appstate"
	"localwhisper/audio"
	"localwhisper/backend"
	"localwhisper/beep"
	"localwhisper/clipboard"
	"localwhisper/config"
	"localwhisper/doctor"
	"localwhisper/download"
	"localwhisper/encoder"
	"localwhisper/events"
	"localwhisper/history"
	"localwhisper/ipc"
	"localwhisper/log"
	"localwhisper/shutdown"
	"localwhisper/transcriber"
	"localwhisper/tray"
	"localwhisper/update"
)

var version = "dev"

func run() {
	if len(os.Args) > 1 && os.Args[1] == "update" {
		os.Exit(runUpdate())
	}

	dataDirFlag := flag.String("data-dir", "", "directory for config, models and history (default: OS config dir, or $LOCALWHISPER_DATA_DIR)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	serveFlag := flag.String("serve", "", "expose the backend to other front ends on this address (e.g. "+ipc.DefaultAddr+")")
	attachFlag := flag.String("attach", "", "run the settings UI against a running instance at this ws:// URL")
	headlessFlag := flag.Bool("headless", false, "run hotkeys and dictation without the settings UI")
	setupFlag := flag.Bool("setup", false, "Select microphone device and save it")
	formatFlag := flag.String("format", "wav", "Audio format handed to whisper.cpp: wav or flac")
	whisperFlag := flag.String("whisper", "", "path to the whisper.cpp CLI (default: $"+transcriber.BinaryEnv+" or PATH)")
	threadsFlag := flag.Int("threads", 0, "whisper.cpp thread count (0 = its default)")
	keepAudioFlag := flag.Bool("keep-audio", false, "Keep each recording as FLAC in the history database")
	historyFlag := flag.Int("history", 500, "Transcriptions kept in history (0 = unlimited)")
	noSoundFlag := flag.Bool("nosound", false, "Disable start/stop beeps")
	noUpdateFlag := flag.Bool("no-update-check", false, "Do not check for new releases")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	interactiveFlag := flag.Bool("interactive", false, "With -doctor, also wait for a press of the toggle hotkey")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *versionFlag {
		fmt.Printf("localwhisper %s\n", version)
		os.Exit(0)
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	dataDir := *dataDirFlag
	if dataDir == "" {
		if dataDir, err = config.DataDir(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *doctorFlag {
		stop()
		os.Exit(doctor.Run(context.Background(), doctor.Env{DataDir: dataDir, Interactive: *interactiveFlag}))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if *attachFlag != "" {
		log.SessionStart(version, "attach", *attachFlag)
		if err := runAttached(ctx, *attachFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	format, err := encoder.ParseFormat(*formatFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	bin := *whisperFlag
	if bin == "" {
		if bin, err = transcriber.FindBinary(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			log.Warnf("whisper binary: %v", err)
			bin = "whisper-cli"
		}
	}
	whisper := transcriber.NewWhisperCLI(bin)
	whisper.Threads = *threadsFlag
	whisper.Format = format

	store, err := config.Open(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	if *setupFlag {
		dev, err := audio.SelectDevice(audioCtx)
		if err != nil {
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Keeping the configured device")
		} else if _, err := store.Update(func(c *config.AppConfig) { c.AudioDevice = &dev.Name }); err != nil {
			fmt.Printf("Warning: could not save device: %v\n", err)
		} else {
			fmt.Printf("Using device: %s\n", dev.Name)
		}
	}

	hist, err := history.Open(history.DefaultPath(dataDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
		log.Warnf("history: %v", err)
		hist = nil
	} else {
		defer hist.Close()
		if *historyFlag > 0 {
			if n, err := hist.Prune(ctx, *historyFlag); err != nil {
				log.Warnf("history prune: %v", err)
			} else if n > 0 {
				log.Info(fmt.Sprintf("history_pruned: %d", n))
			}
		}
	}

	if store.Get().AutoPaste {
		if err := clipboard.Init(); err != nil {
			fmt.Printf("Warning: paste init failed: %v\n", err)
			fmt.Println("Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
	}

	beep.Init()
	if *noSoundFlag {
		beep.Disable()
	}

	bus := events.NewBus()
	var dictated atomic.Int64
	if _, err := events.OnTranscriptionComplete(bus, func(string) { dictated.Add(1) }); err != nil {
		log.Warnf("count transcriptions: %v", err)
	}

	local, err := backend.New(backend.Options{
		Config:      store,
		Events:      bus,
		Audio:       audioCtx,
		Transcriber: whisper,
		History:     hist,
		KeepAudio:   *keepAudioFlag,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer local.Close()
	local.Watch()

	mode := "tui"
	if *headlessFlag {
		mode = "headless"
	}
	activeModel := ""
	if m := store.Get().ActiveModel; m != nil {
		activeModel = *m
	}
	log.SessionStart(version, mode, activeModel)
	defer func() { log.SessionEnd(int(dictated.Load())) }()

	if *serveFlag != "" {
		srv := ipc.NewServer(local, bus)
		url, err := srv.Listen(ctx, *serveFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer srv.Close()
		log.Info("ipc_listen: " + url)
		if *headlessFlag {
			fmt.Printf("Listening on %s (attach with -attach %s)\n", url, url)
		}
	}

	tr := tray.New(tray.Options{
		Locale: func() string { return store.Get().UILocale },
		Last:   lastTranscription(hist),
		Copy:   clipboard.System{}.Copy,
		OnQuit: stop,
	})
	defer tr.Close()
	go func() {
		if err := tr.Start(); err != nil {
			log.Warnf("tray: %v", err)
		}
	}()

	state, err := watchState(bus, tr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer state.Close()

	if !*noUpdateFlag {
		update.NewChecker(version, log.Dir()).Watch(ctx, func(rel update.Release) {
			log.Info("update_available: " + rel.Version)
			if !*headlessFlag {
				tuiSend(updateMsg(rel))
			}
		})
	}

	if *headlessFlag {
		fmt.Printf("localwhisper %s running. Press Ctrl+C to quit.\n", version)
		<-ctx.Done()
		return
	}
	if err := runUI(ctx, local, bus); err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

// watchState feeds application state to the settings screen and, when
// present, the tray.
func watchState(src events.Source, tr *tray.Tray) (*appstate.Bus, error) {
	return appstate.New(src, appstate.Options{OnChange: func(s appstate.State) {
		if tr != nil {
			tr.Update(s)
		}
		tuiSend(stateMsg(s))
	}})
}

func lastTranscription(h *history.Store) func(context.Context) (string, error) {
	if h == nil {
		return nil
	}
	return func(ctx context.Context) (string, error) {
		e, err := h.Last(ctx)
		if err != nil || e == nil {
			return "", err
		}
		return e.Text, nil
	}
}

// runUI shows the settings screen until the user quits or ctx ends.
func runUI(ctx context.Context, cmds backend.Commands, src events.Source) error {
	p := NewTUIProgram(ctx, cmds, src)
	final, err := p.Run()
	if m, ok := final.(tuiModel); ok {
		m.wait()
	}
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func runAttached(ctx context.Context, url string) error {
	bus := events.NewBus()
	client, err := ipc.Dial(ctx, url, bus)
	if err != nil {
		return err
	}
	defer client.Close()

	state, err := watchState(bus, nil)
	if err != nil {
		return err
	}
	defer state.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-client.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := runUI(ctx, client, bus); err != nil {
		return err
	}
	if err := client.Err(); err != nil && !errors.Is(err, ipc.ErrClosed) {
		return fmt.Errorf("connection lost: %w", err)
	}
	return nil
}

func runUpdate() int {
	if version == "dev" {
		fmt.Println("Dev build, cannot check for updates.")
		return 0
	}
	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	cacheDir, err := log.ResolveDir("")
	if err != nil {
		cacheDir = os.TempDir()
	}
	checker := update.NewChecker(version, cacheDir)

	fmt.Printf("localwhisper %s, checking for updates...\n", version)
	rel, err := checker.Latest(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	if rel == nil {
		fmt.Println("Already up to date.")
		return 0
	}
	fmt.Printf("Update available: %s -> %s\n", version, rel.Version)
	fmt.Print("Continue? [y/N] ")
	var answer string
	fmt.Scanln(&answer)
	if answer != "y" && answer != "Y" {
		fmt.Println("Aborted.")
		return 0
	}

	exe, err := os.Executable()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	fmt.Printf("Downloading %s...\n", rel.Version)
	err = checker.Apply(ctx, rel, exe, func(written, total int64) {
		p := events.DownloadProgress{ModelID: rel.Version, DownloadedBytes: uint64(written), TotalBytes: uint64(max(total, 0))}
		if total > 0 {
			p.Percent = float64(written) / float64(total) * 100
		}
		fmt.Printf("\r%s", download.Describe(p, "MB"))
	})
	fmt.Println()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	fmt.Printf("Updated to %s\n", rel.Version)
	return 0
}
