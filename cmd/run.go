package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sliceback/sliceback/internal/archiver"
	"github.com/sliceback/sliceback/internal/config"
	"github.com/sliceback/sliceback/internal/events"
	"github.com/sliceback/sliceback/internal/hook"
	"github.com/sliceback/sliceback/internal/lifecycle"
	"github.com/sliceback/sliceback/internal/profile"
	"github.com/sliceback/sliceback/internal/progress"
	"github.com/sliceback/sliceback/internal/prompt"
	"github.com/sliceback/sliceback/internal/sink"
)

var (
	flagProfile      string
	flagConfig       string
	flagTarget       string
	flagPrefix       string
	flagMaxSliceMB   int64
	flagCompress     bool
	flagInteractive  bool
	flagMediaChange  bool
	flagSliceScript  string
	flagIncludes     []string
	flagExcludes     []string
	flagWriteLimit   int
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Runs a single archiving pass over the configured include roots.",
	RunE:  runRun,
}

func init() {
	f := runCommand.Flags()
	f.StringVar(&flagProfile, "profile", "", "path to a profile file in the §6 line grammar (M/P/S/C/Z/I/E)")
	f.StringVar(&flagConfig, "config", "", "path to a YAML configuration file")
	f.StringVar(&flagTarget, "target", "", "local directory or remote URL to write slices to")
	f.StringVar(&flagPrefix, "prefix", "", "slice filename prefix (defaults to \"backup\")")
	f.Int64Var(&flagMaxSliceMB, "max-slice-mb", 0, "maximum size of a single slice, in MiB (0 = unlimited)")
	f.BoolVar(&flagCompress, "compress", false, "compress each file individually before archiving")
	f.BoolVar(&flagInteractive, "interactive", false, "prompt for retry/media-change/upload-failure decisions")
	f.BoolVar(&flagMediaChange, "media-needs-change", false, "confirm a medium change before every slice after the first")
	f.StringVar(&flagSliceScript, "slice-script", "", "external program notified at slice lifecycle transitions")
	f.StringArrayVar(&flagIncludes, "include", nil, "a path to include (repeatable)")
	f.StringArrayVar(&flagExcludes, "exclude", nil, "an absolute path to exclude (repeatable)")
	f.IntVar(&flagWriteLimit, "write-limit-mib", 0, "cap sustained slice write throughput, in MiB/s (0 = unlimited)")
}

func loadRunConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	switch {
	case flagProfile != "":
		cfg, err = profile.Load(flagProfile)
	case flagConfig != "":
		cfg, err = config.Load(flagConfig)
	default:
		cfg, err = config.New()
	}
	if err != nil {
		return nil, err
	}

	if flagTarget != "" {
		cfg.Target = flagTarget
	}
	if flagPrefix != "" {
		cfg.FilePrefix = flagPrefix
	}
	if flagMaxSliceMB > 0 {
		cfg.MaxSliceMegabytes = flagMaxSliceMB
	}
	if flagCompress {
		cfg.CompressFiles = true
	}
	if flagInteractive {
		cfg.Interactive = true
	}
	if flagMediaChange {
		cfg.MediaNeedsChange = true
	}
	if flagSliceScript != "" {
		cfg.SliceScript = flagSliceScript
	}
	if flagWriteLimit > 0 {
		cfg.WriteLimitMiB = flagWriteLimit
	}
	cfg.Includes = append(cfg.Includes, flagIncludes...)
	cfg.Excludes = append(cfg.Excludes, flagExcludes...)

	return cfg, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !lifecycle.IsLocal(cfg.Target) {
		return errors.New("cmd: this CLI only wires a local filesystem sink; embed the archiver package directly to supply a sink.HTTP URLProvider for remote targets")
	}

	bus := events.NewBus()
	listener := make(events.Listener, 64)
	bus.On(listener)
	done := make(chan struct{})
	go renderEvents(listener, done)

	h := hook.New(cfg.SliceScript, bus)
	var s sink.Sink = sink.Local{}

	var p prompt.Prompter = prompt.Noninteractive{}
	if cfg.Interactive {
		p = prompt.Survey{}
	}

	c := archiver.New(cfg, bus, h, s, p)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
			log.Warn("received interrupt, cancelling the run")
			c.Cancel()
			cancel()
		case <-ctx.Done():
		}
	}()

	res, err := c.Run(ctx)
	signal.Stop(sigs)
	bus.Destroy()
	<-done

	if err != nil {
		return err
	}

	switch res.Outcome {
	case archiver.Aborted:
		return errors.New("cmd: run aborted")
	case archiver.SuccessSkipped:
		log.Warnf("backup completed with %d file(s) across %d slice(s), but some files were skipped", res.TotalFiles, res.Slices)
	default:
		log.Infof("backup completed: %d file(s), %s across %d slice(s)", res.TotalFiles, progress.FormatBytes(res.TotalBytes), res.Slices)
	}

	if cfg.Interactive {
		if p.RunFinished(res.Outcome == archiver.SuccessSkipped) {
			return nil
		}
	}
	return nil
}

// renderEvents consumes the engine's event stream and prints it to the
// terminal, matching the ordering guarantee of §5: every event arrives in
// issuance order on this single subscriber.
func renderEvents(l events.Listener, done chan struct{}) {
	defer close(done)
	for e := range l {
		switch e.Kind {
		case events.Logging:
			log.Info(e.Data.(string))
		case events.Warning:
			log.Warn(e.Data.(string))
		case events.NewSlice:
			color.New(color.FgCyan, color.Bold).Printf("-- slice %d --\n", e.Data.(int))
		case events.TargetCapacity:
			log.Debugf("slice capacity: %s", progress.FormatBytes(e.Data.(int64)))
		case events.FileProgress:
			fmt.Printf("  file progress: %d%%\n", e.Data.(int))
		case events.SliceProgress:
			fmt.Printf("  slice progress: %d%%\n", e.Data.(int))
		case events.TotalBytesChanged, events.TotalFilesChanged:
			// rendered in the final summary only, to keep terminal output
			// readable during a run with many small files.
		}
	}
}
