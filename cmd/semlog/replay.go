package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/banshee-data/semlog/internal/db"
	"github.com/banshee-data/semlog/internal/events"
	"github.com/banshee-data/semlog/internal/fsutil"
	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/owl"
	"github.com/banshee-data/semlog/internal/scenario"
	"github.com/banshee-data/semlog/internal/security"
	"github.com/banshee-data/semlog/internal/symbolic"
	"github.com/banshee-data/semlog/internal/timeline"
	"github.com/banshee-data/semlog/internal/timeutil"
)

type replayOptions struct {
	dbPath      string
	owlDir      string
	overwrite   bool
	htmlPath    string
	pngPath     string
	taskID      string
	episodeID   string
	kinds       []string
	dt          float64
	until       float64
	startDelay  float64
	realtime    bool
	printEvents bool
}

var replayOpts replayOptions

var replayCmd = &cobra.Command{
	Use:   "replay <scenario.yaml>",
	Short: "Replay a scenario and log its semantic events",
	Long: `Replay builds the scene a scenario file describes, attaches its monitors,
applies the scripted host events on a fixed simulation tick and records
every semantic event to the selected outputs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runReplay(ctx, cmd.OutOrStdout(), args[0], replayOpts)
	},
}

func init() {
	f := replayCmd.Flags()
	f.StringVar(&replayOpts.dbPath, "db", "", "SQLite database to record the episode in")
	f.StringVar(&replayOpts.owlDir, "owl-dir", "", "Directory to write the OWL experiment document to")
	f.BoolVar(&replayOpts.overwrite, "overwrite", false, "Replace an existing OWL document")
	f.StringVar(&replayOpts.htmlPath, "html", "", "Write an HTML timeline chart to this file")
	f.StringVar(&replayOpts.pngPath, "png", "", "Write a PNG timeline plot to this file")
	f.StringVar(&replayOpts.taskID, "task-id", "", "Task id; the scenario's, or generated, when empty")
	f.StringVar(&replayOpts.episodeID, "episode-id", "", "Episode id; generated when empty")
	f.StringSliceVar(&replayOpts.kinds, "kinds", nil, "Only log these event kinds (comma separated)")
	f.Float64Var(&replayOpts.dt, "dt", 1.0/60, "Simulation tick in seconds")
	f.Float64Var(&replayOpts.until, "until", 0, "Stop at this simulation time; the scenario's end when 0")
	f.Float64Var(&replayOpts.startDelay, "start-delay", 0, "Start logging this many simulation seconds in")
	f.BoolVar(&replayOpts.realtime, "realtime", false, "Pace the replay against the wall clock")
	f.BoolVar(&replayOpts.printEvents, "print", false, "Print every event instead of a per-kind summary")
}

func parseKinds(names []string) ([]events.Kind, error) {
	var kinds []events.Kind
	for _, n := range names {
		k := events.Kind(n)
		if events.OWLClass(k) == "" {
			return nil, fmt.Errorf("unknown event kind %q", n)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func runReplay(ctx context.Context, out io.Writer, path string, o replayOptions) error {
	kinds, err := parseKinds(o.kinds)
	if err != nil {
		return err
	}
	cfg, err := scenario.Load(path)
	if err != nil {
		return err
	}
	tuning, err := loadTuning()
	if err != nil {
		return err
	}
	scene, err := scenario.Build(cfg, tuning)
	if err != nil {
		return err
	}

	taskID := o.taskID
	if taskID == "" {
		taskID = cfg.TaskID
	}
	if taskID == "" {
		taskID = uuid.NewString()
	}
	episodeID := o.episodeID
	if episodeID == "" {
		episodeID = uuid.NewString()
	}

	var sinks []events.Sink
	if o.dbPath != "" {
		store, err := db.NewDB(o.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.BeginEpisode(ctx, episodeID, taskID, time.Now()); err != nil {
			return err
		}
		sinks = append(sinks, store.Sink(episodeID))
	}
	var doc *owl.FileSink
	if o.owlDir != "" {
		x := owl.NewExperiment(security.SanitizeFilename(episodeID), taskID)
		doc = owl.NewFileSink(x, fsutil.OSFileSystem{}, o.owlDir, o.overwrite)
		sinks = append(sinks, doc)
	}

	logger := symbolic.New(scene.Loop, sinks...)
	opts := symbolic.Options{
		TaskID:     taskID,
		EpisodeID:  episodeID,
		Tuning:     tuning,
		Kinds:      kinds,
		StartDelay: o.startDelay,
	}
	if err := logger.Init(opts, scene.Monitors, scene.Entities); err != nil {
		return err
	}

	until := o.until
	if until <= 0 {
		until = cfg.End()
	}
	monitoring.Logf("replaying %s as episode %s until t=%.3f", cfg.Name, episodeID, until)
	if o.realtime {
		err = scene.RunPaced(ctx, timeutil.RealClock{}, logger, until, o.dt)
	} else {
		err = scene.Run(logger, until, o.dt)
	}
	// Interrupted replays still close their episode.
	if ferr := logger.Finish(true); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	evs := logger.Events()
	if o.htmlPath != "" {
		if err := writeHTML(o.htmlPath, cfg.Name, evs); err != nil {
			return err
		}
	}
	if o.pngPath != "" {
		if err := timeline.SavePNG(o.pngPath, cfg.Name, evs); err != nil {
			return err
		}
	}

	if o.printEvents {
		printEvents(out, evs)
	} else {
		printSummary(out, evs)
	}
	if doc != nil {
		fmt.Fprintf(out, "owl: %s\n", doc.Path())
	}
	fmt.Fprintf(out, "episode %s: %d events\n", episodeID, len(evs))
	return nil
}

func writeHTML(path, title string, evs []events.Event) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := timeline.RenderHTML(f, title, evs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(out io.Writer, evs []events.Event) {
	counts := make(map[events.Kind]int)
	for _, ev := range evs {
		counts[ev.Kind]++
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tCOUNT")
	for _, k := range events.Kinds {
		if counts[k] > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", k, counts[k])
		}
	}
	tw.Flush()
}

func printEvents(out io.Writer, evs []events.Event) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tKIND\tPARTICIPANTS")
	for _, ev := range evs {
		names := ""
		for i, p := range ev.Participants {
			if i > 0 {
				names += ", "
			}
			names += p.Role + "=" + p.Name
		}
		fmt.Fprintf(tw, "%.3f\t%.3f\t%s\t%s\n", ev.Start, ev.End, ev.Kind, names)
	}
	tw.Flush()
}
