package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spaghettifunk/oxygen/engine/config"
	"github.com/spaghettifunk/oxygen/engine/core"
	"github.com/spaghettifunk/oxygen/engine/importer"
)

const exitFailure = 2

type jobReport struct {
	Index     int                `json:"index"`
	Source    string             `json:"source"`
	Success   bool               `json:"success"`
	Telemetry importer.Telemetry `json:"telemetry"`
	Progress  progressReport     `json:"progress"`
	Errors    []string           `json:"errors,omitempty"`
}

type progressReport struct {
	Job    jobTiming    `json:"job"`
	Phases []phaseEvent `json:"phases"`
	Items  []itemEvent  `json:"items"`
}

type jobTiming struct {
	StartedMs  int64 `json:"started_ms"`
	FinishedMs int64 `json:"finished_ms"`
	DurationMs int64 `json:"duration_ms"`
}

type phaseEvent struct {
	Phase   string  `json:"phase"`
	Overall float64 `json:"overall"`
	AtMs    int64   `json:"at_ms"`
}

type itemEvent struct {
	Kind     string `json:"kind"`
	ItemKind string `json:"item_kind"`
	ItemName string `json:"item_name"`
	AtMs     int64  `json:"at_ms"`
}

type report struct {
	Summary struct {
		Jobs        int    `json:"jobs"`
		Succeeded   int    `json:"succeeded"`
		Failed      int    `json:"failed"`
		TotalTimeMs int64  `json:"total_time_ms"`
		CookedRoot  string `json:"cooked_root"`
	} `json:"summary"`
	Jobs []jobReport `json:"jobs"`
}

type options struct {
	sources        []string
	cookedRoot     string
	namingStrategy string
	quiet          bool
	reportPath     string
	generateMips   bool
	watch          bool
}

func main() {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "oxygen-import",
		Short: "Cook source assets into the packed runtime format",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(opts)
		},
	}
	cmd.Flags().StringArrayVar(&opts.sources, "source", nil, "source file, directory or TOML manifest (repeatable)")
	cmd.Flags().StringVar(&opts.cookedRoot, "cooked-root", "cooked", "output directory for cooked tables and data")
	cmd.Flags().StringVar(&opts.namingStrategy, "naming-strategy", "source", "asset naming strategy: source or uuid")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "suppress progress output")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "write a JSON import report to this path")
	cmd.Flags().BoolVar(&opts.generateMips, "mips", true, "generate mip chains for textures")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "keep running and reimport sources when they change")
	_ = cmd.MarkFlagRequired("source")

	if err := cmd.Execute(); err != nil {
		core.LogError(err.Error())
		os.Exit(exitFailure)
	}
}

func run(opts *options) error {
	started := time.Now()

	files, manifests, err := expandSources(opts.sources)
	if err != nil {
		return err
	}
	if len(files) == 0 && len(manifests) == 0 {
		return fmt.Errorf("no importable sources found")
	}

	cfg := config.Default().Importer
	cfg.CookedRoot = opts.cookedRoot
	cfg.NamingStrategy = opts.namingStrategy
	cfg.Hashing = true
	svc := importer.NewService(cfg)

	var (
		mu       sync.Mutex
		results  []importer.JobResult
		order    []uuid.UUID
		trackers = map[uuid.UUID]*jobTracker{}
	)
	onComplete := func(res importer.JobResult) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
		if !opts.quiet {
			status := "ok"
			if !res.Success {
				status = "failed"
			}
			fmt.Printf("%-6s %s\n", status, res.Source)
		}
	}

	submit := func(req importer.ImportRequest) error {
		tr := &jobTracker{}
		progress := func(ev importer.ProgressEvent) {
			mu.Lock()
			tr.events = append(tr.events, ev)
			mu.Unlock()
		}
		id, err := svc.SubmitImport(req, onComplete, progress)
		if err != nil {
			return err
		}
		mu.Lock()
		order = append(order, id)
		trackers[id] = tr
		mu.Unlock()
		return nil
	}

	for _, path := range files {
		err := submit(importer.ImportRequest{
			SourcePath: path,
			Params:     importer.CookParams{GenerateMips: opts.generateMips},
		})
		if err != nil {
			_ = svc.Stop()
			return err
		}
	}
	for _, m := range manifests {
		if _, err := importer.SubmitManifest(svc, m, onComplete, nil); err != nil {
			_ = svc.Stop()
			return err
		}
	}

	if opts.watch {
		w, err := importer.NewWatcher(svc, watchRoots(opts.sources, files),
			importer.CookParams{GenerateMips: opts.generateMips})
		if err != nil {
			_ = svc.Stop()
			return err
		}
		if !opts.quiet {
			fmt.Println("watching for changes, interrupt to finish")
		}
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		signal.Stop(sig)
		w.Close()
	}

	if err := svc.Drain(); err != nil {
		_ = svc.Stop()
		return err
	}
	if err := svc.Stop(); err != nil {
		return err
	}

	// Stop has joined the service loop, but snapshot under the lock anyway
	// so the report never observes a partially appended slice.
	mu.Lock()
	finished := append([]importer.JobResult(nil), results...)
	ordered := append([]uuid.UUID(nil), order...)
	mu.Unlock()

	rep := buildReport(opts, finished, ordered, trackers, time.Since(started))
	if opts.reportPath != "" {
		if err := writeReport(opts.reportPath, rep); err != nil {
			return err
		}
	}
	if !opts.quiet {
		fmt.Printf("%d jobs, %d succeeded, %d failed in %dms\n",
			rep.Summary.Jobs, rep.Summary.Succeeded, rep.Summary.Failed, rep.Summary.TotalTimeMs)
	}
	if rep.Summary.Failed > 0 {
		os.Exit(exitFailure)
	}
	return nil
}

// expandSources splits the --source values into importable files and
// parsed manifests. Directories contribute every recognized file in them.
func expandSources(sources []string) ([]string, []*importer.Manifest, error) {
	var files []string
	var manifests []*importer.Manifest
	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			return nil, nil, fmt.Errorf("source %q: %w", src, err)
		}
		switch {
		case info.IsDir():
			err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return err
				}
				if importer.GuessAssetType(path) != importer.AssetAuto {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, nil, err
			}
		case strings.EqualFold(filepath.Ext(src), ".toml"):
			m, err := importer.LoadManifest(src)
			if err != nil {
				return nil, nil, err
			}
			manifests = append(manifests, m)
		default:
			files = append(files, src)
		}
	}
	return files, manifests, nil
}

// watchRoots derives the directories to observe: explicit source
// directories plus the parent of every individual file.
func watchRoots(sources, files []string) []string {
	seen := map[string]bool{}
	var roots []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			roots = append(roots, dir)
		}
	}
	for _, src := range sources {
		if info, err := os.Stat(src); err == nil && info.IsDir() {
			add(src)
		}
	}
	for _, f := range files {
		add(filepath.Dir(f))
	}
	return roots
}

// jobTracker accumulates the progress events of one submitted job.
type jobTracker struct {
	events []importer.ProgressEvent
}

func buildReport(opts *options, results []importer.JobResult, order []uuid.UUID,
	trackers map[uuid.UUID]*jobTracker, total time.Duration) *report {

	byID := map[uuid.UUID]importer.JobResult{}
	for _, res := range results {
		byID[res.JobID] = res
	}
	// Jobs submitted via manifests carry no progress subscription; report
	// them after the ordered ones.
	for _, res := range results {
		found := false
		for _, id := range order {
			if id == res.JobID {
				found = true
				break
			}
		}
		if !found {
			order = append(order, res.JobID)
		}
	}

	rep := &report{Jobs: []jobReport{}}
	rep.Summary.CookedRoot = opts.cookedRoot
	rep.Summary.TotalTimeMs = total.Milliseconds()
	for i, id := range order {
		res, ok := byID[id]
		if !ok {
			continue
		}
		jr := jobReport{
			Index:   i,
			Source:  res.Source,
			Success: res.Success,
			Progress: progressReport{
				Job: jobTiming{
					StartedMs:  res.StartedAt.UnixMilli(),
					FinishedMs: res.FinishedAt.UnixMilli(),
					DurationMs: res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
				},
				Phases: []phaseEvent{},
				Items:  []itemEvent{},
			},
		}
		if len(res.Items) > 0 {
			jr.Telemetry = res.Items[0].Telemetry
		}
		for _, d := range res.Diagnostics {
			jr.Errors = append(jr.Errors, d.String())
		}
		for _, item := range res.Items {
			for _, d := range item.Diagnostics {
				jr.Errors = append(jr.Errors, d.String())
			}
		}
		var evs []importer.ProgressEvent
		if tr := trackers[id]; tr != nil {
			evs = tr.events
		}
		for _, ev := range evs {
			switch ev.Kind {
			case importer.ProgressPhaseUpdate:
				jr.Progress.Phases = append(jr.Progress.Phases, phaseEvent{
					Phase: ev.Phase, Overall: ev.Overall, AtMs: ev.At.UnixMilli(),
				})
			case importer.ProgressItemStarted, importer.ProgressItemCollected, importer.ProgressItemFinished:
				jr.Progress.Items = append(jr.Progress.Items, itemEvent{
					Kind: ev.Kind.String(), ItemKind: ev.ItemKind, ItemName: ev.ItemName, AtMs: ev.At.UnixMilli(),
				})
			}
		}
		rep.Summary.Jobs++
		if res.Success {
			rep.Summary.Succeeded++
		} else {
			rep.Summary.Failed++
		}
		rep.Jobs = append(rep.Jobs, jr)
	}
	return rep
}

func writeReport(path string, rep *report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
