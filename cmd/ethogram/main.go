// Command ethogram replays a JSONL capture log through the predictive
// engine, archives the stream, and reports patterns, anomalies and rolling
// prediction accuracy.
//
// Each input line pairs one classified observation with its environmental
// context:
//
//	{"observation": {"species": "vulpes_vulpes", "behavior": "feeding", ...},
//	 "environment": {"temperature_c": 14.5, "humidity_pct": 62, ...}}
//
// Lines must arrive in non-decreasing timestamp order for the circadian and
// trend statistics to be meaningful.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/wildtrack-data/ethogram/internal/archive"
	"github.com/wildtrack-data/ethogram/internal/behavior"
	"github.com/wildtrack-data/ethogram/internal/config"
	"github.com/wildtrack-data/ethogram/internal/predict"
	"github.com/wildtrack-data/ethogram/internal/timeutil"
	"github.com/wildtrack-data/ethogram/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to JSON tuning config (defaults used when empty)")
	inputPath   = flag.String("input", "", "Path to JSONL capture log (required)")
	archivePath = flag.String("archive", "", "Path to sqlite archive database (archiving disabled when empty)")
	verbose     = flag.Bool("verbose", false, "Log every prediction and anomaly")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

type captureLine struct {
	Observation behavior.Observation `json:"observation"`
	Environment behavior.Environment `json:"environment"`
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *inputPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	engine, err := predict.New(cfg, timeutil.RealClock{})
	if err != nil {
		log.Fatalf("create engine: %v", err)
	}

	var sink *archive.Archive
	if *archivePath != "" {
		sink, err = archive.Open(*archivePath)
		if err != nil {
			log.Fatalf("open archive: %v", err)
		}
		defer sink.Close()
	}

	in, err := os.Open(*inputPath)
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	defer in.Close()

	report, err := replay(engine, sink, in)
	if err != nil {
		log.Fatalf("replay: %v", err)
	}
	report.print(engine)
}

type runReport struct {
	lines       int
	stored      int
	dropped     int
	anomalies   int
	newPatterns int
}

func replay(engine *predict.Engine, sink *archive.Archive, in *os.File) (runReport, error) {
	var rep runReport
	var previous predict.Prediction

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		rep.lines++
		var line captureLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return rep, fmt.Errorf("line %d: %w", rep.lines, err)
		}

		if previous.Behavior != behavior.BehaviorUnknown {
			engine.UpdatePredictionModels(line.Observation, previous)
			previous = predict.Prediction{}
		}

		res, err := engine.AnalyzeBehavior(line.Observation, line.Environment)
		if err != nil {
			// The store refused the observation; keep replaying.
			rep.dropped++
			log.Printf("line %d dropped: %v", rep.lines, err)
			continue
		}
		rep.stored++
		rep.newPatterns += len(res.NewPatterns)
		if res.IsAnomaly {
			rep.anomalies++
			if *verbose {
				log.Printf("anomaly at line %d (%s): %v", rep.lines, line.Observation.Behavior, res.AnomalyReasons)
			}
		}
		if res.HasPrediction {
			previous = res.Prediction
			if *verbose {
				log.Printf("line %d: next likely %s (%.2f)", rep.lines, res.Prediction.Behavior, res.Prediction.Confidence)
			}
		}

		if sink != nil {
			if err := sink.Record(line.Observation, line.Environment); err != nil {
				return rep, err
			}
		}
	}
	return rep, scanner.Err()
}

func (r runReport) print(engine *predict.Engine) {
	rolling, made, correct := engine.PredictionAccuracy()
	fmt.Printf("replayed %d lines: %d stored, %d dropped\n", r.lines, r.stored, r.dropped)
	fmt.Printf("patterns discovered: %d, anomalies flagged: %d\n", r.newPatterns, r.anomalies)
	fmt.Printf("predictions: %d made, %d correct, rolling accuracy %.1f%%\n", made, correct, rolling*100)
	fmt.Printf("store memory usage: %d bytes over %d records\n", engine.Store().MemoryUsage(), engine.Store().Len())
	fmt.Printf("ready for predictions: %t\n", engine.ReadyForPredictions())
}
