// Command season-plot renders a PNG line plot of monthly mean activity from
// an archive database. Useful for eyeballing migration and breeding-season
// shifts against what the seasonal analyzer reports.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/wildtrack-data/ethogram/internal/archive"
)

var (
	archivePath = flag.String("archive", "", "Path to sqlite archive database (required)")
	outputPath  = flag.String("output", "seasonal.png", "Output PNG file")
)

func main() {
	flag.Parse()
	if *archivePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	db, err := archive.Open(*archivePath)
	if err != nil {
		log.Fatalf("open archive: %v", err)
	}
	defer db.Close()

	activity, counts, err := db.MonthlyActivity()
	if err != nil {
		log.Fatalf("query monthly activity: %v", err)
	}

	pts := make(plotter.XYs, 0, 12)
	for m := 0; m < 12; m++ {
		if counts[m] == 0 {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(m + 1), Y: activity[m]})
	}
	if len(pts) == 0 {
		log.Fatal("archive has no observations")
	}

	p := plot.New()
	p.Title.Text = "Monthly Mean Activity"
	p.X.Label.Text = "Month"
	p.Y.Label.Text = "Mean activity level"
	p.X.Min, p.X.Max = 1, 12
	p.Y.Min = 0

	line, err := plotter.NewLine(pts)
	if err != nil {
		log.Fatalf("build line: %v", err)
	}
	line.Width = vg.Points(1.5)
	p.Add(line, plotter.NewGrid())

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		log.Fatalf("build scatter: %v", err)
	}
	p.Add(scatter)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, *outputPath); err != nil {
		log.Fatalf("save plot: %v", err)
	}
	fmt.Printf("wrote %s\n", *outputPath)
}
