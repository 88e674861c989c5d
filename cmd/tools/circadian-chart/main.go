// Command circadian-chart renders an HTML bar chart of hourly activity from
// an archive database, for quick visual checks of circadian classification
// without the full reporting stack.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/wildtrack-data/ethogram/internal/archive"
)

var (
	archivePath = flag.String("archive", "", "Path to sqlite archive database (required)")
	outputPath  = flag.String("output", "circadian.html", "Output HTML file")
	title       = flag.String("title", "Hourly Activity", "Chart title")
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

	activity, counts, err := db.HourlyActivity()
	if err != nil {
		log.Fatalf("query hourly activity: %v", err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		log.Fatal("archive has no observations")
	}

	hours := make([]string, 24)
	activitySeries := make([]opts.BarData, 24)
	countSeries := make([]opts.BarData, 24)
	for h := 0; h < 24; h++ {
		hours[h] = fmt.Sprintf("%02d:00", h)
		activitySeries[h] = opts.BarData{Value: activity[h]}
		countSeries[h] = opts.BarData{Value: counts[h]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: *title, Width: "1100px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: *title, Subtitle: fmt.Sprintf("%d observations", total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Hour of day"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Mean activity"}),
	)
	bar.SetXAxis(hours)
	bar.AddSeries("mean activity", activitySeries)
	bar.AddSeries("observations", countSeries)

	out, err := os.Create(*outputPath)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	defer out.Close()

	if err := bar.Render(out); err != nil {
		log.Fatalf("render chart: %v", err)
	}
	fmt.Printf("wrote %s\n", *outputPath)
}
