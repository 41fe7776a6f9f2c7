package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

var (
	// ANSI color codes
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"

	interactive = true
)

func init() {
	// Disable colors and the TUI if not in a terminal
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		interactive = false
		colorReset = ""
		colorRed = ""
		colorGreen = ""
		colorYellow = ""
		colorPurple = ""
		colorCyan = ""
		colorBold = ""
	}
}

func printTitle(title string) {
	fmt.Printf("\n%s%s🌍 %s%s\n", colorBold, colorPurple, title, colorReset)
	fmt.Println(strings.Repeat("=", 60))
}

func printSubtitle(subtitle string) {
	fmt.Printf("\n%s%s%s%s\n", colorBold, colorCyan, subtitle, colorReset)
}

func printSuccess(message string) {
	fmt.Printf("%s✓ %s%s\n", colorGreen, message, colorReset)
}

func printInfo(message string) {
	fmt.Printf("%s• %s%s\n", colorYellow, message, colorReset)
}

func printError(message string) {
	fmt.Printf("%s✗ %s%s\n", colorRed, message, colorReset)
}

func printStat(label string, value any) {
	fmt.Printf("  %s%s:%s %s%v%s\n", colorBold, label, colorReset, colorYellow, value, colorReset)
}

func runPlain(d time.Duration) {
	printTitle("Globe Routes Simulator")

	printSubtitle("Building Route Graphs")
	fmt.Printf("Dataset has %s%d locations%s, %d rejected entries\n",
		colorBold, len(w.Dataset.Locations), colorReset, len(w.Dataset.Rejected))

	buildGraphs(w, func(done, total int, n networkStats) {
		printSuccess(fmt.Sprintf("[%d/%d] %s: %d locations, %d edges, %d skipped connections in %v",
			done, total, n.network, n.locations, n.edges, n.anomalies, n.buildTime.Round(time.Microsecond)))
	})

	printSubtitle("Spawning Vehicles")
	fmt.Printf("Running for %s%v%s with %d vehicle types\n", colorBold, d, colorReset, len(w.Config.VehicleTypes()))
	for _, v := range w.Config.VehicleTypes() {
		vc, err := w.Config.Vehicle(v)
		if err != nil {
			log.Fatalf("Failed to read vehicle config: %v", err)
		}
		printInfo(fmt.Sprintf("%s every %v, hubs %s/%s, multi-stop chance %.0f%%",
			v, vc.SpawnInterval, vc.PrimaryHub, vc.SecondaryHub, vc.MultiStopChance*100))
	}
	fmt.Println()

	stats, err := simulate(context.Background(), w, d, func(e spawnEvent) {
		fmt.Printf("%s%6.1fs%s %-5s %s %s(%s)%s\n",
			colorCyan, e.at.Seconds(), colorReset,
			e.itinerary.Vehicle, e.itinerary.Path,
			colorYellow, e.region, colorReset)
	})
	if err != nil {
		printError(fmt.Sprintf("Simulation failed: %v", err))
		os.Exit(1)
	}

	printSubtitle("Fleet Summary")
	for _, v := range w.Config.VehicleTypes() {
		printStat(string(v), fmt.Sprintf("spawned %d, skipped %d", stats.spawned[v], stats.skipped[v]))
	}
	total := stats.total()
	printStat("Vehicles spawned", total)
	if total > 0 {
		printStat("Multi-stop itineraries", fmt.Sprintf("%.0f%%", float64(stats.multi)/float64(total)*100))
		printStat("Average distance", fmt.Sprintf("%.0f", stats.distance/float64(total)))
	}
	printStat("Spawn rate", fmt.Sprintf("%.1f vehicles/sec", float64(total)/stats.elapsed.Seconds()))
}
