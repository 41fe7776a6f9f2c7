package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/kass/go-globe-routes/internal/world"
	"github.com/kass/go-globe-routes/pkg/dataset"
	"github.com/kass/go-globe-routes/pkg/models"
	"github.com/kass/go-globe-routes/pkg/pathfind"
	"github.com/kass/go-globe-routes/pkg/routegraph"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configFile string
	dataFile   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "globe-routes",
	Short: "Route graphs, path search and itineraries for a globe transport sim",
	Long: `Builds rail, air and sea route graphs from a location dataset, enumerates
bounded simple paths between locations and picks itineraries for spawned vehicles.`,
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Build route graphs and report anomalies",
	Long:  `Build the graph of each network and print its size and every skipped connection.`,
	Run:   runGraph,
}

var pathsCmd = &cobra.Command{
	Use:   "paths FROM TO",
	Short: "List simple paths between two locations",
	Long:  `Enumerate loop-free paths between two locations, direct route first, bounded by hops and results.`,
	Args:  cobra.ExactArgs(2),
	Run:   runPaths,
}

var shortestCmd = &cobra.Command{
	Use:   "shortest FROM TO",
	Short: "Find the shortest path by distance",
	Args:  cobra.ExactArgs(2),
	Run:   runShortest,
}

var itineraryCmd = &cobra.Command{
	Use:   "itinerary",
	Short: "Pick itineraries for spawned vehicles",
	Long:  `Run the itinerary selector for one vehicle type and print the chosen paths and legs.`,
	Run:   runItinerary,
}

var nearestCmd = &cobra.Command{
	Use:   "nearest LAT LON",
	Short: "Find Earth locations near a point",
	Args:  cobra.ExactArgs(2),
	Run:   runNearest,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Run:   runConfig,
}

var spawnCmd = &cobra.Command{
	Use:   "spawn",
	Short: "Run the spawn loop for every vehicle type",
	Long:  `Tick one spawner per vehicle type at its configured interval and print each itinerary.`,
	Run:   runSpawn,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save every network graph to a gob snapshot",
	Run:   runSnapshot,
}

var (
	network      string
	graphNetwork string
	snapshotFile string
	maxHops      int
	maxResults   int
	jsonOutput   bool
	vehicle      string
	count        int
	seed         int64
	neighbors    int
	radiusKm     float64
	duration     time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: config/config.yaml if present)")
	rootCmd.PersistentFlags().StringVarP(&dataFile, "data", "d", "", "Dataset file, .yaml or .json (default: built-in sample)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	graphCmd.Flags().StringVarP(&graphNetwork, "network", "n", "", "Network to report (rail, air, sea; default all)")
	graphCmd.Flags().StringVarP(&snapshotFile, "snapshot", "s", "", "Load the graph from a snapshot instead of the dataset")

	for _, cmd := range []*cobra.Command{pathsCmd, shortestCmd} {
		cmd.Flags().StringVarP(&network, "network", "n", string(dataset.NetworkRail), "Network to search")
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
	}
	pathsCmd.Flags().IntVar(&maxHops, "max-hops", 5, "Maximum edges per path")
	pathsCmd.Flags().IntVar(&maxResults, "max-results", 20, "Maximum number of paths")

	itineraryCmd.Flags().StringVarP(&vehicle, "vehicle", "t", string(models.VehicleTrain), "Vehicle type (train, plane, boat)")
	itineraryCmd.Flags().IntVarP(&count, "count", "n", 1, "Number of itineraries")
	itineraryCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (default: config spawner.seed)")
	itineraryCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")

	nearestCmd.Flags().IntVarP(&neighbors, "k", "k", 5, "Number of nearest locations")
	nearestCmd.Flags().Float64VarP(&radiusKm, "radius", "r", 0, "Return every location within this many km instead")

	spawnCmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "How long to run (0 runs until interrupted)")
	spawnCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (default: config spawner.seed)")

	rootCmd.AddCommand(graphCmd, pathsCmd, shortestCmd, itineraryCmd, nearestCmd, configCmd, spawnCmd, snapshotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadWorld() *world.World {
	opts := world.Options{ConfigFile: configFile, DataPath: dataFile}
	if verbose {
		opts.LogLevel = "debug"
	}
	w, err := world.Load(opts)
	if err != nil {
		log.Fatalf("Failed to load: %v", err)
	}
	return w
}

func parseNetwork(s string) dataset.Network {
	for _, n := range dataset.Networks {
		if string(n) == s {
			return n
		}
	}
	log.Fatalf("Unknown network %q (want rail, air or sea)", s)
	return ""
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}

func runGraph(cmd *cobra.Command, args []string) {
	w := loadWorld()

	networks := dataset.Networks
	if graphNetwork != "" {
		networks = []dataset.Network{parseNetwork(graphNetwork)}
	}

	for _, n := range networks {
		g := w.Graph(n)
		if snapshotFile != "" {
			loaded, err := routegraph.LoadFromFile(snapshotFile, routegraph.WithLogger(w.Logger))
			if err != nil {
				log.Fatalf("Failed to load snapshot: %v", err)
			}
			g = loaded
			fmt.Printf("Loaded graph from %s\n", snapshotFile)
		}

		fmt.Printf("\n%s network\n", n)
		fmt.Printf("Locations with routes: %d\n", g.Len())
		fmt.Printf("Edges: %d\n", g.EdgeCount())

		anomalies := g.Anomalies()
		fmt.Printf("Skipped connections: %d\n", len(anomalies))
		for _, a := range anomalies {
			fmt.Printf("  - %s\n", a)
		}

		if snapshotFile != "" {
			break
		}
	}

	if len(w.Dataset.Rejected) > 0 {
		fmt.Printf("\nRejected dataset entries: %d\n", len(w.Dataset.Rejected))
		for _, r := range w.Dataset.Rejected {
			fmt.Printf("  - %s\n", r)
		}
	}
}

func runPaths(cmd *cobra.Command, args []string) {
	w := loadWorld()
	g := w.Graph(parseNetwork(network))

	start := time.Now()
	paths := pathfind.FindPaths(g, args[0], args[1], maxHops, maxResults)
	elapsed := time.Since(start)

	if jsonOutput {
		printJSON(paths)
		return
	}

	fmt.Printf("Found %d paths from %s to %s on %s in %v\n", len(paths), args[0], args[1], network, elapsed)
	for i, p := range paths {
		legs, err := pathfind.Legs(g, p)
		if err != nil {
			log.Fatalf("Invalid path %s: %v", p, err)
		}
		fmt.Printf("%3d. %s (%d stops, distance %.0f)\n", i+1, p, p.Stops(), pathfind.TotalDistance(legs))
	}
}

func runShortest(cmd *cobra.Command, args []string) {
	w := loadWorld()
	g := w.Graph(parseNetwork(network))

	path, distance, ok := pathfind.ShortestPath(g, args[0], args[1])
	if !ok {
		log.Fatalf("No route from %s to %s on %s", args[0], args[1], network)
	}

	if jsonOutput {
		printJSON(struct {
			Path     models.Path `json:"path"`
			Distance float64     `json:"distance"`
		}{path, distance})
		return
	}

	fmt.Printf("%s\n", path)
	fmt.Printf("Stops: %d\n", path.Stops())
	fmt.Printf("Distance: %.1f\n", distance)
}

func runItinerary(cmd *cobra.Command, args []string) {
	w := loadWorld()
	if seed != 0 {
		w.Config.Spawner.Seed = seed
	}

	v := models.VehicleType(vehicle)
	sel, err := w.Selector(v)
	if err != nil {
		log.Fatalf("Failed to create selector: %v", err)
	}
	candidates := w.Candidates(v)

	var out []*models.Itinerary
	for range count {
		it, err := sel.Select(candidates)
		if err != nil {
			log.Printf("No itinerary: %v", err)
			continue
		}
		out = append(out, it)
	}

	if jsonOutput {
		printJSON(out)
		return
	}

	for _, it := range out {
		kind := "direct"
		if it.MultiStop {
			kind = "multi-stop"
		}
		fmt.Printf("%s %s [%s] %s\n", it.ID[:8], it.Vehicle, kind, it.Path)
		for _, leg := range it.Legs {
			fmt.Printf("    %-18s -> %-18s %8.1f\n", leg.From, leg.To, leg.Distance)
		}
		fmt.Printf("    total %.1f\n", it.TotalDistance)
	}
}

func runNearest(cmd *cobra.Command, args []string) {
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		log.Fatalf("Invalid latitude %q: %v", args[0], err)
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		log.Fatalf("Invalid longitude %q: %v", args[1], err)
	}

	w := loadWorld()
	ix := w.Index()
	point := models.EarthCoord{Lat: lat, Lon: lon}.Point()

	start := time.Now()
	var matches []string
	if radiusKm > 0 {
		for _, m := range ix.Radius(point, radiusKm) {
			matches = append(matches, fmt.Sprintf("%-18s %8.1f km", m.Location.Name, m.Distance))
		}
	} else {
		for _, m := range ix.Nearest(point, neighbors) {
			matches = append(matches, fmt.Sprintf("%-18s %8.1f km", m.Location.Name, m.Distance))
		}
	}

	fmt.Printf("Searched %d locations in %v\n", ix.Count(), time.Since(start))
	fmt.Println(strings.Join(matches, "\n"))
}

func runConfig(cmd *cobra.Command, args []string) {
	w := loadWorld()

	out, err := yaml.Marshal(w.Config)
	if err != nil {
		log.Fatalf("Failed to encode config: %v", err)
	}
	fmt.Print(string(out))
}

func runSpawn(cmd *cobra.Command, args []string) {
	w := loadWorld()
	if seed != 0 {
		w.Config.Spawner.Seed = seed
	}

	spawners, err := w.Spawners()
	if err != nil {
		log.Fatalf("Failed to create spawners: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	fmt.Printf("Spawning %d vehicle types, press Ctrl+C to stop\n", len(spawners))
	start := time.Now()

	itineraries, wait := world.RunFleet(ctx, spawners)
	for it := range itineraries {
		fmt.Printf("%7.2fs %-5s %s\n", time.Since(start).Seconds(), it.Vehicle, it.Path)
	}
	if err := wait(); err != nil {
		log.Fatalf("Spawner failed: %v", err)
	}

	fmt.Printf("\nSpawn Results:\n")
	for i, sp := range spawners {
		spawned, skipped := sp.Stats()
		fmt.Printf("%-5s spawned: %d, skipped: %d\n", w.Config.VehicleTypes()[i], spawned, skipped)
	}
}

func runSnapshot(cmd *cobra.Command, args []string) {
	w := loadWorld()

	if err := os.MkdirAll(w.Config.Data.SnapshotDir, 0755); err != nil {
		log.Fatalf("Failed to create snapshot directory: %v", err)
	}

	for _, n := range dataset.Networks {
		path := w.SnapshotPath(n)
		if err := w.Graph(n).SaveToFile(path); err != nil {
			log.Fatalf("Failed to save %s graph: %v", n, err)
		}
		if info, err := os.Stat(path); err == nil {
			fmt.Printf("Saved %s graph to %s (%.1f KB)\n", n, path, float64(info.Size())/1024)
		}
	}
}
