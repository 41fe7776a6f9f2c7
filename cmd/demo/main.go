package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kass/go-globe-routes/internal/world"
	"github.com/kass/go-globe-routes/pkg/models"
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1).
			MarginTop(1).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	vehicleStyles = map[models.VehicleType]lipgloss.Style{
		models.VehicleTrain: lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B")),
		models.VehiclePlane: lipgloss.NewStyle().Foreground(lipgloss.Color("#8BE9FD")),
		models.VehicleBoat:  lipgloss.NewStyle().Foreground(lipgloss.Color("#BD93F9")),
	}
)

const feedSize = 8

type stage int

const (
	stageBuilding stage = iota
	stageBuildComplete
	stageSpawning
	stageDone
)

type model struct {
	stage           stage
	spinner         spinner.Model
	progress        progress.Model
	progressPercent float64

	networks []networkStats
	feed     []spawnEvent
	counts   map[models.VehicleType]int
	fleet    fleetStats
	err      error

	duration time.Duration
	width    int
	height   int
}

type progressMsg float64
type networkBuiltMsg networkStats
type spawnMsg spawnEvent
type stageCompleteMsg struct {
	stage stage
	stats fleetStats
	err   error
}
type advanceMsg struct{}

var (
	program *tea.Program
	w       *world.World
)

func initialModel(d time.Duration) model {
	s := spinner.New()
	s.Spinner = spinner.Globe
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	p := progress.New(progress.WithDefaultGradient())

	return model{
		stage:    stageBuilding,
		spinner:  s,
		progress: p,
		counts:   make(map[models.VehicleType]int),
		duration: d,
		width:    80,
		height:   24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		runBuild(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 10
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case progressMsg:
		m.progressPercent = float64(msg)
		return m, m.progress.SetPercent(float64(msg))

	case networkBuiltMsg:
		m.networks = append(m.networks, networkStats(msg))
		return m, nil

	case spawnMsg:
		m.counts[msg.itinerary.Vehicle]++
		m.feed = append(m.feed, spawnEvent(msg))
		if len(m.feed) > feedSize {
			m.feed = m.feed[1:]
		}
		return m, nil

	case stageCompleteMsg:
		switch msg.stage {
		case stageBuilding:
			m.stage = stageBuildComplete
			return m, tea.Tick(1500*time.Millisecond, func(time.Time) tea.Msg {
				return advanceMsg{}
			})
		case stageSpawning:
			m.fleet = msg.stats
			m.err = msg.err
			m.stage = stageDone
		}
		return m, nil

	case advanceMsg:
		m.stage = stageSpawning
		m.progressPercent = 0
		return m, tea.Batch(m.progress.SetPercent(0), runSpawn(m.duration))
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🌍 Globe Routes Simulator"))
	b.WriteString("\n\n")

	switch m.stage {
	case stageBuilding:
		b.WriteString(subtitleStyle.Render("Building Route Graphs"))
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View() + fmt.Sprintf(" Building rail, air and sea networks from %d locations...\n\n", len(w.Dataset.Locations)))
		b.WriteString(m.progress.ViewAs(m.progressPercent))

	case stageBuildComplete:
		b.WriteString(renderNetworks(m.networks))

	case stageSpawning:
		b.WriteString(subtitleStyle.Render("Spawning Vehicles"))
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View() + " " + renderCounts(m.counts) + "\n\n")
		b.WriteString(m.progress.ViewAs(m.progressPercent))
		b.WriteString("\n\n")
		b.WriteString(renderFeed(m.feed))

	case stageDone:
		b.WriteString(renderSummary(m))
	}

	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("Press 'q' to quit"))

	return b.String()
}

func renderNetworks(networks []networkStats) string {
	var lines []string
	for _, n := range networks {
		lines = append(lines, fmt.Sprintf(
			"✓ %-4s %s locations, %s edges, %s skipped connections (%s)",
			n.network,
			statStyle.Render(fmt.Sprintf("%d", n.locations)),
			statStyle.Render(fmt.Sprintf("%d", n.edges)),
			statStyle.Render(fmt.Sprintf("%d", n.anomalies)),
			n.buildTime.Round(time.Microsecond),
		))
	}
	if rejected := len(w.Dataset.Rejected); rejected > 0 {
		lines = append(lines, infoStyle.Render(fmt.Sprintf("• %d dataset entries rejected", rejected)))
	}

	return boxStyle.Render(successStyle.Render("Graphs Built!\n\n") + strings.Join(lines, "\n"))
}

func renderCounts(counts map[models.VehicleType]int) string {
	var parts []string
	for _, v := range w.Config.VehicleTypes() {
		parts = append(parts, vehicleStyles[v].Render(fmt.Sprintf("%s %d", v, counts[v])))
	}
	return strings.Join(parts, dimStyle.Render(" · "))
}

func renderFeed(feed []spawnEvent) string {
	if len(feed) == 0 {
		return dimStyle.Render("Waiting for the first spawn...")
	}

	var b strings.Builder
	b.WriteString(dimStyle.Render("Recent spawns:"))
	b.WriteString("\n")
	for _, e := range feed {
		kind := "direct"
		if e.itinerary.MultiStop {
			kind = fmt.Sprintf("%d stops", e.itinerary.Path.Stops())
		}
		b.WriteString(fmt.Sprintf("%s %s %s %s\n",
			dimStyle.Render(fmt.Sprintf("%6.1fs", e.at.Seconds())),
			vehicleStyles[e.itinerary.Vehicle].Render(fmt.Sprintf("%-5s", e.itinerary.Vehicle)),
			e.itinerary.Path,
			dimStyle.Render(fmt.Sprintf("(%s, %s)", kind, e.region)),
		))
	}
	return b.String()
}

func renderSummary(m model) string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Simulation failed: %v", m.err))
	}

	summary := titleStyle.Render("🎉 Simulation Complete!")
	summary += "\n\n"

	for _, v := range w.Config.VehicleTypes() {
		summary += successStyle.Render(fmt.Sprintf("• %-5s spawned %d, skipped %d", v, m.fleet.spawned[v], m.fleet.skipped[v])) + "\n"
	}

	total := m.fleet.total()
	multiShare := 0.0
	if total > 0 {
		multiShare = float64(m.fleet.multi) / float64(total) * 100
	}

	summary += "\n"
	summary += boxStyle.Render(
		infoStyle.Render("Fleet Summary:\n\n") +
			fmt.Sprintf("Vehicles spawned: %s\n", statStyle.Render(fmt.Sprintf("%d", total))) +
			fmt.Sprintf("Multi-stop itineraries: %s\n", statStyle.Render(fmt.Sprintf("%.0f%%", multiShare))) +
			fmt.Sprintf("Spawn rate: %s", statStyle.Render(fmt.Sprintf("%.1f vehicles/sec", float64(total)/m.fleet.elapsed.Seconds()))),
	)

	return summary
}

func runBuild() tea.Cmd {
	return func() tea.Msg {
		go func() {
			buildGraphs(w, func(done, total int, stats networkStats) {
				program.Send(networkBuiltMsg(stats))
				program.Send(progressMsg(float64(done) / float64(total)))
			})
			program.Send(stageCompleteMsg{stage: stageBuilding})
		}()
		return nil
	}
}

func runSpawn(d time.Duration) tea.Cmd {
	return func() tea.Msg {
		go func() {
			done := make(chan struct{})
			go func() {
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()

				start := time.Now()
				for {
					select {
					case <-done:
						program.Send(progressMsg(1))
						return
					case <-ticker.C:
						program.Send(progressMsg(min(time.Since(start).Seconds()/d.Seconds(), 1)))
					}
				}
			}()

			stats, err := simulate(context.Background(), w, d, func(e spawnEvent) {
				program.Send(spawnMsg(e))
			})
			close(done)
			program.Send(stageCompleteMsg{stage: stageSpawning, stats: stats, err: err})
		}()
		return nil
	}
}

func main() {
	var (
		configFile = flag.String("config", "", "Config file (default: config/config.yaml if present)")
		dataFile   = flag.String("data", "", "Dataset file (default: built-in sample)")
		duration   = flag.Duration("duration", 20*time.Second, "Simulation length")
		seed       = flag.Int64("seed", 0, "Random seed (default: config spawner.seed)")
		plain      = flag.Bool("plain", false, "Plain output even on a terminal")
	)
	flag.Parse()

	var err error
	w, err = world.Load(world.Options{ConfigFile: *configFile, DataPath: *dataFile, LogLevel: "error"})
	if err != nil {
		log.Fatalf("Failed to load: %v", err)
	}
	if *seed != 0 {
		w.Config.Spawner.Seed = *seed
	}

	if *plain || !interactive {
		runPlain(*duration)
		return
	}

	program = tea.NewProgram(initialModel(*duration))
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
