// Package ui renders the live dashboard with Bubble Tea.
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/sysmoni/internal/collector"
	"github.com/Dicklesworthstone/sysmoni/internal/host"
	"github.com/Dicklesworthstone/sysmoni/internal/model"
	"github.com/Dicklesworthstone/sysmoni/internal/units"
)

// Store is the state the dashboard reads and drives; *state.Store implements it.
type Store interface {
	Snapshot() model.Snapshot
	Params() collector.Params
	Paused() bool
	TogglePause() bool
	CycleSort() host.SortKey
	ReverseSort() bool
	ToggleSystem() bool
	Select(pid int32)
}

// Model renders the latest published snapshot on every tick.
type Model struct {
	store  Store
	info   model.SystemInfo
	latest model.Snapshot
	cursor int
	width  int
	height int
}

func New(store Store, info model.SystemInfo) *Model {
	return &Model{
		store:  store,
		info:   info,
		latest: store.Snapshot(),
		width:  120,
		height: 40,
	}
}

// Messages
type tickMsg struct{}

func tickCmd() tea.Cmd { return tea.Tick(time.Second/5, func(time.Time) tea.Msg { return tickMsg{} }) }

func (m *Model) Init() tea.Cmd { return tickCmd() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "p":
			m.store.TogglePause()
		case "s":
			m.store.CycleSort()
		case "r":
			m.store.ReverseSort()
		case "S":
			m.store.ToggleSystem()
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.latest.Processes)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor < len(m.latest.Processes) {
				m.store.Select(m.latest.Processes[m.cursor].PID)
			}
		case "esc":
			m.store.Select(0)
		}
	case tickMsg:
		m.latest = m.store.Snapshot()
		if m.cursor >= len(m.latest.Processes) {
			m.cursor = max(0, len(m.latest.Processes)-1)
		}
		return m, tickCmd()
	}
	return m, nil
}

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	cursorStyle = lipgloss.NewStyle().Reverse(true)
	gaugeFill   = "█"
	gaugeEmpty  = "░"
	sparkRunes  = []rune("▁▂▃▄▅▆▇█")
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1)
)

func (m *Model) View() string {
	s := m.latest
	g := s.Global
	p := m.store.Params()

	status := fmt.Sprintf("sort %s %s", p.SortBy, order(p.Ascending))
	if m.store.Paused() {
		status += "  " + warnStyle.Render("PAUSED")
	}
	if s.Slow {
		status += "  " + warnStyle.Render("slow "+s.CollectionCost.Round(time.Millisecond).String())
	}
	header := titleStyle.Render("sysmoni "+m.info.Hostname) + "  " +
		subtleStyle.Render(s.CapturedAt.Format("Mon Jan 2 15:04:05 MST 2006")) + "  " +
		subtleStyle.Render(status)

	cpuCard := card("CPU",
		fmt.Sprintf("%s  load %.2f %.2f %.2f\n%s",
			gaugeBar(g.CPU, 28),
			g.Load.Load1, g.Load.Load5, g.Load.Load15,
			sparkline(g.CPUHistory, 100, 40)))

	memCard := card("Memory",
		fmt.Sprintf("%s  %s/%s | Swap %3.0f%%\n%s",
			gaugeBar(g.MemPercent(), 28),
			units.FormatSize(g.MemUsed),
			units.FormatSize(g.MemTotal),
			units.SafePercentage(g.SwapUsed, g.SwapTotal),
			sparkline(g.MemHistory, 100, 40)))

	ioCard := card("IO / NET",
		fmt.Sprintf("Disk R/W: %s / %s\n%s\nNet ↓/↑: %s / %s\n%s",
			units.FormatRate(g.DiskRead), units.FormatRate(g.DiskWrite),
			sparkline(g.DiskReadHistory, 0, 40),
			units.FormatRate(g.NetDown), units.FormatRate(g.NetUp),
			sparkline(g.NetDownHistory, 0, 40)))

	columns := []string{cpuCard, memCard, ioCard}
	if gpuCard := renderGPUs(s); gpuCard != "" {
		columns = append(columns, gpuCard)
	}

	topTable := card("Processes", m.renderProcesses(s.Processes, 12))
	line2 := []string{topTable}
	if ctr := renderContainers(s); ctr != "" {
		line2 = append(line2, ctr)
	}
	if s.Detailed != nil {
		line2 = append(line2, renderDetail(s.Detailed))
	}

	line1 := lipgloss.JoinHorizontal(lipgloss.Top, columns...)
	footer := subtleStyle.Render("q quit · p pause · s sort · r reverse · S system · ↑/↓ enter select · esc clear")
	return lipgloss.JoinVertical(lipgloss.Left, header, line1, lipgloss.JoinHorizontal(lipgloss.Top, line2...), footer)
}

func renderGPUs(s model.Snapshot) string {
	if len(s.GPUs) == 0 {
		if s.GPUError == "" {
			return ""
		}
		return card("GPU", subtleStyle.Render(truncate(s.GPUError, 40)))
	}
	lines := make([]string, 0, len(s.GPUs))
	for _, g := range s.GPUs {
		lines = append(lines,
			fmt.Sprintf("%s %4.0f%% mem:%s/%s %2.0f°C",
				truncate(g.Name, 12), g.Util,
				units.FormatSize(g.MemUsed), units.FormatSize(g.MemTotal), g.Temp),
			sparkline(g.UtilHistory, 100, 40))
	}
	return card("GPU", strings.Join(lines, "\n"))
}

func renderContainers(s model.Snapshot) string {
	if len(s.Containers) == 0 {
		if s.ContainerError == "" {
			return ""
		}
		return card("Containers", subtleStyle.Render(truncate(s.ContainerError, 48)))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %-8s %-10s %-10s\n", "name", "cpu", "mem", "net ↓")
	for i, c := range s.Containers {
		if i == 8 {
			break
		}
		fmt.Fprintf(&b, "%-16s %-8s %-10s %-10s\n", truncate(c.Name, 16), c.CPU, c.Memory, c.NetDown)
	}
	return card("Containers", strings.TrimRight(b.String(), "\n"))
}

func renderDetail(d *model.DetailedProcess) string {
	lines := []string{
		fmt.Sprintf("%s (%d) %s", d.Name, d.PID, d.Status),
		fmt.Sprintf("user %s  threads %d", d.User, d.Threads),
		fmt.Sprintf("rss %s  vms %s", units.FormatSize(d.RSS), units.FormatSize(d.VMS)),
		"started " + d.StartTime,
		truncate(d.Command, 40),
	}
	return card("Detail", strings.Join(lines, "\n"))
}

func (m *Model) renderProcesses(rows []model.ProcessSample, limit int) string {
	n := min(limit, len(rows))
	start := 0
	if m.cursor >= limit {
		start = m.cursor - limit + 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-18s %-7s %-10s %6s %9s %10s\n", "cmd", "pid", "user", "cpu", "mem", "read")
	for i := start; i < start+n && i < len(rows); i++ {
		r := rows[i]
		line := fmt.Sprintf("%-18s %-7d %-10s %6.1f %9s %10s",
			truncate(r.Name, 18), r.PID, truncate(r.User, 10), r.CPU,
			units.FormatSize(r.Memory), units.FormatRate(r.DiskRead))
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Helpers
func gaugeBar(pct float64, width int) string {
	pct = units.ClampPercent(pct)
	filled := int((pct / 100) * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat(gaugeFill, filled),
		strings.Repeat(gaugeEmpty, width-filled),
		pct)
}

// sparkline draws the last width values. A ceiling of 0 scales to the
// largest value shown.
func sparkline(values []float64, ceiling float64, width int) string {
	if len(values) > width {
		values = values[len(values)-width:]
	}
	if ceiling <= 0 {
		for _, v := range values {
			if v > ceiling {
				ceiling = v
			}
		}
	}
	out := make([]rune, len(values))
	for i, v := range values {
		idx := 0
		if ceiling > 0 && v > 0 {
			idx = int(v / ceiling * float64(len(sparkRunes)-1))
		}
		idx = max(0, min(idx, len(sparkRunes)-1))
		out[i] = sparkRunes[idx]
	}
	return string(out)
}

func card(title, body string) string {
	titleStr := labelStyle.Render(title)
	content := titleStr + "\n" + body
	return cardStyle.Render(content)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func order(ascending bool) string {
	if ascending {
		return "↑"
	}
	return "↓"
}

// RunTUI starts the Bubble Tea program.
func RunTUI(store Store, info model.SystemInfo) error {
	prog := tea.NewProgram(New(store, info), tea.WithAltScreen())
	_, err := prog.Run()
	return err
}
