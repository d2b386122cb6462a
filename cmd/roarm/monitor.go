package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/roarm-follower/pkg/host"
	"github.com/gwillem/roarm-follower/pkg/robot"
)

type MonitorCommand struct {
	Port     string `short:"p" long:"port" description:"Serial port of the follower (default: first arm found)"`
	BaudRate int    `long:"baud" default:"115200" description:"Serial baud rate"`
}

const (
	headerHeight = 3 // title + pose + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Joint colors, one per data set
var jointColors = map[robot.JointName]string{
	robot.Base:      "196", // red
	robot.Shoulder:  "208", // orange
	robot.Elbow:     "226", // yellow
	robot.WristTilt: "46",  // green
	robot.WristRoll: "51",  // cyan
	robot.Gripper:   "201", // magenta
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// chanSink hands samples to the TUI, dropping them when it falls behind.
type chanSink chan host.Sample

func (c chanSink) WriteSample(s host.Sample) error {
	select {
	case c <- s:
	default:
	}
	return nil
}

type sampleMsg host.Sample
type logMsg string

type monitorModel struct {
	armID   string
	port    string
	samples chanSink
	logs    chan string
	chart   *streamlinechart.Model
	width   int
	height  int
	lines   []string

	last     host.Sample
	lastT    uint32
	hasLast  bool
	rate     float64
	quitting bool
}

func waitForSample(c chanSink) tea.Cmd {
	return func() tea.Msg {
		return sampleMsg(<-c)
	}
}

func waitForLog(c chan string) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-c)
	}
}

func newMonitorModel(armID, port string, samples chanSink, logs chan string) monitorModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-math.Pi, math.Pi),
	)
	for _, name := range robot.AllJoints() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[name]))
		chart.SetDataSetStyles(string(name), runes.ThinLineStyle, style)
	}

	return monitorModel{
		armID:   armID,
		port:    port,
		samples: samples,
		logs:    logs,
		chart:   &chart,
	}
}

func (m *monitorModel) addLog(msg string) {
	m.lines = append(m.lines, msg)
	if len(m.lines) > maxLogs {
		m.lines = m.lines[len(m.lines)-maxLogs:]
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(waitForSample(m.samples), waitForLog(m.logs))
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case sampleMsg:
		s := host.Sample(msg)
		// Device time is uint32 ms; the difference is wrap-safe.
		if m.hasLast {
			if dt := s.T - m.lastT; dt > 0 {
				m.rate = 0.9*m.rate + 0.1*(1000/float64(dt))
			}
		}
		for name, rad := range s.State().Joints.Map() {
			m.chart.PushDataSet(string(name), rad)
		}
		m.chart.DrawAll()
		m.last, m.lastT, m.hasLast = s, s.T, true
		return m, waitForSample(m.samples)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.logs)
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("RoArm Monitor"))
	sb.WriteString(fmt.Sprintf(" - %s on %s", m.armID, m.port))
	sb.WriteString(statusStyle.Render(fmt.Sprintf("  %.1f Hz", m.rate)))
	sb.WriteString("\n")
	if m.hasLast {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("t:%d  x:%.1f y:%.1f z:%.1f tilt:%.2f",
			m.last.T, m.last.X, m.last.Y, m.last.Z, m.last.Tilt)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("9"))

	logLines := statusStyle.Render("Press 'q' to quit")
	if len(m.lines) > 0 {
		logLines = strings.Join(m.lines, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var items []string
	for _, name := range robot.AllJoints() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+string(name))
	}
	return strings.Join(items, "  ")
}

func (c *MonitorCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	port, armID, err := c.pickArm(ctx)
	if err != nil {
		return err
	}

	conn, err := host.OpenSerial(port, c.BaudRate)
	if err != nil {
		return err
	}
	defer conn.Close()

	samples := make(chanSink, 64)
	logs := make(chan string, maxLogs)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		stream := &host.Stream{Port: port, ArmID: armID, Sinks: []host.SampleSink{samples}}
		if err := stream.Read(ctx, conn); err != nil {
			logs <- err.Error()
			return
		}
		if ctx.Err() == nil {
			logs <- fmt.Sprintf("%s closed", port)
		}
	}()

	p := tea.NewProgram(newMonitorModel(armID, port, samples, logs), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run monitor: %w", err)
	}
	return nil
}

func (c *MonitorCommand) pickArm(ctx context.Context) (string, string, error) {
	d := &host.Detector{BaudRate: c.BaudRate, Timeout: 2 * time.Second}
	if c.Port != "" {
		armID, err := d.DetectArm(ctx, c.Port)
		if err != nil {
			return "", "", fmt.Errorf("%s: %w", c.Port, err)
		}
		return c.Port, armID, nil
	}

	ports, err := host.ListPorts()
	if err != nil {
		return "", "", err
	}
	for _, port := range ports {
		if armID, err := d.DetectArm(ctx, port); err == nil {
			return port, armID, nil
		}
	}
	return "", "", host.ErrNoArm
}
