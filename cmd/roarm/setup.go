package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/roarm-follower/pkg/host"
	"github.com/gwillem/roarm-follower/pkg/identity"
	"github.com/gwillem/roarm-follower/pkg/prefs"
	"github.com/gwillem/roarm-follower/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const stdioLink = "stdin/stdout"

var errSetupAborted = errors.New("setup aborted")

type SetupCommand struct {
	SkipCalibration bool `long:"skip-calibration" description:"Keep the existing calibration"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("RoArm Follower Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := robot.DefaultConfig()
	if robot.ConfigExists(opts.Config) {
		existing, err := loadConfig(false)
		if err != nil {
			return fmt.Errorf("existing %s cannot be used, fix or remove it first: %w", opts.Config, err)
		}
		cfg = existing
		fmt.Printf("Updating existing configuration %s\n\n", opts.Config)
	}

	// Step 1: find the follower's servo bus
	port, err := scanForFollower()
	if err != nil {
		return err
	}
	cfg.Follower.Port = port
	cfg.Follower.Sim = false

	// Step 2: calibrate
	if !c.SkipCalibration {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("━━━ Calibrating Follower Arm ━━━"))
		fmt.Println()
		cal, err := calibrateArm(port)
		if err != nil {
			return err
		}
		cfg.Follower.Calibration = cal
	}

	// Step 3: identity
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Arm Identity ━━━"))
	fmt.Println()
	armID, err := askIdentity(cfg.PrefsDir)
	if err != nil {
		return err
	}

	// Step 4: host link
	link, err := askHostLink(port, cfg.Link.Port)
	if err != nil {
		return err
	}
	cfg.Link.Port = link

	if err := cfg.SaveTo(opts.Config); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Printf("Arm identity: %s\n", successStyle.Render(armID))
	fmt.Println()
	fmt.Println("Start reporting with: " + headerStyle.Render("roarm follower"))

	return nil
}

func scanForFollower() (string, error) {
	fmt.Println("Scanning for servo buses...")
	fmt.Println()

	arms := findArms()
	if len(arms) == 0 {
		fmt.Println("No arm with servos 1-6 found.")
		fmt.Println("Make sure the follower is connected and powered on.")
		return "", errSetupAborted
	}

	if len(arms) == 1 {
		arms[0].bus.Close()
		fmt.Printf("  Using %s\n", arms[0].port)
		return arms[0].port, nil
	}

	fmt.Printf("Found %d arms. Let's identify the follower...\n\n", len(arms))

	var followerPort string
	for _, arm := range arms {
		if followerPort != "" {
			arm.bus.Close()
			continue
		}
		isFollower, err := identifyArmWithWiggle(arm)
		if err != nil {
			return "", err
		}
		if isFollower {
			followerPort = arm.port
		}
	}

	if followerPort == "" {
		fmt.Println("Follower arm not identified.")
		return "", errSetupAborted
	}
	return followerPort, nil
}

type armInfo struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

func findArms() []armInfo {
	ports, err := host.ListPorts()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var arms []armInfo
	for _, port := range ports {
		bus, servos, err := connectToArm(port)
		if err != nil {
			continue
		}
		fmt.Printf("  Found arm on %s\n", port)
		arms = append(arms, armInfo{port: port, servos: servos, bus: bus})
	}

	return arms
}

func hasAllJoints(servos []feetech.FoundServo) bool {
	if len(servos) != len(robot.AllJoints()) {
		return false
	}

	ids := make(map[int]bool)
	for _, s := range servos {
		ids[s.ID] = true
	}
	for i := 1; i <= len(robot.AllJoints()); i++ {
		if !ids[i] {
			return false
		}
	}
	return true
}

func identifyArmWithWiggle(arm armInfo) (bool, error) {
	defer arm.bus.Close()

	ctx := context.Background()

	var servo *feetech.Servo
	for _, s := range arm.servos {
		if s.ID == 1 {
			servo = feetech.NewServo(arm.bus, s.ID, s.Model)
			break
		}
	}
	if servo == nil {
		return false, nil
	}

	originalPos, err := servo.Position(ctx)
	if err != nil {
		fmt.Printf("  Error reading position: %v\n", err)
		return false, nil
	}
	if err := servo.Enable(ctx); err != nil {
		fmt.Printf("  Error enabling servo: %v\n", err)
		return false, nil
	}

	fmt.Printf("\n  Wiggling base on %s...\n", arm.port)

	const wiggleAmount = 30
	const moveTimeMs = 500
	for _, pos := range []int{originalPos + wiggleAmount, originalPos - wiggleAmount, originalPos} {
		servo.SetPositionWithTime(ctx, pos, moveTimeMs)
		time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	}
	servo.Disable(ctx)

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Is the arm on %s the follower?", arm.port)).
				Description("The arm that just wiggled").
				Options(
					huh.NewOption("Yes, this is the follower", "follower"),
					huh.NewOption("No, skip this arm", "skip"),
				).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return false, errSetupAborted
	}
	return choice == "follower", nil
}

func connectToArm(port string) (*feetech.Bus, []feetech.FoundServo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: robot.BusBaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	servos, err := bus.Scan(ctx, 1, len(robot.AllJoints()))
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	if !hasAllJoints(servos) {
		bus.Close()
		return nil, nil, fmt.Errorf("expected servos with IDs 1-%d on %s", len(robot.AllJoints()), port)
	}

	return bus, servos, nil
}

func calibrateArm(port string) (robot.Calibration, error) {
	fmt.Printf("Calibrating follower arm on %s\n", port)
	fmt.Println()

	bus, servos, err := connectToArm(port)
	if err != nil {
		return nil, fmt.Errorf("connect to arm: %w", err)
	}
	defer bus.Close()

	servoMap := make(map[int]*feetech.Servo)
	for _, s := range servos {
		servoMap[s.ID] = feetech.NewServo(bus, s.ID, s.Model)
	}

	// Torque off so the arm can be moved by hand
	ctx := context.Background()
	for _, servo := range servoMap {
		servo.Disable(ctx)
	}

	joints := robot.AllJoints()

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move each joint to its minimum AND maximum positions.")
	fmt.Println("Finish with the arm in its home pose.")
	fmt.Println()

	cur := make(map[robot.JointName]int)
	lo := make(map[robot.JointName]int)
	hi := make(map[robot.JointName]int)
	for i, name := range joints {
		pos, _ := servoMap[i+1].Position(ctx)
		cur[name], lo[name], hi[name] = pos, pos, pos
	}

	p := tea.NewProgram(newCalibrationModel(joints, servoMap, cur, lo, hi))
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("run calibration: %w", err)
	}
	cm := finalModel.(calibrationModel)
	if cm.aborted {
		return nil, errSetupAborted
	}

	cal := make(robot.Calibration, len(joints))
	for i, name := range joints {
		cal[name] = robot.JointCalibration{
			ID:           i + 1,
			HomingOffset: cm.curPositions[name],
			RangeMin:     cm.minPositions[name],
			RangeMax:     cm.maxPositions[name],
		}
	}

	fmt.Println()
	fmt.Println("Follower arm calibrated.")
	return cal, nil
}

// askIdentity prompts for the arm identity and persists it in the prefs
// directory the follower reads at start.
func askIdentity(prefsDir string) (string, error) {
	store, err := prefs.Open(prefsDir)
	if err != nil {
		return "", err
	}
	ctx := context.Background()
	ids, err := identity.NewPrefsStore(ctx, store)
	if err != nil {
		return "", err
	}

	armID := ids.Load()
	if armID == identity.Unknown {
		armID = ""
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Arm identity").
				Description("Reported as arm_id, e.g. follower_left").
				Placeholder("follower_left").
				Validate(identity.Validate).
				Value(&armID),
		),
	)
	if err := form.Run(); err != nil {
		return "", errSetupAborted
	}

	if err := ids.Persist(armID); err != nil {
		return "", fmt.Errorf("save arm identity: %w", err)
	}
	fmt.Println(dimStyle.Render("Identity stored in " + store.Dir()))
	return armID, nil
}

func askHostLink(servoPort, current string) (string, error) {
	ports, err := host.ListPorts()
	if err != nil {
		ports = nil
	}

	options := []huh.Option[string]{huh.NewOption(stdioLink, "")}
	for _, p := range ports {
		if p == servoPort {
			continue
		}
		options = append(options, huh.NewOption(p, p))
	}

	link := current
	if link != "" && !slices.ContainsFunc(options, func(o huh.Option[string]) bool { return o.Value == link }) {
		options = append(options, huh.NewOption(link+" (not connected)", link))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Host link").
				Description("Where position reports are written").
				Options(options...).
				Value(&link),
		),
	)
	if err := form.Run(); err != nil {
		return "", errSetupAborted
	}
	return link, nil
}

// Calibration TUI model
type calibrationModel struct {
	joints       []robot.JointName
	servoMap     map[int]*feetech.Servo
	curPositions map[robot.JointName]int
	minPositions map[robot.JointName]int
	maxPositions map[robot.JointName]int
	quitting     bool
	aborted      bool
}

type tickMsg time.Time

func newCalibrationModel(
	joints []robot.JointName,
	servoMap map[int]*feetech.Servo,
	curPositions, minPositions, maxPositions map[robot.JointName]int,
) calibrationModel {
	return calibrationModel{
		joints:       joints,
		servoMap:     servoMap,
		curPositions: curPositions,
		minPositions: minPositions,
		maxPositions: maxPositions,
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return tick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q":
			m.quitting = true
			return m, tea.Quit
		case "ctrl+c":
			m.quitting = true
			m.aborted = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx := context.Background()
		for i, name := range m.joints {
			pos, err := m.servoMap[i+1].Position(ctx)
			if err != nil {
				continue
			}
			m.curPositions[name] = pos
			m.minPositions[name] = min(m.minPositions[name], pos)
			m.maxPositions[name] = max(m.maxPositions[name], pos)
		}
		return m, tick()
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableJointStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.joints))
	ranges := make([]int, 0, len(m.joints))
	for _, name := range m.joints {
		rangeSize := m.maxPositions[name] - m.minPositions[name]
		ranges = append(ranges, rangeSize)
		rows = append(rows, []string{
			string(name),
			fmt.Sprintf("%d", m.curPositions[name]),
			fmt.Sprintf("%d", m.minPositions[name]),
			fmt.Sprintf("%d", m.maxPositions[name]),
			fmt.Sprintf("%d", rangeSize),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableJointStyle
			case 1:
				return tableCurrentStyle
			case 4:
				if row >= 0 && row < len(ranges) && ranges[row] > 500 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Hold the home pose and press Enter (ctrl+c aborts)"))

	return sb.String()
}
