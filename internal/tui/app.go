// Package tui provides the interactive terminal UI for Relay.
package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	toolItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	serverOnlineStyle = lipgloss.NewStyle().
				Foreground(successColor).
				Bold(true)

	serverOfflineStyle = lipgloss.NewStyle().
				Foreground(errorColor)
)

// App is the main TUI application model.
type App struct {
	client       *Client
	tools        []ToolItem
	selectedIdx  int
	input        textinput.Model
	viewport     viewport.Model
	width        int
	height       int
	mode         string // "tools", "detail", "servers", "log"
	currentTool  *ToolItem
	servers      []ServerItem
	serverIdx    int
	invocations  []InvocationItem
	message      string
	loading      bool
	daemonOnline bool
	suggestions  *Suggestions
}

// New creates a new TUI application.
func New(apiAddr string) *App {
	ti := textinput.New()
	ti.Placeholder = "Type: dispatch <tool> [json args] | server add <id> <prefix> <endpoint> | reconnect <id>"
	ti.Focus()
	ti.CharLimit = 512
	ti.Width = 80

	vp := viewport.New(80, 20)

	return &App{
		client:      NewClient(apiAddr),
		input:       ti,
		viewport:    vp,
		mode:        "tools",
		suggestions: NewSuggestions(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.fetchTools(),
		a.checkDaemon(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "esc":
			if a.mode == "detail" || a.mode == "servers" || a.mode == "log" {
				a.mode = "tools"
				a.currentTool = nil
				return a, a.fetchTools()
			}

		case "up", "k":
			if a.suggestions.IsVisible() {
				a.suggestions.Prev()
			} else if a.mode == "tools" && a.selectedIdx > 0 {
				a.selectedIdx--
			} else if a.mode == "servers" && a.serverIdx > 0 {
				a.serverIdx--
			}

		case "down", "j":
			if a.suggestions.IsVisible() {
				a.suggestions.Next()
			} else if a.mode == "tools" && a.selectedIdx < len(a.tools)-1 {
				a.selectedIdx++
			} else if a.mode == "servers" && a.serverIdx < len(a.servers)-1 {
				a.serverIdx++
			}

		case "tab":
			// If suggestions visible, accept selection
			if a.suggestions.IsVisible() {
				if selected := a.suggestions.Selected(); selected != nil {
					a.input.SetValue(selected.Text + " ")
					a.suggestions.Update("")
				}
				return a, nil
			}
			// Cycle through modes: tools -> servers -> log -> tools
			switch a.mode {
			case "tools":
				a.mode = "servers"
				return a, a.fetchServers()
			case "servers":
				a.mode = "log"
				return a, a.fetchLog()
			default:
				a.mode = "tools"
				return a, a.fetchTools()
			}

		case "enter":
			if a.suggestions.IsVisible() {
				if selected := a.suggestions.Selected(); selected != nil {
					a.input.SetValue(selected.Text + " ")
					a.suggestions.Update("")
				}
				return a, nil
			}
			cmd := strings.TrimSpace(a.input.Value())
			if cmd != "" {
				a.input.SetValue("")
				return a, a.executeCommand(cmd)
			} else if a.mode == "tools" && len(a.tools) > 0 {
				tool := a.tools[a.selectedIdx]
				a.mode = "detail"
				a.currentTool = &tool
				return a, a.fetchToolLog(tool.Name)
			}

		case "r":
			switch a.mode {
			case "tools":
				return a, a.fetchTools()
			case "servers":
				return a, a.fetchServers()
			case "log":
				return a, a.fetchLog()
			}

		case "s":
			a.mode = "servers"
			return a, a.fetchServers()

		case "l":
			a.mode = "log"
			return a, a.fetchLog()
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4
		a.viewport.Width = msg.Width
		a.viewport.Height = msg.Height - 10

	case toolsLoadedMsg:
		a.loading = false
		a.tools = msg.tools
		if a.selectedIdx >= len(a.tools) {
			a.selectedIdx = max(0, len(a.tools)-1)
		}

	case serversLoadedMsg:
		a.servers = msg.servers
		if a.serverIdx >= len(a.servers) {
			a.serverIdx = max(0, len(a.servers)-1)
		}

	case logLoadedMsg:
		a.invocations = msg.invocations

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case commandResultMsg:
		a.message = msg.message
		return a, a.refreshCurrent()

	case errMsg:
		a.message = "Error: " + msg.err.Error()
	}

	// Update input
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	// Update suggestions based on input
	a.suggestions.Update(a.input.Value())

	// Populate dynamic suggestions for @
	if strings.HasPrefix(a.input.Value(), "@") {
		var toolNames []string
		for _, t := range a.tools {
			toolNames = append(toolNames, t.Name)
		}
		a.suggestions.SetTools(toolNames)

		var serverIDs []string
		for _, s := range a.servers {
			serverIDs = append(serverIDs, s.ID)
		}
		a.suggestions.SetServers(serverIDs)
	}

	return a, tea.Batch(cmds...)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	// Header with daemon status
	daemonStatus := serverOnlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = serverOfflineStyle.Render("○ DAEMON")
	}

	header := titleStyle.Render("🔀 RELAY Tool Router")
	header += "  " + daemonStatus
	header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(fmt.Sprintf("[%d tools]", len(a.tools)))

	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", a.width) + "\n")

	// Main content area
	contentHeight := a.height - 8
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch a.mode {
	case "tools":
		b.WriteString(a.renderToolList(contentHeight))
	case "detail":
		b.WriteString(a.renderToolDetail(contentHeight))
	case "servers":
		b.WriteString(a.renderServersPanel(contentHeight))
	case "log":
		b.WriteString(a.renderLogPanel(contentHeight))
	}

	// Message bar
	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	// Input box
	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))

	// Suggestions dropdown (if visible) - renders BELOW input
	if a.suggestions.IsVisible() {
		b.WriteString("\n")
		b.WriteString(a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	// Status bar
	var status string
	switch a.mode {
	case "tools":
		status = fmt.Sprintf(" Tools: %d | ↑↓:nav | Enter:detail | Tab:servers | l:log | r:refresh | Ctrl+C:quit", len(a.tools))
	case "servers":
		status = fmt.Sprintf(" Servers: %d | ↑↓:nav | r:refresh | Esc:back", len(a.servers))
	case "log":
		status = fmt.Sprintf(" Invocations: %d | r:refresh | Esc:back", len(a.invocations))
	default:
		status = " Esc:back | Enter:command | Ctrl+C:quit"
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

func (a *App) renderToolList(height int) string {
	if a.loading {
		return "\n  Loading tools...\n"
	}
	if len(a.tools) == 0 {
		return "\n  Catalogue is empty. Type: server add <id> <prefix> <endpoint>\n"
	}

	var lines []string
	for i, tool := range a.tools {
		origin := a.formatOrigin(tool)

		if i == a.selectedIdx {
			line := selectedStyle.Render(fmt.Sprintf("▶ %-10s %s", tool.Origin, tool.Name))
			lines = append(lines, line)
		} else {
			line := toolItemStyle.Render(fmt.Sprintf("  %s %s", origin, tool.Name))
			lines = append(lines, line)
		}
	}

	// Limit visible lines
	if len(lines) > height {
		start := a.selectedIdx - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}

	return strings.Join(lines, "\n")
}

func (a *App) renderToolDetail(height int) string {
	if a.currentTool == nil {
		return "\n  Loading...\n"
	}

	var b strings.Builder
	t := a.currentTool

	b.WriteString(fmt.Sprintf("\n  🔧 %s\n", lipgloss.NewStyle().Bold(true).Render(t.Name)))
	b.WriteString(fmt.Sprintf("  Origin: %s\n", a.formatOrigin(*t)))
	if t.Description != "" {
		b.WriteString(fmt.Sprintf("  Description: %s\n", t.Description))
	}
	if t.ServerID != "" {
		b.WriteString(fmt.Sprintf("  Server: %s\n", t.ServerID))
		b.WriteString(fmt.Sprintf("  Remote name: %s\n", t.RemoteName))
	}

	if len(a.invocations) > 0 {
		b.WriteString("\n  📜 Recent Invocations:\n")
		for i, inv := range a.invocations {
			if i >= 5 {
				break
			}
			statusStyle := lipgloss.NewStyle().Foreground(successColor)
			if inv.Status != "ok" {
				statusStyle = lipgloss.NewStyle().Foreground(errorColor)
			}
			detail := inv.Detail
			if len(detail) > 40 {
				detail = detail[:40] + "..."
			}
			b.WriteString(fmt.Sprintf("    • %s %s (%dms)\n", statusStyle.Render(inv.Status), detail, inv.DurationMS))
		}
	}

	b.WriteString("\n  " + helpStyle.Render(fmt.Sprintf("Dispatch: @%s {\"arg\": \"value\"}", t.Name)) + "\n")

	return b.String()
}

func (a *App) renderServersPanel(height int) string {
	var b strings.Builder

	b.WriteString("\n  🖥  Tool Servers\n")
	b.WriteString("  " + strings.Repeat("─", 40) + "\n\n")

	if len(a.servers) == 0 {
		b.WriteString("  No servers registered.\n")
		b.WriteString("  Type: server add <id> <prefix> <endpoint>\n")
		return b.String()
	}

	for i, srv := range a.servers {
		statusIcon := serverOnlineStyle.Render("●")
		if srv.State != "connected" {
			statusIcon = serverOfflineStyle.Render("○")
		}

		stateLabel := lipgloss.NewStyle().Foreground(mutedColor).Render(fmt.Sprintf("(%s, %d tools)", srv.State, srv.ToolCount))

		var line string
		if i == a.serverIdx {
			line = selectedStyle.Render(fmt.Sprintf("▶ %s %s %s", statusIcon, srv.ID, stateLabel))
		} else {
			line = fmt.Sprintf("    %s %s %s", statusIcon, srv.ID, stateLabel)
		}
		b.WriteString(line + "\n")

		// Show extra info for selected server
		if i == a.serverIdx && srv.Prefix != "" {
			prefixLine := lipgloss.NewStyle().Foreground(mutedColor).Render(fmt.Sprintf("      Prefix: %s", srv.Prefix))
			b.WriteString(prefixLine + "\n")
		}
		if i == a.serverIdx && srv.LastError != "" {
			errLine := lipgloss.NewStyle().Foreground(errorColor).Render(fmt.Sprintf("      Last error: %s", srv.LastError))
			b.WriteString(errLine + "\n")
		}
	}

	b.WriteString("\n  " + helpStyle.Render("Commands: server add <id> <prefix> <endpoint> | server rm | reconnect <id>") + "\n")

	return b.String()
}

func (a *App) renderLogPanel(height int) string {
	var b strings.Builder

	b.WriteString("\n  📜 Invocation Log\n")
	b.WriteString("  " + strings.Repeat("─", 50) + "\n\n")

	if len(a.invocations) == 0 {
		b.WriteString("  " + lipgloss.NewStyle().Foreground(mutedColor).Render("No invocations recorded") + "\n")
		return b.String()
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(cyanColor)
	b.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
		headerStyle.Render(fmt.Sprintf("%-24s", "TOOL")),
		headerStyle.Render(fmt.Sprintf("%-8s", "STATUS")),
		headerStyle.Render(fmt.Sprintf("%-8s", "MS")),
		headerStyle.Render("DETAIL"),
	))
	b.WriteString("  " + strings.Repeat("─", 60) + "\n")

	shown := a.invocations
	if len(shown) > height-5 && height > 5 {
		shown = shown[:height-5]
	}
	for _, inv := range shown {
		statusStyle := lipgloss.NewStyle().Foreground(successColor)
		if inv.Status != "ok" {
			statusStyle = lipgloss.NewStyle().Foreground(errorColor)
		}

		detail := inv.Detail
		if inv.Status != "ok" && inv.ErrorKind != "" {
			detail = fmt.Sprintf("[%s] %s", inv.ErrorKind, detail)
		}
		if len(detail) > 40 {
			detail = detail[:37] + "..."
		}

		b.WriteString(fmt.Sprintf("  %-24s  %s  %-8d  %s\n",
			inv.Tool,
			statusStyle.Render(fmt.Sprintf("%-8s", inv.Status)),
			inv.DurationMS,
			detail,
		))
	}

	return b.String()
}

func (a *App) formatOrigin(tool ToolItem) string {
	switch tool.Origin {
	case "native":
		return lipgloss.NewStyle().Foreground(secondaryColor).Render("◆ native")
	case "remote":
		return lipgloss.NewStyle().Foreground(warningColor).Render(fmt.Sprintf("◇ %s", tool.ServerID))
	default:
		return tool.Origin
	}
}

func (a *App) fetchTools() tea.Cmd {
	a.loading = true
	return func() tea.Msg {
		tools, err := a.client.ListTools()
		if err != nil {
			return errMsg{err}
		}
		return toolsLoadedMsg{tools}
	}
}

func (a *App) fetchServers() tea.Cmd {
	return func() tea.Msg {
		servers, err := a.client.ListServers()
		if err != nil {
			return errMsg{err}
		}
		return serversLoadedMsg{servers}
	}
}

func (a *App) fetchLog() tea.Cmd {
	return func() tea.Msg {
		invocations, err := a.client.ListInvocations("", 50)
		if err != nil {
			return errMsg{err}
		}
		return logLoadedMsg{invocations}
	}
}

func (a *App) fetchToolLog(tool string) tea.Cmd {
	return func() tea.Msg {
		invocations, err := a.client.ListInvocations(tool, 10)
		if err != nil {
			return errMsg{err}
		}
		return logLoadedMsg{invocations}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		ok, _ := a.client.CheckHealth()
		return daemonStatusMsg{online: ok}
	}
}

func (a *App) refreshCurrent() tea.Cmd {
	switch a.mode {
	case "servers":
		return a.fetchServers()
	case "log":
		return a.fetchLog()
	default:
		return a.fetchTools()
	}
}

func (a *App) executeCommand(input string) tea.Cmd {
	// @tool {...} is shorthand for dispatch
	if strings.HasPrefix(input, "@") {
		input = "dispatch " + strings.TrimPrefix(input, "@")
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	args := parts[1:]

	// Mode switches happen synchronously; everything else talks to the daemon.
	switch cmd {
	case "servers":
		a.mode = "servers"
		return a.fetchServers()
	case "log":
		a.mode = "log"
		return a.fetchLog()
	case "refresh":
		return a.refreshCurrent()
	case "q", "quit", "exit":
		return tea.Quit
	}

	selectedServer := ""
	if len(a.servers) > 0 && a.serverIdx < len(a.servers) {
		selectedServer = a.servers[a.serverIdx].ID
	}

	return func() tea.Msg {
		switch cmd {
		case "dispatch":
			if len(args) < 1 {
				return commandResultMsg{"Usage: dispatch <tool> [json args]"}
			}
			toolName := args[0]
			toolArgs := map[string]interface{}{}
			if len(args) > 1 {
				raw := strings.Join(args[1:], " ")
				if err := json.Unmarshal([]byte(raw), &toolArgs); err != nil {
					return commandResultMsg{"Error: args must be a JSON object"}
				}
			}
			text, err := a.client.Dispatch(toolName, toolArgs)
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			if len(text) > 120 {
				text = text[:120] + "..."
			}
			return commandResultMsg{fmt.Sprintf("✓ %s → %s", toolName, text)}

		case "server":
			if len(args) >= 1 && args[0] == "add" {
				if len(args) < 4 {
					return commandResultMsg{"Usage: server add <id> <prefix> <endpoint>"}
				}
				if err := a.client.RegisterServer(args[1], args[2], args[3]); err != nil {
					return commandResultMsg{"Error: " + err.Error()}
				}
				return commandResultMsg{fmt.Sprintf("✓ Registered server: %s", args[1])}
			}
			if len(args) >= 1 && args[0] == "rm" {
				id := selectedServer
				if len(args) > 1 {
					id = args[1]
				}
				if id == "" {
					return commandResultMsg{"No server selected"}
				}
				if err := a.client.RemoveServer(id); err != nil {
					return commandResultMsg{"Error: " + err.Error()}
				}
				return commandResultMsg{fmt.Sprintf("✓ Unregistered server: %s", id)}
			}
			return commandResultMsg{"Usage: server add <id> <prefix> <endpoint> | server rm [id]"}

		case "reconnect":
			id := selectedServer
			if len(args) > 0 {
				id = args[0]
			}
			if id == "" {
				return commandResultMsg{"Usage: reconnect <id>"}
			}
			if err := a.client.ReconnectServer(id); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("✓ Reconnected server: %s", id)}

		default:
			return commandResultMsg{fmt.Sprintf("Unknown: %s (try: dispatch, server add, reconnect, log)", cmd)}
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type commandResultMsg struct {
	message string
}

type errMsg struct {
	err error
}

type toolsLoadedMsg struct {
	tools []ToolItem
}

type serversLoadedMsg struct {
	servers []ServerItem
}

type logLoadedMsg struct {
	invocations []InvocationItem
}

type daemonStatusMsg struct {
	online bool
}
