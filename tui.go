package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"localwhisper/appstate"
	"localwhisper/backend"
	"localwhisper/capture"
	"localwhisper/config"
	"localwhisper/download"
	"localwhisper/events"
	"localwhisper/i18n"
	"localwhisper/keys"
	"localwhisper/miccheck"
	"localwhisper/models"
	"localwhisper/update"
)

// TUI message types
type stateMsg appstate.State
type configMsg config.AppConfig
type devicesMsg []backend.AudioDevice
type catalogMsg []models.Info
type systemMsg backend.SystemInfo
type micMsg miccheck.Snapshot
type progressMsg events.DownloadProgress
type downloadDoneMsg struct {
	ID  string
	Err error
}
type updateMsg update.Release
type noticeMsg string
type refreshMsg struct{}

type field int

const (
	fieldToggle field = iota
	fieldPTT
	fieldAutoPaste
	fieldLanguage
	fieldUILocale
	fieldDevice
	fieldMicTest
	fieldModel
	fieldCount
)

const (
	labelWidth = 32
	meterWidth = 20
)

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	focusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// tuiModel is the settings screen. Backend calls run as tea.Cmds; push
// events arrive through send from whatever goroutine emitted them.
type tuiModel struct {
	ctx  context.Context
	cmds backend.Commands
	src  events.Source
	send func(tea.Msg)

	focus  field
	cfg    config.AppConfig
	loaded bool
	app    appstate.State

	toggle  *capture.Session
	ptt     *capture.Session
	mic     *miccheck.Monitor
	micSnap miccheck.Snapshot

	devices  []backend.AudioDevice
	catalog  []models.Info
	cursor   int
	trackers map[string]*download.Tracker
	progress map[string]events.DownloadProgress
	system   backend.SystemInfo
	release  *update.Release
	notice   string

	width, height int
}

func newTUIModel(ctx context.Context, cmds backend.Commands, src events.Source, send func(tea.Msg)) tuiModel {
	acquire := func(owner string) func(context.Context) (func(), error) {
		return func(ctx context.Context) (func(), error) {
			return cmds.AcquireListener(ctx, owner)
		}
	}
	return tuiModel{
		ctx:  ctx,
		cmds: cmds,
		src:  src,
		send: send,
		cfg:  config.Default(),
		toggle: capture.New(capture.Options{
			Name:    "toggle",
			Acquire: acquire("settings-toggle"),
			Persist: func(ctx context.Context, s keys.Shortcut) error {
				return cmds.UpdateHotkey(ctx, string(s))
			},
		}),
		ptt: capture.New(capture.Options{
			Name:       "ptt",
			AllowClear: true,
			Acquire:    acquire("settings-ptt"),
			Persist: func(ctx context.Context, s keys.Shortcut) error {
				return cmds.UpdateHotkeyPTT(ctx, string(s))
			},
		}),
		mic: miccheck.New(miccheck.Options{
			Source:   src,
			Test:     cmds.TestMicrophone,
			OnChange: func(s miccheck.Snapshot) { send(micMsg(s)) },
		}),
		trackers: map[string]*download.Tracker{},
		progress: map[string]events.DownloadProgress{},
	}
}

// NewTUIProgram builds the settings program. Messages sent with tuiSend reach
// it once it is running.
func NewTUIProgram(ctx context.Context, cmds backend.Commands, src events.Source) *tea.Program {
	m := newTUIModel(ctx, cmds, src, tuiSend)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	tuiMu.Lock()
	tuiProgram = p
	tuiMu.Unlock()
	return p
}

// tuiSend must not be called from inside Update.
func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()

	if p != nil {
		p.Send(msg)
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(m.loadConfig, m.loadDevices, m.loadCatalog, m.loadSystem)
}

func (m tuiModel) loadConfig() tea.Msg {
	cfg, err := m.cmds.GetConfig(m.ctx)
	if err != nil {
		return noticeMsg(err.Error())
	}
	return configMsg(cfg)
}

func (m tuiModel) loadDevices() tea.Msg {
	devs, err := m.cmds.ListAudioDevices(m.ctx)
	if err != nil {
		return noticeMsg(err.Error())
	}
	return devicesMsg(devs)
}

func (m tuiModel) loadCatalog() tea.Msg {
	list, err := m.cmds.ListModels(m.ctx)
	if err != nil {
		return noticeMsg(err.Error())
	}
	return catalogMsg(list)
}

func (m tuiModel) loadSystem() tea.Msg {
	info, err := m.cmds.GetSystemInfo(m.ctx)
	if err != nil {
		return noticeMsg(err.Error())
	}
	return systemMsg(info)
}

// do runs a mutating command and reloads config and catalog on success.
func (m tuiModel) do(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(m.ctx); err != nil {
			return noticeMsg(err.Error())
		}
		return refreshMsg{}
	}
}

func (m tuiModel) commit(s *capture.Session) tea.Cmd {
	return func() tea.Msg {
		// A failed save is rendered from the session itself.
		_ = s.Commit(m.ctx)
		return refreshMsg{}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.BlurMsg:
		// Leaving the terminal mid-capture must not keep the hotkeys suspended.
		m.toggle.Blur()
		m.ptt.Blur()

	case stateMsg:
		m.app = appstate.State(msg)

	case configMsg:
		m.cfg = config.AppConfig(msg)
		m.loaded = true

	case devicesMsg:
		m.devices = msg

	case catalogMsg:
		m.catalog = msg
		if m.cursor >= len(m.catalog) {
			m.cursor = max(0, len(m.catalog)-1)
		}

	case systemMsg:
		m.system = backend.SystemInfo(msg)

	case micMsg:
		m.micSnap = miccheck.Snapshot(msg)

	case progressMsg:
		// Snapshots for a finished download may still be in flight.
		if _, ok := m.trackers[msg.ModelID]; ok {
			m.progress[msg.ModelID] = events.DownloadProgress(msg)
		}

	case downloadDoneMsg:
		if tr := m.trackers[msg.ID]; tr != nil {
			tr.Close()
		}
		delete(m.trackers, msg.ID)
		delete(m.progress, msg.ID)
		if msg.Err != nil {
			m.notice = msg.Err.Error()
		}
		return m, tea.Batch(m.loadCatalog, m.loadConfig)

	case updateMsg:
		rel := update.Release(msg)
		m.release = &rel

	case noticeMsg:
		m.notice = string(msg)

	case refreshMsg:
		return m, tea.Batch(m.loadConfig, m.loadCatalog)
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	if sess := m.activeSession(); sess != nil {
		ev, ok := terminalKeyEvent(msg)
		if !ok {
			return m, nil
		}
		if sess.KeyDown(ev) == capture.Resolved {
			return m, m.commit(sess)
		}
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m.quit()
	case "tab", "down", "j":
		m.focus = (m.focus + 1) % fieldCount
		m.notice = ""
	case "shift+tab", "up", "k":
		m.focus = (m.focus + fieldCount - 1) % fieldCount
		m.notice = ""
	case "left", "h":
		return m.cycle(-1)
	case "right", "l":
		return m.cycle(1)
	case "enter", " ":
		return m.activate()
	case "x", "delete":
		if m.focus == fieldModel {
			return m.deleteModel()
		}
	}
	return m, nil
}

// activeSession is the picker that owns the keyboard, if any.
func (m tuiModel) activeSession() *capture.Session {
	for _, s := range []*capture.Session{m.toggle, m.ptt} {
		if s.State() != capture.Idle {
			return s
		}
	}
	return nil
}

// wait blocks until both pickers have returned their listener leases.
func (m tuiModel) wait() {
	m.toggle.Wait()
	m.ptt.Wait()
}

func (m tuiModel) quit() (tea.Model, tea.Cmd) {
	m.toggle.Cancel()
	m.ptt.Cancel()
	m.mic.Close()
	for id, tr := range m.trackers {
		tr.Close()
		delete(m.trackers, id)
	}
	return m, tea.Quit
}

func (m tuiModel) activate() (tea.Model, tea.Cmd) {
	switch m.focus {
	case fieldToggle:
		m.toggle.Start(m.ctx)
	case fieldPTT:
		m.ptt.Start(m.ctx)
	case fieldAutoPaste:
		enabled := !m.cfg.AutoPaste
		return m, m.do(func(ctx context.Context) error { return m.cmds.SetAutoPaste(ctx, enabled) })
	case fieldLanguage, fieldUILocale, fieldDevice:
		return m.cycle(1)
	case fieldMicTest:
		if m.micSnap.State == miccheck.Testing {
			return m, nil
		}
		return m, func() tea.Msg {
			m.mic.Run(m.ctx)
			return nil
		}
	case fieldModel:
		return m.selectModel()
	}
	return m, nil
}

func (m tuiModel) cycle(delta int) (tea.Model, tea.Cmd) {
	switch m.focus {
	case fieldLanguage:
		lang := step(config.Languages, m.cfg.Language, delta)
		return m, m.do(func(ctx context.Context) error { return m.cmds.SetLanguage(ctx, lang) })
	case fieldUILocale:
		loc := step(config.UILocales, m.cfg.UILocale, delta)
		return m, m.do(func(ctx context.Context) error { return m.cmds.SetUILocale(ctx, loc) })
	case fieldDevice:
		// Index 0 is the system default.
		names := []string{""}
		for _, d := range m.devices {
			names = append(names, d.Name)
		}
		cur := ""
		if m.cfg.AudioDevice != nil {
			cur = *m.cfg.AudioDevice
		}
		next := step(names, cur, delta)
		var name *string
		if next != "" {
			name = &next
		}
		return m, m.do(func(ctx context.Context) error { return m.cmds.SetAudioDevice(ctx, name) })
	case fieldModel:
		if n := len(m.catalog); n > 0 {
			m.cursor = (m.cursor + delta + n) % n
		}
	}
	return m, nil
}

// step returns the element delta positions after cur, wrapping. An unknown
// cur counts as the first element.
func step(list []string, cur string, delta int) string {
	if len(list) == 0 {
		return cur
	}
	idx := 0
	for i, v := range list {
		if v == cur {
			idx = i
			break
		}
	}
	n := len(list)
	return list[((idx+delta)%n+n)%n]
}

func (m tuiModel) selectedModel() (models.Info, bool) {
	if m.cursor < 0 || m.cursor >= len(m.catalog) {
		return models.Info{}, false
	}
	return m.catalog[m.cursor], true
}

func (m tuiModel) selectModel() (tea.Model, tea.Cmd) {
	info, ok := m.selectedModel()
	if !ok {
		return m, nil
	}
	if info.IsDownloaded {
		return m, m.do(func(ctx context.Context) error { return m.cmds.LoadModel(ctx, info.ID) })
	}
	if m.trackers[info.ID] != nil {
		return m, nil
	}
	send := m.send
	tr, err := download.Track(m.src, info.ID, func(p events.DownloadProgress) { send(progressMsg(p)) })
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}
	m.trackers[info.ID] = tr
	return m, func() tea.Msg {
		return downloadDoneMsg{ID: info.ID, Err: m.cmds.DownloadModel(m.ctx, info.ID)}
	}
}

func (m tuiModel) deleteModel() (tea.Model, tea.Cmd) {
	info, ok := m.selectedModel()
	if !ok || !info.IsDownloaded {
		return m, nil
	}
	return m, m.do(func(ctx context.Context) error { return m.cmds.DeleteModel(ctx, info.ID) })
}

func (m tuiModel) t(id string, data map[string]any) string {
	return i18n.T(m.cfg.UILocale, id, data)
}

func (m tuiModel) View() string {
	if !m.loaded {
		return m.t("app.loading", nil)
	}

	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line(titleStyle.Render("LocalWhisper"))
	line(m.statusLine())
	if m.app.LastTranscription != nil {
		line(dimStyle.Render(m.t("settings.lastTranscription", nil)))
		width := m.width - 2
		if width <= 0 {
			width = 76
		}
		for _, l := range wrapText(*m.app.LastTranscription, width) {
			line("  " + l)
		}
	}
	line("")

	labels := i18n.Labels(m.cfg.UILocale)
	line(sectionStyle.Render(m.t("settings.shortcuts", nil)))
	line(m.row(fieldToggle, m.t("settings.hotkeyToggle", nil), m.pickerValue(m.toggle, m.cfg.Hotkey, "hotkey.placeholder", labels)))
	line(m.row(fieldPTT, m.t("settings.hotkeyPtt", nil), m.pickerValue(m.ptt, m.cfg.HotkeyPTT, "hotkey.placeholderClear", labels)))
	if m.focus == fieldPTT {
		line(dimStyle.Render("    " + m.t("settings.pttHelp", nil)))
	}

	line(sectionStyle.Render(m.t("settings.general", nil)))
	paste := m.t("settings.off", nil)
	if m.cfg.AutoPaste {
		paste = m.t("settings.on", nil)
	}
	line(m.row(fieldAutoPaste, m.t("settings.autoPaste", nil), paste))
	if m.focus == fieldAutoPaste {
		line(dimStyle.Render("    " + m.t("settings.autoPasteHelp", nil)))
	}

	line(sectionStyle.Render(m.t("settings.transcription", nil)))
	line(m.row(fieldLanguage, m.t("langSelector.label", nil), m.t("langSelector."+m.cfg.Language, nil)))

	line(sectionStyle.Render(m.t("settings.interface", nil)))
	line(m.row(fieldUILocale, m.t("settings.uiLanguage", nil), m.t("langSelector."+m.cfg.UILocale, nil)))

	line(sectionStyle.Render(m.t("settings.audio", nil)))
	device := m.t("audio.default", nil)
	if m.cfg.AudioDevice != nil {
		device = *m.cfg.AudioDevice
	}
	line(m.row(fieldDevice, m.t("audio.microphone", nil), device))
	line(m.row(fieldMicTest, m.t("audio.testMic", nil), m.micValue()))

	line(sectionStyle.Render(m.t("settings.manageModels", nil)))
	active := m.t("modelSelector.placeholder", nil)
	if m.cfg.ActiveModel != nil {
		active = *m.cfg.ActiveModel
		for _, info := range m.catalog {
			if info.ID == active {
				active = info.Name
			}
		}
	}
	line(m.row(fieldModel, m.t("modelSelector.label", nil), active))
	for _, l := range m.modelLines() {
		line(l)
	}
	if m.system.OS != "" {
		line(dimStyle.Render("  " + m.t("catalog.systemInfo", map[string]any{
			"OS":    m.system.OS,
			"Arch":  m.system.Arch,
			"Ram":   fmt.Sprintf("%.0f", m.system.TotalRAMGB),
			"Cores": m.system.CPUCores,
		})))
	}

	line("")
	if m.release != nil {
		line(okStyle.Render(m.t("update.available", map[string]any{"Version": m.release.Version})))
	}
	if m.notice != "" {
		line(errStyle.Render(m.notice))
	}
	line(dimStyle.Render(m.t("settings.help", nil)))
	return b.String()
}

func (m tuiModel) statusLine() string {
	switch {
	case m.app.Error != nil:
		return errStyle.Render("✖ " + *m.app.Error)
	case m.app.Recording:
		return recStyle.Render("● " + m.t("settings.recording", nil))
	case m.app.Transcribing:
		return busyStyle.Render("◌ " + m.t("settings.transcribing", nil))
	}
	return okStyle.Render("○ " + m.t("settings.ready", nil))
}

func (m tuiModel) row(f field, label, value string) string {
	pad := strings.Repeat(" ", max(1, labelWidth-lipgloss.Width(label)))
	cursor := "  "
	if m.focus == f {
		cursor = focusStyle.Render("> ")
		label = focusStyle.Render(label)
	}
	return cursor + label + pad + value
}

func (m tuiModel) pickerValue(s *capture.Session, current, placeholder string, labels keys.LabelFunc) string {
	var v string
	switch s.State() {
	case capture.Capturing:
		v = m.t(placeholder, nil)
		if p := s.Preview(); p != "" {
			v = p
		}
		v = busyStyle.Render(v)
	case capture.CommittedPending:
		pending, _ := s.Pending()
		v = busyStyle.Render(keys.Format(pending, labels))
	default:
		v = keys.Format(keys.Shortcut(current), labels)
	}
	if e := s.Err(); e != "" {
		v += " " + errStyle.Render(e)
	}
	return v
}

func (m tuiModel) micValue() string {
	snap := m.micSnap
	fill := int(math.Round(math.Min(1, snap.Level*5) * meterWidth))
	bar := "[" + strings.Repeat("█", fill) + strings.Repeat("░", meterWidth-fill) + "]"
	switch snap.State {
	case miccheck.Testing:
		return busyStyle.Render(bar + " " + m.t("audio.testing", nil))
	case miccheck.Success:
		return okStyle.Render(bar + " " + m.t("audio.micOk", nil))
	case miccheck.NoSound:
		return errStyle.Render(bar + " " + m.t("audio.noSound", nil))
	case miccheck.Error:
		return errStyle.Render(m.t("audio.error", nil) + ": " + snap.Message)
	}
	return dimStyle.Render(bar)
}

func (m tuiModel) modelLines() []string {
	var out []string
	unit := m.t("download.unit", nil)
	for i, info := range m.catalog {
		cursor := "    "
		if m.focus == fieldModel && i == m.cursor {
			cursor = focusStyle.Render("  › ")
		}
		mark := " "
		switch {
		case m.cfg.ActiveModel != nil && *m.cfg.ActiveModel == info.ID:
			mark = okStyle.Render("●")
		case info.IsDownloaded:
			mark = okStyle.Render("✓")
		}
		status := dimStyle.Render(info.SizeLabel)
		if p, ok := m.progress[info.ID]; ok {
			status = busyStyle.Render(download.Describe(p, unit))
		} else if m.trackers[info.ID] != nil {
			status = busyStyle.Render(m.t("wizard.downloading", nil))
		}
		name := info.Name
		if info.ID == m.system.RecommendedModel {
			name += " " + dimStyle.Render("("+m.t("wizard.recommended", nil)+")")
		}
		out = append(out, fmt.Sprintf("%s%s %s  %s", cursor, mark, name, status))
	}
	if len(m.catalog) == 0 {
		out = append(out, dimStyle.Render("    "+m.t("modelSelector.noModels", nil)))
	}
	return out
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Break at the last space that fits.
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
