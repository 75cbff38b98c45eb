package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmatnyc/commander/pkg/channels"
	"github.com/bobmatnyc/commander/pkg/logger"
	"github.com/bobmatnyc/commander/pkg/session"
	"github.com/bobmatnyc/commander/pkg/state"
)

const welcomeText = `👋 Commander bridge.

Control your terminal AI sessions from this chat. Pair first with
/pair <code> (mint the code with /telegram in the Commander TUI), then
/connect <alias> and just type to talk to the session.

/help lists all commands.`

var helpTopics = map[string]string{
	"connect":      "/connect <alias> — connect to a registered project or a running terminal session.\n/connect <path> -a <adapter> -n <name> — register a new project and connect.",
	"connect-tree": "/connect-tree <alias> (alias /ct) — create a git worktree and branch session/<alias>, then connect a session inside it.",
	"disconnect":   "/disconnect — detach this chat from its session. The terminal session keeps running.",
	"stop":         "/stop (alias /s) — auto-commit, merge a worktree session back, destroy the terminal session.",
	"send":         "/send <text> — send text to the terminal verbatim.",
	"list":         "/list — registered projects with connect buttons.",
	"sessions":     "/sessions — running terminal sessions with connect buttons.",
	"session":      "/session <name> — attach to a terminal session by exact name.",
	"status":       "/status — connection, adapter, activity and a short screen preview.",
	"pair":         "/pair <code> — authorize this chat with a pairing code.",
	"telegram":     "/telegram — run inside the Commander TUI to mint a pairing code.",
	"groupmode":    "/groupmode — enable forum-topic mode for this group.",
	"topic":        "/topic <alias> — create a forum topic bound to a session.",
	"topics":       "/topics — list topic bindings in this group.",
}

func helpText() string {
	names := make([]string, 0, len(helpTopics))
	for name := range helpTopics {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range names {
		b.WriteString(helpTopics[name])
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// IsAuthorized implements channels.Dispatcher.
func (s *Service) IsAuthorized(chatID int64) bool {
	return s.registry.IsAuthorized(chatID)
}

// key resolves the SessionKey of an inbound message: the chat plus its
// forum thread when present.
func (s *Service) key(in channels.Inbound) session.Key {
	return session.Key{ChatID: in.ChatID, ThreadID: in.ThreadID}
}

func (s *Service) reply(ctx context.Context, in channels.Inbound, text string) {
	if _, err := s.chat.Send(ctx, in.ChatID, in.ThreadID, text); err != nil {
		logger.WarnCF("bridge", "Reply send failed", map[string]interface{}{
			"chat_id": in.ChatID,
			"error":   err.Error(),
		})
	}
}

// HandleCommand implements channels.Dispatcher.
func (s *Service) HandleCommand(ctx context.Context, in channels.Inbound, cmd channels.Command) {
	switch cmd.Name {
	case "start":
		s.reply(ctx, in, welcomeText)
	case "help":
		s.handleHelp(ctx, in, cmd)
	case "pair":
		s.handlePair(ctx, in, cmd)
	case "telegram":
		s.reply(ctx, in, "ℹ️ Pairing codes are minted in the Commander TUI: run /telegram there and send /pair <code> here.")
	case "connect":
		s.handleConnect(ctx, in, cmd)
	case "connect-tree":
		s.handleConnectTree(ctx, in, cmd)
	case "disconnect":
		s.handleDisconnect(ctx, in)
	case "stop":
		s.handleStop(ctx, in)
	case "send":
		s.handleSend(ctx, in, cmd)
	case "list":
		s.handleList(ctx, in)
	case "sessions":
		s.handleSessions(ctx, in)
	case "session":
		s.handleSession(ctx, in, cmd)
	case "status":
		s.handleStatus(ctx, in)
	case "groupmode":
		s.handleGroupMode(ctx, in)
	case "topic":
		s.handleTopic(ctx, in, cmd)
	case "topics":
		s.handleTopics(ctx, in)
	}
}

func (s *Service) handleHelp(ctx context.Context, in channels.Inbound, cmd channels.Command) {
	if len(cmd.Args) > 0 {
		name := strings.TrimPrefix(strings.ToLower(cmd.Args[0]), "/")
		if topic, ok := helpTopics[name]; ok {
			s.reply(ctx, in, topic)
			return
		}
		s.reply(ctx, in, fmt.Sprintf("No help for '%s'.", cmd.Args[0]))
		return
	}
	s.reply(ctx, in, helpText())
}

func (s *Service) handlePair(ctx context.Context, in channels.Inbound, cmd channels.Command) {
	if len(cmd.Args) != 1 {
		s.reply(ctx, in, "Usage: /pair <6-char-code>")
		return
	}

	code := strings.ToUpper(cmd.Args[0])
	_, projectName, err := s.registry.ConsumePairing(code, in.ChatID)
	if err != nil {
		if errors.Is(err, state.ErrPairingExpired) {
			s.reply(ctx, in, "⏰ That code is expired or unknown. Mint a fresh one with /telegram in the TUI.")
			return
		}
		s.reply(ctx, in, "⚠️ Pairing failed. Try again with a fresh code.")
		return
	}
	s.reply(ctx, in, fmt.Sprintf("✅ Paired with project '%s'. You can now connect.", projectName))
}

func (s *Service) handleConnect(ctx context.Context, in channels.Inbound, cmd channels.Command) {
	args, ok := channels.ParseConnectArgs(cmd.Args)
	if !ok {
		s.reply(ctx, in, "Usage: /connect <alias> or /connect <path> -a <adapter> -n <name>")
		return
	}

	key := s.key(in)
	if args.IsNew() {
		if err := s.registry.ConnectNew(ctx, key, args.Path, args.Adapter, args.Name); err != nil {
			s.replyError(ctx, in, err)
			return
		}
		s.reply(ctx, in, fmt.Sprintf("🔌 Registered and connected to '%s' (%s).", args.Name, args.Adapter))
		return
	}

	name, tool, err := s.registry.Connect(ctx, key, args.Alias)
	if err != nil {
		s.replyError(ctx, in, err)
		return
	}
	s.reply(ctx, in, fmt.Sprintf("🔌 Connected to '%s' (%s).", name, tool))
}

func (s *Service) handleConnectTree(ctx context.Context, in channels.Inbound, cmd channels.Command) {
	if len(cmd.Args) != 1 {
		s.reply(ctx, in, "Usage: /connect-tree <alias>")
		return
	}

	worktreePath, branch, err := s.registry.ConnectWithWorktree(ctx, s.key(in), cmd.Args[0])
	if err != nil {
		s.replyError(ctx, in, err)
		return
	}
	s.reply(ctx, in, fmt.Sprintf("🌿 Worktree ready.\nPath: %s\nBranch: %s", worktreePath, branch))
}

func (s *Service) handleDisconnect(ctx context.Context, in channels.Inbound) {
	name, err := s.registry.Disconnect(s.key(in))
	if err != nil {
		s.replyError(ctx, in, err)
		return
	}
	s.reply(ctx, in, fmt.Sprintf("👋 Disconnected from '%s'. The terminal session keeps running.", name))
}

func (s *Service) handleStop(ctx context.Context, in channels.Inbound) {
	report, err := s.registry.Stop(ctx, s.key(in))
	if err != nil {
		s.replyError(ctx, in, err)
		return
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("🛑 Stopped '%s'.", report.ProjectName))
	if report.Committed {
		lines = append(lines, "✅ Pending changes committed.")
	}
	if report.MergedInto != "" {
		lines = append(lines, fmt.Sprintf("✅ Merged session branch into %s and removed the worktree.", report.MergedInto))
	}
	if report.TerminalDestroyed {
		lines = append(lines, "✅ Terminal session destroyed.")
	}
	s.reply(ctx, in, strings.Join(lines, "\n"))
}

func (s *Service) handleSend(ctx context.Context, in channels.Inbound, cmd channels.Command) {
	if cmd.ArgText == "" {
		s.reply(ctx, in, "Usage: /send <text>")
		return
	}
	if err := s.registry.SendInput(ctx, s.key(in), cmd.ArgText, in.MessageID); err != nil {
		s.replyError(ctx, in, err)
	}
}

func (s *Service) handleList(ctx context.Context, in channels.Inbound) {
	projects := s.projects.List()
	if len(projects) == 0 {
		s.reply(ctx, in, "No projects registered. Use /connect <path> -a <adapter> -n <name>.")
		return
	}

	var b strings.Builder
	b.WriteString("Projects:\n")
	var buttons []channels.Button
	for _, p := range projects {
		fmt.Fprintf(&b, "• %s (%s) — %s\n", p.Name, p.ToolID, p.Path)
		buttons = append(buttons, channels.Button{
			Label: p.Name,
			Data:  "connect:" + session.TerminalPrefix + p.Name,
		})
	}

	if _, err := s.chat.SendKeyboard(ctx, in.ChatID, in.ThreadID, strings.TrimRight(b.String(), "\n"), buttons); err != nil {
		logger.WarnCF("bridge", "Project list send failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Service) handleSessions(ctx context.Context, in channels.Inbound) {
	names, err := s.mux.ListSessions(ctx)
	if err != nil {
		s.replyError(ctx, in, err)
		return
	}
	if len(names) == 0 {
		s.reply(ctx, in, "No terminal sessions running.")
		return
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Terminal sessions:\n")
	var buttons []channels.Button
	for _, name := range names {
		fmt.Fprintf(&b, "• %s\n", name)
		buttons = append(buttons, channels.Button{Label: name, Data: "connect:" + name})
	}

	if _, err := s.chat.SendKeyboard(ctx, in.ChatID, in.ThreadID, strings.TrimRight(b.String(), "\n"), buttons); err != nil {
		logger.WarnCF("bridge", "Session list send failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Service) handleSession(ctx context.Context, in channels.Inbound, cmd channels.Command) {
	if len(cmd.Args) != 1 {
		s.reply(ctx, in, "Usage: /session <name>")
		return
	}
	if err := s.registry.Attach(ctx, s.key(in), cmd.Args[0]); err != nil {
		s.replyError(ctx, in, err)
		return
	}
	s.reply(ctx, in, fmt.Sprintf("🔌 Attached to terminal session '%s'.", cmd.Args[0]))
}

func (s *Service) handleStatus(ctx context.Context, in channels.Inbound) {
	st, err := s.registry.Get(s.key(in))
	if err != nil {
		s.replyError(ctx, in, err)
		return
	}

	stateText := "idle"
	if st.IsSummarizing {
		stateText = "summarizing"
	} else if st.IsWaiting {
		stateText = fmt.Sprintf("collecting (%d lines)", st.BufferedLines)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📟 %s\nAdapter: %s\nTerminal: %s\nState: %s\nLast activity: %s ago",
		st.ProjectName, st.ToolID, st.TerminalName, stateText,
		time.Since(st.LastActivity).Round(time.Second))
	if st.Worktree != nil {
		fmt.Fprintf(&b, "\nWorktree: %s (%s)", st.Worktree.WorktreePath, st.Worktree.BranchName)
	}

	if capture, err := s.mux.CaptureOutput(ctx, st.TerminalName, 50); err == nil {
		if preview := s.filter.CleanScreenPreview(capture, 5); preview != "" {
			fmt.Fprintf(&b, "\n\nScreen:\n%s", preview)
		}
	}
	s.reply(ctx, in, b.String())
}

func (s *Service) handleGroupMode(ctx context.Context, in channels.Inbound) {
	if err := s.groups.SetForum(in.ChatID); err != nil {
		logger.WarnCF("bridge", "Could not persist group config", map[string]interface{}{
			"chat_id": in.ChatID,
			"error":   err.Error(),
		})
	}
	s.reply(ctx, in, "🧵 Forum mode enabled. Use /topic <alias> to bind topics to sessions.")
}

func (s *Service) handleTopic(ctx context.Context, in channels.Inbound, cmd channels.Command) {
	if len(cmd.Args) != 1 {
		s.reply(ctx, in, "Usage: /topic <alias>")
		return
	}
	if !s.groups.IsForum(in.ChatID) {
		s.reply(ctx, in, "This chat is not in forum mode. Run /groupmode first.")
		return
	}

	alias := cmd.Args[0]
	threadID, err := s.chat.CreateTopic(ctx, in.ChatID, alias)
	if err != nil {
		s.replyError(ctx, in, err)
		return
	}
	if err := s.groups.BindTopic(in.ChatID, threadID, alias); err != nil {
		logger.WarnCF("bridge", "Could not persist topic binding", map[string]interface{}{
			"chat_id": in.ChatID,
			"error":   err.Error(),
		})
	}

	key := session.Key{ChatID: in.ChatID, ThreadID: threadID}
	if _, _, err := s.registry.Connect(ctx, key, alias); err != nil {
		s.replyError(ctx, in, err)
		return
	}
	s.reply(ctx, in, fmt.Sprintf("🧵 Topic '%s' created and connected.", alias))
}

func (s *Service) handleTopics(ctx context.Context, in channels.Inbound) {
	topics := s.groups.Topics(in.ChatID)
	if len(topics) == 0 {
		s.reply(ctx, in, "No topic bindings in this chat.")
		return
	}

	threadIDs := make([]int, 0, len(topics))
	for id := range topics {
		threadIDs = append(threadIDs, id)
	}
	sort.Ints(threadIDs)

	var b strings.Builder
	b.WriteString("Topic bindings:\n")
	for _, id := range threadIDs {
		fmt.Fprintf(&b, "• thread %d → %s\n", id, topics[id])
	}
	s.reply(ctx, in, strings.TrimRight(b.String(), "\n"))
}

// HandleMention implements channels.Dispatcher: "@alias text" connects and
// forwards the remainder.
func (s *Service) HandleMention(ctx context.Context, in channels.Inbound, alias, text string) {
	key := s.key(in)
	name, _, err := s.registry.Connect(ctx, key, alias)
	if err != nil {
		s.replyError(ctx, in, err)
		return
	}
	if text == "" {
		s.reply(ctx, in, fmt.Sprintf("🔌 Connected to '%s'.", name))
		return
	}
	if err := s.registry.SendInput(ctx, key, text, in.MessageID); err != nil {
		s.replyError(ctx, in, err)
	}
}

// HandleText implements channels.Dispatcher: free text goes to the
// terminal unmodified and starts a response collection. In a forum chat,
// text outside a topic is chat-wide and never reaches a session.
func (s *Service) HandleText(ctx context.Context, in channels.Inbound) {
	if in.ThreadID == 0 && s.groups.IsForum(in.ChatID) {
		s.reply(ctx, in, "🧵 This chat runs in forum mode. Talk to a session inside its topic, or create one with /topic <alias>.")
		return
	}
	if err := s.registry.SendInput(ctx, s.key(in), in.Text, in.MessageID); err != nil {
		s.replyError(ctx, in, err)
	}
}

// HandleCallback implements channels.Dispatcher: inline connect buttons
// carry "connect:<terminal_name>".
func (s *Service) HandleCallback(ctx context.Context, cb channels.Callback) {
	in := channels.Inbound{ChatID: cb.ChatID, ThreadID: cb.ThreadID}
	data := cb.Data
	if !strings.HasPrefix(data, "connect:") {
		return
	}
	terminalName := strings.TrimPrefix(data, "connect:")

	name, tool, err := s.registry.Connect(ctx, s.key(in), terminalName)
	if err != nil {
		s.replyError(ctx, in, err)
		return
	}
	s.reply(ctx, in, fmt.Sprintf("🔌 Connected to '%s' (%s).", name, tool))
}

// replyError maps registry errors to one-line user replies. Internal
// detail stays in the logs.
func (s *Service) replyError(ctx context.Context, in channels.Inbound, err error) {
	var text string
	switch {
	case errors.Is(err, session.ErrNotConnected):
		text = "🔌 No session connected here. Use /connect <alias>."
	case errors.Is(err, session.ErrBusy):
		text = "⏳ The session is still answering a previous message. Wait for it to finish."
	case errors.Is(err, session.ErrProjectNotFound):
		text = "🔍 Nothing matches that alias. /list shows projects, /sessions shows running terminals."
	case errors.Is(err, session.ErrSessionNotFound):
		text = "🔍 No terminal session with that exact name."
	case errors.Is(err, session.ErrPathInvalid):
		text = "📁 That path does not exist or is not a directory."
	case errors.Is(err, session.ErrUnknownTool):
		text = "🔧 Unknown adapter. Known adapters: claude-code, mpm, aider, shell."
	case errors.Is(err, session.ErrNotWorktree):
		text = "🌿 Commander is not running inside a git repository, so worktrees are unavailable."
	case errors.Is(err, state.ErrPairingExpired):
		text = "⏰ That pairing code is expired or unknown."
	default:
		logger.WarnCF("bridge", "Command failed", map[string]interface{}{
			"chat_id": in.ChatID,
			"error":   err.Error(),
		})
		text = "⚠️ " + firstSentence(err.Error())
	}
	s.reply(ctx, in, text)
}

func firstSentence(s string) string {
	if idx := strings.IndexAny(s, "\n"); idx > 0 {
		s = s[:idx]
	}
	return s
}
