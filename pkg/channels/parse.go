package channels

import "strings"

// Command is a parsed slash command.
type Command struct {
	Name string
	Args []string
	// ArgText is everything after the command name, unsplit. /send uses it
	// to forward the remainder verbatim.
	ArgText string
}

// commandAliases maps shorthand commands to their canonical names.
var commandAliases = map[string]string{
	"ct": "connect-tree",
	"s":  "stop",
}

// knownCommands is the closed command grammar.
var knownCommands = map[string]struct{}{
	"start":        {},
	"help":         {},
	"pair":         {},
	"connect":      {},
	"connect-tree": {},
	"disconnect":   {},
	"stop":         {},
	"send":         {},
	"list":         {},
	"sessions":     {},
	"session":      {},
	"status":       {},
	"telegram":     {},
	"groupmode":    {},
	"topic":        {},
	"topics":       {},
}

// authExempt lists the commands usable before pairing.
var authExempt = map[string]struct{}{
	"start": {},
	"help":  {},
	"pair":  {},
}

// ParseCommand recognizes a leading-slash command. The bool result is false
// for free text; a slash message with an unknown name still parses so the
// caller can reply "unknown command".
func ParseCommand(text string) (Command, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{}, false
	}

	head := trimmed
	argText := ""
	if idx := strings.IndexAny(trimmed, " \t"); idx > 0 {
		head = trimmed[:idx]
		argText = strings.TrimSpace(trimmed[idx+1:])
	}

	name := strings.TrimPrefix(head, "/")
	// Strip a @botname suffix: Telegram appends it in group chats.
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	name = strings.ToLower(name)
	if canonical, ok := commandAliases[name]; ok {
		name = canonical
	}

	cmd := Command{Name: name, ArgText: argText}
	if argText != "" {
		cmd.Args = strings.Fields(argText)
	}
	return cmd, true
}

// Known reports whether name is part of the command grammar.
func (c Command) Known() bool {
	_, ok := knownCommands[c.Name]
	return ok
}

// AuthExempt reports whether the command may run in an unpaired chat.
func (c Command) AuthExempt() bool {
	_, ok := authExempt[c.Name]
	return ok
}

// ConnectArgs is the parsed form of /connect's two shapes:
// "/connect <alias>" and "/connect <path> -a <adapter> -n <name>".
type ConnectArgs struct {
	Alias   string
	Path    string
	Adapter string
	Name    string
}

// IsNew reports whether the command asks for a new project registration.
func (a ConnectArgs) IsNew() bool {
	return a.Path != ""
}

// ParseConnectArgs interprets the argument list of /connect.
func ParseConnectArgs(args []string) (ConnectArgs, bool) {
	if len(args) == 0 {
		return ConnectArgs{}, false
	}
	if len(args) == 1 {
		return ConnectArgs{Alias: args[0]}, true
	}

	parsed := ConnectArgs{Path: args[0]}
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "-a":
			if i+1 >= len(args) {
				return ConnectArgs{}, false
			}
			i++
			parsed.Adapter = args[i]
		case "-n":
			if i+1 >= len(args) {
				return ConnectArgs{}, false
			}
			i++
			parsed.Name = args[i]
		default:
			return ConnectArgs{}, false
		}
	}
	if parsed.Adapter == "" || parsed.Name == "" {
		return ConnectArgs{}, false
	}
	return parsed, true
}

// ParseMention recognizes the "@alias text" implicit-connect form and
// returns the alias and the remaining text.
func ParseMention(text string) (alias, rest string, ok bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "@") {
		return "", "", false
	}
	parts := strings.SplitN(trimmed, " ", 2)
	alias = strings.TrimPrefix(parts[0], "@")
	if alias == "" {
		return "", "", false
	}
	if len(parts) > 1 {
		rest = strings.TrimSpace(parts[1])
	}
	return alias, rest, true
}
