package channels

// RouteKind says where an inbound text belongs.
type RouteKind int

const (
	// RouteCommand: a known slash command.
	RouteCommand RouteKind = iota
	// RouteUnknownCommand: leading slash, not in the grammar.
	RouteUnknownCommand
	// RouteMention: "@alias text" implicit connect.
	RouteMention
	// RouteText: free text for the connected session.
	RouteText
)

// Route is the dispatch decision for one inbound text.
type Route struct {
	Kind    RouteKind
	Command Command
	Alias   string
	Rest    string
}

// RouteInbound applies the inbound pseudo-grammar: command first, mention
// next, free text last.
func RouteInbound(text string) Route {
	if cmd, ok := ParseCommand(text); ok {
		if !cmd.Known() {
			return Route{Kind: RouteUnknownCommand, Command: cmd}
		}
		return Route{Kind: RouteCommand, Command: cmd}
	}
	if alias, rest, ok := ParseMention(text); ok {
		return Route{Kind: RouteMention, Alias: alias, Rest: rest}
	}
	return Route{Kind: RouteText}
}
