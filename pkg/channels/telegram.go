package channels

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/bobmatnyc/commander/pkg/logger"
	"github.com/bobmatnyc/commander/pkg/utils"
)

// Inbound is a normalized incoming chat message.
type Inbound struct {
	ChatID    int64
	ThreadID  int
	MessageID int
	Text      string
}

// Callback is a normalized inline-keyboard button press.
type Callback struct {
	ID       string
	ChatID   int64
	ThreadID int
	Data     string
}

// Button is one inline keyboard button.
type Button struct {
	Label string
	Data  string
}

// Dispatcher receives parsed inbound traffic. Implemented by the bridge
// service; the channel owns the grammar, the dispatcher owns the semantics.
type Dispatcher interface {
	HandleCommand(ctx context.Context, in Inbound, cmd Command)
	HandleMention(ctx context.Context, in Inbound, alias, text string)
	HandleText(ctx context.Context, in Inbound)
	HandleCallback(ctx context.Context, cb Callback)
	IsAuthorized(chatID int64) bool
}

const pairingHint = "🔒 This chat is not paired yet. Run /telegram in the Commander TUI to get a pairing code, then send /pair <code> here."

// Telegram is the chat transport boundary, backed by the Bot API via long
// polling.
type Telegram struct {
	bot        *telego.Bot
	dispatcher Dispatcher
}

// NewTelegram creates the channel and verifies the token shape.
// Construction makes no network call.
func NewTelegram(token string) (*Telegram, error) {
	bot, err := telego.NewBot(token, telego.WithDefaultLogger(false, true))
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return &Telegram{bot: bot}, nil
}

// SetDispatcher wires the inbound handler. Must be called before Run.
func (t *Telegram) SetDispatcher(d Dispatcher) {
	t.dispatcher = d
}

// Run consumes updates until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) error {
	updates, err := t.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting long polling: %w", err)
	}

	logger.InfoCF("telegram", "Long polling started", nil)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update telego.Update) {
	if update.Message != nil && update.Message.Text != "" {
		t.handleMessage(ctx, update.Message)
		return
	}
	if update.CallbackQuery != nil {
		t.handleCallback(ctx, update.CallbackQuery)
	}
}

func (t *Telegram) handleMessage(ctx context.Context, msg *telego.Message) {
	in := Inbound{
		ChatID:    msg.Chat.ID,
		ThreadID:  msg.MessageThreadID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
	}

	logger.DebugCF("telegram", "Inbound message", map[string]interface{}{
		"chat_id":   in.ChatID,
		"thread_id": in.ThreadID,
		"preview":   utils.Truncate(in.Text, 60),
	})

	switch route := RouteInbound(in.Text); route.Kind {
	case RouteUnknownCommand:
		t.reply(ctx, in, fmt.Sprintf("❓ Unknown command /%s. Try /help.", route.Command.Name))
	case RouteCommand:
		if !route.Command.AuthExempt() && !t.dispatcher.IsAuthorized(in.ChatID) {
			t.reply(ctx, in, pairingHint)
			return
		}
		t.dispatcher.HandleCommand(ctx, in, route.Command)
	case RouteMention:
		if !t.dispatcher.IsAuthorized(in.ChatID) {
			t.reply(ctx, in, pairingHint)
			return
		}
		t.dispatcher.HandleMention(ctx, in, route.Alias, route.Rest)
	default:
		if !t.dispatcher.IsAuthorized(in.ChatID) {
			t.reply(ctx, in, pairingHint)
			return
		}
		t.dispatcher.HandleText(ctx, in)
	}
}

func (t *Telegram) handleCallback(ctx context.Context, query *telego.CallbackQuery) {
	// ACK first so the client stops its spinner, then dispatch.
	if err := t.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
	}); err != nil {
		logger.WarnCF("telegram", "Failed to answer callback query", map[string]interface{}{
			"error": err.Error(),
		})
	}

	cb := Callback{ID: query.ID, Data: query.Data}
	switch msg := query.Message.(type) {
	case *telego.Message:
		cb.ChatID = msg.Chat.ID
		cb.ThreadID = msg.MessageThreadID
	case *telego.InaccessibleMessage:
		cb.ChatID = msg.Chat.ID
	}
	if cb.ChatID == 0 {
		return
	}

	if !t.dispatcher.IsAuthorized(cb.ChatID) {
		return
	}
	t.dispatcher.HandleCallback(ctx, cb)
}

func (t *Telegram) reply(ctx context.Context, in Inbound, text string) {
	if _, err := t.Send(ctx, in.ChatID, in.ThreadID, text); err != nil {
		logger.WarnCF("telegram", "Failed to send reply", map[string]interface{}{
			"chat_id": in.ChatID,
			"error":   err.Error(),
		})
	}
}

// maxMessageLen is the Bot API hard limit for message text.
const maxMessageLen = 4096

// Send posts a message, splitting it when it exceeds the API limit, and
// returns the id of the last message sent.
func (t *Telegram) Send(ctx context.Context, chatID int64, threadID int, text string) (int, error) {
	lastID := 0
	for _, chunk := range chunkText(text, maxMessageLen) {
		params := &telego.SendMessageParams{
			ChatID:          tu.ID(chatID),
			MessageThreadID: threadID,
			Text:            chunk,
		}
		msg, err := t.bot.SendMessage(ctx, params)
		if err != nil {
			return lastID, fmt.Errorf("sending message: %w", err)
		}
		lastID = msg.MessageID
	}
	return lastID, nil
}

// SendReply posts a message threaded as a reply to replyTo. Only the first
// chunk of an oversized message carries the reply reference.
func (t *Telegram) SendReply(ctx context.Context, chatID int64, threadID, replyTo int, text string) (int, error) {
	lastID := 0
	for i, chunk := range chunkText(text, maxMessageLen) {
		params := &telego.SendMessageParams{
			ChatID:          tu.ID(chatID),
			MessageThreadID: threadID,
			Text:            chunk,
		}
		if replyTo != 0 && i == 0 {
			params.ReplyParameters = &telego.ReplyParameters{MessageID: replyTo}
		}
		msg, err := t.bot.SendMessage(ctx, params)
		if err != nil {
			return lastID, fmt.Errorf("sending reply: %w", err)
		}
		lastID = msg.MessageID
	}
	return lastID, nil
}

// SendKeyboard posts a message with inline buttons, one row per button.
func (t *Telegram) SendKeyboard(ctx context.Context, chatID int64, threadID int, text string, buttons []Button) (int, error) {
	rows := make([][]telego.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(b.Label).WithCallbackData(b.Data),
		))
	}

	params := &telego.SendMessageParams{
		ChatID:          tu.ID(chatID),
		MessageThreadID: threadID,
		Text:            text,
		ReplyMarkup:     tu.InlineKeyboard(rows...),
	}
	msg, err := t.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("sending keyboard: %w", err)
	}
	return msg.MessageID, nil
}

// Edit replaces the text of an existing message.
func (t *Telegram) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := t.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
		Text:      text,
	})
	if err != nil {
		return fmt.Errorf("editing message %d: %w", messageID, err)
	}
	return nil
}

// Delete removes a message.
func (t *Telegram) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := t.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	}); err != nil {
		return fmt.Errorf("deleting message %d: %w", messageID, err)
	}
	return nil
}

// Typing shows the typing indicator in a chat.
func (t *Telegram) Typing(ctx context.Context, chatID int64, threadID int) error {
	return t.bot.SendChatAction(ctx, &telego.SendChatActionParams{
		ChatID:          tu.ID(chatID),
		MessageThreadID: threadID,
		Action:          telego.ChatActionTyping,
	})
}

// CreateTopic creates a forum topic and returns its thread id.
func (t *Telegram) CreateTopic(ctx context.Context, chatID int64, name string) (int, error) {
	topic, err := t.bot.CreateForumTopic(ctx, &telego.CreateForumTopicParams{
		ChatID: tu.ID(chatID),
		Name:   name,
	})
	if err != nil {
		return 0, fmt.Errorf("creating forum topic: %w", err)
	}
	return topic.MessageThreadID, nil
}

// RegisterCommands publishes the command menu to the Bot API.
func (t *Telegram) RegisterCommands(ctx context.Context) error {
	commands := []telego.BotCommand{
		{Command: "connect", Description: "Connect to a project or session"},
		{Command: "disconnect", Description: "Detach from the current session"},
		{Command: "stop", Description: "Commit, merge and stop the session"},
		{Command: "send", Description: "Send text to the session verbatim"},
		{Command: "list", Description: "List projects"},
		{Command: "sessions", Description: "List terminal sessions"},
		{Command: "status", Description: "Show session status"},
		{Command: "pair", Description: "Pair this chat with a code"},
		{Command: "help", Description: "Show help"},
	}
	return t.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands})
}
