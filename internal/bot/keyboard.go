package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"eventbot/internal/service"
)

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(cmdEvents),
			tgbotapi.NewKeyboardButton(cmdHelp),
			tgbotapi.NewKeyboardButton(cmdStart),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

// inlineKeyboard converts view rows; nil when the view has no buttons.
func inlineKeyboard(rows [][]service.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	buttons := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			line = append(line, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		buttons = append(buttons, line)
	}
	if len(buttons) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(buttons...)
	return &kb
}

func botCommands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "start", Description: "Start the bot"},
		{Command: "events", Description: "List current events"},
		{Command: "help", Description: "Show help message"},
	}
}
