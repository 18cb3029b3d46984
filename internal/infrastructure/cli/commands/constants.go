package commands

import "time"

// Defaults for flags.
const (
	DefaultHistoryLimit    = 20
	DefaultAttachmentAge   = 24 * time.Hour
	DefaultWatchInterval   = 6 * time.Hour
	DefaultNotificationApp = "com.whatsapp"
)

// Error messages
const (
	ErrNotificationInput = "use either --notification or --app/--title/--body"
	ErrNoBotURL          = "no bot URL given and bot.url is not configured"
)

// Success messages
const (
	MsgNoBotInstalled    = "No bot installed."
	MsgBotDeleted        = "Bot deleted."
	MsgBotUpToDate       = "Bot is up to date."
	MsgNoHistoryRecorded = "No history recorded yet."
	MsgHistoryCleared    = "History cleared."
	MsgStorageEmpty      = "Bot storage is empty."
	MsgScriptValid       = "Script passed validation."

	MsgNoDifferencesFromDefault = "No differences from default configuration."
)
