package assets

import (
	_ "embed"
)

// ResultSchemaJSON is the JSON Schema every bot result must satisfy.
//
//go:embed defaults/result.schema.json
var ResultSchemaJSON []byte

// ExampleBotJS is a reference bot printed by `replybot bot example`.
//
//go:embed defaults/example-bot.js
var ExampleBotJS []byte
