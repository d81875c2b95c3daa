// Package schemasassets embeds the JSON schemas nimbusfs validates input
// against, so validation works from any working directory.
package schemasassets

import _ "embed"

// ConfigSchema is the schema of nimbusfs.yaml.
//
//go:embed config.schema.json
var ConfigSchema []byte
