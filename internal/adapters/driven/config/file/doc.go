// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage, flattened to dot keys
//   - PromptStore: user-editable chat prompt templates
//
// LoadAppConfig turns a ConfigStore into a typed domain.AppConfig.
package file
