package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Template returns a commented settings file with every key at its default.
func Template() string {
	return settingsTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(settingsTemplate), 0o600)
}

const settingsTemplate = `# uvguard settings

uv_bin = "uv"
guardrails_bin = "guardrails"

# package that provides the validator runtime, added by "uvguard init"
core_package = "guardrails-ai"

manifest_file = "pyproject.toml"
# [project] key holding hub:// validator identifiers
validators_key = "guardrails"

hub_index_url = "https://pypi.guardrailsai.com/simple"
default_index_url = "https://pypi.org/simple"

# falls back to GUARDRAILS_TOKEN, then the token= line of rc_path
# hub_token = ""
# rc_path = "~/.guardrailsrc"

# probe the hub index before adding a validator
verify_registry = false
registry_timeout = "10s"

# node_exporter textfile collector target; empty disables
metrics_textfile = ""
`
