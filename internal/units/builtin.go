package units

import (
	"encoding/json"

	"github.com/provis-io/provis/pkg/schema"
)

// Builtins returns the built-in provisioning unit catalog. Units producing
// more than one variable print key=value lines on stdout.
func Builtins() []*ScriptUnit {
	httpsPattern := `^https?://`

	return []*ScriptUnit{
		{
			ID:          "os.detect",
			DisplayName: "Detect operating system",
			Kind:        KindStatic,
			Command: `. /etc/os-release && ` +
				`echo "os_id=$ID" && ` +
				`echo "os_version=$VERSION_ID" && ` +
				`echo "os_family=${ID_LIKE:-$ID}"`,
			ProducedVariables: []string{"os_id", "os_version", "os_family"},
		},
		{
			ID:          "mirror.configure",
			DisplayName: "Configure package mirror",
			Kind:        KindConfigurable,
			CommandTemplate: `sudo sed -i.bak 's|https\?://[^ ]*archive.ubuntu.com|${mirror_url}|g' ` +
				`/etc/apt/sources.list && sudo apt-get update -qq`,
			RequiredVariables: []string{"os_family"},
			Parameters: []Parameter{
				{Name: "mirror_url", Type: "string", Required: true, Pattern: httpsPattern},
			},
		},
		{
			ID:              "pkg.install",
			DisplayName:     "Install packages",
			Kind:            KindConfigurable,
			CommandTemplate: `sudo DEBIAN_FRONTEND=noninteractive apt-get install -y -qq ${packages}`,
			RequiredVariables: []string{"os_family"},
			Parameters: []Parameter{
				{Name: "packages", Type: "string", Required: true},
			},
		},
		{
			ID:          "docker.install",
			DisplayName: "Install Docker engine",
			Kind:        KindConfigurable,
			CommandTemplate: `curl -fsSL https://get.docker.com | sudo sh -s -- --version ${version} && ` +
				`sudo systemctl enable --now docker && docker --version`,
			RequiredVariables: []string{"os_family"},
			ProducedVariables: []string{"docker_version"},
			Parameters: []Parameter{
				{Name: "version", Type: "string", Required: false, Default: "latest"},
			},
		},
		{
			ID:                "docker.registry-mirror",
			DisplayName:       "Confirm Docker registry mirror",
			Kind:              KindInteractive,
			Prompt:            "Use a registry mirror for Docker image pulls?",
			InteractionType:   schema.InteractionYesNo,
			Suggested:         true,
			ProducedVariables: []string{"use_registry_mirror"},
		},
		{
			ID:              "shell.run",
			DisplayName:     "Run shell command",
			Kind:            KindUser,
			CommandTemplate: `${command}`,
			Parameters: []Parameter{
				{Name: "command", Type: "string", Required: true},
			},
			ParamSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"command": {"type": "string", "minLength": 1}
				},
				"required": ["command"]
			}`),
		},
	}
}
