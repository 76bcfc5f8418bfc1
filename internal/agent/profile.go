// Package agent loads the agent executable profile from a TOML file.
package agent

import (
	"errors"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"homunculus/internal/errs"
)

// defaultAllowedTools is the fixed tool whitelist handed to the agent. The
// agent may read and edit the cloned tree and talk to the forge, nothing
// else.
var defaultAllowedTools = []string{
	"Bash(gh:*)",
	"Bash(git:*)",
	"Read",
	"Write",
	"Edit",
	"MultiEdit",
	"Grep",
	"Glob",
	"TodoWrite",
}

type Profile struct {
	// Program is the agent executable name.
	Program string `toml:"program"`
	// Args precede the generated flags. Selects JSON output mode.
	Args []string `toml:"args"`
	// AllowedTools overrides the default tool whitelist.
	AllowedTools []string `toml:"allowed_tools"`
	// TimeoutSeconds kills a run after this long. 0 disables the limit.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

func DefaultProfile() Profile {
	return Profile{
		Program:      "claude",
		Args:         []string{"--output-format", "json"},
		AllowedTools: defaultAllowedTools,
	}
}

// LoadProfile reads path and fills gaps from the defaults. A missing file
// yields the default profile.
func LoadProfile(path string) (Profile, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		return DefaultProfile(), nil
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultProfile(), nil
		}
		return Profile{}, errs.Wrapf(err, "read agent profile %q", resolved)
	}

	profile := DefaultProfile()
	if err := toml.Unmarshal(raw, &profile); err != nil {
		return Profile{}, errs.Wrapf(err, "parse agent profile %q", resolved)
	}
	if strings.TrimSpace(profile.Program) == "" {
		return Profile{}, errors.New("agent profile: program is required")
	}
	return profile, nil
}

// CommandArgs assembles the full argument list for one run: profile args,
// the tool whitelist, and the prompt as a single trailing argument.
func (p Profile) CommandArgs(prompt string) []string {
	args := make([]string, 0, len(p.Args)+4)
	args = append(args, p.Args...)
	args = append(args, "--allowed-tools", strings.Join(p.AllowedTools, " "))
	args = append(args, "-p", prompt)
	return args
}
