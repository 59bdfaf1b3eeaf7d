package cli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/davidthor/shipctl/pkg/provision"
	"github.com/davidthor/shipctl/pkg/provision/docker"
	"github.com/davidthor/shipctl/pkg/provision/sim"
)

// newProvisioner selects the provisioning engine by name.
func newProvisioner(name string, out io.Writer) (provision.Engine, error) {
	switch name {
	case "sim", "":
		return sim.NewEngine(), nil
	case "docker":
		return docker.NewEngine(out)
	default:
		return nil, fmt.Errorf("unknown provisioning engine %q (want sim or docker)", name)
	}
}

// isInteractive returns true if the CLI is running in an interactive
// terminal and not in a CI environment.
func isInteractive() bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}

	ciEnvVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"CIRCLECI",
		"JENKINS_URL",
		"BUILDKITE",
	}
	for _, env := range ciEnvVars {
		if os.Getenv(env) != "" {
			return false
		}
	}
	return true
}
