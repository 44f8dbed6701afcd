package toolset

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/casualjim/athene/tool"
)

const shellTimeout = 2 * time.Minute

type shellArgs struct {
	Cmdline string `json:"cmdline" jsonschema:"description=The command line to run."`
}

// Shell returns a tool that runs a command line through the user's shell.
// Stdout and stderr are collected and returned as the tool's output.
func Shell() tool.Tool {
	return tool.Must("shell",
		"Runs arbitrary commands like using a terminal. "+
			"The command line should be single line if possible. "+
			"Strings collected from stdout and stderr will be returned as the tool's output.",
		runShell,
		tool.WithApprovalPrompt(func(args json.RawMessage) (string, string) {
			return gjson.GetBytes(args, "cmdline").String(), "Agent wants to run the command"
		}),
	)
}

func runShell(ctx context.Context, args shellArgs) (string, error) {
	if strings.TrimSpace(args.Cmdline) == "" {
		return "", tool.Invalidf("`cmdline` must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, shellTimeout)
	defer cancel()

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", args.Cmdline)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	var result strings.Builder
	if stdout.Len() > 0 {
		result.WriteString("==> STDOUT <==\n")
		result.WriteString(stdout.String())
	}
	if stderr.Len() > 0 {
		result.WriteString("\n==> STDERR <==\n")
		result.WriteString(stderr.String())
	}

	if runErr != nil {
		if ctx.Err() != nil {
			return "", tool.Failf("command timed out after %s", shellTimeout)
		}
		var exitErr *exec.ExitError
		// A nonzero exit is still a result the model should see; the output
		// usually explains what went wrong.
		if errors.As(runErr, &exitErr) {
			result.WriteString("\n==> EXIT STATUS <==\n")
			result.WriteString(exitErr.String())
			return result.String(), nil
		}
		return "", tool.Failf("%v", runErr)
	}
	return result.String(), nil
}
