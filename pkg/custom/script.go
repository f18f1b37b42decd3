package custom

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/runner"
)

// ErrNoRemover is returned by installers that cannot uninstall their tool
var ErrNoRemover = errors.New("installer has no remove step")

// ScriptInstaller runs install and remove shell scripts in-process. Every
// external command the script calls goes through the runner, elevated when
// the installer is marked root.
type ScriptInstaller struct {
	name    string
	install *syntax.File
	remove  *syntax.File
	root    bool
	run     runner.Runner
	detect  func(context.Context) (bool, error)
	live    io.Writer
}

// NewScript parses the scripts of spec
func NewScript(name string, spec *core.CustomSpec, run runner.Runner, detect func(context.Context) (bool, error)) (*ScriptInstaller, error) {
	if spec == nil || spec.InstallScript == "" {
		return nil, fmt.Errorf("custom: %s: no install script", name)
	}

	s := &ScriptInstaller{name: name, root: spec.Root, run: run, detect: detect}

	var err error
	if s.install, err = parseScript(name+" install", spec.InstallScript); err != nil {
		return nil, err
	}
	if spec.RemoveScript != "" {
		if s.remove, err = parseScript(name+" remove", spec.RemoveScript); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetLive mirrors the output of the script's builtins to w as it runs.
// External commands reach w only if the runner streams them there.
func (s *ScriptInstaller) SetLive(w io.Writer) {
	s.live = w
}

// Install runs the install script
func (s *ScriptInstaller) Install(ctx context.Context) error {
	return s.exec(ctx, "install", s.install)
}

// Remove runs the remove script
func (s *ScriptInstaller) Remove(ctx context.Context) error {
	if s.remove == nil {
		return fmt.Errorf("custom: %s: %w", s.name, ErrNoRemover)
	}
	return s.exec(ctx, "remove", s.remove)
}

// IsInstalled evaluates the detection rule
func (s *ScriptInstaller) IsInstalled(ctx context.Context) (bool, error) {
	if s.detect == nil {
		return false, nil
	}
	return s.detect(ctx)
}

func (s *ScriptInstaller) exec(ctx context.Context, step string, prog *syntax.File) error {
	var out bytes.Buffer
	var w io.Writer = &out
	if s.live != nil {
		w = io.MultiWriter(&out, s.live)
	}

	sh, err := interp.New(
		interp.Params("-e"),
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(nil, w, w),
		interp.ExecHandlers(s.execHandler(assignedNames(prog), w, &out)),
	)
	if err != nil {
		return fmt.Errorf("custom: %s: creating interpreter: %w", s.name, err)
	}

	err = sh.Run(ctx, prog)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("custom: %s %s aborted: %w", s.name, step, ctx.Err())
	}

	if status, ok := interp.IsExitStatus(err); ok {
		return &core.CommandError{
			Command:  fmt.Sprintf("%s %s script", s.name, step),
			ExitCode: int(status),
			Output:   out.String(),
			Err:      err,
		}
	}
	// a missing program inside the script surfaces as the runner's error
	if errors.Is(err, core.ErrBackendUnavailable) {
		return &core.CommandError{
			Command:  fmt.Sprintf("%s %s script", s.name, step),
			ExitCode: 127,
			Output:   out.String() + err.Error(),
			Err:      err,
		}
	}
	return fmt.Errorf("custom: %s %s: %w", s.name, step, err)
}

// execHandler routes external commands through the runner. Output that would
// go to the top-level writer is only captured, since the runner has already
// streamed it live; redirected and piped output is passed on.
func (s *ScriptInstaller) execHandler(exported []string, top io.Writer, captured *bytes.Buffer) func(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			hc := interp.HandlerCtx(ctx)

			var env []string
			for _, name := range exported {
				if v := hc.Env.Get(name); v.Exported && v.Str != "" {
					env = append(env, name+"="+v.Str)
				}
			}

			res, err := s.run.Run(ctx, runner.Command{
				Name:  args[0],
				Args:  args[1:],
				Env:   env,
				Dir:   hc.Dir,
				Root:  s.root,
				Stdin: hc.Stdin,
			})
			if res != nil {
				stdout, stderr := hc.Stdout, hc.Stderr
				if stdout == top {
					stdout = captured
				}
				if stderr == top {
					stderr = captured
				}
				io.WriteString(stdout, res.Stdout)
				io.WriteString(stderr, res.Stderr)
			}
			if err != nil {
				var cmdErr *core.CommandError
				if errors.As(err, &cmdErr) {
					return interp.NewExitStatus(uint8(cmdErr.ExitCode))
				}
				if errors.Is(err, core.ErrBackendUnavailable) {
					fmt.Fprintf(hc.Stderr, "%s: command not found\n", args[0])
					return interp.NewExitStatus(127)
				}
				return err
			}
			return nil
		}
	}
}

func parseScript(name, src string) (*syntax.File, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("custom: parsing %s script: %w", name, err)
	}
	return prog, nil
}

// assignedNames collects every variable the script assigns, so exported
// assignments reach the commands it runs
func assignedNames(prog *syntax.File) []string {
	seen := make(map[string]bool)
	var names []string
	syntax.Walk(prog, func(node syntax.Node) bool {
		if as, ok := node.(*syntax.Assign); ok && as.Name != nil && !seen[as.Name.Value] {
			seen[as.Name.Value] = true
			names = append(names, as.Name.Value)
		}
		return true
	})
	return names
}

var _ core.CustomInstaller = (*ScriptInstaller)(nil)
