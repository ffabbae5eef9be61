package process

import (
	"runtime"
	"strings"
	"testing"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like shell")
	}
}

// A start command that already spells out "sh -c" must not be wrapped twice.
func TestBuildCommand_ExplicitShellNoDoubleWrap(t *testing.T) {
	requireUnix(t)
	s := Spec{Name: "5011", Command: "sh -c './StartSceneServer.sh 51199'"}
	cmd := s.BuildCommand()
	if len(cmd.Args) != 3 || cmd.Args[1] != "-c" {
		t.Fatalf("unexpected argv: %#v", cmd.Args)
	}
	if cmd.Args[2] != "./StartSceneServer.sh 51199" {
		t.Fatalf("script not unwrapped: %q", cmd.Args[2])
	}
}

func TestBuildCommand_MetacharTriggersShell(t *testing.T) {
	requireUnix(t)
	s := Spec{Name: "5012", Command: "server --port 5012 > /dev/null"}
	cmd := s.BuildCommand()
	if len(cmd.Args) < 3 || cmd.Args[0] != "/bin/sh" || cmd.Args[1] != "-c" {
		t.Fatalf("expected shell -c wrapping, got argv=%#v", cmd.Args)
	}
}

func TestBuildCommand_EmptyCommand(t *testing.T) {
	requireUnix(t)
	cmd := Spec{Name: "x"}.BuildCommand()
	if cmd.Path != "/bin/true" {
		t.Errorf("expected /bin/true for empty command, got %q", cmd.Path)
	}
}

func TestBuildCommand_SimpleCommand(t *testing.T) {
	requireUnix(t)
	cmd := Spec{Name: "x", Command: "ls -la"}.BuildCommand()
	if !(cmd.Path == "ls" || strings.HasSuffix(cmd.Path, "/ls")) {
		t.Errorf("expected ls or a path ending with /ls, got %q", cmd.Path)
	}
	if len(cmd.Args) != 2 || cmd.Args[0] != "ls" || cmd.Args[1] != "-la" {
		t.Errorf("unexpected args %v", cmd.Args)
	}
}

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name        string
		spec        Spec
		errContains string
	}{
		{"valid", Spec{Name: "5011", Command: "run.sh"}, ""},
		{"empty name", Spec{Command: "run.sh"}, "name is required"},
		{"blank command", Spec{Name: "5011", Command: "  "}, "command is required"},
		{"bad env", Spec{Name: "5011", Command: "run.sh", Env: []string{"NOEQUALS"}}, "KEY=VALUE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Fatalf("expected error containing %q, got %v", tt.errContains, err)
			}
		})
	}
}

func TestParseExplicitShell(t *testing.T) {
	tests := []struct {
		name          string
		cmdStr        string
		expectedShell string
		expectedAfter string
		ok            bool
	}{
		{"sh -c with single quotes", "sh -c 'echo hello'", "sh", "echo hello", true},
		{"sh -c with double quotes", `sh -c "echo hello"`, "sh", "echo hello", true},
		{"/bin/sh -c", "/bin/sh -c 'echo hello'", "/bin/sh", "echo hello", true},
		{"cmd /c", "cmd /c StartSceneServer_51199.bat", "cmd", "StartSceneServer_51199.bat", true},
		{"no quotes", "sh -c echo hello", "sh", "echo hello", true},
		{"whitespace prefix", "  \tsh -c 'echo hello'", "sh", "echo hello", true},
		{"not shell command", "echo hello", "", "", false},
		{"partial match", "bash -c 'echo hello'", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shell, after, ok := parseExplicitShell(tt.cmdStr)
			if ok != tt.ok || shell != tt.expectedShell || after != tt.expectedAfter {
				t.Errorf("parseExplicitShell(%q) = %q, %q, %v", tt.cmdStr, shell, after, ok)
			}
		})
	}
}
