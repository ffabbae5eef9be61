package detector

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

func TestBuildShellAwareCommand(t *testing.T) {
	requireUnix(t)
	ctx := context.Background()
	// empty -> /bin/true
	c := buildShellAwareCommand(ctx, "")
	if c.Path == "" || !strings.Contains(c.String(), "/bin/true") {
		t.Fatalf("expected /bin/true, got %q (%q)", c.Path, c.String())
	}
	// simple no metachar -> direct exec
	c = buildShellAwareCommand(ctx, "nc -z 127.0.0.1 5011")
	if len(c.Args) != 4 || c.Args[0] != "nc" {
		t.Fatalf("expected direct exec nc, got %#v", c.Args)
	}
	// with shell meta -> sh -c
	c = buildShellAwareCommand(ctx, "curl -s localhost:5011 | grep ok")
	if len(c.Args) < 2 || c.Args[0] != "/bin/sh" || c.Args[1] != "-c" {
		t.Fatalf("expected /bin/sh -c, got %#v", c.Args)
	}
}

func TestCommandDetectorAliveAndDescribe(t *testing.T) {
	requireUnix(t)
	ctx := context.Background()
	d := CommandDetector{Command: "true"}
	alive, err := d.Alive(ctx)
	if err != nil || !alive {
		t.Fatalf("true should be alive, got alive=%v err=%v", alive, err)
	}
	if d.Describe() != "cmd:true" {
		t.Fatalf("Describe mismatch: %q", d.Describe())
	}
	// non-zero exit -> down, no error
	d = CommandDetector{Command: "sh -c 'exit 3'"}
	alive, err = d.Alive(ctx)
	if err != nil || alive {
		t.Fatalf("non-zero exit expected false,nil, got alive=%v err=%v", alive, err)
	}
	// missing binary -> error
	d = CommandDetector{Command: "__definitely_not_exists__"}
	alive, err = d.Alive(ctx)
	if err == nil || alive {
		t.Fatalf("expected error for missing binary, got alive=%v err=%v", alive, err)
	}
}

func TestCommandDetectorHonorsDeadline(t *testing.T) {
	requireUnix(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	alive, err := CommandDetector{Command: "sleep 5"}.Alive(ctx)
	if err == nil || alive {
		t.Fatalf("expected deadline error, got alive=%v err=%v", alive, err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("health command was not killed on deadline")
	}
}
