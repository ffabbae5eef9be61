package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/portwatch/internal/logger"
)

func TestLaunch_Success(t *testing.T) {
	requireUnix(t)
	l := &Launcher{}
	err := l.Launch(context.Background(), Spec{Name: "5011", Command: "true"})
	require.NoError(t, err)
}

func TestLaunch_MissingBinary(t *testing.T) {
	requireUnix(t)
	l := &Launcher{}
	err := l.Launch(context.Background(), Spec{Name: "5011", Command: "__definitely_not_exists__"})
	require.Error(t, err)

	var le *LaunchError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "5011", le.Target)
	assert.False(t, IsEarlyExit(err))
}

func TestLaunch_InvalidSpec(t *testing.T) {
	l := &Launcher{}
	err := l.Launch(context.Background(), Spec{Name: "5011"})
	var le *LaunchError
	require.True(t, errors.As(err, &le))
}

func TestLaunch_EarlyExitInsideGrace(t *testing.T) {
	requireUnix(t)
	l := &Launcher{Grace: 2 * time.Second}
	err := l.Launch(context.Background(), Spec{Name: "5011", Command: "sh -c 'exit 3'"})
	require.Error(t, err)
	assert.True(t, IsEarlyExit(err))
}

func TestLaunch_CleanExitInsideGraceIsSuccess(t *testing.T) {
	requireUnix(t)
	// start scripts commonly spawn the server and exit 0
	l := &Launcher{Grace: 2 * time.Second}
	require.NoError(t, l.Launch(context.Background(), Spec{Name: "5011", Command: "true"}))
}

func TestLaunch_StillRunningAfterGrace(t *testing.T) {
	requireUnix(t)
	l := &Launcher{Grace: 100 * time.Millisecond}
	start := time.Now()
	require.NoError(t, l.Launch(context.Background(), Spec{Name: "5011", Command: "sleep 2"}))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLaunch_TimeoutEndsGraceWait(t *testing.T) {
	requireUnix(t)
	l := &Launcher{Grace: 5 * time.Second, Timeout: 100 * time.Millisecond}
	start := time.Now()
	require.NoError(t, l.Launch(context.Background(), Spec{Name: "5011", Command: "sleep 2"}))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLaunch_WorkDirEnvAndOutputFiles(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	l := &Launcher{
		Grace: 2 * time.Second,
		Env: func(extra []string) []string {
			return append([]string{"PATH=" + os.Getenv("PATH"), "GLOBAL=g"}, extra...)
		},
	}
	spec := Spec{
		Name:    "5013",
		Command: `sh -c 'echo "$GLOBAL $PORT $(pwd)"; echo oops 1>&2'`,
		WorkDir: dir,
		Env:     []string{"PORT=5013"},
		Log:     logger.FileConfig{Dir: logDir},
	}
	require.NoError(t, l.Launch(context.Background(), spec))

	out, err := os.ReadFile(filepath.Join(logDir, "5013.stdout.log"))
	require.NoError(t, err)
	resolved, _ := filepath.EvalSymlinks(dir)
	line := strings.TrimSpace(string(out))
	assert.True(t, strings.HasPrefix(line, "g 5013 "), "got %q", line)
	assert.True(t, strings.HasSuffix(line, dir) || strings.HasSuffix(line, resolved), "got %q", line)

	errOut, err := os.ReadFile(filepath.Join(logDir, "5013.stderr.log"))
	require.NoError(t, err)
	assert.Equal(t, "oops\n", string(errOut))
}
