package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sysds/sysds/history"
	"github.com/sysds/sysds/ml"
	"github.com/sysds/sysds/runner"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewCLI()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func startEngine(t *testing.T) {
	t.Helper()
	srv := httptest.NewServer(runner.NewServer(runner.Options{WorkDir: t.TempDir(), Stdout: io.Discard}).Handler())
	t.Cleanup(srv.Close)
	t.Setenv("SYSDS_HOST", srv.URL)
	t.Setenv("SYSDS_HISTORY", "")
}

func TestExecCommand(t *testing.T) {
	startEngine(t)

	script := filepath.Join(t.TempDir(), "prog.dml")
	require.NoError(t, os.WriteFile(script, []byte("X = seq(1, 3, 1);\ns = sum(X);\n"), 0o644))

	out, err := runCLI(t, "exec", script, "-o", "X", "-o", "s")
	require.NoError(t, err)
	require.Contains(t, out, "X (3x1) =")
	require.Contains(t, out, "s = 6")
}

func TestExecCommandRuntimeError(t *testing.T) {
	startEngine(t)

	script := filepath.Join(t.TempDir(), "bad.dml")
	require.NoError(t, os.WriteFile(script, []byte("Y = read(\"missing.csv\");\n"), 0o644))

	_, err := runCLI(t, "exec", script, "-o", "Y")
	require.Error(t, err)
	require.Contains(t, err.Error(), "read")
}

func TestSigmoidCommand(t *testing.T) {
	startEngine(t)

	out, err := runCLI(t, "sigmoid", "0", "0")
	require.NoError(t, err)
	require.Contains(t, out, "sigmoid (1x2) =")
	require.Contains(t, out, "0.5000")

	_, err = runCLI(t, "sigmoid", "eins")
	require.Error(t, err)
}

func TestEnvCommand(t *testing.T) {
	t.Setenv("SYSDS_WORKDIR", "/srv/data")

	out, err := runCLI(t, "env")
	require.NoError(t, err)
	require.Contains(t, out, "SYSDS_WORKDIR")
	require.Contains(t, out, "/srv/data")
	require.Less(t, strings.Index(out, "SYSDS_COMPRESSION"), strings.Index(out, "SYSDS_WORKDIR"), "Eintraege sind sortiert")
}

func TestHistoryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := history.Open(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, history.Entry{Session: "aaaaaaaa-1111", Script: "V1 = 1;", Outputs: "V1", Statements: 1, Duration: time.Millisecond}))
	require.NoError(t, store.Record(ctx, history.Entry{Session: "bbbbbbbb-2222", Script: "V1 = log();", Outputs: "V1", Statements: 1, Error: "runtime error\ndetails"}))
	require.NoError(t, store.Close())

	t.Setenv("SYSDS_HISTORY", path)
	out, err := runCLI(t, "history")
	require.NoError(t, err)
	require.Contains(t, out, "aaaaaaaa")
	require.Contains(t, out, "runtime error")
	require.NotContains(t, out, "details")

	out, err = runCLI(t, "history", "--session", "aaaaaaaa-1111")
	require.NoError(t, err)
	require.NotContains(t, out, "bbbbbbbb")

	t.Setenv("SYSDS_HISTORY", "")
	_, err = runCLI(t, "history")
	require.Error(t, err)
}

func TestPrintValue(t *testing.T) {
	var f ml.Frame
	require.NoError(t, f.AddColumn("name", []string{"a", "b"}))
	require.NoError(t, f.AddColumn("n", []int64{1, 2}))

	var buf bytes.Buffer
	printValue(&buf, "F", &f)
	printValue(&buf, "L", ml.List{ml.Scalar{V: 1.5}, ml.Scalar{V: true}})
	printValue(&buf, "nichts", nil)

	out := buf.String()
	require.Contains(t, out, "F (2x2) =")
	require.Contains(t, out, "name")
	require.Contains(t, out, "L[1] = 1.5")
	require.Contains(t, out, "L[2] = true")
	require.NotContains(t, out, "nichts")
}
