package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/edgemgmt/internal/auth"
	"github.com/danmuck/edgemgmt/internal/config"
	"github.com/danmuck/edgemgmt/internal/protocol"
	"github.com/danmuck/edgemgmt/internal/testutil/edgetest"
	"github.com/danmuck/edgemgmt/internal/testutil/testlog"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvAddr, "")
	t.Setenv(auth.EnvSecret, "")
}

func runCLI(t *testing.T, ctx context.Context, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(ctx, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func interfacesEdge(t *testing.T) *edgetest.Edge {
	return edgetest.Start(t, func(req protocol.Request) []edgetest.Reply {
		if req.Command != "interfaces" {
			return []edgetest.Reply{edgetest.Error(req.Tag, "unknown command: "+req.Command)}
		}
		return edgetest.Rows(req.Tag,
			edgetest.Rec("name", "eth0", "rx", 10),
			edgetest.Rec("name", "eth1"),
		)
	})
}

func TestReadWithColumnsPrintsTable(t *testing.T) {
	testlog.Start(t)
	isolate(t)
	edge := interfacesEdge(t)

	code, stdout, stderr := runCLI(t, context.Background(), "-addr", edge.Addr(), "-columns", "name,rx", "read", "interfaces")
	if code != exitOK {
		t.Fatalf("exit=%d stderr=%s", code, stderr)
	}
	want := "NAME  RX\neth0  10\neth1  -\n"
	if stdout != want {
		t.Fatalf("unexpected output:\n%q", stdout)
	}
}

func TestReadUnknownCommandPassesThroughRaw(t *testing.T) {
	testlog.Start(t)
	isolate(t)
	edge := interfacesEdge(t)

	code, stdout, _ := runCLI(t, context.Background(), "-addr", edge.Addr(), "r", "interfaces")
	if code != exitOK {
		t.Fatalf("exit=%d", code)
	}
	want := `{"name":"eth0","rx":10}` + "\n" + `{"name":"eth1"}` + "\n"
	if stdout != want {
		t.Fatalf("unexpected output:\n%s", stdout)
	}
}

func TestConfigPrintersAndSecret(t *testing.T) {
	testlog.Start(t)
	isolate(t)
	edge := edgetest.Start(t, func(req protocol.Request) []edgetest.Reply {
		return edgetest.Rows(req.Tag, edgetest.Rec("peer", "edge-a", "state", "up"))
	}, edgetest.WithValidator(auth.StaticToken{Token: "hunter2"}))

	path := filepath.Join(t.TempDir(), "edgectl.toml")
	body := "addr = \"" + edge.Addr() + "\"\nsecret = \"hunter2\"\n\n[[printers]]\ncommand = \"peers\"\ncolumns = [\"peer\", \"state\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	code, stdout, stderr := runCLI(t, context.Background(), "-config", path, "write", "peers", "refresh")
	if code != exitOK {
		t.Fatalf("exit=%d stderr=%s", code, stderr)
	}
	if stdout != "PEER    STATE\nedge-a  up\n" {
		t.Fatalf("unexpected output:\n%q", stdout)
	}
	reqs := edge.Requests()
	if len(reqs) != 1 || reqs[0].Kind != protocol.KindWrite || reqs[0].Command != "peers refresh" {
		t.Fatalf("unexpected requests: %+v", reqs)
	}
}

func TestServerErrorExitsNonZero(t *testing.T) {
	testlog.Start(t)
	isolate(t)
	edge := interfacesEdge(t)

	code, stdout, stderr := runCLI(t, context.Background(), "-addr", edge.Addr(), "read", "bogus")
	if code != exitFail {
		t.Fatalf("expected exit %d, got %d", exitFail, code)
	}
	if stdout != "" {
		t.Fatalf("no rows expected, got %q", stdout)
	}
	if !strings.Contains(stderr, "edgectl: unknown command: bogus") {
		t.Fatalf("unexpected stderr: %q", stderr)
	}
}

func TestTimeoutExitsNonZero(t *testing.T) {
	testlog.Start(t)
	isolate(t)
	edge := edgetest.Start(t, nil)

	code, _, stderr := runCLI(t, context.Background(), "-addr", edge.Addr(), "-timeout", "50ms", "-retries", "1", "read", "slow")
	if code != exitFail {
		t.Fatalf("expected exit %d, got %d", exitFail, code)
	}
	if !strings.Contains(stderr, "timeout") {
		t.Fatalf("unexpected stderr: %q", stderr)
	}
	if n := len(edge.Requests()); n != 2 {
		t.Fatalf("expected one retry, got %d requests", n)
	}
}

func TestWriteIsNeverRetried(t *testing.T) {
	testlog.Start(t)
	isolate(t)
	edge := edgetest.Start(t, nil)

	code, _, stderr := runCLI(t, context.Background(), "-addr", edge.Addr(), "-timeout", "50ms", "-retries", "3", "write", "flush")
	if code != exitFail {
		t.Fatalf("expected exit %d, got %d", exitFail, code)
	}
	if !strings.Contains(stderr, "timeout") {
		t.Fatalf("unexpected stderr: %q", stderr)
	}
	if n := len(edge.Requests()); n != 1 {
		t.Fatalf("write must be sent once, got %d requests", n)
	}
}

func TestUsageErrors(t *testing.T) {
	testlog.Start(t)
	isolate(t)
	cases := [][]string{
		{},
		{"read"},
		{"delete", "x"},
		{"-format", "xml", "read", "x"},
		{"-secret", "a", "-secret-file", "/tmp/x", "read", "x"},
		{"-nope", "read", "x"},
	}
	for _, args := range cases {
		if code, _, _ := runCLI(t, context.Background(), args...); code != exitUsage {
			t.Fatalf("%v: expected exit %d, got %d", args, exitUsage, code)
		}
	}
}

func TestSubscribeFalsyAckCouldNotSubscribe(t *testing.T) {
	testlog.Start(t)
	isolate(t)
	edge := edgetest.Start(t, func(req protocol.Request) []edgetest.Reply {
		return edgetest.Rows(req.Tag)
	})

	code, _, stderr := runCLI(t, context.Background(), "-addr", edge.Addr(), "subscribe", "peers")
	if code != exitFail {
		t.Fatalf("expected exit %d, got %d", exitFail, code)
	}
	if !strings.Contains(stderr, "could not subscribe") {
		t.Fatalf("unexpected stderr: %q", stderr)
	}
}

// cancelAfter cancels once n lines have been written.
type cancelAfter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	n      int
	cancel context.CancelFunc
}

func (c *cancelAfter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.buf.Write(p)
	if strings.Count(c.buf.String(), "\n") >= c.n {
		c.cancel()
	}
	return n, err
}

func TestSubscribeStreamsEventsUntilCanceled(t *testing.T) {
	testlog.Start(t)
	isolate(t)
	edge := edgetest.Start(t, func(req protocol.Request) []edgetest.Reply {
		return []edgetest.Reply{
			edgetest.Msg(req.Tag, protocol.MsgReplacing, protocol.Record{}),
			edgetest.Msg(req.Tag, protocol.MsgSubscribe, protocol.Record{}),
			edgetest.Event(edgetest.Rec("peer", "edge-a", "state", "up")),
			edgetest.Event(edgetest.Rec("peer", "edge-b", "state", "down")),
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &cancelAfter{n: 2, cancel: cancel}
	var stderr bytes.Buffer
	code := run(ctx, []string{"-addr", edge.Addr(), "-columns", "peer,state", "listen", "peers"}, out, &stderr)
	if code != exitOK {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	want := "peer=edge-a state=up\npeer=edge-b state=down\n"
	if out.buf.String() != want {
		t.Fatalf("unexpected events:\n%q", out.buf.String())
	}
}
