package term

import (
	"strings"
	"testing"
	"time"
)

func TestSentinelRoundTrip(t *testing.T) {
	nonce := newSentinelNonce()
	re := sentinelRegexp(nonce)
	rendered := "$ ls\nfile.txt\n" + sentinelPrefix + nonce + "__0__/home/user__\n"
	match, ok := findSentinel(re, rendered)
	if !ok {
		t.Fatal("expected sentinel match")
	}
	if match.exitCode != 0 || match.pwd != "/home/user" {
		t.Fatalf("unexpected match: %+v", match)
	}
}

func TestSentinelNotFoundOnOtherOutput(t *testing.T) {
	nonce := newSentinelNonce()
	re := sentinelRegexp(nonce)
	_, ok := findSentinel(re, "still building...\n")
	if ok {
		t.Fatal("expected no sentinel match")
	}
}

func TestSentinelNonzeroExit(t *testing.T) {
	nonce := newSentinelNonce()
	re := sentinelRegexp(nonce)
	rendered := sentinelPrefix + nonce + "__127__/tmp__"
	match, ok := findSentinel(re, rendered)
	if !ok || match.exitCode != 127 {
		t.Fatalf("expected exit code 127, got %+v ok=%v", match, ok)
	}
}

func TestRenderDeltaAppend(t *testing.T) {
	prev := "line1\nline2\n"
	next := "line1\nline2\nline3\n"
	delta := renderDelta(prev, next)
	if delta != "line3\n" {
		t.Fatalf("unexpected delta: %q", delta)
	}
}

func TestRenderDeltaUnchanged(t *testing.T) {
	if d := renderDelta("same", "same"); d != "" {
		t.Fatalf("expected empty delta, got %q", d)
	}
}

func TestSpecialKeysKnown(t *testing.T) {
	for _, k := range []string{"Enter", "ArrowUp", "ArrowDown", "ArrowLeft", "ArrowRight", "Ctrl-c", "Ctrl-d"} {
		if _, ok := specialKeys[k]; !ok {
			t.Fatalf("missing mapping for special key %q", k)
		}
	}
}

func TestTerminalStartRunCommandAndIdle(t *testing.T) {
	term := New(nil)
	if err := term.Start(t.TempDir(), []string{"PATH=" + envPath(), "TERM=xterm-256color", "SHELL=/bin/sh"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer term.Close()

	if err := term.SendText([]byte("echo hello_from_wcgw\n")); err != nil {
		t.Fatalf("send text: %v", err)
	}

	res, err := term.Poll(3 * time.Second)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !res.Idle {
		t.Fatalf("expected idle after command completion, got %+v", res)
	}
	if !strings.Contains(res.Delta, "hello_from_wcgw") {
		t.Fatalf("expected delta to contain command output, got %q", res.Delta)
	}
}

func TestTerminalDeadAfterExit(t *testing.T) {
	term := New(nil)
	if err := term.Start(t.TempDir(), []string{"PATH=" + envPath(), "SHELL=/bin/sh"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := term.SendText([]byte("exit\n")); err != nil {
		t.Fatalf("send text: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for !term.Dead() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if !term.Dead() {
		t.Fatal("expected terminal to be dead after shell exit")
	}
	if err := term.SendText([]byte("echo nope\n")); err == nil {
		t.Fatal("expected ShellDeadError after exit")
	}
}

func TestTerminalScrollbackCapturesScrolledOffLines(t *testing.T) {
	term := New(nil)
	if err := term.Start(t.TempDir(), []string{"PATH=" + envPath(), "SHELL=/bin/sh"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer term.Close()
	if err := term.Geometry(5, 80); err != nil {
		t.Fatalf("resize: %v", err)
	}

	if err := term.SendText([]byte("for i in $(seq 1 50); do echo line_$i; done\n")); err != nil {
		t.Fatalf("send text: %v", err)
	}
	if _, err := term.Poll(3 * time.Second); err != nil {
		t.Fatalf("poll: %v", err)
	}

	sb := term.Scrollback()
	if len(sb) == 0 {
		t.Fatal("expected scrollback to capture lines scrolled off a 5-row screen")
	}
}

func envPath() string {
	return "/usr/bin:/bin:/usr/local/bin"
}
