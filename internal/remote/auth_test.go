package remote

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

func TestParseSSHTarget(t *testing.T) {
	tests := []struct {
		in       string
		user     string
		host     string
		wantsErr bool
	}{
		{in: "alice@example.com", user: "alice", host: "example.com"},
		{in: "bob@10.0.0.5", user: "bob", host: "10.0.0.5"},
		{in: "", wantsErr: true},
		{in: "example.com", wantsErr: true},
		{in: "@example.com", wantsErr: true},
		{in: "alice@", wantsErr: true},
	}
	for _, tc := range tests {
		user, host, err := parseSSHTarget(tc.in)
		if tc.wantsErr {
			if err == nil {
				t.Fatalf("parseSSHTarget(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || user != tc.user || host != tc.host {
			t.Fatalf("parseSSHTarget(%q) = %q, %q, %v", tc.in, user, host, err)
		}
	}
}

func TestHostPattern(t *testing.T) {
	if got := hostPattern("example.com", 22); got != "example.com" {
		t.Fatalf("unexpected pattern %q", got)
	}
	if got := hostPattern("example.com", 2222); got != "[example.com]:2222" {
		t.Fatalf("unexpected pattern %q", got)
	}
}

func TestDropHostLines(t *testing.T) {
	input := strings.Join([]string{
		"# comment",
		"example.com ssh-ed25519 AAAA",
		"[example.com]:22 ssh-ed25519 BBBB",
		"[example.com]:2222 ssh-ed25519 CCCC",
		"other.com,example.com ssh-ed25519 DDDD",
		"@cert-authority example.com ssh-ed25519 EEEE",
		"",
		"other.com ssh-ed25519 FFFF",
	}, "\n")

	got := string(dropHostLines([]byte(input), "example.com", 22))
	for _, gone := range []string{"AAAA", "BBBB", "DDDD", "EEEE"} {
		if strings.Contains(got, gone) {
			t.Fatalf("expected %s to be removed:\n%s", gone, got)
		}
	}
	for _, kept := range []string{"# comment", "CCCC", "FFFF"} {
		if !strings.Contains(got, kept) {
			t.Fatalf("expected %s to be kept:\n%s", kept, got)
		}
	}

	got = string(dropHostLines([]byte(input), "example.com", 2222))
	if strings.Contains(got, "CCCC") || !strings.Contains(got, "AAAA") {
		t.Fatalf("non-default port should only drop its bracketed entry:\n%s", got)
	}
}

func newTestKey(t *testing.T) (ssh.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	key, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	return key, priv
}

func newTestStore(t *testing.T, batch bool, answer bool) (*hostKeyStore, *int) {
	t.Helper()
	path, err := ensureKnownHosts(filepath.Join(t.TempDir(), ".ssh"))
	if err != nil {
		t.Fatal(err)
	}
	asked := 0
	return &hostKeyStore{
		path:  path,
		batch: batch,
		prompt: func(string) (bool, error) {
			asked++
			return answer, nil
		},
	}, &asked
}

var loopback = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 22}

func TestHostKeyStore_TrustOnFirstUse(t *testing.T) {
	store, asked := newTestStore(t, false, true)
	key, _ := newTestKey(t)
	cb := store.callback("127.0.0.1", 22)

	if err := cb("127.0.0.1:22", loopback, key); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	if *asked != 1 {
		t.Fatalf("expected one prompt, got %d", *asked)
	}
	// Second connection matches the stored key without prompting.
	if err := cb("127.0.0.1:22", loopback, key); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if *asked != 1 {
		t.Fatalf("expected no further prompt, got %d", *asked)
	}
}

func TestHostKeyStore_UnknownKeyInBatchMode(t *testing.T) {
	store, asked := newTestStore(t, true, true)
	key, _ := newTestKey(t)

	err := store.callback("127.0.0.1", 22)("127.0.0.1:22", loopback, key)
	if err == nil || !strings.Contains(err.Error(), "unknown host key") {
		t.Fatalf("expected unknown host key error, got %v", err)
	}
	if *asked != 0 {
		t.Fatal("batch mode must not prompt")
	}
}

func TestHostKeyStore_DeclinedKey(t *testing.T) {
	store, _ := newTestStore(t, false, false)
	key, _ := newTestKey(t)

	if err := store.callback("127.0.0.1", 22)("127.0.0.1:22", loopback, key); err == nil {
		t.Fatal("expected error when the key is not trusted")
	}
	data, err := os.ReadFile(store.path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Fatalf("declined key must not be stored, got %q", data)
	}
}

func TestHostKeyStore_ChangedKey(t *testing.T) {
	oldKey, _ := newTestKey(t)
	newKey, _ := newTestKey(t)

	seed := func(store *hostKeyStore) {
		line := knownhosts.Line([]string{"127.0.0.1"}, oldKey) + "\n"
		if err := os.WriteFile(store.path, []byte(line), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	batch, _ := newTestStore(t, true, true)
	seed(batch)
	err := batch.callback("127.0.0.1", 22)("127.0.0.1:22", loopback, newKey)
	if err == nil || !strings.Contains(err.Error(), "host key mismatch") {
		t.Fatalf("expected mismatch in batch mode, got %v", err)
	}

	interactive, asked := newTestStore(t, false, true)
	seed(interactive)
	cb := interactive.callback("127.0.0.1", 22)
	if err := cb("127.0.0.1:22", loopback, newKey); err != nil {
		t.Fatalf("expected replacement to succeed, got %v", err)
	}
	if *asked != 1 {
		t.Fatalf("expected one prompt, got %d", *asked)
	}
	if err := cb("127.0.0.1:22", loopback, newKey); err != nil {
		t.Fatalf("replaced key should verify, got %v", err)
	}
	var keyErr *knownhosts.KeyError
	verify, err := knownhosts.New(interactive.path)
	if err != nil {
		t.Fatal(err)
	}
	if err := verify("127.0.0.1:22", loopback, oldKey); !errors.As(err, &keyErr) {
		t.Fatalf("old key should no longer verify, got %v", err)
	}
}

func writePrivateKey(t *testing.T, dir, name string) {
	t.Helper()
	_, priv := newTestKey(t)
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestAuthMethods(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	empty := t.TempDir()
	if _, err := authMethods("u", "h", true, empty); err == nil {
		t.Fatal("expected error with no agent, no keys and batch mode")
	}

	keys := t.TempDir()
	writePrivateKey(t, keys, "id_ed25519")
	if err := os.WriteFile(filepath.Join(keys, "id_rsa"), []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}

	methods, err := authMethods("u", "h", true, keys)
	if err != nil {
		t.Fatalf("authMethods: %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("expected public key method only, got %d", len(methods))
	}

	methods, err = authMethods("u", "h", false, keys)
	if err != nil {
		t.Fatalf("authMethods: %v", err)
	}
	if len(methods) != 3 {
		t.Fatalf("expected key, password and keyboard-interactive, got %d", len(methods))
	}
}

func TestLoadSigners_SkipsUnparsable(t *testing.T) {
	dir := t.TempDir()
	writePrivateKey(t, dir, "id_ecdsa")
	if err := os.WriteFile(filepath.Join(dir, "id_ed25519"), []byte("not a key"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := loadSigners(dir); len(got) != 1 {
		t.Fatalf("expected one signer, got %d", len(got))
	}
	if got := loadSigners(""); got != nil {
		t.Fatalf("expected no signers without a key dir, got %d", len(got))
	}
}

func TestPasswordCache(t *testing.T) {
	reads := 0
	pc := &passwordCache{
		prompt: "pw: ",
		read: func(prompt string) (string, error) {
			reads++
			if prompt != "pw: " {
				t.Fatalf("unexpected prompt %q", prompt)
			}
			return "s3cret", nil
		},
	}

	answers, err := pc.answer("", "", []string{"Password:", "Name:", "Token:"}, []bool{false, true, false})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(answers, ",") != "s3cret,,s3cret" {
		t.Fatalf("unexpected answers %q", answers)
	}
	if pw, _ := pc.get(); pw != "s3cret" || reads != 1 {
		t.Fatalf("expected cached password after one read, got %q after %d reads", pw, reads)
	}
}

func TestPasswordCache_ReadError(t *testing.T) {
	pc := &passwordCache{read: func(string) (string, error) { return "", errors.New("no tty") }}
	if _, err := pc.answer("", "", []string{"Password:"}, []bool{false}); err == nil {
		t.Fatal("expected read error to propagate")
	}
	if _, err := pc.get(); err == nil {
		t.Fatal("failed reads must not be cached")
	}
}
