package remote

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

var privateKeyNames = []string{
	"id_ed25519",
	"id_ecdsa",
	"id_rsa",
}

func parseSSHTarget(target string) (user, host string, err error) {
	if strings.TrimSpace(target) == "" {
		return "", "", fmt.Errorf("remote target is required")
	}
	user, host, ok := strings.Cut(target, "@")
	if !ok || user == "" || host == "" {
		return "", "", fmt.Errorf("invalid remote target %q: expected user@host", target)
	}
	return user, host, nil
}

// hostKeyStore verifies server keys against a known_hosts file, asking the
// user before trusting a new key or replacing a changed one.
type hostKeyStore struct {
	path   string
	batch  bool
	prompt func(question string) (bool, error)
}

func openHostKeyStore(batch bool) (*hostKeyStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory for known_hosts: %w", err)
	}
	path, err := ensureKnownHosts(filepath.Join(home, ".ssh"))
	if err != nil {
		return nil, err
	}
	return &hostKeyStore{path: path, batch: batch, prompt: promptYesNo}, nil
}

func ensureKnownHosts(sshDir string) (string, error) {
	if err := os.MkdirAll(sshDir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", sshDir, err)
	}
	path := filepath.Join(sshDir, "known_hosts")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("cannot access known_hosts: %w", err)
	}
	return path, f.Close()
}

func (s *hostKeyStore) callback(host string, port int) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		verify, err := knownhosts.New(s.path)
		if err != nil {
			return fmt.Errorf("cannot load known_hosts: %w", err)
		}
		err = verify(hostname, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			return fmt.Errorf("host key verification failed: %w", err)
		}
		if len(keyErr.Want) == 0 {
			return s.trustNew(host, port, key)
		}
		return s.replaceChanged(host, port, key, keyErr.Want)
	}
}

func (s *hostKeyStore) trustNew(host string, port int, key ssh.PublicKey) error {
	address := hostPattern(host, port)
	fingerprint := ssh.FingerprintSHA256(key)
	if s.batch {
		return fmt.Errorf("unknown host key for %s (%s); run ssh once to trust it or drop --ssh-batch", address, fingerprint)
	}
	ok, err := s.prompt(fmt.Sprintf(
		"The authenticity of host '%s' can't be established.\n%s key fingerprint is %s.\nTrust this host and continue connecting (yes/no)? ",
		address, key.Type(), fingerprint,
	))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("host key for %s was not trusted", address)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("cannot update known_hosts: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(knownhosts.Line([]string{address}, key) + "\n"); err != nil {
		return fmt.Errorf("cannot write known_hosts entry: %w", err)
	}
	return nil
}

func (s *hostKeyStore) replaceChanged(host string, port int, key ssh.PublicKey, want []knownhosts.KnownKey) error {
	address := hostPattern(host, port)
	expected := make([]string, 0, len(want))
	for _, w := range want {
		expected = append(expected, ssh.FingerprintSHA256(w.Key))
	}
	presented := ssh.FingerprintSHA256(key)

	if s.batch {
		return fmt.Errorf("host key mismatch for %s: expected %s, presented %s", address, strings.Join(expected, ", "), presented)
	}
	ok, err := s.prompt(fmt.Sprintf(
		"WARNING: HOST KEY CHANGED for '%s'.\nExpected: %s\nPresented: %s\nReplace stored key and continue (yes/no)? ",
		address, strings.Join(expected, ", "), presented,
	))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("host key mismatch for %s", address)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("cannot read known_hosts: %w", err)
	}
	updated := dropHostLines(data, host, port)
	if len(updated) > 0 && updated[len(updated)-1] != '\n' {
		updated = append(updated, '\n')
	}
	updated = append(updated, knownhosts.Line([]string{address}, key)+"\n"...)
	if err := os.WriteFile(s.path, updated, 0o600); err != nil {
		return fmt.Errorf("cannot write known_hosts: %w", err)
	}
	return nil
}

// hostPattern is the known_hosts spelling of host:port.
func hostPattern(host string, port int) string {
	if port == defaultSSHPort {
		return host
	}
	return "[" + host + "]:" + strconv.Itoa(port)
}

// dropHostLines removes every known_hosts line naming host:port, keeping
// comments, blank lines and other hosts untouched.
func dropHostLines(data []byte, host string, port int) []byte {
	names := map[string]bool{"[" + host + "]:" + strconv.Itoa(port): true}
	if port == defaultSSHPort {
		names[host] = true
	}

	lines := strings.Split(string(data), "\n")
	keep := lines[:0]
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			keep = append(keep, line)
			continue
		}
		hosts := fields[0]
		if strings.HasPrefix(hosts, "@") {
			if len(fields) < 2 {
				keep = append(keep, line)
				continue
			}
			hosts = fields[1]
		}
		match := false
		for _, h := range strings.Split(hosts, ",") {
			if names[h] {
				match = true
				break
			}
		}
		if !match {
			keep = append(keep, line)
		}
	}
	return []byte(strings.Join(keep, "\n"))
}

func promptYesNo(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("cannot prompt for host key trust: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("host key prompt failed: %w", err)
	}
	a := strings.ToLower(strings.TrimSpace(answer))
	return a == "y" || a == "yes", nil
}

func defaultKeyDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh")
}

// authMethods tries the agent, then unencrypted keys in keyDir, then (unless
// batch) a password typed at the terminal.
func authMethods(user, host string, batch bool, keyDir string) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if sock := strings.TrimSpace(os.Getenv("SSH_AUTH_SOCK")); sock != "" {
		methods = append(methods, ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			conn, err := net.Dial("unix", sock)
			if err != nil {
				return nil, err
			}
			defer conn.Close()
			return agent.NewClient(conn).Signers()
		}))
	}

	if signers := loadSigners(keyDir); len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if !batch {
		pw := &passwordCache{prompt: fmt.Sprintf("%s@%s's password: ", user, host), read: readPassword}
		methods = append(methods,
			ssh.PasswordCallback(pw.get),
			ssh.KeyboardInteractive(pw.answer),
		)
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no SSH auth methods available (configure ssh-agent or private keys, or drop --ssh-batch)")
	}
	return methods, nil
}

// loadSigners parses the usual private key files. Keys protected by a
// passphrase are skipped.
func loadSigners(keyDir string) []ssh.Signer {
	if keyDir == "" {
		return nil
	}
	var signers []ssh.Signer
	for _, name := range privateKeyNames {
		pem, err := os.ReadFile(filepath.Join(keyDir, name))
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			continue
		}
		signers = append(signers, signer)
	}
	return signers
}

// passwordCache asks for the password once per connection attempt.
type passwordCache struct {
	prompt string
	read   func(prompt string) (string, error)

	mu     sync.Mutex
	value  string
	cached bool
}

func (p *passwordCache) get() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached {
		return p.value, nil
	}
	v, err := p.read(p.prompt)
	if err != nil {
		return "", err
	}
	p.value, p.cached = v, true
	return v, nil
}

// answer fills every hidden keyboard-interactive question with the password.
func (p *passwordCache) answer(_, _ string, questions []string, echos []bool) ([]string, error) {
	answers := make([]string, len(questions))
	for i := range questions {
		if i < len(echos) && echos[i] {
			continue
		}
		pass, err := p.get()
		if err != nil {
			return nil, err
		}
		answers[i] = pass
	}
	return answers, nil
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for SSH password: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("password prompt failed: %w", err)
	}
	return string(b), nil
}
