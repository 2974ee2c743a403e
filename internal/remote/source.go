// Package remote lets the duplicate search run against a host reachable over
// SSH, reading the tree and file contents through the SFTP subsystem.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	pathpkg "path"
	"strconv"
	"strings"
	"time"

	kfs "github.com/kr/fs"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/sadopc/godupe/internal/scanner"
)

const (
	defaultRemotePath = "."
	defaultSSHPort    = 22
	defaultTimeout    = 15 * time.Second
)

// Config describes how to reach the remote host.
type Config struct {
	Target    string // user@host
	Port      int
	BatchMode bool // no interactive prompts
	Timeout   time.Duration
}

// sftpClient is the subset of *sftp.Client the source needs. It is also a
// kr/fs FileSystem so the tree can be walked with kr/fs.
type sftpClient interface {
	kfs.FileSystem
	Stat(string) (os.FileInfo, error)
	RealPath(string) (string, error)
}

// Source is a scanner.Source backed by an SFTP session.
type Source struct {
	target string
	client sftpClient
	open   func(string) (io.ReadCloser, error)
	closer io.Closer
}

var _ scanner.Source = (*Source)(nil)

var dialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

var sshNewClientConn = func(conn net.Conn, addr string, config *ssh.ClientConfig) (ssh.Conn, <-chan ssh.NewChannel, <-chan *ssh.Request, error) {
	return ssh.NewClientConn(conn, addr, config)
}

// Dial connects to cfg.Target and starts an SFTP session. The caller must
// Close the returned source.
func Dial(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.Port == 0 {
		cfg.Port = defaultSSHPort
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("ssh port must be between 1 and 65535")
	}
	user, host, err := parseSSHTarget(cfg.Target)
	if err != nil {
		return nil, err
	}

	keys, err := openHostKeyStore(cfg.BatchMode)
	if err != nil {
		return nil, err
	}
	auth, err := authMethods(user, host, cfg.BatchMode, defaultKeyDir())
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	sshClient, err := connectSSH(dialCtx, addr, &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: keys.callback(host, cfg.Port),
		Timeout:         timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("SSH connection failed: %w", err)
	}

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("cannot start SFTP subsystem: %w", err)
	}

	return &Source{
		target: cfg.Target,
		client: client,
		open: func(p string) (io.ReadCloser, error) {
			f, err := client.Open(p)
			if err != nil {
				return nil, err
			}
			return f, nil
		},
		closer: &sessionCloser{ssh: sshClient, sftp: client},
	}, nil
}

func connectSSH(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	conn, err := dialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// Closing the connection is the only way to interrupt the handshake.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	c, chans, reqs, err := sshNewClientConn(conn, addr, config)
	close(done)
	if err != nil {
		_ = conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// Target returns the user@host the source is connected to.
func (s *Source) Target() string { return s.target }

// Close ends the SFTP session and the SSH connection.
func (s *Source) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Abs resolves path on the server. Relative paths are relative to the login
// directory.
func (s *Source) Abs(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = defaultRemotePath
	}
	clean := cleanRemotePath(path)
	resolved, err := s.client.RealPath(clean)
	if err != nil {
		return "", fmt.Errorf("cannot resolve remote path %q: %w", clean, err)
	}
	return cleanRemotePath(resolved), nil
}

func (s *Source) Stat(path string) (fs.FileInfo, error) {
	return s.client.Stat(path)
}

func (s *Source) Open(path string) (io.ReadCloser, error) {
	return s.open(path)
}

// Walk visits the remote tree with a kr/fs walker. Devices, sockets and
// pipes are reported like any other entry; the scanner skips them.
func (s *Source) Walk(root string, fn scanner.WalkFunc) error {
	w := kfs.WalkFS(root, s.client)
	for w.Step() {
		err := fn(w.Path(), w.Stat(), w.Err())
		if err == nil {
			continue
		}
		if errors.Is(err, fs.SkipDir) {
			if info := w.Stat(); info != nil && info.IsDir() {
				w.SkipDir()
			}
			continue
		}
		return err
	}
	return nil
}

func cleanRemotePath(p string) string {
	if p == "" {
		return defaultRemotePath
	}
	return pathpkg.Clean(strings.ReplaceAll(p, "\\", "/"))
}

type sessionCloser struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

func (c *sessionCloser) Close() error {
	var retErr error
	if c.sftp != nil {
		if err := c.sftp.Close(); err != nil {
			retErr = err
		}
	}
	if c.ssh != nil {
		if err := c.ssh.Close(); err != nil && retErr == nil {
			retErr = err
		}
	}
	return retErr
}
