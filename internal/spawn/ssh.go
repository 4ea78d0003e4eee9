package spawn

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHOptions configures an SSHSpawner beyond what the target URL carries.
type SSHOptions struct {
	// IdentityFile is a path to a private key. Empty means agent-only auth.
	IdentityFile string

	// InsecureHostKey skips host key verification. Intended for throwaway
	// test hosts only.
	InsecureHostKey bool

	// DialTimeout bounds the TCP connect. Default: 10s.
	DialTimeout time.Duration
}

// SSHSpawner starts commands on a remote host over SSH with a requested
// PTY, so the remote process sees a real controlling terminal exactly like
// a locally spawned one.
type SSHSpawner struct {
	user string
	addr string
	opts SSHOptions
}

// NewSSHSpawner parses a target of the form ssh://user@host[:port] (or the
// shorthand user@host[:port]) and returns a spawner for it.
func NewSSHSpawner(target string, opts SSHOptions) (*SSHSpawner, error) {
	if !strings.Contains(target, "://") {
		target = "ssh://" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse ssh target: %w", err)
	}
	if u.Scheme != "ssh" {
		return nil, fmt.Errorf("unsupported target scheme: %s", u.Scheme)
	}
	if u.User == nil || u.User.Username() == "" {
		return nil, fmt.Errorf("ssh target requires a user: %s", target)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("ssh target requires a host: %s", target)
	}
	port := u.Port()
	if port == "" {
		port = "22"
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 10 * time.Second
	}

	return &SSHSpawner{
		user: u.User.Username(),
		addr: net.JoinHostPort(host, port),
		opts: opts,
	}, nil
}

// Addr returns the host:port this spawner connects to.
func (s *SSHSpawner) Addr() string {
	return s.addr
}

// Dial opens an SSH client connection to the target. Callers that stage
// fixture files over SFTP reuse this connection before spawning.
func (s *SSHSpawner) Dial() (*ssh.Client, error) {
	cfg, err := s.clientConfig()
	if err != nil {
		return nil, err
	}
	client, err := ssh.Dial("tcp", s.addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", s.addr, err)
	}
	return client, nil
}

type sshProcess struct {
	client *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser

	mu     sync.Mutex
	closed bool
	exited chan struct{}
}

// Spawn connects, requests a PTY, and starts the command remotely. Output
// arrives merged (PTY semantics) through cb.OnData; cb.OnExit fires once
// after the output stream drains.
func (s *SSHSpawner) Spawn(cfg Config, cb Callbacks) (Process, error) {
	client, err := s.Dial()
	if err != nil {
		return nil, err
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ssh session: %w", err)
	}

	for _, kv := range cfg.Env {
		if k, v, found := strings.Cut(kv, "="); found {
			// Servers commonly reject unknown env names; best effort.
			_ = sess.Setenv(k, v)
		}
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("xterm-256color", int(cfg.Rows), int(cfg.Cols), modes); err != nil {
		_ = sess.Close()
		client.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		_ = sess.Close()
		client.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		_ = sess.Close()
		client.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := sess.Start(remoteCommand(cfg)); err != nil {
		_ = sess.Close()
		client.Close()
		return nil, fmt.Errorf("start remote command: %w", err)
	}

	p := &sshProcess{
		client: client,
		sess:   sess,
		stdin:  stdin,
		exited: make(chan struct{}),
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		buf := make([]byte, 8192)
		for {
			n, err := stdout.Read(buf)
			if n > 0 && cb.OnData != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				cb.OnData(chunk)
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		code := 0
		if err := sess.Wait(); err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				code = exitErr.ExitStatus()
			} else {
				code = -1
			}
		}
		close(p.exited)
		<-readDone
		if cb.OnExit != nil {
			cb.OnExit(code)
		}
	}()

	return p, nil
}

// remoteCommand builds the shell command line, quoting each argument.
func remoteCommand(cfg Config) string {
	parts := make([]string, 0, len(cfg.Args)+2)
	if cfg.Dir != "" {
		parts = append(parts, "cd "+shellQuote(cfg.Dir)+" &&")
	}
	parts = append(parts, shellQuote(cfg.Command))
	for _, a := range cfg.Args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (p *sshProcess) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, fmt.Errorf("ssh session is closed")
	}
	return p.stdin.Write(data)
}

func (p *sshProcess) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("ssh session is closed")
	}
	return p.sess.WindowChange(int(rows), int(cols))
}

func (p *sshProcess) Signal(sig Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("ssh session is closed")
	}

	var s ssh.Signal
	switch sig {
	case SIGINT:
		s = ssh.SIGINT
	case SIGTERM:
		s = ssh.SIGTERM
	case SIGKILL:
		s = ssh.SIGKILL
	case SIGHUP:
		s = ssh.SIGHUP
	default:
		return fmt.Errorf("unknown signal: %d", sig)
	}

	return p.sess.Signal(s)
}

func (p *sshProcess) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	select {
	case <-p.exited:
	default:
		_ = p.sess.Signal(ssh.SIGTERM)
		select {
		case <-p.exited:
		case <-time.After(terminateGrace):
			_ = p.sess.Signal(ssh.SIGKILL)
		}
	}

	_ = p.sess.Close()
	return p.client.Close()
}

func (s *SSHSpawner) clientConfig() (*ssh.ClientConfig, error) {
	auths, err := s.authMethods()
	if err != nil {
		return nil, err
	}

	hkcb, err := s.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            s.user,
		Auth:            auths,
		HostKeyCallback: hkcb,
		Timeout:         s.opts.DialTimeout,
	}, nil
}

func (s *SSHSpawner) authMethods() ([]ssh.AuthMethod, error) {
	var auths []ssh.AuthMethod

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			auths = append(auths, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	if s.opts.IdentityFile != "" {
		key, err := os.ReadFile(s.opts.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("read identity file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse identity file: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	}

	if len(auths) == 0 {
		return nil, fmt.Errorf("no SSH auth available: set SSH_AUTH_SOCK or an identity file")
	}
	return auths, nil
}

func (s *SSHSpawner) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if s.opts.InsecureHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home for known_hosts: %w", err)
	}
	path := filepath.Join(home, ".ssh", "known_hosts")
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts: %w", err)
	}
	return cb, nil
}
