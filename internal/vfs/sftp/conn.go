// Package sftp implements the vfs capability interface over an SFTP session
// carried by SSH. Each connection owns exactly one protocol session; message
// exchanges are serialized even when higher-level operations are issued
// concurrently.
package sftp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/paneferry/paneferry/internal/events"
	"github.com/paneferry/paneferry/internal/logging"
	"github.com/paneferry/paneferry/internal/retry"
	"github.com/paneferry/paneferry/internal/vfs"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticated
	StateReady
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Credential is an opaque credential handle. Storage and format of secrets
// live outside the core; the connection only asks for SSH auth methods.
type Credential interface {
	AuthMethods() ([]ssh.AuthMethod, error)
}

// Password authenticates with a plain password.
type Password string

// AuthMethods returns the password auth method.
func (p Password) AuthMethods() ([]ssh.AuthMethod, error) {
	return []ssh.AuthMethod{ssh.Password(string(p))}, nil
}

// PrivateKey authenticates with a PEM-encoded private key, optionally
// passphrase-protected.
type PrivateKey struct {
	PEM        []byte
	Passphrase []byte
}

// AuthMethods parses the key and returns the public-key auth method.
func (k PrivateKey) AuthMethods() ([]ssh.AuthMethod, error) {
	var signer ssh.Signer
	var err error
	if len(k.Passphrase) > 0 {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(k.PEM, k.Passphrase)
	} else {
		signer, err = ssh.ParsePrivateKey(k.PEM)
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", vfs.ErrAuthentication)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

// Params holds connection settings.
type Params struct {
	Host        string
	Port        int
	Username    string
	Credential  Credential
	InitialPath string

	// ConnectTimeout bounds dial and handshake; default 10s.
	ConnectTimeout time.Duration
	// KeepAliveInterval is the heartbeat period; default 30s, 0 keeps the
	// default, negative disables the heartbeat.
	KeepAliveInterval time.Duration
	// HostKeyCallback defaults to accepting any host key, matching the
	// auto-add behavior interactive file managers use. Supply a known-hosts
	// callback to pin.
	HostKeyCallback ssh.HostKeyCallback
	// Retry is the connect retry policy; zero value selects the default
	// (3 attempts, backoff from 1s).
	Retry retry.Config
}

func (p *Params) applyDefaults() {
	if p.Port == 0 {
		p.Port = 22
	}
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = 10 * time.Second
	}
	if p.KeepAliveInterval == 0 {
		p.KeepAliveInterval = 30 * time.Second
	}
	if p.HostKeyCallback == nil {
		p.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	if p.Retry.MaxAttempts == 0 {
		p.Retry = retry.DefaultConfig()
	}
}

// Conn owns the lifecycle of one remote session: connect, authenticate,
// keep-alive, reconnect-on-drop, disconnect. It is the sole mutator of
// connection state.
type Conn struct {
	params Params
	handle vfs.Handle
	bus    *events.EventBus
	log    *logging.Logger

	// opMu serializes protocol message exchanges on the shared session.
	opMu sync.Mutex

	mu     sync.Mutex
	state  State
	ssh    *ssh.Client
	sftp   *sftp.Client
	closed bool

	stopKeepAlive chan struct{}
	keepAliveDone chan struct{}
}

// Dial establishes a new connection, retrying network-level failures with
// bounded backoff. Authentication failures are surfaced immediately and
// never retried.
func Dial(ctx context.Context, params Params, bus *events.EventBus) (*Conn, error) {
	params.applyDefaults()

	c := &Conn{
		params: params,
		handle: vfs.Handle("sftp-" + uuid.New().String()),
		bus:    bus,
		log:    logging.NewLogger("sftp"),
	}

	err := retry.Do(ctx, params.Retry, func() error {
		return c.connectOnce(ctx)
	})
	if err != nil {
		c.setState(StateDisconnected, err)
		return nil, err
	}

	if params.KeepAliveInterval > 0 {
		c.stopKeepAlive = make(chan struct{})
		c.keepAliveDone = make(chan struct{})
		go c.keepAliveLoop()
	}

	return c, nil
}

// connectOnce performs a single connect/authenticate/open-session attempt.
func (c *Conn) connectOnce(ctx context.Context) error {
	c.setState(StateConnecting, nil)

	methods, err := c.params.Credential.AuthMethods()
	if err != nil {
		return err
	}

	cfg := &ssh.ClientConfig{
		User:            c.params.Username,
		Auth:            methods,
		HostKeyCallback: c.params.HostKeyCallback,
		Timeout:         c.params.ConnectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", c.params.Host, c.params.Port)
	sshClient, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return translateDialError(addr, err)
	}
	c.setState(StateAuthenticated, nil)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return fmt.Errorf("open sftp session %s: %w", addr, vfs.ErrConnectivity)
	}

	if c.params.InitialPath != "" {
		if _, err := sftpClient.Stat(c.params.InitialPath); err != nil {
			_ = sftpClient.Close()
			_ = sshClient.Close()
			return fmt.Errorf("initial path %s: %w", c.params.InitialPath, vfs.ErrNotFound)
		}
	}

	c.mu.Lock()
	c.ssh = sshClient
	c.sftp = sftpClient
	c.mu.Unlock()
	c.setState(StateReady, nil)
	return nil
}

// keepAliveLoop probes the session on a fixed interval. A failed heartbeat
// degrades the connection and attempts exactly one reconnect with the stored
// credentials before giving up.
func (c *Conn) keepAliveLoop() {
	defer close(c.keepAliveDone)

	ticker := time.NewTicker(c.params.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopKeepAlive:
			return
		case <-ticker.C:
		}

		if err := c.heartbeat(); err == nil {
			continue
		}

		c.setState(StateDegraded, vfs.ErrConnectivity)
		c.log.Warn().Str("host", c.params.Host).Msg("heartbeat failed, attempting reconnect")
		c.teardownTransport()

		ctx, cancel := context.WithTimeout(context.Background(), c.params.ConnectTimeout)
		err := c.connectOnce(ctx)
		cancel()
		if err != nil {
			c.log.Error().Err(err).Msg("reconnect failed")
			c.setState(StateDisconnected, err)
			return
		}
		c.log.Info().Msg("session reconnected")
	}
}

// heartbeat issues one cheap protocol round trip under the session lock.
func (c *Conn) heartbeat() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	client, err := c.session()
	if err != nil {
		return err
	}
	_, err = client.Getwd()
	return err
}

// session returns the live protocol client, or a connectivity error when the
// connection is down. Callers must hold opMu.
func (c *Conn) session() (*sftp.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sftp == nil || (c.state != StateReady && c.state != StateDegraded) {
		return nil, fmt.Errorf("session %s: %w", c.handle, vfs.ErrConnectivity)
	}
	return c.sftp, nil
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(s State, cause error) {
	c.mu.Lock()
	old := c.state
	c.state = s
	c.mu.Unlock()

	if old != s && c.bus != nil {
		c.bus.PublishConnectivity(c.handle, old.String(), s.String(), cause)
	}
}

func (c *Conn) teardownTransport() {
	c.mu.Lock()
	sftpClient, sshClient := c.sftp, c.ssh
	c.sftp, c.ssh = nil, nil
	c.mu.Unlock()

	if sftpClient != nil {
		_ = sftpClient.Close()
	}
	if sshClient != nil {
		_ = sshClient.Close()
	}
}

// Close tears the session down. Transport resources are released even when
// operations are in flight; those operations observe a connectivity error.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.stopKeepAlive != nil {
		close(c.stopKeepAlive)
		<-c.keepAliveDone
	}

	c.teardownTransport()
	c.setState(StateDisconnected, nil)
	return nil
}

// translateDialError separates authentication rejections (not retried) from
// network-level failures (retryable).
func translateDialError(addr string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") ||
		strings.Contains(msg, "permission denied") {
		return fmt.Errorf("dial %s: %w", addr, vfs.ErrAuthentication)
	}
	return fmt.Errorf("dial %s: %v: %w", addr, err, vfs.ErrConnectivity)
}
