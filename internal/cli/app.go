package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/paneferry/paneferry/internal/config"
	"github.com/paneferry/paneferry/internal/engine"
	"github.com/paneferry/paneferry/internal/events"
	"github.com/paneferry/paneferry/internal/lister"
	"github.com/paneferry/paneferry/internal/queue"
	"github.com/paneferry/paneferry/internal/retry"
	"github.com/paneferry/paneferry/internal/vfs"
	"github.com/paneferry/paneferry/internal/vfs/local"
	sftpvfs "github.com/paneferry/paneferry/internal/vfs/sftp"
)

// app wires the core for one CLI invocation: the provider registry with the
// local provider pre-registered, the event bus, the engine, and the queue.
type app struct {
	reg *vfs.Registry
	bus *events.EventBus
	eng *engine.Engine
	q   *queue.Queue
	lst *lister.Lister

	// remote connections opened during this invocation, keyed by
	// user@host:port so one session serves every target on the same box
	conns map[string]*sftpvfs.Provider
}

func newApp() *app {
	reg := vfs.NewRegistry()
	reg.Register(local.New())

	bus := events.NewEventBus(0)
	eng := engine.New(reg, bus)
	if cfg != nil && cfg.Transfer.RateLimit > 0 {
		eng.SetRateLimit(cfg.Transfer.RateLimit)
	}

	return &app{
		reg:   reg,
		bus:   bus,
		eng:   eng,
		q:     queue.New(reg, eng, bus),
		lst:   lister.New(reg),
		conns: make(map[string]*sftpvfs.Provider),
	}
}

func (a *app) close() {
	for _, p := range a.conns {
		_ = p.Close()
	}
	a.bus.Close()
}

// resolveTarget turns a CLI argument into a Location. Three forms are
// accepted:
//
//	/local/path or relative/path
//	name:/remote/path   (saved connection profile)
//	sftp://user@host:port/remote/path
func (a *app) resolveTarget(ctx context.Context, arg string) (vfs.Location, error) {
	if strings.HasPrefix(arg, "sftp://") {
		return a.resolveURL(ctx, arg)
	}
	if name, rest, ok := splitProfileRef(arg); ok {
		if profile, found := cfg.Connection(name); found {
			return a.resolveProfile(ctx, profile, rest)
		}
	}

	abs, err := filepath.Abs(arg)
	if err != nil {
		return vfs.Location{}, fmt.Errorf("resolving local path %q: %w", arg, err)
	}
	return vfs.Location{Handle: vfs.LocalHandle, Path: abs}, nil
}

func (a *app) resolveURL(ctx context.Context, raw string) (vfs.Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return vfs.Location{}, fmt.Errorf("invalid target URL %q: %w", raw, err)
	}
	if u.User == nil || u.User.Username() == "" {
		return vfs.Location{}, fmt.Errorf("target URL %q needs a user (sftp://user@host/path)", raw)
	}

	port := config.DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return vfs.Location{}, fmt.Errorf("invalid port in %q: %w", raw, err)
		}
	}

	params := sftpvfs.Params{
		Host:     u.Hostname(),
		Port:     port,
		Username: u.User.Username(),
	}
	if pw, set := u.User.Password(); set {
		params.Credential = sftpvfs.Password(pw)
	}

	p, err := a.connect(ctx, params)
	if err != nil {
		return vfs.Location{}, err
	}

	path := u.Path
	if path == "" {
		path = p.InitialPath()
	}
	return vfs.Location{Handle: p.Handle(), Path: path}, nil
}

func (a *app) resolveProfile(ctx context.Context, profile config.ConnectionConfig, rest string) (vfs.Location, error) {
	params := sftpvfs.Params{
		Host:        profile.Host,
		Port:        profile.Port,
		Username:    profile.User,
		InitialPath: profile.InitialPath,
	}
	if profile.KeyFile != "" {
		pem, err := os.ReadFile(profile.KeyFile)
		if err != nil {
			return vfs.Location{}, fmt.Errorf("reading key file for connection %q: %w", profile.Name, err)
		}
		params.Credential = sftpvfs.PrivateKey{PEM: pem}
	}

	p, err := a.connect(ctx, params)
	if err != nil {
		return vfs.Location{}, err
	}

	path := rest
	if path == "" {
		path = p.InitialPath()
		if path == "" {
			path = "."
		}
	}
	return vfs.Location{Handle: p.Handle(), Path: path}, nil
}

// connect dials a remote session, reusing an already-open one for the same
// endpoint. Password credentials are prompted for interactively when the
// target did not carry one.
func (a *app) connect(ctx context.Context, params sftpvfs.Params) (*sftpvfs.Provider, error) {
	if params.Port == 0 {
		params.Port = config.DefaultPort
	}
	key := fmt.Sprintf("%s@%s:%d", params.Username, params.Host, params.Port)
	if p, ok := a.conns[key]; ok {
		return p, nil
	}

	if params.Credential == nil {
		pw, err := promptPassword(fmt.Sprintf("Password for %s: ", key))
		if err != nil {
			return nil, err
		}
		params.Credential = sftpvfs.Password(pw)
	}
	params.ConnectTimeout = cfg.Transfer.ConnectTimeout
	params.KeepAliveInterval = cfg.Transfer.KeepAlive
	params.Retry = retry.Config{
		MaxAttempts:  cfg.Transfer.Retries,
		InitialDelay: time.Second,
		MaxDelay:     15 * time.Second,
	}

	logger.Info().Str("endpoint", key).Msg("Connecting")
	p, err := sftpvfs.Connect(ctx, params, a.bus)
	if err != nil {
		return nil, err
	}
	a.reg.Register(p)
	a.conns[key] = p
	return p, nil
}

// splitProfileRef splits "name:/path" into its parts. Single-letter names
// are rejected so Windows drive paths like "C:\data" stay local.
func splitProfileRef(arg string) (name, rest string, ok bool) {
	i := strings.Index(arg, ":")
	if i < 2 {
		return "", "", false
	}
	name = arg[:i]
	if strings.ContainsAny(name, "/\\") {
		return "", "", false
	}
	return name, arg[i+1:], true
}
