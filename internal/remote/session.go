package remote

import (
	"bytes"
	"context"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/provis-io/provis/pkg/schema"
)

// ExecResult is the outcome of one remote command.
type ExecResult struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
}

// Ok reports whether the command exited zero.
func (r *ExecResult) Ok() bool { return r.ExitCode == 0 }

// Session is one live authenticated remote shell endpoint. Implementations
// must be safe to Close more than once.
type Session interface {
	// Run executes a command and captures its exit status and output.
	// A non-zero exit status is reported in the result, not as an error;
	// errors mean the transport itself failed.
	Run(ctx context.Context, command string) (*ExecResult, error)
	// Validate executes a cheap no-op command and checks its exit status.
	Validate(ctx context.Context) error
	// Close releases the underlying transport, best effort.
	Close() error
}

// Factory opens authenticated sessions for a target.
type Factory interface {
	Open(ctx context.Context, target Target) (Session, error)
}

// SSHFactory opens SSH sessions with password or private-key authentication.
type SSHFactory struct {
	// HostKeyCallback overrides host key verification. Nil accepts any
	// host key, which matches fleet-provisioning against freshly imaged
	// machines; production deployments should wire a known-hosts callback.
	HostKeyCallback ssh.HostKeyCallback
}

// Open dials and authenticates within the target's connect timeout.
func (f *SSHFactory) Open(ctx context.Context, target Target) (Session, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	var auth []ssh.AuthMethod
	if len(target.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(target.PrivateKey)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"parse private key for %s: %s", target.Key(), err.Error()).WithCause(err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if target.Password != "" {
		auth = append(auth, ssh.Password(target.Password))
	}

	hostKey := f.HostKeyCallback
	if hostKey == nil {
		hostKey = ssh.InsecureIgnoreHostKey()
	}

	cfg := &ssh.ClientConfig{
		User:            target.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         target.connectTimeout(),
	}

	// ssh.Dial has no context support; dial the TCP leg ourselves so the
	// caller's cancellation is honored during connect.
	dialer := net.Dialer{Timeout: target.connectTimeout()}
	conn, err := dialer.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConnection,
			"dial %s: %s", target.Addr(), err.Error()).WithCause(err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, target.Addr(), cfg)
	if err != nil {
		_ = conn.Close()
		return nil, schema.NewErrorf(schema.ErrCodeConnection,
			"ssh handshake with %s: %s", target.Key(), err.Error()).WithCause(err)
	}

	return &sshSession{
		client: ssh.NewClient(sshConn, chans, reqs),
		target: target,
	}, nil
}

// sshSession owns one *ssh.Client. Each Run opens a fresh ssh channel on it.
type sshSession struct {
	client *ssh.Client
	target Target
}

func (s *sshSession) Run(ctx context.Context, command string) (*ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, ctxError(err)
	}

	sess, err := s.client.NewSession()
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConnection,
			"open channel on %s: %s", s.target.Key(), err.Error()).WithCause(err)
	}
	defer func() { _ = sess.Close() }()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL) // best effort
		return nil, ctxError(ctx.Err())
	case err := <-done:
		result := &ExecResult{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}
		if err != nil {
			exitErr, ok := err.(*ssh.ExitError)
			if !ok {
				return nil, schema.NewErrorf(schema.ErrCodeConnection,
					"run on %s: %s", s.target.Key(), err.Error()).WithCause(err)
			}
			result.ExitCode = exitErr.ExitStatus()
		}
		return result, nil
	}
}

// Validate runs "true" on the remote side, the cheapest command that still
// exercises the full channel round trip.
func (s *sshSession) Validate(ctx context.Context) error {
	res, err := s.Run(ctx, "true")
	if err != nil {
		return err
	}
	if !res.Ok() {
		return schema.NewErrorf(schema.ErrCodeConnection,
			"validation command exited %d on %s", res.ExitCode, s.target.Key())
	}
	return nil
}

func (s *sshSession) Close() error {
	return s.client.Close()
}

func ctxError(err error) *schema.ProvisError {
	if err == context.DeadlineExceeded {
		return schema.NewError(schema.ErrCodeTimeout, "remote operation timed out").WithCause(err)
	}
	return schema.NewError(schema.ErrCodeCancelled, "remote operation cancelled").WithCause(err)
}
