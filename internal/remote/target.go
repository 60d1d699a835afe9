package remote

import (
	"fmt"
	"time"

	"github.com/provis-io/provis/pkg/schema"
)

// Target identifies one remote host plus the credentials to reach it.
// Identity for pooling and circuit breaking is (user, host, port); the
// secret material does not participate in the key. A Target is immutable
// once a run starts.
type Target struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	User string `json:"user" yaml:"user"`

	// Password and PrivateKey are alternative authentication secrets.
	// At least one must be set.
	Password   string `json:"-" yaml:"password,omitempty"`
	PrivateKey []byte `json:"-" yaml:"private_key,omitempty"`

	// ConnectTimeout bounds session creation; ExecTimeout is the default
	// bound on one remote command when the step carries none.
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`
	ExecTimeout    time.Duration `json:"exec_timeout,omitempty" yaml:"exec_timeout,omitempty"`
}

const (
	defaultPort           = 22
	defaultConnectTimeout = 10 * time.Second
	defaultExecTimeout    = 60 * time.Second
)

// Key returns the pool and circuit-breaker key: user@host:port.
func (t Target) Key() string {
	return fmt.Sprintf("%s@%s:%d", t.User, t.Host, t.port())
}

// Addr returns the dialable host:port address.
func (t Target) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.port())
}

func (t Target) port() int {
	if t.Port > 0 {
		return t.Port
	}
	return defaultPort
}

func (t Target) connectTimeout() time.Duration {
	if t.ConnectTimeout > 0 {
		return t.ConnectTimeout
	}
	return defaultConnectTimeout
}

// DefaultExecTimeout returns the per-command bound for steps without one.
func (t Target) DefaultExecTimeout() time.Duration {
	if t.ExecTimeout > 0 {
		return t.ExecTimeout
	}
	return defaultExecTimeout
}

// Validate rejects targets that cannot possibly connect.
func (t Target) Validate() error {
	if t.Host == "" {
		return schema.NewError(schema.ErrCodeValidation, "target host is empty")
	}
	if t.User == "" {
		return schema.NewError(schema.ErrCodeValidation, "target user is empty")
	}
	if t.Password == "" && len(t.PrivateKey) == 0 {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"target %s has no credential: set password or private key", t.Key())
	}
	return nil
}
