package container

import (
	"context"
	"errors"
	"strings"

	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

// Kind classifies why the container runtime could not be read. Kinds are
// errors themselves so callers can match with errors.Is(err, container.Timeout).
type Kind int

const (
	RuntimeUnreachable Kind = iota + 1
	PermissionDenied
	NotCompiled
	Disabled
	Timeout
	APIError
)

func (k Kind) String() string {
	switch k {
	case RuntimeUnreachable:
		return "runtime unreachable"
	case PermissionDenied:
		return "permission denied"
	case NotCompiled:
		return "not compiled"
	case Disabled:
		return "disabled"
	case Timeout:
		return "timeout"
	case APIError:
		return "api error"
	}
	return "unknown"
}

func (k Kind) Error() string { return k.String() }

// Error is the failure reported to the collector. Its message is shown to the
// user as is.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case Timeout:
		return "Docker daemon not responding (timeout)"
	case NotCompiled:
		return "Docker support not compiled"
	case Disabled:
		return "Docker monitoring disabled by configuration"
	case PermissionDenied:
		return withDetail("Permission denied accessing the Docker socket. Add user to 'docker' group", e.Detail)
	case RuntimeUnreachable:
		return withDetail("Docker daemon is not running or not accessible", e.Detail)
	}
	return withDetail("Docker", e.Detail)
}

func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

func withDetail(msg, detail string) string {
	if detail == "" {
		return msg
	}
	return msg + ": " + detail
}

// classify maps a Docker SDK error onto a Kind, using fallback when nothing
// more specific matches.
func classify(err error, fallback Kind) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	kind := fallback
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = Timeout
	case errdefs.IsUnauthorized(err), errdefs.IsForbidden(err),
		strings.Contains(strings.ToLower(err.Error()), "permission denied"):
		kind = PermissionDenied
	case client.IsErrConnectionFailed(err):
		kind = RuntimeUnreachable
	}
	return &Error{Kind: kind, Detail: err.Error(), Err: err}
}
