// Package container lists running containers and their resource usage from
// the Docker Engine API under a per-cycle time budget.
package container

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types"

	"github.com/Dicklesworthstone/sysmoni/internal/model"
)

// DefaultLogTail is the number of log lines returned when the caller asks for
// none in particular.
const DefaultLogTail = 50

// Monitor is implemented by the Docker-backed monitor and by Null.
type Monitor interface {
	// Available is false once the runtime is known to be unusable.
	Available() bool
	// Reason explains why Available is false, nil otherwise.
	Reason() error
	List(ctx context.Context, timeout time.Duration) ([]model.ContainerSample, error)
	Logs(ctx context.Context, id string, tail int) ([]string, error)
	Close() error
}

// Null stands in when container support is disabled or cannot be built.
type Null struct {
	Err *Error
}

// NewNull returns a monitor that always fails with kind.
func NewNull(kind Kind, detail string) Null {
	return Null{Err: &Error{Kind: kind, Detail: detail}}
}

func (n Null) Available() bool { return false }
func (n Null) Reason() error   { return n.Err }
func (n Null) Close() error    { return nil }

func (n Null) List(context.Context, time.Duration) ([]model.ContainerSample, error) {
	return nil, n.Err
}

func (n Null) Logs(context.Context, string, int) ([]string, error) {
	return nil, n.Err
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func containerName(names []string) string {
	if len(names) == 0 {
		return "unnamed"
	}
	name := strings.TrimPrefix(names[0], "/")
	if name == "" {
		return "unnamed"
	}
	return name
}

func formatPorts(ports []types.Port) string {
	if len(ports) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		if p.PublicPort != 0 {
			parts = append(parts, fmt.Sprintf("%d:%d", p.PublicPort, p.PrivatePort))
		} else {
			parts = append(parts, fmt.Sprintf("%d", p.PrivatePort))
		}
	}
	return strings.Join(parts, ", ")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
