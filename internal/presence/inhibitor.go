package presence

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	logindDest    = "org.freedesktop.login1"
	logindPath    = "/org/freedesktop/login1"
	logindInhibit = "org.freedesktop.login1.Manager.Inhibit"

	defaultInhibitWhat = "idle:sleep"
	inhibitModeBlock   = "block"
)

// Lock is a held wake lock
type Lock interface {
	Release() error
}

// Inhibitor acquires wake locks from the platform
type Inhibitor interface {
	Acquire(ctx context.Context, reason string) (Lock, error)
}

// LogindInhibitor takes idle and sleep inhibitor locks from systemd-logind.
// The lock is held for as long as the file descriptor logind hands back stays open.
type LogindInhibitor struct {
	who  string
	what string
}

// NewLogindInhibitor creates an inhibitor that registers locks under the given application name
func NewLogindInhibitor(who string) *LogindInhibitor {
	return &LogindInhibitor{who: who, what: defaultInhibitWhat}
}

// Acquire asks logind for a blocking inhibitor lock
func (l *LogindInhibitor) Acquire(ctx context.Context, reason string) (Lock, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: connect system bus: %v", ErrInhibitorUnavailable, err)
	}
	defer conn.Close()

	obj := conn.Object(logindDest, dbus.ObjectPath(logindPath))
	call := obj.CallWithContext(ctx, logindInhibit, 0, l.what, l.who, reason, inhibitModeBlock)
	if call.Err != nil {
		return nil, fmt.Errorf("logind inhibit: %w", call.Err)
	}

	var fd dbus.UnixFD
	if err := call.Store(&fd); err != nil {
		return nil, fmt.Errorf("logind inhibit reply: %w", err)
	}

	return &fileLock{file: os.NewFile(uintptr(fd), "logind-inhibit")}, nil
}

type fileLock struct {
	once sync.Once
	file *os.File
	err  error
}

func (f *fileLock) Release() error {
	f.once.Do(func() {
		f.err = f.file.Close()
	})
	return f.err
}

// NoopInhibitor hands out locks that hold nothing. It is used when D-Bus is disabled.
type NoopInhibitor struct{}

// Acquire always succeeds
func (NoopInhibitor) Acquire(context.Context, string) (Lock, error) {
	return noopLock{}, nil
}

type noopLock struct{}

func (noopLock) Release() error { return nil }
