package handoff

import "context"

// Launcher opens a deep link on the device. Launch reports whether the UI
// actually came to the foreground; a false result without an error means the
// device refused the launch (screen locked, app backgrounded) and the caller
// should fall back to a notification.
type Launcher interface {
	Launch(ctx context.Context, link DeepLink) (bool, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, link DeepLink) (bool, error)

func (f LauncherFunc) Launch(ctx context.Context, link DeepLink) (bool, error) {
	return f(ctx, link)
}
