// Package sdnotify reports process state to systemd when running under it.
// Every call is a no-op outside a systemd unit with Type=notify.
package sdnotify

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "vtreporter/pkg/logx"
)

// Ready sends READY=1. Returns true when the notification was delivered.
func Ready(log logx.Logger) bool {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warn("sd_notify ready failed", logx.Err(err))
		return false
	}
	if sent {
		log.Debug("systemd notified: ready")
	}
	return sent
}

// Stopping sends STOPPING=1 ahead of shutdown.
func Stopping(log logx.Logger) {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.Warn("sd_notify stopping failed", logx.Err(err))
	}
}

// Watchdog pings WATCHDOG=1 at half the unit's WatchdogSec until ctx is
// cancelled. It returns immediately when no watchdog is armed.
func Watchdog(ctx context.Context, log logx.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}

	tick := time.NewTicker(interval / 2)
	log.Info("systemd watchdog armed", logx.Duration("interval", interval))
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
					log.Warn("sd_notify watchdog failed", logx.Err(err))
				}
			}
		}
	}()
}
