package main

import (
	"loreforge/internal/lock"
	"loreforge/internal/logging"
)

// withLock runs fn while holding the named advisory lock.
func (c *commandContext) withLock(name string, fn func() error) error {
	cfg := c.configValue()
	held, err := lock.Acquire(cfg.LocksDir(), name, cfg.Pipeline.AdvisoryLock)
	if err != nil {
		return err
	}
	defer func() {
		if err := held.Release(); err != nil {
			logging.WarnWithContext(c.loggerValue(), "lock release failed", "lock_release_failed",
				logging.String("lock", name), logging.Error(err))
		}
	}()
	return fn()
}
