// Package notifications delivers pipeline events via pluggable notifiers.
//
// Gate transitions and failures go to the Discord webhook configured in
// config.toml; health reports and failures also go out by SMTP email when
// it is configured. With neither configured the service is a no-op.
//
// All pipeline code depends only on the Service interface, so adding a
// transport does not touch the callers.
package notifications
