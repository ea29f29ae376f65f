package discord

import (
	"net/url"
	"strings"
)

// NormalizeWebhookURL trims surrounding quotes and whitespace and rewrites
// the legacy discordapp.com host.
func NormalizeWebhookURL(raw string) string {
	u := strings.TrimSpace(raw)
	if len(u) >= 2 && u[0] == u[len(u)-1] && (u[0] == '\'' || u[0] == '"') {
		u = strings.TrimSpace(u[1 : len(u)-1])
	}
	u = strings.Replace(u, "https://discordapp.com/", "https://discord.com/", 1)
	u = strings.Replace(u, "http://discordapp.com/", "https://discord.com/", 1)
	return u
}

// LooksLikePlaceholder reports whether raw is empty, still carries template
// markers such as YOUR_WEBHOOK, or is not a webhook URL at all.
func LooksLikePlaceholder(raw string) bool {
	u := NormalizeWebhookURL(raw)
	if u == "" {
		return true
	}
	upper := strings.ToUpper(u)
	if strings.Contains(u, "...") || strings.Contains(upper, "YOUR_") || strings.Contains(upper, "REPLACE") {
		return true
	}
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return true
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return true
	}
	return !strings.Contains(parsed.Path, "/api/webhooks/")
}

// Short collapses whitespace in text and cuts it to at most n runes on a
// word boundary, ending with an ellipsis when cut.
func Short(text string, n int) string {
	t := strings.Join(strings.Fields(text), " ")
	if n <= 0 {
		return ""
	}
	runes := []rune(t)
	if len(runes) <= n {
		return t
	}
	cut := string(runes[:n-1])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
