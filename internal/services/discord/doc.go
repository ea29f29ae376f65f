// Package discord is a small REST client for the two Discord surfaces the
// publish gate uses: incoming webhooks for posting, and the bot API for
// reading channel replies. Requests share one rate limiter.
package discord
