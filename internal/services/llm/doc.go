// Package llm is the chat-completion client behind script polish.
//
// Every request asks for a JSON object reply. Complete returns the reply
// text; Decode also unmarshals it, tolerating markdown fences and stray
// prose around the object.
//
// HTTP 408, 429 and 5xx responses, network timeouts and blank replies are
// retried with doubling backoff (1s base, 10s ceiling, 5 attempts unless
// configured). A Retry-After header replaces the computed delay. Final
// errors carry services.ErrTimeout or services.ErrExternalTool; polish
// treats either as a reason to keep the deterministic draft.
package llm
