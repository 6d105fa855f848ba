package redis

import "strings"

const keyNamespace = "certify"

// Key families stored under the service namespace.
const (
	familyIdempotency = "idempotency"
	familyRateLimit   = "rate_limit"
	familyLock        = "lock"
)

// joinKey builds "certify:<family>:<part>..." skipping blank parts.
func joinKey(family string, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(family)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// IdempotencyKey scopes a client-supplied Idempotency-Key to its caller and route.
func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(familyIdempotency, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return joinKey(familyRateLimit, scope)
}

// LockKey names the single-holder lock for a background job.
func (c *Client) LockKey(name string) string {
	return joinKey(familyLock, name)
}
