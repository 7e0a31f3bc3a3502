package middleware

import (
	"fmt"
	"time"

	"github.com/classpilot/api/utils/cache"
	"github.com/classpilot/api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// lockout tiers applied per source IP within the attempt window
var lockoutTiers = []struct {
	attempts int64
	duration time.Duration
}{
	{25, 24 * time.Hour},
	{10, 1 * time.Hour},
	{5, 2 * time.Minute},
}

const attemptWindow = 15 * time.Minute

// BruteForceProtection throttles repeated failed sign-in attempts using Redis
type BruteForceProtection struct {
	redisCache *cache.RedisCache
}

// NewBruteForceProtection creates a new brute force protection instance
func NewBruteForceProtection(redisCache *cache.RedisCache) *BruteForceProtection {
	return &BruteForceProtection{
		redisCache: redisCache,
	}
}

func attemptKey(ip string) string { return fmt.Sprintf("brute_force:attempts:%s", ip) }
func lockKey(ip string) string    { return fmt.Sprintf("brute_force:lock:%s", ip) }

// CheckAndRecordAttempt middleware rejects requests from locked-out IPs
func (b *BruteForceProtection) CheckAndRecordAttempt() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()

		locked, err := b.redisCache.Exists(c.Context(), lockKey(ip))
		if err != nil {
			// Redis being down must not lock out legitimate users
			return c.Next()
		}

		if locked {
			ttl, _ := b.redisCache.TTL(c.Context(), lockKey(ip))
			retryAfter := int(ttl.Seconds())
			if retryAfter < 0 {
				retryAfter = 60
			}

			c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			return response.TooManyRequests(c, fmt.Sprintf("Too many failed attempts. Try again in %d seconds", retryAfter))
		}

		return c.Next()
	}
}

// RecordFailedAttempt records a failed login attempt and applies progressive lockouts
func (b *BruteForceProtection) RecordFailedAttempt(c *fiber.Ctx, ip string) error {
	ctx := c.Context()

	attempts, err := b.redisCache.Increment(ctx, attemptKey(ip))
	if err != nil {
		// If Redis is down, just return without blocking
		return nil
	}

	if attempts == 1 {
		b.redisCache.Expire(ctx, attemptKey(ip), attemptWindow)
	}

	for _, tier := range lockoutTiers {
		if attempts >= tier.attempts {
			return b.redisCache.Set(ctx, lockKey(ip), "locked", tier.duration)
		}
	}

	return nil
}

// RecordSuccessfulAttempt clears failed attempts on successful login
func (b *BruteForceProtection) RecordSuccessfulAttempt(c *fiber.Ctx, ip string) error {
	ctx := c.Context()
	return b.redisCache.Delete(ctx, attemptKey(ip), lockKey(ip))
}

// IsIPLocked checks if an IP is currently locked
func (b *BruteForceProtection) IsIPLocked(c *fiber.Ctx, ip string) (bool, error) {
	return b.redisCache.Exists(c.Context(), lockKey(ip))
}
