/**
 * @description
 * Retry backoff policy for failed jobs: exponential in the retry count,
 * capped at ten minutes. The cap keeps a poisoned job from pushing its next
 * attempt arbitrarily far out while still draining pressure off a partner
 * that is struggling.
 */

package jobs

import "time"

// maxWaitSeconds caps the backoff at ten minutes.
const maxWaitSeconds = 600

// GetWaitTimeInSeconds returns the delay before retry number retryCount:
// 1, 2, 4, ... 512 seconds for the first ten attempts, 600 thereafter.
func GetWaitTimeInSeconds(retryCount int) int {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > 9 {
		return maxWaitSeconds
	}
	wait := 1 << retryCount
	if wait > maxWaitSeconds {
		return maxWaitSeconds
	}
	return wait
}

// NextRunTime applies the backoff to a base time.
func NextRunTime(base time.Time, retryCount int) time.Time {
	return base.Add(time.Duration(GetWaitTimeInSeconds(retryCount)) * time.Second)
}
