/*
Package retry re-invokes a fallible upstream call under a bounded exponential
backoff schedule.

# Retry Behavior

The delay before retry n (n >= 1) is min(BaseDelay * 2^(n-1), MaxDelay). With
DefaultConfig that is 1s, 2s, then 4s capped at 5s, for at most three calls.

Only errors wrapped with Retryable trigger another attempt. Everything else
returns immediately, and when attempts run out the last value and error are
handed back so the caller can degrade instead of failing:

	profile, err := retry.Do(ctx, retry.DefaultConfig("instagram_profile"),
	    func(ctx context.Context, attempt int) (*Profile, error) {
	        resp, err := client.Do(req)
	        ...
	        if resp.StatusCode == http.StatusUnauthorized {
	            return nil, retry.Retryable(ErrUnauthorized)
	        }
	        ...
	    })

The backoff wait is a timer select on ctx.Done(), so cancelling the request
abandons the remaining attempts.
*/
package retry
