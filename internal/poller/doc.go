// Package poller implements the fallback dashboard poller.
//
// While the realtime channel is up, dashboards are kept current by pushed
// updates. When it is not (reconnecting, or failed after exhausting its
// retries) the poller refreshes the session's dashboards over REST on a
// fixed interval so the UI does not go stale.
package poller
