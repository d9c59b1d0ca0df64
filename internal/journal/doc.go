// Package journal records the bridge's operational events in memory.
//
// The journal is the audit trail behind the getLogs query: every connection
// transition, publish outcome and host-notification anomaly is appended with a
// timestamp and can be read back in recording order.
//
// Entries live in a fixed-capacity ring buffer. When it is full the oldest
// entry is evicted, so memory stays bounded for a process that is expected to
// run for months between restarts. Dropped() reports how many entries have
// been evicted so a reader can tell the history is truncated.
//
// Small details are rendered on the same line as the message; details larger
// than the inline threshold become an indented block below it:
//
//	2026-10-17T18:42:07Z - Published successfully to LGTV2MQTT/tv/state
//	2026-10-17T18:42:09Z - WARNING: Unexpected foreground app update:
//	    {
//	      "foregroundAppInfo": [],
//	      "returnValue": true
//	    }
//
// Recording never fails.
package journal
