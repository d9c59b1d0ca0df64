// Package host provides the sources of foreground-app notifications.
//
// Three sources are available, selected by host.source:
//   - luna: runs luna-send against a webOS Luna service and reads one JSON
//     response per line
//   - mpris: watches MPRIS media players on the D-Bus session bus
//   - webhook: accepts notifications pushed to the HTTP API
//
// Every source hands the bridge raw payloads shaped like
//
//	{"foregroundAppInfo":[{"appId":"netflix","playState":"playing","type":"media"}]}
//
// Parsing and validation happen in the bridge, not here.
package host
