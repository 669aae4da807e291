// Package scanner implements the SecureScan probing engine.
//
// Architecture overview:
//
//   - Scanner orchestrates the probing stages for one target: TCP port
//     scanning with banner grabbing, HTTP security-header analysis, TLS
//     protocol-version probing, and CVE correlation of discovered services.
//     Stages run strictly in that order; each is independently selectable
//     through the Request's stage set.
//   - PortProber fans probes out under a counting-semaphore bound; the
//     Header and TLS stages are internally sequential. Every network
//     operation carries an explicit timeout.
//   - Expected network failures never surface as errors: a refused or
//     timed-out port is simply closed, an unanswered banner read is an
//     absent banner, a refused handshake is an unsupported version, and an
//     unreachable HTTP target degrades to all-missing header findings.
//   - Static lookup data (the service catalog, the header checklist and
//     severity table, the CVE knowledge base) is immutable package-level
//     configuration, consulted by key only.
//
// The engine holds no state between invocations and touches neither the
// filesystem nor any store; job bookkeeping and report rendering live with
// the callers in internal/api and internal/report.
package scanner
