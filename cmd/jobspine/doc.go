// Command jobspine registers intake jobs into the WIRED_CHAOS_3DT store and
// runs workers that move queued versions through running to completed.
//
// Subcommands:
//   - register: create a queued version for an intake id and consumer
//   - worker: run one claim/execute/complete cycle, or poll with --watch
//   - status, history: inspect the manifest and the transition journal
//   - doctor: run preflight checks against the store
//   - manifest check|rebuild: compare or regenerate _JOBS_MANIFEST.json
//   - config init|validate: manage the TOML configuration file
package main
