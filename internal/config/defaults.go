package config

const (
	defaultRoot                = "WIRED_CHAOS_3DT"
	defaultConsumerSuffix      = "-3DT"
	defaultOwnedBy             = "Wired Chaos"
	defaultIntakeMode          = "job"
	defaultVersionWidth        = 4
	defaultVersionConflict     = ConflictReuse
	defaultPollSeconds         = 10.0
	defaultErrorRetrySeconds   = 10
	defaultClaimedBy           = "Wired Chaos worker"
	defaultLockTimeoutSeconds  = 30
	defaultLockRetryMillis     = 50
	defaultJournalFile         = "_JOBS_JOURNAL.db"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultConfigPath          = "~/.config/jobspine/config.toml"
	defaultProjectConfigName   = "jobspine.toml"
	rootEnvVar                 = "JOBSPINE_ROOT"
	maxVersionWidth            = 12
	maxLockTimeoutSeconds      = 3600
	minPollSeconds             = 0.05
	defaultPreserveCorruptFile = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Root: defaultRoot,
		},
		Registrar: Registrar{
			ConsumerSuffix:    defaultConsumerSuffix,
			OwnedBy:           defaultOwnedBy,
			IntakeMode:        defaultIntakeMode,
			VersionWidth:      defaultVersionWidth,
			OnVersionConflict: defaultVersionConflict,
		},
		Worker: Worker{
			PollSeconds:       defaultPollSeconds,
			ErrorRetrySeconds: defaultErrorRetrySeconds,
			ClaimedBy:         defaultClaimedBy,
		},
		Manifest: Manifest{
			LockTimeoutSeconds: defaultLockTimeoutSeconds,
			LockRetryMillis:    defaultLockRetryMillis,
			PreserveCorrupt:    defaultPreserveCorruptFile,
		},
		Journal: Journal{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
