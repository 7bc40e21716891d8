package faults

import "log/slog"

// Severity returns the log level a failure of the given kind should be reported
// at. Retryable kinds and caller mistakes log at warn; auth failures and
// everything else log at error. The executor uses this for logging only; it
// never alters control flow beyond the retryable flag.
func Severity(kind Kind) slog.Level {
	switch kind {
	case KindNetwork, KindRateLimit, KindTimeout, KindProvider:
		return slog.LevelWarn
	case KindValidation, KindConfiguration:
		return slog.LevelWarn
	case KindAuth:
		return slog.LevelError
	default:
		return slog.LevelError
	}
}

// UserMessage renders a fault as a single line suitable for CLI display.
func UserMessage(f *Fault) string {
	if f == nil {
		return ""
	}

	prefix := map[Kind]string{
		KindAPI:            "The remote API rejected the request",
		KindAuth:           "Authentication failed",
		KindConfiguration:  "Configuration problem",
		KindValidation:     "Invalid input",
		KindFileSystem:     "File system problem",
		KindNetwork:        "Network problem",
		KindRateLimit:      "Rate limited by the remote service",
		KindTimeout:        "The operation timed out",
		KindProvider:       "The downstream provider failed",
		KindDataProcessing: "Could not process the response payload",
	}[f.Kind]

	if prefix == "" {
		prefix = "Unexpected failure"
	}
	return prefix + ": " + f.Message
}

// RecoverySuggestions returns ranked hints for resolving a failure of the given
// kind, most likely fix first.
func RecoverySuggestions(kind Kind) []string {
	switch kind {
	case KindAuth:
		return []string{
			"Verify the access token or credentials for this source",
			"Check that the token has not expired and has the required scopes",
			"Re-run the credential acquisition flow for this source",
		}
	case KindRateLimit:
		return []string{
			"Wait for the rate limit window to reset before retrying",
			"Reduce the date range so fewer requests are issued per run",
			"Lower the source's requests-per-second ceiling in configuration",
		}
	case KindNetwork, KindTimeout:
		return []string{
			"Check network connectivity to the remote host",
			"Retry the run; transient failures often clear on their own",
			"Increase the operation timeout for slow sources",
		}
	case KindConfiguration:
		return []string{
			"Check the environment variables for this source",
			"Ensure the source is enabled and its base URL is set",
		}
	case KindValidation:
		return []string{
			"Check the date range and source parameters passed to the run",
		}
	case KindFileSystem:
		return []string{
			"Verify the path exists and the process has permission to access it",
		}
	case KindProvider:
		return []string{
			"Retry the run; provider-side failures are usually transient",
			"Check the provider's status page for ongoing incidents",
		}
	case KindDataProcessing:
		return []string{
			"The source returned an unexpected payload; report it if it persists",
		}
	default:
		return []string{"Retry the run and inspect the logs if the failure persists"}
	}
}
