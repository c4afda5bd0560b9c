// Package version exposes the application version derived from build
// metadata: an -ldflags override first, VCS info from debug.BuildInfo next,
// "dev" as the fallback.
package version

import "runtime/debug"

// AppName is the application name used in version strings and logs.
const AppName = "sleuth"

// gitCommitOverride is set via -ldflags for container builds where .git is
// unavailable. Empty means no override.
var gitCommitOverride string

// GitCommit is the short git commit hash (8 chars) from build info, or "dev"
// when build info is unavailable.
var GitCommit = initGitCommit()

func initGitCommit() string {
	if gitCommitOverride != "" {
		return short(gitCommitOverride)
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return short(s.Value)
		}
	}
	return "dev"
}

func short(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "sleuth/<commit>" for user-agent strings and logging.
func Full() string {
	return AppName + "/" + GitCommit
}
