package secrets

import (
	"strings"

	"google.golang.org/api/option"
)

// OptionsFromEnv derives fetcher options from the process environment map.
//
//	API_SECRET_PROJECT_IDS         per-environment projects, e.g. "prod=shop-prod,staging=shop-stg"
//	API_SECRET_DEFAULT_PROJECT_ID  project used when the environment has no entry
//	API_SECRET_FALLBACK_FILE       dotenv-style file read when Secret Manager is unreachable
//
// The environment label comes from API_SECURITY_ENVIRONMENT and defaults to "local". The default
// project falls back to API_FIREBASE_PROJECT_ID, and API_FIREBASE_CREDENTIALS_FILE authenticates the
// Secret Manager client.
func OptionsFromEnv(env map[string]string) []Option {
	lookup := func(key string) string { return strings.TrimSpace(env[key]) }

	label := strings.ToLower(lookup("API_SECURITY_ENVIRONMENT"))
	if label == "" {
		label = "local"
	}

	project := ParseProjectMap(lookup("API_SECRET_PROJECT_IDS"))[label]
	if project == "" {
		project = lookup("API_SECRET_DEFAULT_PROJECT_ID")
	}
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}

	var opts []Option
	if project != "" {
		opts = append(opts, WithDefaultProject(project))
	}
	if path := lookup("API_SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, WithFallbackFile(path))
	}
	if creds := lookup("API_FIREBASE_CREDENTIALS_FILE"); creds != "" {
		opts = append(opts, WithClientOptions(option.WithCredentialsFile(creds)))
	}
	return opts
}

// ParseProjectMap reads comma separated env=project pairs. Labels are lower-cased; malformed or
// empty entries are skipped.
func ParseProjectMap(raw string) map[string]string {
	projects := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		label, project, ok := strings.Cut(strings.TrimSpace(entry), "=")
		label = strings.ToLower(strings.TrimSpace(label))
		project = strings.TrimSpace(project)
		if !ok || label == "" || project == "" {
			continue
		}
		projects[label] = project
	}
	return projects
}
