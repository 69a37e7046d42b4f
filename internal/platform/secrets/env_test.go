package secrets

import "testing"

func TestParseProjectMapSkipsMalformedEntries(t *testing.T) {
	got := ParseProjectMap(" Prod=shop-prod, staging = shop-stg ,broken,=orphan,dev=")
	if len(got) != 2 || got["prod"] != "shop-prod" || got["staging"] != "shop-stg" {
		t.Fatalf("unexpected project map %v", got)
	}
}

func TestOptionsFromEnvSelectsProjectForEnvironment(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "environment entry wins",
			env: map[string]string{
				"API_SECURITY_ENVIRONMENT":      "staging",
				"API_SECRET_PROJECT_IDS":        "prod=shop-prod,staging=shop-stg",
				"API_SECRET_DEFAULT_PROJECT_ID": "shop-default",
			},
			want: "shop-stg",
		},
		{
			name: "default project",
			env: map[string]string{
				"API_SECURITY_ENVIRONMENT":      "prod",
				"API_SECRET_DEFAULT_PROJECT_ID": "shop-default",
			},
			want: "shop-default",
		},
		{
			name: "firebase project",
			env:  map[string]string{"API_FIREBASE_PROJECT_ID": "shop-firebase"},
			want: "shop-firebase",
		},
		{
			name: "nothing configured",
			env:  nil,
			want: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var cfg fetcherConfig
			for _, opt := range OptionsFromEnv(tc.env) {
				opt(&cfg)
			}
			if cfg.projectID != tc.want {
				t.Fatalf("expected project %q, got %q", tc.want, cfg.projectID)
			}
		})
	}
}

func TestOptionsFromEnvFallbackFile(t *testing.T) {
	var cfg fetcherConfig
	for _, opt := range OptionsFromEnv(map[string]string{"API_SECRET_FALLBACK_FILE": " .secrets.test "}) {
		opt(&cfg)
	}
	if cfg.fallbackPath != ".secrets.test" {
		t.Fatalf("unexpected fallback path %q", cfg.fallbackPath)
	}
	if len(cfg.clientOpts) != 0 {
		t.Fatalf("expected no client options without credentials")
	}
}
