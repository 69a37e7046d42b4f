package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "shop-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("unexpected shutdown timeout: %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Firestore.ProjectID != "shop-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "shop-dev" {
		t.Errorf("expected pubsub project to default to firebase project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.InvoiceEventsTopic != defaultInvoiceEventsTopic {
		t.Errorf("unexpected invoice topic %s", cfg.PubSub.InvoiceEventsTopic)
	}
	if cfg.Persistence.Driver != PersistenceFirestore {
		t.Errorf("expected firestore driver, got %s", cfg.Persistence.Driver)
	}
	if cfg.Scheduler.ConfirmationDelay != 30*time.Minute {
		t.Errorf("expected 30m confirmation delay, got %s", cfg.Scheduler.ConfirmationDelay)
	}
	if !cfg.Scheduler.RearmOnStartup {
		t.Error("expected rearm on startup to default to true")
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("expected redis disabled by default, got %s", cfg.Redis.Addr)
	}
	if cfg.Realtime.Path != "/ws" || cfg.Realtime.SendBuffer != 32 {
		t.Errorf("unexpected realtime config %+v", cfg.Realtime)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
	if cfg.Security.CheckoutRateLimit != 5 || cfg.Security.CheckoutRateWindow != time.Minute {
		t.Errorf("unexpected checkout rate limit %d per %s", cfg.Security.CheckoutRateLimit, cfg.Security.CheckoutRateWindow)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                  "9090",
		"API_SERVER_READ_TIMEOUT":          "20s",
		"API_FIREBASE_PROJECT_ID":          "shop-prod",
		"API_FIRESTORE_PROJECT_ID":         "shop-fire",
		"API_PUBSUB_INVOICE_EVENTS_TOPIC":  "orders",
		"API_REDIS_ADDR":                   "redis:6379",
		"API_REDIS_PASSWORD":               "sm://redis/password",
		"API_REDIS_DB":                     "2",
		"API_REDIS_LOCK_TTL":               "45s",
		"API_SCHEDULER_CONFIRMATION_DELAY": "10m",
		"API_SCHEDULER_REARM_ON_STARTUP":   "off",
		"API_REALTIME_ALLOWED_ORIGINS":     "https://shop.example.com, https://admin.example.com",
		"API_SECURITY_ENVIRONMENT":         "PROD",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref == "secret://redis/password" {
			return "redis-pass", nil
		}
		return "", errors.New("unknown secret")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Firestore.ProjectID != "shop-fire" {
		t.Errorf("expected explicit firestore project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.InvoiceEventsTopic != "orders" {
		t.Errorf("unexpected topic %s", cfg.PubSub.InvoiceEventsTopic)
	}
	if cfg.Redis.Password != "redis-pass" || cfg.Redis.DB != 2 || cfg.Redis.LockTTL != 45*time.Second {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.Scheduler.ConfirmationDelay != 10*time.Minute || cfg.Scheduler.RearmOnStartup {
		t.Errorf("unexpected scheduler config %+v", cfg.Scheduler)
	}
	if len(cfg.Realtime.AllowedOrigins) != 2 || cfg.Realtime.AllowedOrigins[1] != "https://admin.example.com" {
		t.Errorf("unexpected allowed origins %v", cfg.Realtime.AllowedOrigins)
	}
	if cfg.Security.Environment != "prod" {
		t.Errorf("expected lower-cased environment, got %s", cfg.Security.Environment)
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "shop-dev",
		"API_REDIS_PASSWORD":      "secret://redis/password",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if secretErr.Ref != "secret://redis/password" {
		t.Errorf("unexpected ref %s", secretErr.Ref)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	env := map[string]string{
		"API_PERSISTENCE_DRIVER":           "postgres",
		"API_SCHEDULER_CONFIRMATION_DELAY": "-1m",
		"API_REALTIME_PATH":                "ws",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := validationErr.Fields()
	want := []string{"Persistence.Driver", "Scheduler.ConfirmationDelay", "Realtime.Path"}
	if len(fields) != len(want) {
		t.Fatalf("expected fields %v, got %v", want, fields)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("field %d: expected %s, got %s", i, want[i], fields[i])
		}
	}
}

func TestLoadMemoryDriverSkipsFirestoreProject(t *testing.T) {
	env := map[string]string{"API_PERSISTENCE_DRIVER": "MEMORY"}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Persistence.Driver != PersistenceMemory {
		t.Fatalf("expected memory driver, got %s", cfg.Persistence.Driver)
	}
}

func TestLoadRequiredSecretsMissing(t *testing.T) {
	env := map[string]string{"API_FIREBASE_PROJECT_ID": "shop-dev"}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithRequiredSecrets("Redis.Password"))
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "Redis.Password" {
		t.Fatalf("unexpected names %v", names)
	}
	if redacted := missing.RedactedNames(); len(redacted) != 1 || redacted[0] == "Redis.Password" {
		t.Fatalf("expected redacted name, got %v", redacted)
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nAPI_FIREBASE_PROJECT_ID=shop-local\nexport API_SERVER_PORT=\"7070\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(path), WithEnvMap(map[string]string{"API_SERVER_PORT": "6060"}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firebase.ProjectID != "shop-local" {
		t.Errorf("expected dotenv project, got %s", cfg.Firebase.ProjectID)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("expected env map to override dotenv, got %s", cfg.Server.Port)
	}
}

func TestEnvironmentValuesPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("A=dotenv\nB=dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	values, err := EnvironmentValues(WithoutSystemEnv(), WithEnvFile(path), WithEnvMap(map[string]string{"B": "explicit"}))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}
	if values["A"] != "dotenv" || values["B"] != "explicit" {
		t.Fatalf("unexpected values %v", values)
	}
}

func TestEnvironmentValuesMissingFile(t *testing.T) {
	values, err := EnvironmentValues(WithoutSystemEnv(), WithEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	if err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("expected no values, got %v", values)
	}
}
