package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestCheckoutAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "commerce.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read alert file: %v", err)
	}

	var spec alertSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("failed to unmarshal alert file: %v", err)
	}

	var checkoutGroup *alertGroup
	for i := range spec.Groups {
		if spec.Groups[i].Name == "checkout" {
			checkoutGroup = &spec.Groups[i]
			break
		}
	}
	if checkoutGroup == nil {
		t.Fatal("checkout alert group missing")
	}

	expected := map[string]struct {
		severity string
		metric   string
	}{
		"CheckoutErrorRate":         {severity: "critical", metric: "odyssey_checkout_total"},
		"CheckoutLatency":           {severity: "warning", metric: "odyssey_checkout_duration_seconds_bucket"},
		"StockoutSpike":             {severity: "warning", metric: "odyssey_checkout_total"},
		"OrderNotificationFailures": {severity: "warning", metric: "odyssey_jobs_failures_total"},
	}

	if len(checkoutGroup.Rules) != len(expected) {
		t.Fatalf("expected %d rules, got %d", len(expected), len(checkoutGroup.Rules))
	}

	for _, rule := range checkoutGroup.Rules {
		want, ok := expected[rule.Alert]
		if !ok {
			t.Fatalf("unexpected rule %q", rule.Alert)
		}
		if rule.Labels["severity"] != want.severity {
			t.Fatalf("rule %s severity mismatch: %s", rule.Alert, rule.Labels["severity"])
		}
		if !strings.Contains(rule.Expr, want.metric) {
			t.Fatalf("rule %s must query %s", rule.Alert, want.metric)
		}
		if !strings.HasPrefix(rule.Annotations["runbook"], "docs/runbook-checkout.md#") {
			t.Fatalf("rule %s runbook mismatch: %s", rule.Alert, rule.Annotations["runbook"])
		}
		if rule.Annotations["summary"] == "" || rule.Annotations["description"] == "" {
			t.Fatalf("rule %s must include summary and description annotations", rule.Alert)
		}
		if rule.For == "" {
			t.Fatalf("rule %s must define a hold duration", rule.Alert)
		}
	}
}
