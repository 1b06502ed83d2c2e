package orchestrator

import (
	"context"
	"testing"

	"github.com/overthelex/secondlayer-sub006/internal/tools"
)

func TestExtractCaseNumbers(t *testing.T) {
	t.Parallel()
	got := extractCaseNumbers("Порівняй справи 910/1234/23 та 757/999/22-ц, справа 910/1234/23 важливіша")
	if len(got) != 2 {
		t.Fatalf("expected 2 unique case numbers, got %v", got)
	}
	if got[0] != "910/1234/23" || got[1] != "757/999/22-ц" {
		t.Fatalf("unexpected case numbers: %v", got)
	}
}

func TestExtractRegistryCodesIgnoresCaseNumbers(t *testing.T) {
	t.Parallel()
	got := extractRegistryCodes("У справі 910/12345678/23 позивач має код 32855961")
	if len(got) != 1 || got[0] != "32855961" {
		t.Fatalf("expected only the standalone code, got %v", got)
	}
	if got := extractRegistryCodes("справа 910/12345678/23"); got != nil {
		t.Fatalf("case number digits must not read as registry codes, got %v", got)
	}
}

func TestExtractLawRefs(t *testing.T) {
	t.Parallel()
	got := extractLawRefs("Згідно зі ст. 625 ЦК та Законом 2341-III, статті 549 застосовуються")
	want := map[string]bool{"2341-III": true, "ст. 625": true, "ст. 549": true}
	if len(got) != len(want) {
		t.Fatalf("unexpected law refs: %v", got)
	}
	for _, ref := range got {
		if !want[ref] {
			t.Fatalf("unexpected law ref %q in %v", ref, got)
		}
	}
}

func TestClassifyIntentCaseNumberForcesCourt(t *testing.T) {
	t.Parallel()
	o := New(Config{})
	got, _ := o.classifyIntent(context.Background(), Request{}, "Який статус у справі 910/1234/23 щодо стягнення неустойки за законом?")
	if got.Source != intentSourceDeterministic {
		t.Fatalf("expected deterministic fallback without a client, got %q", got.Source)
	}
	if !containsDomain(got.Domains, tools.DomainCourt) {
		t.Fatalf("case number did not force court domain: %v", got.Domains)
	}
	if len(got.CaseNumbers) != 1 || got.CaseNumbers[0] != "910/1234/23" {
		t.Fatalf("unexpected case numbers: %v", got.CaseNumbers)
	}
	if got.Keywords == "" {
		t.Fatal("fallback classification should carry the matched keywords")
	}
}

func TestClassifyIntentRegistryCodeAloneForcesRegistry(t *testing.T) {
	t.Parallel()
	o := New(Config{})
	got, _ := o.classifyIntent(context.Background(), Request{}, "перевір контрагента за кодом 32855961")
	if !containsDomain(got.Domains, tools.DomainRegistry) {
		t.Fatalf("registry code alone did not force registry domain: %v", got.Domains)
	}
	if len(got.RegistryCodes) != 1 || got.RegistryCodes[0] != "32855961" {
		t.Fatalf("unexpected registry codes: %v", got.RegistryCodes)
	}
}

func TestClassifyIntentRegistryKeywordAloneForcesRegistry(t *testing.T) {
	t.Parallel()
	o := New(Config{})
	got, _ := o.classifyIntent(context.Background(), Request{}, "Хто бенефіціар цього товариства?")
	if !containsDomain(got.Domains, tools.DomainRegistry) {
		t.Fatalf("registry keyword alone did not force registry domain: %v", got.Domains)
	}
}

func TestKeywordDomainsNeverEmpty(t *testing.T) {
	t.Parallel()
	got := keywordDomains("?!")
	if len(got) == 0 {
		t.Fatal("fallback router returned no domains")
	}
}

func TestParseClassification(t *testing.T) {
	t.Parallel()
	got, err := parseClassification("```json\n{\"domains\": [\"Court\", \"nonsense\", \"legislation\"], \"keywords\": \"неустойка договір\"}\n```")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(got.domains) != 2 || got.domains[0] != "court" || got.domains[1] != "legislation" {
		t.Fatalf("unexpected domains: %v", got.domains)
	}
	if got.keywords != "неустойка договір" {
		t.Fatalf("unexpected keywords: %q", got.keywords)
	}

	got, err = parseClassification(`The answer is {"domains": ["registry"]} as requested.`)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(got.domains) != 1 || got.domains[0] != "registry" {
		t.Fatalf("unexpected domains: %v", got.domains)
	}

	if _, err := parseClassification(`{"domains": ["nonsense"]}`); err == nil {
		t.Fatal("expected error for no known domain")
	}
	if _, err := parseClassification("not json at all"); err == nil {
		t.Fatal("expected error for non-JSON response")
	}
}

func containsDomain(domains []string, want string) bool {
	for _, d := range domains {
		if d == want {
			return true
		}
	}
	return false
}
