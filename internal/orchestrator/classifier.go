package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/overthelex/secondlayer-sub006/internal/llm"
	"github.com/overthelex/secondlayer-sub006/internal/tools"
)

const (
	intentSourceModel         = "model"
	intentSourceDeterministic = "deterministic_fallback"

	classifierPromptMarker = "DOMAIN_CLASSIFIER_V1"
)

// intent is the classified shape of one research query: the tool domains to
// expose to the model, the key terms, and the entity slots extracted from
// the query text.
type intent struct {
	Domains       []string
	Keywords      string
	CaseNumbers   []string
	RegistryCodes []string
	LawRefs       []string
	Source        string
}

// Ukrainian court case numbers: 910/1234/23, 757/12345/20-ц and similar.
// The word boundary sits before the optional proceedings-type suffix because
// RE2 boundaries are ASCII-only and never fire after a Cyrillic letter.
var caseNumberRe = regexp.MustCompile(`\b\d{1,6}/\d{1,8}/\d{2}\b(?:-[а-яіїєґa-z])?`)

// EDRPOU legal-entity codes are exactly 8 digits.
var edrpouRe = regexp.MustCompile(`\b\d{8}\b`)

// Law ids in their official Latin-numeral form: 2341-III, 435-IV.
var lawIDRe = regexp.MustCompile(`\b\d{3,5}-[IVX]{1,5}\b`)

// Statute article references: "ст. 625", "статті 625".
var articleRe = regexp.MustCompile(`(?i)ст(?:\.|атт[а-яіїєґ]*)\s*(\d{1,4})`)

func extractCaseNumbers(text string) []string {
	return dedupeStrings(caseNumberRe.FindAllString(text, -1))
}

// extractRegistryCodes scans for EDRPOU codes. Case numbers are masked
// first: their digit segments would otherwise false-match the 8-digit
// pattern.
func extractRegistryCodes(text string) []string {
	masked := caseNumberRe.ReplaceAllStringFunc(text, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
	return dedupeStrings(edrpouRe.FindAllString(masked, -1))
}

func extractLawRefs(text string) []string {
	refs := lawIDRe.FindAllString(text, -1)
	for _, m := range articleRe.FindAllStringSubmatch(text, -1) {
		refs = append(refs, "ст. "+m[1])
	}
	return dedupeStrings(refs)
}

func dedupeStrings(matches []string) []string {
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// classifyIntent decides the tool domains for a query. The model classifier
// runs on the fast model; any failure falls back to deterministic keyword
// routing, which always yields a non-empty domain set. Hard signals (a case
// number, a registry code or keyword) force their domain in regardless of
// what the model says.
func (o *Orchestrator) classifyIntent(ctx context.Context, req Request, query string) (intent, llm.Usage) {
	result := intent{Source: intentSourceDeterministic}
	result.CaseNumbers = extractCaseNumbers(query)
	result.RegistryCodes = extractRegistryCodes(query)
	result.LawRefs = extractLawRefs(query)

	var usage llm.Usage
	if o.client != nil {
		cls, u, err := o.classifyByModel(ctx, req, query)
		usage = u
		if err == nil && len(cls.domains) > 0 {
			result.Domains = cls.domains
			result.Keywords = cls.keywords
			result.Source = intentSourceModel
		}
	}
	if len(result.Domains) == 0 {
		domains, hits := keywordRoute(query)
		result.Domains = domains
		if result.Keywords == "" {
			result.Keywords = strings.Join(hits, " ")
		}
	}

	// Hard signals override a model that missed them.
	if len(result.CaseNumbers) > 0 {
		result.Domains = forceDomain(result.Domains, tools.DomainCourt)
	}
	if hasRegistrySignal(query, result.RegistryCodes) {
		result.Domains = forceDomain(result.Domains, tools.DomainRegistry)
	}
	return result, usage
}

// modelClassification is the parsed shape of one classifier response.
type modelClassification struct {
	domains  []string
	keywords string
}

func (o *Orchestrator) classifyByModel(ctx context.Context, req Request, query string) (modelClassification, llm.Usage, error) {
	system := strings.Join([]string{
		classifierPromptMarker,
		"Classify a legal research query into tool domains.",
		`Known domains: "court", "legislation", "registry", "document", "analysis".`,
		`Respond with one JSON object: {"domains": ["..."], "keywords": "..."}.`,
		"Pick 1 to 3 domains; keywords are the query's key legal terms.",
	}, "\n")

	result, err := llm.Complete(ctx, o.client, llm.TurnRequest{
		Model: o.fastModel,
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: strings.TrimSpace(query)},
		},
		MaxOutputTokens: 200,
		ResponseFormat:  "json_object",
	})
	o.costs.record(req.RequestID, req.ConversationID, o.fastModel, "classify", result.Usage, err != nil)
	if err != nil {
		return modelClassification{}, result.Usage, err
	}
	cls, err := parseClassification(result.Text)
	return cls, result.Usage, err
}

func parseClassification(raw string) (modelClassification, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return modelClassification{}, errors.New("empty classifier response")
	}
	if strings.HasPrefix(candidate, "```") {
		candidate = strings.TrimPrefix(candidate, "```json")
		candidate = strings.TrimPrefix(candidate, "```JSON")
		candidate = strings.TrimPrefix(candidate, "```")
		candidate = strings.TrimSuffix(candidate, "```")
		candidate = strings.TrimSpace(candidate)
	}

	type payload struct {
		Domains  []string `json:"domains"`
		Keywords string   `json:"keywords"`
	}
	parse := func(text string) (payload, error) {
		var p payload
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return payload{}, err
		}
		return p, nil
	}

	p, err := parse(candidate)
	if err != nil {
		embedded := extractFirstJSONObject(candidate)
		if embedded == "" {
			return modelClassification{}, fmt.Errorf("invalid classifier response: %w", err)
		}
		p, err = parse(embedded)
		if err != nil {
			return modelClassification{}, fmt.Errorf("invalid classifier JSON payload: %w", err)
		}
	}

	out := make([]string, 0, len(p.Domains))
	for _, d := range p.Domains {
		switch d = strings.ToLower(strings.TrimSpace(d)); d {
		case tools.DomainCourt, tools.DomainLegislation, tools.DomainRegistry, tools.DomainDocument, tools.DomainAnalysis:
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return modelClassification{}, errors.New("classifier named no known domain")
	}
	return modelClassification{domains: out, keywords: strings.TrimSpace(p.Keywords)}, nil
}

var domainKeywords = map[string][]string{
	tools.DomainCourt: {
		"суд", "рішення", "ухвал", "постанов", "справ", "позов", "апеляц", "касац",
		"practice", "court", "decision", "case",
	},
	tools.DomainLegislation: {
		"закон", "стаття", "статті", "кодекс", "цк", "гк", "кзпп", "кпк", "цпк", "гпк",
		"редакц", "норма", "постанова кму", "law", "article", "statute",
	},
	tools.DomainRegistry: {
		"єдрпоу", "едрпоу", "реєстр", "тов ", "фоп", "бенефіціар", "засновник",
		"банкрут", "ліквідац", "company", "registry",
	},
	tools.DomainDocument: {
		"договір", "документ", "аналіз документ", "пункт договору", "угода", "contract",
	},
	tools.DomainAnalysis: {
		"строк", "позовна давність", "судовий збір", "розрахуй", "калькул", "прецедент",
		"deadline", "limitation",
	},
}

// keywordRoute is the deterministic fallback router. It never returns an
// empty domain set: with no keyword hit the query gets the two broadest
// domains.
func keywordRoute(query string) (domains []string, hits []string) {
	lower := strings.ToLower(query)
	for _, domain := range []string{tools.DomainCourt, tools.DomainLegislation, tools.DomainRegistry, tools.DomainDocument, tools.DomainAnalysis} {
		for _, kw := range domainKeywords[domain] {
			if strings.Contains(lower, kw) {
				domains = append(domains, domain)
				hits = append(hits, strings.TrimSpace(kw))
				break
			}
		}
	}
	if len(domains) == 0 {
		domains = []string{tools.DomainCourt, tools.DomainLegislation}
	}
	return domains, hits
}

func keywordDomains(query string) []string {
	domains, _ := keywordRoute(query)
	return domains
}

// registrySignalWords force the registry domain on their own, without a
// matching code in the query.
var registrySignalWords = []string{"єдрпоу", "едрпоу", "бенефіціар", "контрагент"}

// hasRegistrySignal reports a registry hard signal: a code shaped like an
// EDRPOU id or an explicit registry keyword. Either alone is enough.
func hasRegistrySignal(query string, codes []string) bool {
	if len(codes) > 0 {
		return true
	}
	lower := strings.ToLower(query)
	for _, kw := range registrySignalWords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func forceDomain(domains []string, domain string) []string {
	for _, d := range domains {
		if d == domain {
			return domains
		}
	}
	return append(domains, domain)
}

// extractFirstJSONObject scans raw for the first balanced top-level JSON
// object, skipping braces inside string literals.
func extractFirstJSONObject(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	runes := []rune(text)
	start := -1
	depth := 0
	quote := rune(0)
	escaped := false

	for i, r := range runes {
		if escaped {
			escaped = false
			continue
		}
		if quote != 0 {
			if r == '\\' {
				escaped = true
				continue
			}
			if r == quote {
				quote = 0
			}
			continue
		}

		if r == '"' || r == '\'' {
			quote = r
			continue
		}
		if r == '{' {
			if depth == 0 {
				start = i
			}
			depth++
			continue
		}
		if r == '}' {
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				return string(runes[start : i+1])
			}
		}
	}
	return ""
}
