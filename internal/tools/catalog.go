package tools

import "encoding/json"

// Catalog returns the full set of research tools the orchestrator can offer
// to the model. The implementations live behind the tool gateway; only the
// contracts are defined here.
func Catalog() []Def {
	return []Def{
		// Court decisions.
		def(DomainCourt, "court_decision_search", "Full-text search over published court decisions.",
			schema(req("query"), p("query", "string"), p("court_code", "string"), p("date_from", "string"), p("date_to", "string"), p("limit", "integer"))),
		def(DomainCourt, "court_decision_fetch", "Fetch the full text of a decision by case number.",
			schema(req("case_number"), p("case_number", "string"), p("format", "string")), "case_number"),
		def(DomainCourt, "court_decision_by_id", "Fetch one decision by registry document id.",
			schema(req("decision_id"), p("decision_id", "string"), p("format", "string")), "decision_id"),
		def(DomainCourt, "document_chain_lookup", "List all decisions in a case's procedural chain.",
			schema(req("document_id"), p("document_id", "string"), p("format", "string"), p("include_meta", "boolean")), "document_id"),
		def(DomainCourt, "related_decisions", "Find decisions citing or cited by a given decision.",
			schema(req("decision_id"), p("decision_id", "string"), p("limit", "integer"))),
		def(DomainCourt, "court_practice_summary", "Aggregate court practice on a topic per court level.",
			schema(req("topic"), p("topic", "string"), p("court_level", "string"))),
		def(DomainCourt, "case_status_check", "Check the current procedural status of a case.",
			schema(req("case_number"), p("case_number", "string")), "case_number"),
		def(DomainCourt, "case_schedule_lookup", "Look up scheduled hearings for a case.",
			schema(req("case_number"), p("case_number", "string")), "case_number"),
		def(DomainCourt, "court_info", "Resolve a court code to its name, jurisdiction and address.",
			schema(req("court_code"), p("court_code", "string"))),
		def(DomainCourt, "judge_profile", "Summarize a judge's decision statistics.",
			schema(req("judge_name"), p("judge_name", "string"), p("court_code", "string"))),
		def(DomainCourt, "legal_position_search", "Search legal positions of the cassation courts.",
			schema(req("query"), p("query", "string"), p("chamber", "string"), p("limit", "integer"))),
		def(DomainCourt, "supreme_court_positions", "List Supreme Court positions on a legal topic.",
			schema(req("topic"), p("topic", "string"), p("limit", "integer"))),

		// Legislation.
		def(DomainLegislation, "legislation_search", "Search laws and regulations by keywords.",
			schema(req("query"), p("query", "string"), p("limit", "integer"))),
		def(DomainLegislation, "law_fetch", "Fetch the current consolidated text of a law.",
			schema(req("law_id"), p("law_id", "string"), p("format", "string")), "law_id"),
		def(DomainLegislation, "law_article_fetch", "Fetch a single article of a law.",
			schema(req("law_id", "article"), p("law_id", "string"), p("article", "string"), p("format", "string")), "law_id", "article"),
		def(DomainLegislation, "law_redaction_at_date", "Fetch the law text as in force on a given date.",
			schema(req("law_id", "date"), p("law_id", "string"), p("date", "string"))),
		def(DomainLegislation, "law_history", "List amendments and redactions of a law.",
			schema(req("law_id"), p("law_id", "string"))),
		def(DomainLegislation, "codes_search", "Search inside a specific legal code.",
			schema(req("code_name", "query"), p("code_name", "string"), p("query", "string"))),
		def(DomainLegislation, "bylaw_search", "Search secondary legislation by keywords and issuer.",
			schema(req("query"), p("query", "string"), p("issuer", "string"))),
		def(DomainLegislation, "intl_treaty_search", "Search ratified international treaties.",
			schema(req("query"), p("query", "string"))),

		// Entity registries.
		def(DomainRegistry, "registry_entity_lookup", "Look up a legal entity by registry code.",
			schema(req("edrpou"), p("edrpou", "string")), "edrpou"),
		def(DomainRegistry, "registry_entity_search", "Search legal entities by name.",
			schema(req("name"), p("name", "string"), p("limit", "integer"))),
		def(DomainRegistry, "registry_beneficiary_lookup", "List ultimate beneficial owners of an entity.",
			schema(req("edrpou"), p("edrpou", "string")), "edrpou"),
		def(DomainRegistry, "registry_fop_lookup", "Look up a private entrepreneur by tax id.",
			schema(req("tax_id"), p("tax_id", "string")), "tax_id"),
		def(DomainRegistry, "court_cases_by_entity", "List court cases where an entity is a party.",
			schema(req("edrpou"), p("edrpou", "string"), p("role", "string"), p("limit", "integer"))),
		def(DomainRegistry, "enforcement_proceedings", "List open enforcement proceedings for a party.",
			schema(req("party_code"), p("party_code", "string"))),
		def(DomainRegistry, "debtor_registry_check", "Check the unified debtor registry.",
			schema(req("party_code"), p("party_code", "string"))),
		def(DomainRegistry, "bankruptcy_check", "Check bankruptcy case records for an entity.",
			schema(req("edrpou"), p("edrpou", "string")), "edrpou"),
		def(DomainRegistry, "property_rights_lookup", "Look up registered property rights.",
			schema(req("registry_id"), p("registry_id", "string"))),
		def(DomainRegistry, "sanctions_check", "Check national and international sanction lists.",
			schema(req("subject"), p("subject", "string"))),

		// Documents.
		def(DomainDocument, "document_analyze", "Run structural analysis over an uploaded document.",
			schema(req("document_id"), p("document_id", "string"), p("focus", "string")), "document_id"),
		def(DomainDocument, "document_extract_entities", "Extract parties, dates and references from a document.",
			schema(req("document_id"), p("document_id", "string")), "document_id"),
		def(DomainDocument, "document_compare", "Diff two document versions clause by clause.",
			schema(req("left_id", "right_id"), p("left_id", "string"), p("right_id", "string"))),
		def(DomainDocument, "document_summarize", "Produce a bounded summary of a document.",
			schema(req("document_id"), p("document_id", "string"), p("max_chars", "integer")), "document_id"),
		def(DomainDocument, "contract_risk_scan", "Flag risky clauses in a contract.",
			schema(req("document_id"), p("document_id", "string")), "document_id"),

		// Analysis helpers.
		def(DomainAnalysis, "similar_cases", "Find decisions factually similar to a case.",
			schema(req("case_number"), p("case_number", "string"), p("limit", "integer")), "case_number"),
		def(DomainAnalysis, "precedent_analysis", "Trace how a legal issue has been resolved over time.",
			schema(req("legal_issue"), p("legal_issue", "string"))),
		def(DomainAnalysis, "limitation_period_calc", "Compute the limitation period for a claim.",
			schema(req("event_date", "claim_type"), p("event_date", "string"), p("claim_type", "string"))),
		def(DomainAnalysis, "court_fee_calc", "Compute the court fee for filing a claim.",
			schema(req("claim_amount", "court_level"), p("claim_amount", "number"), p("court_level", "string"))),
		def(DomainAnalysis, "deadline_calc", "Compute a procedural deadline from a trigger date.",
			schema(req("start_date", "procedure"), p("start_date", "string"), p("procedure", "string"))),
	}
}

func def(domain string, name string, description string, inputSchema json.RawMessage, primaryKeys ...string) Def {
	return Def{
		Name:        name,
		Description: description,
		Domain:      domain,
		InputSchema: inputSchema,
		PrimaryKeys: primaryKeys,
	}
}

type prop struct {
	name     string
	typeName string
}

func p(name string, typeName string) prop { return prop{name: name, typeName: typeName} }

func req(names ...string) []string { return names }

func schema(required []string, props ...prop) json.RawMessage {
	properties := make(map[string]any, len(props))
	for _, pr := range props {
		properties[pr.name] = map[string]any{"type": pr.typeName}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return raw
}
