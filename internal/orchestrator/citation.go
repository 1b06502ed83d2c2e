package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/overthelex/secondlayer-sub006/internal/tools"
)

const (
	// The answer has already streamed when verification runs; it must not
	// hold the complete event hostage.
	citationCheckTimeout = 3 * time.Second

	citationCheckTool   = "case_status_check"
	maxCitationsToCheck = 5
)

// Case statuses that degrade a citation's authority.
const (
	citationStatusOverruled = "explicitly_overruled"
	citationStatusLimited   = "limited"
	citationStatusNotFound  = "not_found"
)

// citationWarning flags one cited case whose registry status undermines the
// citation: overruled, limited by later decisions, or absent entirely.
type citationWarning struct {
	CaseNumber         string
	Status             string
	Confidence         float64
	AffectingDecisions []string
	Message            string
}

// verifyCitations batch-checks the status of case numbers cited in the final
// answer. Only citations that verifiably fail produce warnings; lookup
// errors and timeouts are swallowed so verification can never degrade an
// otherwise good answer.
func (o *Orchestrator) verifyCitations(ctx context.Context, answer string, executed map[string]struct{}) []citationWarning {
	if o.registry == nil {
		return nil
	}
	if _, ok := o.registry.Lookup(citationCheckTool); !ok {
		return nil
	}
	cited := extractCaseNumbers(answer)
	if len(cited) == 0 {
		return nil
	}

	// Case numbers the loop already fetched successfully are trusted.
	unverified := make([]string, 0, len(cited))
	for _, number := range cited {
		if _, ok := executed[number]; !ok {
			unverified = append(unverified, number)
		}
	}
	if len(unverified) == 0 {
		return nil
	}
	if len(unverified) > maxCitationsToCheck {
		unverified = unverified[:maxCitationsToCheck]
	}

	checkCtx, cancel := context.WithTimeout(ctx, citationCheckTimeout)
	defer cancel()

	warnings := make([]citationWarning, len(unverified))
	g, gctx := errgroup.WithContext(checkCtx)
	for i, number := range unverified {
		i, number := i, number
		g.Go(func() error {
			result := o.registry.Execute(gctx, tools.Call{
				ID:   fmt.Sprintf("cite-%d", i),
				Name: citationCheckTool,
				Args: map[string]any{"case_number": number},
			})
			switch {
			case result.OK():
				status, confidence, affecting := parseCaseStatus(result.Payload)
				switch status {
				case citationStatusOverruled:
					warnings[i] = citationWarning{
						CaseNumber:         number,
						Status:             status,
						Confidence:         confidence,
						AffectingDecisions: affecting,
						Message:            "cited case has been explicitly overruled",
					}
				case citationStatusLimited:
					warnings[i] = citationWarning{
						CaseNumber:         number,
						Status:             status,
						Confidence:         confidence,
						AffectingDecisions: affecting,
						Message:            "cited case has been limited by later decisions",
					}
				}
			case result.Err != nil && result.Err.Code == tools.ErrCodeNotFound:
				warnings[i] = citationWarning{
					CaseNumber: number,
					Status:     citationStatusNotFound,
					Message:    "case number not found in the court registry",
				}
			default:
				// Transient failure: stay silent rather than cast doubt.
				log.Debug().Str("case_number", number).Msg("citation check inconclusive")
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]citationWarning, 0, len(warnings))
	for _, w := range warnings {
		if strings.TrimSpace(w.CaseNumber) != "" {
			out = append(out, w)
		}
	}
	return out
}

// parseCaseStatus pulls {status, confidence, affecting_decisions} out of a
// status-check payload. Missing or unexpected fields parse to zero values.
func parseCaseStatus(payload any) (status string, confidence float64, affecting []string) {
	m, ok := payload.(map[string]any)
	if !ok {
		return "", 0, nil
	}
	raw, _ := m["status"].(string)
	status = strings.ToLower(strings.TrimSpace(raw))
	switch v := m["confidence"].(type) {
	case float64:
		confidence = v
	case int:
		confidence = float64(v)
	}
	switch v := m["affecting_decisions"].(type) {
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				affecting = append(affecting, s)
			}
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				affecting = append(affecting, strings.TrimSpace(s))
			}
		}
	}
	return status, confidence, affecting
}
