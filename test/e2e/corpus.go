package e2e

import (
	"fmt"

	"github.com/hyperjump/ingestor/test/fixtures"
)

// Report is one document of the corpus.
type Report struct {
	ID   string
	Text string
}

// Content returns the document bytes in the format named by the id's extension.
func (r Report) Content() []byte {
	return fixtures.Build(extOf(r.ID), r.Text)
}

func extOf(id string) string {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '.' {
			return id[i:]
		}
	}
	return ""
}

var reportTopics = []string{
	"Cast highlight findings for the payments service show high cyclomatic complexity",
	"Quarterly cloud readiness assessment of the billing monolith lists blockers",
	"Open source license audit flags copyleft components in the mobile app",
	"Technical debt estimate for the claims platform totals four hundred days",
	"Security scan reports outdated cryptography libraries in the gateway",
	"Resiliency review recommends circuit breakers around the ledger database",
	"Green software score improved after removing polling loops in scheduler",
	"Portfolio overview ranks twelve applications by business impact",
	"Container migration plan for the reporting stack targets Kubernetes",
	"Code quality trend shows fewer critical violations in the web frontend",
	"Dependency inventory counts three hundred direct packages across teams",
	"Data access review finds unparameterized queries in legacy batch jobs",
}

// BuildCorpus returns one report per topic, rotating through every fixture format.
func BuildCorpus() []Report {
	reports := make([]Report, len(reportTopics))
	for i, topic := range reportTopics {
		ext := fixtures.Formats[i%len(fixtures.Formats)]
		reports[i] = Report{ID: fmt.Sprintf("report-%02d%s", i+1, ext), Text: topic}
	}
	return reports
}
