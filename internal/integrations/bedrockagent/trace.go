package bedrockagent

import (
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"faq-agent/internal/domain"
)

// pageNumberKey is the knowledge base metadata attribute carrying the PDF page.
const pageNumberKey = "x-amz-bedrock-kb-document-page-number"

// traceEvent extracts retrieved passages or a failure reason from one trace part.
// Traces that carry neither are dropped.
func traceEvent(t types.Trace) (domain.TraceEvent, bool) {
	switch v := t.(type) {
	case *types.TraceMemberOrchestrationTrace:
		obs, ok := v.Value.(*types.OrchestrationTraceMemberObservation)
		if !ok {
			return domain.TraceEvent{}, false
		}
		return observationEvent(obs.Value)
	case *types.TraceMemberRoutingClassifierTrace:
		obs, ok := v.Value.(*types.RoutingClassifierTraceMemberObservation)
		if !ok {
			return domain.TraceEvent{}, false
		}
		return observationEvent(obs.Value)
	case *types.TraceMemberFailureTrace:
		reason := strings.TrimSpace(aws.ToString(v.Value.FailureReason))
		if reason == "" {
			reason = "agent reported a failure"
		}
		return domain.TraceEvent{Source: domain.TraceSourceFailure, FailureReason: reason}, true
	}
	return domain.TraceEvent{}, false
}

func observationEvent(obs types.Observation) (domain.TraceEvent, bool) {
	if obs.KnowledgeBaseLookupOutput == nil {
		return domain.TraceEvent{}, false
	}
	refs := references(obs.KnowledgeBaseLookupOutput.RetrievedReferences)
	if len(refs) == 0 {
		return domain.TraceEvent{}, false
	}
	return domain.TraceEvent{Source: domain.TraceSourceKnowledgeBase, References: refs}, true
}

func attributionEvent(a *types.Attribution) (domain.TraceEvent, bool) {
	if a == nil {
		return domain.TraceEvent{}, false
	}
	var refs []domain.RetrievedReference
	for _, c := range a.Citations {
		refs = append(refs, references(c.RetrievedReferences)...)
	}
	if len(refs) == 0 {
		return domain.TraceEvent{}, false
	}
	return domain.TraceEvent{Source: domain.TraceSourceAttribution, References: refs}, true
}

func references(in []types.RetrievedReference) []domain.RetrievedReference {
	out := make([]domain.RetrievedReference, 0, len(in))
	for _, r := range in {
		ref := domain.RetrievedReference{Page: pageNumber(r.Metadata)}
		if r.Content != nil {
			ref.Snippet = aws.ToString(r.Content.Text)
		}
		if r.Location != nil {
			ref.LocationType = string(r.Location.Type)
			ref.URI = locationURI(r.Location)
		}
		out = append(out, ref)
	}
	return out
}

func locationURI(l *types.RetrievalResultLocation) string {
	switch {
	case l.S3Location != nil:
		return aws.ToString(l.S3Location.Uri)
	case l.WebLocation != nil:
		return aws.ToString(l.WebLocation.Url)
	case l.ConfluenceLocation != nil:
		return aws.ToString(l.ConfluenceLocation.Url)
	case l.SalesforceLocation != nil:
		return aws.ToString(l.SalesforceLocation.Url)
	case l.SharePointLocation != nil:
		return aws.ToString(l.SharePointLocation.Url)
	case l.CustomDocumentLocation != nil:
		return aws.ToString(l.CustomDocumentLocation.Id)
	}
	return ""
}

// pageNumber reads the page attribute, which arrives as a number or a numeric string.
func pageNumber(md map[string]document.Interface) int {
	doc, ok := md[pageNumberKey]
	if !ok || doc == nil {
		return 0
	}
	var page float64
	if err := doc.UnmarshalSmithyDocument(&page); err == nil && page > 0 {
		return int(page)
	}
	raw, err := doc.MarshalSmithyDocument()
	if err != nil {
		return 0
	}
	return parsePage(raw)
}

func parsePage(raw []byte) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	page, err := strconv.ParseFloat(s, 64)
	if err != nil || page < 0 {
		return 0
	}
	return int(page)
}
