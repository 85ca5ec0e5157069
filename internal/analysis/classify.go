package analysis

import (
	"regexp"
	"strings"
)

// Category is the coarse bucket a log event falls into.
type Category string

// Closed category enumeration.
const (
	CategoryError      Category = "error"
	CategoryWarning    Category = "warning"
	CategoryDeployment Category = "deployment"
	CategoryInfo       Category = "info"
)

// ClassifiedEvent is the classification of a single record's attributes.
type ClassifiedEvent struct {
	Category        Category          `json:"category"`
	EventType       string            `json:"event_type"`
	Confidence      float64           `json:"confidence"`
	RelatedEntities map[string]string `json:"related_entities,omitempty"`
}

// classifyRule is one ordered heuristic: the first rule whose pattern
// matches the message wins. Rule order matters; deployment keywords are
// checked before the generic error bucket so "deployment failed" is not
// swallowed by it.
type classifyRule struct {
	pattern    *regexp.Regexp
	category   Category
	eventType  string
	confidence float64
}

var (
	reErrorSignal = regexp.MustCompile(`(?i)\b(error|exception|fatal|critical)\b`)
	reWarnSignal  = regexp.MustCompile(`(?i)\b(warn(ing)?|deprecated)\b`)
)

var deploymentRules = []classifyRule{
	{regexp.MustCompile(`(?i)\b(deploy(ment|ing|ed)?|releas(e|ed|ing)|roll(back|ed back|ing back))\b.*\b(start(ed|ing)?|begin|beginning|began)\b|\b(start(ed|ing)?|begin|beginning|began)\b.*\b(deploy(ment|ing|ed)?|releas(e|ed|ing)|rollback)\b`),
		CategoryDeployment, "Deployment started", 0.9},
	{regexp.MustCompile(`(?i)\b(deploy(ment|ing|ed)?|releas(e|ed|ing)|roll(back|ed back|ing back))\b.*\b(complet(e|ed|ing)|success(ful|fully)?|finish(ed)?)\b|\b(complet(e|ed|ing)|success(ful|fully)?)\b.*\b(deploy(ment|ing|ed)?|releas(e|ed|ing)|rollback)\b`),
		CategoryDeployment, "Deployment completed", 0.9},
	{regexp.MustCompile(`(?i)\b(deploy(ment|ing|ed)?|releas(e|ed|ing)|roll(back|ed back|ing back))\b.*\b(fail(ed|ure|ing)?|error)\b`),
		CategoryDeployment, "Deployment failed", 0.85},
}

// Refinements inside the error bucket, evaluated top to bottom once the
// generic error signal (status or keywords) has fired.
var errorRefinements = []classifyRule{
	{regexp.MustCompile(`(?i)timeout|timed out`), CategoryError, "Timeout error", 0.9},
	{regexp.MustCompile(`(?i)connection|connect(ed)? refused|disconnect`), CategoryError, "Connection error", 0.9},
	{regexp.MustCompile(`(?i)\bauth(entication|orization)?\b|unauthorized|forbidden|credential`), CategoryError, "Authentication error", 0.9},
	{regexp.MustCompile(`(?i)not found|no such|missing`), CategoryError, "Resource not found", 0.9},
}

var (
	reDatabase      = regexp.MustCompile(`(?i)\b(database|db|sql|postgres|mysql|mongo)\b`)
	reTimeoutSignal = regexp.MustCompile(`(?i)timeout|timed out`)
	reStartSignal   = regexp.MustCompile(`(?i)\b(start(ed|ing)?|begin|beginning|began|init(ializ(ed|ing))?)\b`)
	reDoneSignal    = regexp.MustCompile(`(?i)\b(complet(e|ed|ing)|success(ful|fully)?|finish(ed)?|done)\b`)
)

// relatedEntityKeys are the identifier attributes copied verbatim into
// RelatedEntities when present on a record.
var relatedEntityKeys = []string{
	"service", "host", "trace_id", "user_id", "transaction_id", "request_id",
}

// Classify maps one record's attributes to a category, a specific
// event-type label and a confidence score. Pure and deterministic; the same
// attribute map always yields the same classification.
func Classify(attrs map[string]any) ClassifiedEvent {
	msg := StringAttr(attrs, "message")
	status := StringAttr(attrs, "status")

	ev := classifyMessage(msg, status)
	ev.RelatedEntities = extractRelatedEntities(attrs)
	return ev
}

func classifyMessage(msg, status string) ClassifiedEvent {
	for _, rule := range deploymentRules {
		if rule.pattern.MatchString(msg) {
			return ClassifiedEvent{Category: rule.category, EventType: rule.eventType, Confidence: rule.confidence}
		}
	}

	if strings.EqualFold(status, "error") || reErrorSignal.MatchString(msg) {
		// Database timeouts are their own failure mode; check the pairing
		// before the standalone timeout refinement.
		if reTimeoutSignal.MatchString(msg) && reDatabase.MatchString(msg) {
			return ClassifiedEvent{Category: CategoryError, EventType: "Database timeout", Confidence: 0.9}
		}
		for _, rule := range errorRefinements {
			if rule.pattern.MatchString(msg) {
				return ClassifiedEvent{Category: rule.category, EventType: rule.eventType, Confidence: rule.confidence}
			}
		}
		return ClassifiedEvent{Category: CategoryError, EventType: "Error occurred", Confidence: 0.7}
	}

	if strings.EqualFold(status, "warn") || strings.EqualFold(status, "warning") || reWarnSignal.MatchString(msg) {
		return ClassifiedEvent{Category: CategoryWarning, EventType: "Warning raised", Confidence: 0.8}
	}

	if reStartSignal.MatchString(msg) {
		return ClassifiedEvent{Category: CategoryInfo, EventType: "Process started", Confidence: 0.7}
	}
	if reDoneSignal.MatchString(msg) {
		return ClassifiedEvent{Category: CategoryInfo, EventType: "Process completed", Confidence: 0.7}
	}

	return ClassifiedEvent{Category: CategoryInfo, EventType: "Event logged", Confidence: 0.5}
}

// extractRelatedEntities pulls the known identifier attributes off the
// record, including the nested user.id form when the flat user_id is absent.
func extractRelatedEntities(attrs map[string]any) map[string]string {
	entities := make(map[string]string)
	for _, key := range relatedEntityKeys {
		if v := anyToString(attrs[key]); v != "" {
			entities[key] = v
		}
	}
	if entities["user_id"] == "" {
		if v, ok := LookupPath(attrs, "user.id"); ok {
			if s := anyToString(v); s != "" {
				entities["user_id"] = s
			}
		}
	}
	if len(entities) == 0 {
		return nil
	}
	return entities
}
