package request

import "strings"

// Tag categorizes a justification for precedent bookkeeping.
type Tag string

const (
	TagBereavement   Tag = "bereavement"
	TagSeriousInjury Tag = "serious_injury"
	TagMinorIllness  Tag = "minor_illness"
	TagTravel        Tag = "travel"
	TagOther         Tag = "other"
)

// tagCues maps tags to the keywords that trigger them. Order matters:
// bereavement and serious injury outrank the milder categories when a
// justification mentions several.
var tagCues = []struct {
	tag  Tag
	cues []string
}{
	{TagBereavement, []string{"bereavement", "passed away", "funeral", "death"}},
	{TagSeriousInjury, []string{"hospital", "hospitalized", "surgery", "broken wrist", "injury"}},
	{TagMinorIllness, []string{"flu", "cold", "common cold"}},
	{TagTravel, []string{"vacation", "travel", "trip", "holiday"}},
}

// TagReason classifies a justification by keyword.
func TagReason(text string) Tag {
	s := strings.ToLower(text)
	for _, tc := range tagCues {
		for _, cue := range tc.cues {
			if strings.Contains(s, cue) {
				return tc.tag
			}
		}
	}
	return TagOther
}

// synonymExpansions widen colloquial phrasing before embedding so that
// semantically equivalent justifications land near each other. Applied
// to retrieval queries only; stored documents keep the raw text.
var synonymExpansions = strings.NewReplacer(
	"passed away", "death bereavement",
	"funeral", "death bereavement",
	"grandfather", "family member",
	"grandmother", "family member",
	"flu", "common cold minor illness",
)

// NormalizeReason lowercases and expands synonyms in a justification
// for use as an embedding query.
func NormalizeReason(text string) string {
	return synonymExpansions.Replace(strings.ToLower(text))
}
