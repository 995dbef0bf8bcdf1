package decision

import (
	"math"
	"strings"

	"github.com/ezextender/extenderd/internal/retrieval"
)

// Scoring runs a similarity-weighted vote over the evidence labels.
// Each policy chunk's similarity counts toward its allow/deny label
// and each precedent's toward its verdict; precedents carry less
// weight than policy text because individual past verdicts are
// noisier than the written rules.
const (
	// PolicyWeight and PrecedentWeight scale each side's vote sums.
	PolicyWeight    = 0.65
	PrecedentWeight = 0.35

	// MinConfidence is the vote share below which the advice is
	// ReviewCarefully regardless of lean.
	MinConfidence = 0.60

	// strongCueScore is the similarity at which an explicit cue in a
	// labeled policy hit decides the lean outright.
	strongCueScore = 0.58

	// strongCueConfidence floors the reported confidence when a
	// strong cue fires.
	strongCueConfidence = 0.65

	// voteEpsilon guards the ratio against all-unlabeled evidence.
	voteEpsilon = 1e-9
)

// Lean is the advisory direction of the similarity vote.
type Lean string

const (
	LeanApprove         Lean = "lean_approve"
	LeanDeny            Lean = "lean_deny"
	ReviewCarefully     Lean = "review_carefully"
	InsufficientContext Lean = "insufficient_context"
)

// Advice summarizes the similarity vote. Purely advisory: the reviewer
// verdict is binding and may contradict it freely.
type Advice struct {
	Lean       Lean    `json:"lean"`
	Confidence float64 `json:"confidence"`
	Basis      string  `json:"basis,omitempty"`
}

var denyCues = []string{
	"not sufficient",
	"not valid",
	"not acceptable",
	"insufficient",
	"deny",
}

var allowCues = []string{
	"bereavement",
	"death",
	"immediate family",
	"hospital",
	"serious injury",
	"broken wrist",
}

// Score derives advice from ranked chunks. Deterministic in its inputs.
//
// Every labeled policy chunk votes its similarity toward allow or
// deny, every precedent toward its verdict. Confidence is the winning
// side's share of the weighted total, so one-sided evidence is
// confident even at modest similarity while split evidence drops
// below the threshold.
func Score(policy, precedent []retrieval.Chunk) Advice {
	if len(policy) == 0 && len(precedent) == 0 {
		return Advice{Lean: InsufficientContext}
	}

	var polAllow, polDeny float64
	for _, c := range policy {
		switch strings.ToLower(c.Label()) {
		case "allow":
			polAllow += c.Score
		case "deny":
			polDeny += c.Score
		}
	}

	var preAllow, preDeny float64
	for _, c := range precedent {
		switch strings.ToLower(c.Verdict()) {
		case "approved":
			preAllow += c.Score
		case "denied":
			preDeny += c.Score
		}
	}

	allowScore := PolicyWeight*polAllow + PrecedentWeight*preAllow
	denyScore := PolicyWeight*polDeny + PrecedentWeight*preDeny
	total := allowScore + denyScore

	var confidence float64
	if total > voteEpsilon {
		confidence = math.Max(allowScore, denyScore) / total
	}

	// A high-similarity labeled hit whose text names an explicit cue
	// settles the lean before the vote threshold applies.
	if lean, cue := strongCue(policy); lean != "" {
		return Advice{
			Lean:       lean,
			Confidence: math.Max(confidence, strongCueConfidence),
			Basis:      "policy cue: " + cue,
		}
	}

	if total <= voteEpsilon || confidence < MinConfidence {
		return Advice{Lean: ReviewCarefully, Confidence: confidence}
	}
	if allowScore >= denyScore {
		return Advice{Lean: LeanApprove, Confidence: confidence, Basis: "similarity vote favors approval"}
	}
	return Advice{Lean: LeanDeny, Confidence: confidence, Basis: "similarity vote favors denial"}
}

// strongCue scans policy hits for a decisive cue. The cue family must
// match the hit's own label, and both families firing cancels out.
func strongCue(policy []retrieval.Chunk) (Lean, string) {
	var denyCue, allowCue string
	for _, c := range policy {
		if c.Score < strongCueScore {
			continue
		}
		switch strings.ToLower(c.Label()) {
		case "deny":
			if cue := matchCue(c.Text, denyCues); cue != "" {
				denyCue = cue
			}
		case "allow":
			if cue := matchCue(c.Text, allowCues); cue != "" {
				allowCue = cue
			}
		}
	}
	switch {
	case denyCue != "" && allowCue == "":
		return LeanDeny, denyCue
	case allowCue != "" && denyCue == "":
		return LeanApprove, allowCue
	default:
		return "", ""
	}
}

func matchCue(text string, cues []string) string {
	lower := strings.ToLower(text)
	for _, cue := range cues {
		if strings.Contains(lower, cue) {
			return cue
		}
	}
	return ""
}
