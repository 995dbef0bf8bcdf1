// Package ingest loads policy documents into the policy collection.
//
// Documents are plain text or markdown. Explicit ALLOW:/DENY: rule
// lines are extracted as their own labeled chunks so retrieval can
// surface a single rule with high similarity; the remaining prose is
// split into overlapping chunks, labeled by keyword where a known
// ground appears in the text.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ezextender/extenderd/internal/vectorstore"
)

var tracer = otel.Tracer("extenderd.ingest")

// Chunking tuned for short policy documents: chunks large enough to
// hold a full clause, with overlap so a rule split across a boundary
// still retrieves whole.
const (
	DefaultChunkSize    = 1400
	DefaultChunkOverlap = 120
)

// ErrNoDocuments is returned when a source yields nothing to ingest.
var ErrNoDocuments = errors.New("no documents to ingest")

// ruleHeader matches the start of an explicit rule line. Rules run
// from one header to the next (or end of text), so extraction slices
// between header positions rather than matching the rule body.
var ruleHeader = regexp.MustCompile(`(?im)^[ \t]*(allow|deny)[ \t]*:[ \t]*`)

// Ingestor writes policy chunks into the vector store.
type Ingestor struct {
	store    vectorstore.Store
	splitter textsplitter.RecursiveCharacter
	logger   *zap.Logger
}

// NewIngestor creates an Ingestor with default chunking.
func NewIngestor(store vectorstore.Store, logger *zap.Logger) (*Ingestor, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		store: store,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(DefaultChunkSize),
			textsplitter.WithChunkOverlap(DefaultChunkOverlap),
		),
		logger: logger,
	}, nil
}

// Result summarizes one ingestion run.
type Result struct {
	Files      int `json:"files"`
	RuleChunks int `json:"rule_chunks"`
	TextChunks int `json:"text_chunks"`
}

// IngestDir ingests every .txt and .md file under dir, non-recursive.
func (i *Ingestor) IngestDir(ctx context.Context, dir string) (Result, error) {
	ctx, span := tracer.Start(ctx, "ingest.IngestDir")
	defer span.End()
	span.SetAttributes(attribute.String("ingest.dir", dir))

	entries, err := os.ReadDir(dir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read dir")
		return Result{}, fmt.Errorf("read policy dir: %w", err)
	}

	var total Result
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "read file")
			return total, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		res, err := i.IngestText(ctx, entry.Name(), string(data))
		if err != nil {
			return total, err
		}
		total.Files++
		total.RuleChunks += res.RuleChunks
		total.TextChunks += res.TextChunks
	}
	if total.Files == 0 {
		return total, fmt.Errorf("%w: no .txt or .md files in %s", ErrNoDocuments, dir)
	}
	span.SetStatus(codes.Ok, "")
	return total, nil
}

// IngestText chunks one document and upserts it under the given
// source name.
func (i *Ingestor) IngestText(ctx context.Context, source, text string) (Result, error) {
	ctx, span := tracer.Start(ctx, "ingest.IngestText")
	defer span.End()
	span.SetAttributes(attribute.String("ingest.source", source))

	text = clean(text)
	if text == "" {
		return Result{}, fmt.Errorf("%w: %s is empty", ErrNoDocuments, source)
	}

	rules, remainder := ExtractRules(text)

	var docs []vectorstore.Document
	for _, r := range rules {
		docs = append(docs, vectorstore.Document{
			ID:      uuid.NewString(),
			Content: r.Text,
			Metadata: map[string]any{
				"source": source,
				"kind":   "rule",
				"label":  r.Label,
			},
		})
	}

	chunks, err := i.splitter.SplitText(remainder)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "split")
		return Result{}, fmt.Errorf("split %s: %w", source, err)
	}
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		meta := map[string]any{
			"source": source,
			"kind":   "prose",
		}
		if label := GuessLabel(c); label != "" {
			meta["label"] = label
		}
		docs = append(docs, vectorstore.Document{
			ID:      uuid.NewString(),
			Content: c,
			Metadata: meta,
		})
	}

	if len(docs) == 0 {
		return Result{}, fmt.Errorf("%w: %s produced no chunks", ErrNoDocuments, source)
	}

	if err := i.store.EnsureCollection(ctx, vectorstore.CollectionPolicy); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ensure collection")
		return Result{}, fmt.Errorf("ensure policy collection: %w", err)
	}
	if _, err := i.store.Upsert(ctx, vectorstore.CollectionPolicy, docs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert")
		return Result{}, fmt.Errorf("upsert policy chunks: %w", err)
	}

	res := Result{RuleChunks: len(rules), TextChunks: len(docs) - len(rules)}
	i.logger.Info("policy document ingested",
		zap.String("source", source),
		zap.Int("rule_chunks", res.RuleChunks),
		zap.Int("text_chunks", res.TextChunks))
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// Label keywords for prose chunks without an explicit rule header.
// Grounds that clearly allow or clearly deny get a label so scoring
// can count the chunk's similarity toward the right side.
var (
	allowKeywords = []string{"bereavement", "death", "hospital", "broken wrist"}
	denyKeywords  = []string{"flu", "common cold", "vacation", "travel"}
)

// GuessLabel returns "allow" or "deny" for a prose chunk whose text
// names a known ground, or "" when the chunk is neutral. Explicit
// headers win over keywords.
func GuessLabel(text string) string {
	s := strings.ToLower(text)
	if strings.Contains(s, "allow:") {
		return "allow"
	}
	if strings.Contains(s, "deny:") {
		return "deny"
	}
	for _, k := range allowKeywords {
		if strings.Contains(s, k) {
			return "allow"
		}
	}
	for _, k := range denyKeywords {
		if strings.Contains(s, k) {
			return "deny"
		}
	}
	return ""
}

// Rule is one explicit ALLOW or DENY clause.
type Rule struct {
	Label string // "allow" or "deny"
	Text  string // full clause including its header
}

// ExtractRules pulls explicit rule clauses out of text and returns
// them with the remaining prose. A clause runs from its header to the
// next header or a blank line, whichever comes first.
func ExtractRules(text string) ([]Rule, string) {
	locs := ruleHeader.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil, text
	}

	var rules []Rule
	var remainder strings.Builder
	remainder.WriteString(text[:locs[0][0]])

	for n, loc := range locs {
		end := len(text)
		if n+1 < len(locs) {
			end = locs[n+1][0]
		}
		clause := text[loc[0]:end]
		// Only the clause's own paragraph belongs to the rule.
		if idx := strings.Index(clause, "\n\n"); idx >= 0 {
			remainder.WriteString(clause[idx:])
			clause = clause[:idx]
		}
		label := strings.ToLower(strings.TrimRight(strings.TrimSpace(text[loc[0]:loc[1]]), ": \t"))
		rules = append(rules, Rule{Label: label, Text: strings.TrimSpace(clause)})
	}
	return rules, strings.TrimSpace(remainder.String())
}

// clean normalizes line endings and trims trailing whitespace per
// line so chunk boundaries are stable across platforms.
func clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for n, line := range lines {
		lines[n] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
