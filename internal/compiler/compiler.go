// Package compiler joins stored articles into a single training corpus.
package compiler

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sbnation-corpus/internal/checkpoint"
	"github.com/JakeFAU/sbnation-corpus/internal/corpus"
	"github.com/JakeFAU/sbnation-corpus/internal/metrics"
	"github.com/JakeFAU/sbnation-corpus/internal/progress"
	"github.com/JakeFAU/sbnation-corpus/internal/storage"
)

// Corpus delimiters written around every article's content.
const (
	StartToken = "<|startoftext|>"
	EndToken   = "<|endoftext|>"
)

const textContentType = "text/plain; charset=utf-8"

// Compile renders every article whose author matches the filter, in store
// order. A nil filter keeps every article; matching ignores case and
// surrounding whitespace. An empty filter matches nothing.
func Compile(articles *checkpoint.Store[corpus.Article], author *string) (string, int) {
	if articles == nil || (author != nil && *author == "") {
		return "", 0
	}
	var want string
	if author != nil {
		want = normalize(*author)
	}

	var b strings.Builder
	count := 0
	articles.Each(func(_ corpus.Key, a corpus.Article) bool {
		if author != nil && normalize(a.Author) != want {
			return true
		}
		b.WriteString(StartToken)
		b.WriteString("\n")
		b.WriteString(a.Content)
		b.WriteString("\n")
		b.WriteString(EndToken)
		b.WriteString("\n")
		count++
		return true
	})
	return b.String(), count
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Result describes a written corpus.
type Result struct {
	URI      string
	Articles int
	Bytes    int
}

// Compiler loads an articles store and writes the compiled corpus.
type Compiler struct {
	objects storage.ObjectStore
	logger  *zap.Logger
	emitter progress.Emitter
	runID   string
}

// New builds a Compiler. emitter may be nil.
func New(objects storage.ObjectStore, logger *zap.Logger, emitter progress.Emitter, runID string) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{objects: objects, logger: logger, emitter: emitter, runID: runID}
}

// Run compiles the store at source and writes the text to destination.
func (c *Compiler) Run(ctx context.Context, source, destination string, author *string) (Result, error) {
	if c.objects == nil {
		return Result{}, fmt.Errorf("object store is required")
	}
	// The total is unknown until the store has loaded.
	tracker := progress.NewTracker(c.runID, progress.StageCompile, 0, 1, c.emitter)
	tracker.Start(ctx)
	defer tracker.Done(ctx)

	articles, err := checkpoint.Load[corpus.Article](ctx, c.objects, source)
	if err != nil {
		return Result{}, fmt.Errorf("load articles: %w", err)
	}
	tracker.SetTotal(articles.Len())

	text, count := Compile(articles, author)
	tracker.Advance(ctx, articles.Len(), "")

	uri, err := c.objects.PutObject(ctx, destination, textContentType, strings.NewReader(text))
	if err != nil {
		return Result{}, fmt.Errorf("write corpus: %w", err)
	}
	metrics.ObserveCorpusArticles(count)

	fields := []zap.Field{
		zap.String("uri", uri),
		zap.Int("length", len(text)),
		zap.Int("articles", count),
		zap.Int("stored", articles.Len()),
	}
	if author != nil {
		fields = append(fields, zap.String("author", *author))
	}
	c.logger.Info("corpus written", fields...)
	return Result{URI: uri, Articles: count, Bytes: len(text)}, nil
}
