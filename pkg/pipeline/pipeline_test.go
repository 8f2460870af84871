package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/classify"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/config"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/embedders"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/faithfulness"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/generation"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/llms"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/protocol"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/retrieval"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/websearch"
)

// --- fakes ---

type fakeClassifier struct {
	result *classify.Result
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(ctx context.Context, query, expectedLanguage string, history []protocol.Turn) (*classify.Result, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeRetriever struct {
	result     *retrieval.Result
	err        error
	widened    []retrieval.Document
	widenErr   error
	calls      int
	widenCalls int
	lastQuery  string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) (*retrieval.Result, error) {
	f.calls++
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRetriever) Widen(ctx context.Context, query string, embedding *embedders.QueryEmbedding) ([]retrieval.Document, error) {
	f.widenCalls++
	if f.widenErr != nil {
		return nil, f.widenErr
	}
	return f.widened, nil
}

type fakeGenerator struct {
	answers  []*generation.Answer
	errs     []error
	requests []*generation.Request
}

func (f *fakeGenerator) Generate(ctx context.Context, req *generation.Request) (*generation.Answer, error) {
	call := len(f.requests)
	f.requests = append(f.requests, req)
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	if len(f.answers) == 0 {
		return nil, errors.New("no scripted answer")
	}
	if call >= len(f.answers) {
		call = len(f.answers) - 1
	}
	return f.answers[call], nil
}

type fakeJudge struct {
	verdicts []*faithfulness.Verdict
	disabled bool
	calls    int
}

func (f *fakeJudge) Enabled() bool { return !f.disabled }

func (f *fakeJudge) Check(ctx context.Context, question, answer string, contexts []string) *faithfulness.Verdict {
	call := f.calls
	f.calls++
	if call >= len(f.verdicts) {
		call = len(f.verdicts) - 1
	}
	return f.verdicts[call]
}

func (f *fakeJudge) Accept(score float64) bool         { return score >= 0.7 }
func (f *fakeJudge) ShouldFallback(score float64) bool { return score < 0.1 }

type fakeWeb struct {
	results []websearch.Result
	err     error
	calls   int
}

func (f *fakeWeb) Search(ctx context.Context, query string, maxResults int) ([]websearch.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeWeb) Name() string { return "fake-search" }

type fakeCache struct {
	entries map[string]*protocol.Answer
	gets    int
	sets    int
	lastSet *protocol.Answer
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*protocol.Answer{}}
}

func (f *fakeCache) key(lang, query string) string { return lang + "|" + query }

func (f *fakeCache) Get(ctx context.Context, languageCode, query string) (*protocol.Answer, bool) {
	f.gets++
	answer, ok := f.entries[f.key(languageCode, query)]
	return answer, ok
}

func (f *fakeCache) Set(ctx context.Context, languageCode, query string, answer *protocol.Answer) {
	f.sets++
	f.lastSet = answer
	f.entries[f.key(languageCode, query)] = answer
}

type failingReranker struct {
	calls int
}

func (f *failingReranker) Rerank(ctx context.Context, query string, docs []retrieval.Document, topN int) ([]retrieval.Document, error) {
	f.calls++
	return nil, errors.New("rerank backend down")
}

type stubProvider struct{ model string }

func (p stubProvider) Generate(ctx context.Context, req llms.ChatRequest) (*llms.ChatResponse, error) {
	return &llms.ChatResponse{Text: "ok"}, nil
}
func (p stubProvider) GetModelName() string { return p.model }
func (p stubProvider) Close() error         { return nil }

// --- harness ---

func onTopicResult(rewrite string) *classify.Result {
	return &classify.Result{
		Reason:         "asks about climate",
		LanguageMatch:  true,
		Classification: classify.ClassOnTopic,
		RewriteEN:      rewrite,
	}
}

func indexDocs(n int) []retrieval.Document {
	docs := make([]retrieval.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, retrieval.Document{
			ID:      fmt.Sprintf("doc-%d", i+1),
			Title:   fmt.Sprintf("Climate Topic %d", i+1),
			Content: fmt.Sprintf("Evidence paragraph %d about greenhouse gases.", i+1),
			URLs:    []string{fmt.Sprintf("https://docs.example/%d", i+1)},
			Score:   0.95 - float64(i)*0.05,
		})
	}
	return docs
}

func indexAnswer() *generation.Answer {
	return &generation.Answer{
		Text: "Warming is driven by greenhouse gas emissions [1].",
		Citations: []protocol.Citation{
			{Title: "Climate Topic 1", URL: "https://docs.example/1", Snippet: "Evidence paragraph 1"},
		},
		DocsUsed: 5,
	}
}

type testEnv struct {
	cfg        *config.Config
	classifier *fakeClassifier
	retriever  *fakeRetriever
	generator  *fakeGenerator
	judge      *fakeJudge
	web        *fakeWeb
	cache      *fakeCache
}

func newTestEnv() *testEnv {
	return &testEnv{
		cfg:        config.Default(),
		classifier: &fakeClassifier{result: onTopicResult("what causes global warming")},
		retriever:  &fakeRetriever{result: &retrieval.Result{Docs: indexDocs(5)}},
		generator:  &fakeGenerator{answers: []*generation.Answer{indexAnswer()}},
		judge:      &fakeJudge{verdicts: []*faithfulness.Verdict{{Score: 0.85}}},
		web:        &fakeWeb{},
		cache:      newFakeCache(),
	}
}

func (e *testEnv) pipeline() *Pipeline {
	router := llms.NewRouter(&llms.Providers{
		CommandA: stubProvider{model: "command-a-03-2025"},
		Nova:     stubProvider{model: "amazon.nova-lite-v1:0"},
	}, false)
	return New(e.cfg, Deps{
		Classifier: e.classifier,
		Router:     router,
		Retriever:  e.retriever,
		Generator:  e.generator,
		Judge:      e.judge,
		WebSearch:  e.web,
		Cache:      e.cache,
	})
}

func (e *testEnv) run(t *testing.T, query, language string) (*protocol.Answer, error) {
	t.Helper()
	return e.pipeline().Process(context.Background(), &Request{Query: query, Language: language})
}

func mustProcess(t *testing.T, e *testEnv, query, language string) *protocol.Answer {
	t.Helper()
	answer, err := e.run(t, query, language)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return answer
}

func wantCode(t *testing.T, err error, code ErrorCode) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("Process() error = nil, want code %s", code)
	}
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("Process() error = %v, want *pipeline.Error", err)
	}
	if perr.Code != code {
		t.Fatalf("error code = %s, want %s", perr.Code, code)
	}
	return perr
}

func hasWarning(answer *protocol.Answer, fragment string) bool {
	for _, w := range answer.Warnings {
		if strings.Contains(w, fragment) {
			return true
		}
	}
	return false
}

// --- tests ---

func TestProcess_GroundedAnswer(t *testing.T) {
	env := newTestEnv()
	answer := mustProcess(t, env, "why is the planet warming?", "en")

	if answer.Text != "Warming is driven by greenhouse gas emissions [1]." {
		t.Errorf("Text = %q", answer.Text)
	}
	if answer.FaithfulnessScore != 0.85 {
		t.Errorf("FaithfulnessScore = %v, want 0.85", answer.FaithfulnessScore)
	}
	if answer.ModelUsed != "command_a" {
		t.Errorf("ModelUsed = %q, want command_a", answer.ModelUsed)
	}
	if answer.RetrievalSource != protocol.SourceSearch {
		t.Errorf("RetrievalSource = %q, want %q", answer.RetrievalSource, protocol.SourceSearch)
	}
	if answer.LanguageUsed != "en" {
		t.Errorf("LanguageUsed = %q, want en", answer.LanguageUsed)
	}
	if answer.RequestID == "" {
		t.Error("RequestID is empty")
	}
	if len(answer.Citations) != 1 || answer.Citations[0].URL != "https://docs.example/1" {
		t.Errorf("Citations = %+v", answer.Citations)
	}
	if len(answer.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", answer.Warnings)
	}

	for _, step := range []string{stageCacheLookup, stageClassify, stageRoute, stageRetrieve, stageRerank, stageGenerate, stageFaithfulness, stageCacheWrite} {
		if _, ok := answer.StepTimesMS[step]; !ok {
			t.Errorf("StepTimesMS missing %q: %v", step, answer.StepTimesMS)
		}
	}
	if _, ok := answer.StepTimesMS[stageWebFallback]; ok {
		t.Error("StepTimesMS contains web_fallback for an accepted answer")
	}

	// Retrieval and generation both work on the English rewrite.
	if env.retriever.lastQuery != "what causes global warming" {
		t.Errorf("retriever query = %q", env.retriever.lastQuery)
	}
	if len(env.generator.requests) != 1 {
		t.Fatalf("generator calls = %d, want 1", len(env.generator.requests))
	}
	req := env.generator.requests[0]
	if req.Query != "what causes global warming" {
		t.Errorf("generator query = %q", req.Query)
	}
	if req.ExpectedLanguage != "en" {
		t.Errorf("generator language = %q", req.ExpectedLanguage)
	}
	if len(req.Documents) != env.cfg.Retrieval.TopK {
		t.Errorf("generator got %d documents, want %d", len(req.Documents), env.cfg.Retrieval.TopK)
	}
	if req.Provider == nil {
		t.Error("generator got a nil provider")
	}
}

func TestProcess_BackendFollowsLanguage(t *testing.T) {
	tests := []struct {
		language string
		want     string
	}{
		{"en", "command_a"},
		{"es", "command_a"},
		{"fr", "nova"},
		{"zh", "nova"},
	}
	for _, tt := range tests {
		t.Run(tt.language, func(t *testing.T) {
			env := newTestEnv()
			answer := mustProcess(t, env, "why is the planet warming?", tt.language)
			if answer.ModelUsed != tt.want {
				t.Errorf("ModelUsed = %q, want %q", answer.ModelUsed, tt.want)
			}
			if answer.LanguageUsed != tt.language {
				t.Errorf("LanguageUsed = %q, want %q", answer.LanguageUsed, tt.language)
			}
		})
	}
}

func TestProcess_ValidatesQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  ErrorCode
	}{
		{"empty", "", CodeEmptyQuery},
		{"whitespace only", "   \n\t ", CodeEmptyQuery},
		{"over the length limit", strings.Repeat("a", MaxQueryChars+1), CodeTooLongQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			_, err := env.run(t, tt.query, "en")
			perr := wantCode(t, err, tt.want)
			if perr.Message == "" {
				t.Error("refusal message is empty")
			}
			if env.classifier.calls != 0 {
				t.Errorf("classifier calls = %d, want 0", env.classifier.calls)
			}
		})
	}
}

func TestProcess_TrimmedQueryAtLimitPasses(t *testing.T) {
	env := newTestEnv()
	query := strings.Repeat("a", MaxQueryChars)
	if _, err := env.run(t, "  "+query+"  ", "en"); err != nil {
		t.Fatalf("Process() error = %v, want success at the limit", err)
	}
}

func TestProcess_UnsupportedLanguage(t *testing.T) {
	env := newTestEnv()
	_, err := env.run(t, "why is the planet warming?", "tlh")
	wantCode(t, err, CodeInternal)
	if env.classifier.calls != 0 {
		t.Errorf("classifier calls = %d, want 0", env.classifier.calls)
	}
}

func TestProcess_RefusalBranches(t *testing.T) {
	tests := []struct {
		name   string
		result *classify.Result
		want   ErrorCode
	}{
		{
			name: "off topic",
			result: &classify.Result{
				LanguageMatch:  true,
				Classification: classify.ClassOffTopic,
			},
			want: CodeOffTopic,
		},
		{
			name: "harmful",
			result: &classify.Result{
				LanguageMatch:  true,
				Classification: classify.ClassHarmful,
			},
			want: CodeHarmfulQuery,
		},
		{
			name: "language mismatch",
			result: &classify.Result{
				LanguageMatch:  false,
				Classification: classify.ClassOnTopic,
			},
			want: CodeLanguageMismatch,
		},
		{
			// A mismatch outranks the intent: the user picked the wrong
			// language before anything else matters.
			name: "mismatch outranks harmful",
			result: &classify.Result{
				LanguageMatch:  false,
				Classification: classify.ClassHarmful,
			},
			want: CodeLanguageMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.classifier.result = tt.result
			_, err := env.run(t, "tell me something", "en")
			perr := wantCode(t, err, tt.want)
			if perr.Message == "" {
				t.Error("refusal message is empty")
			}
			if env.retriever.calls != 0 {
				t.Errorf("retriever calls = %d, want 0", env.retriever.calls)
			}
			if len(env.generator.requests) != 0 {
				t.Errorf("generator calls = %d, want 0", len(env.generator.requests))
			}
			if env.cache.sets != 0 {
				t.Errorf("cache writes = %d, want 0", env.cache.sets)
			}
		})
	}
}

func TestProcess_CannedReplySkipsRetrieval(t *testing.T) {
	env := newTestEnv()
	env.classifier.result = &classify.Result{
		LanguageMatch:  true,
		Classification: classify.ClassGreeting,
		Canned: classify.Canned{
			Enabled: true,
			Type:    "greeting",
			Text:    "Hello! Ask me anything about climate change.",
		},
	}

	answer := mustProcess(t, env, "hi there", "en")

	if answer.Text != "Hello! Ask me anything about climate change." {
		t.Errorf("Text = %q", answer.Text)
	}
	if answer.RetrievalSource != protocol.SourceCanned {
		t.Errorf("RetrievalSource = %q, want %q", answer.RetrievalSource, protocol.SourceCanned)
	}
	if answer.FaithfulnessScore != 1.0 {
		t.Errorf("FaithfulnessScore = %v, want 1.0", answer.FaithfulnessScore)
	}
	if answer.ModelUsed != "canned" {
		t.Errorf("ModelUsed = %q, want canned", answer.ModelUsed)
	}
	if answer.Citations == nil || len(answer.Citations) != 0 {
		t.Errorf("Citations = %#v, want empty non-nil", answer.Citations)
	}
	if env.retriever.calls != 0 || len(env.generator.requests) != 0 || env.judge.calls != 0 {
		t.Errorf("canned reply touched retrieval/generation/judge: %d/%d/%d",
			env.retriever.calls, len(env.generator.requests), env.judge.calls)
	}
	if env.cache.sets != 0 {
		t.Errorf("cache writes = %d, want 0 for canned replies", env.cache.sets)
	}
}

func TestProcess_CacheHitServesStoredAnswer(t *testing.T) {
	env := newTestEnv()
	first := mustProcess(t, env, "why is the planet warming?", "en")
	if env.cache.sets != 1 {
		t.Fatalf("cache writes after first run = %d, want 1", env.cache.sets)
	}

	second := mustProcess(t, env, "why is the planet warming?", "en")

	if env.classifier.calls != 1 {
		t.Errorf("classifier calls = %d, want 1 (hit skips classification)", env.classifier.calls)
	}
	if env.retriever.calls != 1 || len(env.generator.requests) != 1 {
		t.Errorf("hit reran retrieval/generation: %d/%d", env.retriever.calls, len(env.generator.requests))
	}

	if second.Text != first.Text {
		t.Errorf("cached Text = %q, want %q", second.Text, first.Text)
	}
	if second.FaithfulnessScore != first.FaithfulnessScore {
		t.Errorf("cached score = %v, want %v", second.FaithfulnessScore, first.FaithfulnessScore)
	}
	if len(second.Citations) != len(first.Citations) || second.Citations[0] != first.Citations[0] {
		t.Errorf("cached citations = %+v, want %+v", second.Citations, first.Citations)
	}
	if second.RequestID == "" || second.RequestID == first.RequestID {
		t.Errorf("cached RequestID = %q, want a fresh ID (first was %q)", second.RequestID, first.RequestID)
	}
	if _, ok := second.StepTimesMS[stageCacheLookup]; !ok {
		t.Errorf("StepTimesMS = %v, want cache_lookup", second.StepTimesMS)
	}
	if _, ok := second.StepTimesMS[stageClassify]; ok {
		t.Error("cached answer carries a classify step time")
	}
}

func TestProcess_CacheIsLanguageScoped(t *testing.T) {
	env := newTestEnv()
	mustProcess(t, env, "why is the planet warming?", "en")
	mustProcess(t, env, "why is the planet warming?", "fr")

	if env.classifier.calls != 2 {
		t.Errorf("classifier calls = %d, want 2 (no cross-language hits)", env.classifier.calls)
	}
}

func TestProcess_RetrievalEmpty(t *testing.T) {
	env := newTestEnv()
	env.retriever.result = &retrieval.Result{Docs: []retrieval.Document{}}
	_, err := env.run(t, "why is the planet warming?", "en")
	wantCode(t, err, CodeRetrievalEmpty)
	if len(env.generator.requests) != 0 {
		t.Errorf("generator calls = %d, want 0", len(env.generator.requests))
	}
}

func TestProcess_RetrievalFailureIsInternal(t *testing.T) {
	env := newTestEnv()
	env.retriever.err = errors.New("index unreachable")
	_, err := env.run(t, "why is the planet warming?", "en")
	perr := wantCode(t, err, CodeInternal)
	if !strings.Contains(perr.Error(), "index unreachable") {
		t.Errorf("error = %v, want wrapped cause", perr)
	}
}

func TestProcess_FilterFallbackWarning(t *testing.T) {
	env := newTestEnv()
	env.retriever.result.FilterFallback = true
	answer := mustProcess(t, env, "why is the planet warming?", "en")
	if !hasWarning(answer, "retried unfiltered") {
		t.Errorf("Warnings = %v, want filter fallback warning", answer.Warnings)
	}
}

func TestProcess_GenerationFailure(t *testing.T) {
	env := newTestEnv()
	env.generator.errs = []error{errors.New("backend 500")}
	_, err := env.run(t, "why is the planet warming?", "en")
	wantCode(t, err, CodeGenerationFailed)
	if env.cache.sets != 0 {
		t.Errorf("cache writes = %d, want 0", env.cache.sets)
	}
}

func TestProcess_TruncatedAnswerWarns(t *testing.T) {
	env := newTestEnv()
	truncated := indexAnswer()
	truncated.Truncated = true
	env.generator.answers = []*generation.Answer{truncated}

	answer := mustProcess(t, env, "why is the planet warming?", "en")
	if !hasWarning(answer, "truncated") {
		t.Errorf("Warnings = %v, want truncation warning", answer.Warnings)
	}
}

func TestProcess_RerankFailureKeepsRetrievalOrder(t *testing.T) {
	env := newTestEnv()
	reranker := &failingReranker{}
	router := llms.NewRouter(&llms.Providers{
		CommandA: stubProvider{model: "command-a-03-2025"},
		Nova:     stubProvider{model: "amazon.nova-lite-v1:0"},
	}, false)
	p := New(env.cfg, Deps{
		Classifier: env.classifier,
		Router:     router,
		Retriever:  env.retriever,
		Reranker:   reranker,
		Generator:  env.generator,
		Judge:      env.judge,
		Cache:      env.cache,
	})

	answer, err := p.Process(context.Background(), &Request{Query: "why is the planet warming?", Language: "en"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if reranker.calls == 0 {
		t.Fatal("reranker was never called")
	}
	if !hasWarning(answer, "using retrieval order") {
		t.Errorf("Warnings = %v, want rerank fallback warning", answer.Warnings)
	}

	got := env.generator.requests[0].Documents
	for i, doc := range got {
		want := fmt.Sprintf("doc-%d", i+1)
		if doc.ID != want {
			t.Errorf("document[%d] = %s, want %s (retrieval order)", i, doc.ID, want)
		}
	}
}

func TestProcess_SecondPassWidensShortSet(t *testing.T) {
	env := newTestEnv()
	env.retriever.result = &retrieval.Result{Docs: indexDocs(2)}
	env.retriever.widened = []retrieval.Document{
		{ID: "wide-1", Title: "Extra 1", Content: "more evidence", URLs: []string{"https://docs.example/w1"}, Score: 0.85},
		{ID: "wide-2", Title: "Extra 2", Content: "more evidence", URLs: []string{"https://docs.example/w2"}, Score: 0.80},
		{ID: "wide-3", Title: "Extra 3", Content: "more evidence", URLs: []string{"https://docs.example/w3"}, Score: 0.78},
		{ID: "wide-4", Title: "Extra 4", Content: "more evidence", URLs: []string{"https://docs.example/w4"}, Score: 0.76},
	}

	mustProcess(t, env, "why is the planet warming?", "en")

	if env.retriever.widenCalls != 1 {
		t.Fatalf("widen calls = %d, want 1", env.retriever.widenCalls)
	}
	docs := env.generator.requests[0].Documents
	if len(docs) != env.cfg.Retrieval.TopK {
		t.Errorf("generator got %d documents, want %d after the second pass", len(docs), env.cfg.Retrieval.TopK)
	}
}

func TestProcess_WidenFailureKeepsShortSet(t *testing.T) {
	env := newTestEnv()
	env.retriever.result = &retrieval.Result{Docs: indexDocs(2)}
	env.retriever.widenErr = errors.New("index unreachable")

	mustProcess(t, env, "why is the planet warming?", "en")

	if env.retriever.widenCalls != 1 {
		t.Fatalf("widen calls = %d, want 1", env.retriever.widenCalls)
	}
	if got := len(env.generator.requests[0].Documents); got != 2 {
		t.Errorf("generator got %d documents, want the short set of 2", got)
	}
}

func TestProcess_SecondPassDisabled(t *testing.T) {
	env := newTestEnv()
	env.cfg.Retrieval.Finalize.SecondPass = config.BoolPtr(false)
	env.retriever.result = &retrieval.Result{Docs: indexDocs(2)}

	mustProcess(t, env, "why is the planet warming?", "en")

	if env.retriever.widenCalls != 0 {
		t.Errorf("widen calls = %d, want 0 when the second pass is off", env.retriever.widenCalls)
	}
}

func TestProcess_JudgeDisabled(t *testing.T) {
	env := newTestEnv()
	env.judge.disabled = true

	answer := mustProcess(t, env, "why is the planet warming?", "en")

	if answer.FaithfulnessScore != 0 {
		t.Errorf("FaithfulnessScore = %v, want 0 when unscored", answer.FaithfulnessScore)
	}
	if _, ok := answer.StepTimesMS[stageFaithfulness]; ok {
		t.Error("StepTimesMS contains faithfulness with the judge disabled")
	}
	if env.cache.sets != 1 {
		t.Errorf("cache writes = %d, want 1 (unscored answers stay cacheable)", env.cache.sets)
	}
	if len(answer.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", answer.Warnings)
	}
}

func TestProcess_JudgeDegradedServesUnscored(t *testing.T) {
	env := newTestEnv()
	env.judge.verdicts = []*faithfulness.Verdict{{Degraded: true}}

	answer := mustProcess(t, env, "why is the planet warming?", "en")

	if answer.FaithfulnessScore != 0 {
		t.Errorf("FaithfulnessScore = %v, want 0", answer.FaithfulnessScore)
	}
	if !hasWarning(answer, "faithfulness unverified") {
		t.Errorf("Warnings = %v, want unverified warning", answer.Warnings)
	}
	if env.cache.sets != 0 {
		t.Errorf("cache writes = %d, want 0 for unverified answers", env.cache.sets)
	}
	if env.web.calls != 0 {
		t.Errorf("web searches = %d, want 0 (degraded skips the fallback)", env.web.calls)
	}
}

func TestProcess_MidScoreWarnsWithoutFallback(t *testing.T) {
	env := newTestEnv()
	env.judge.verdicts = []*faithfulness.Verdict{{Score: 0.5}}

	answer := mustProcess(t, env, "why is the planet warming?", "en")

	if answer.FaithfulnessScore != 0.5 {
		t.Errorf("FaithfulnessScore = %v, want 0.5", answer.FaithfulnessScore)
	}
	if !hasWarning(answer, "below target") {
		t.Errorf("Warnings = %v, want below-target warning", answer.Warnings)
	}
	if env.web.calls != 0 {
		t.Errorf("web searches = %d, want 0 above the fallback floor", env.web.calls)
	}
	if env.cache.sets != 1 {
		t.Errorf("cache writes = %d, want 1", env.cache.sets)
	}
}

func webFallbackEnv() *testEnv {
	env := newTestEnv()
	env.cfg.WebSearch.Enabled = config.BoolPtr(true)
	env.judge.verdicts = []*faithfulness.Verdict{{Score: 0.05}, {Score: 0.9}}
	env.web.results = []websearch.Result{
		{Title: "IPCC headline", URL: "https://web.example/ipcc", Content: "fresh web evidence", Score: 0.9},
		{Title: "NOAA report", URL: "https://web.example/noaa", Content: "more web evidence", Score: 0.8},
	}
	env.generator.answers = []*generation.Answer{
		indexAnswer(),
		{
			Text:      "Recent assessments confirm the warming trend [1].",
			Citations: []protocol.Citation{{Title: "IPCC headline", URL: "https://web.example/ipcc"}},
			DocsUsed:  2,
		},
	}
	return env
}

func TestProcess_WebFallbackReplacesWeakAnswer(t *testing.T) {
	env := webFallbackEnv()
	answer := mustProcess(t, env, "why is the planet warming?", "en")

	if env.web.calls != 1 {
		t.Fatalf("web searches = %d, want 1", env.web.calls)
	}
	if answer.Text != "Recent assessments confirm the warming trend [1]." {
		t.Errorf("Text = %q, want the regenerated answer", answer.Text)
	}
	if answer.FaithfulnessScore != 0.9 {
		t.Errorf("FaithfulnessScore = %v, want 0.9", answer.FaithfulnessScore)
	}
	if answer.RetrievalSource != protocol.SourceFallbackWeb {
		t.Errorf("RetrievalSource = %q, want %q", answer.RetrievalSource, protocol.SourceFallbackWeb)
	}
	if len(answer.Citations) != 1 || answer.Citations[0].URL != "https://web.example/ipcc" {
		t.Errorf("Citations = %+v, want the web citation", answer.Citations)
	}
	if _, ok := answer.StepTimesMS[stageWebFallback]; !ok {
		t.Errorf("StepTimesMS = %v, want web_fallback", answer.StepTimesMS)
	}
	if env.cache.sets != 1 {
		t.Errorf("cache writes = %d, want 1 (web answers are cacheable)", env.cache.sets)
	}

	// The regeneration call grounds on the converted web results.
	if len(env.generator.requests) != 2 {
		t.Fatalf("generator calls = %d, want 2", len(env.generator.requests))
	}
	webDocs := env.generator.requests[1].Documents
	if len(webDocs) != 2 || webDocs[0].ID != "web-1" || webDocs[1].ID != "web-2" {
		t.Errorf("fallback documents = %+v", webDocs)
	}
	if webDocs[0].URLs[0] != "https://web.example/ipcc" {
		t.Errorf("fallback document URL = %q", webDocs[0].URLs[0])
	}
}

func TestProcess_WebFallbackKeepsBetterOriginal(t *testing.T) {
	env := webFallbackEnv()
	env.judge.verdicts = []*faithfulness.Verdict{{Score: 0.05}, {Score: 0.02}}

	answer := mustProcess(t, env, "why is the planet warming?", "en")

	if answer.Text != indexAnswer().Text {
		t.Errorf("Text = %q, want the original answer kept", answer.Text)
	}
	if answer.FaithfulnessScore != 0.05 {
		t.Errorf("FaithfulnessScore = %v, want 0.05", answer.FaithfulnessScore)
	}
	if answer.RetrievalSource != protocol.SourceSearch {
		t.Errorf("RetrievalSource = %q, want %q", answer.RetrievalSource, protocol.SourceSearch)
	}
	if !hasWarning(answer, "low faithfulness score") {
		t.Errorf("Warnings = %v, want low-score warning", answer.Warnings)
	}
	if env.cache.sets != 0 {
		t.Errorf("cache writes = %d, want 0 for weakly supported answers", env.cache.sets)
	}
}

func TestProcess_WebFallbackSearchFailure(t *testing.T) {
	env := webFallbackEnv()
	env.web.err = errors.New("search api down")

	answer := mustProcess(t, env, "why is the planet warming?", "en")

	if answer.Text != indexAnswer().Text {
		t.Errorf("Text = %q, want the original answer kept", answer.Text)
	}
	if !hasWarning(answer, "low faithfulness score") {
		t.Errorf("Warnings = %v, want low-score warning", answer.Warnings)
	}
	if len(env.generator.requests) != 1 {
		t.Errorf("generator calls = %d, want 1 (no regeneration without results)", len(env.generator.requests))
	}
}

func TestProcess_WebFallbackDisabledByConfig(t *testing.T) {
	env := webFallbackEnv()
	env.cfg.WebSearch.Enabled = config.BoolPtr(false)

	answer := mustProcess(t, env, "why is the planet warming?", "en")

	if env.web.calls != 0 {
		t.Errorf("web searches = %d, want 0 when disabled", env.web.calls)
	}
	if answer.RetrievalSource != protocol.SourceSearch {
		t.Errorf("RetrievalSource = %q, want %q", answer.RetrievalSource, protocol.SourceSearch)
	}
	if !hasWarning(answer, "low faithfulness score") {
		t.Errorf("Warnings = %v, want low-score warning", answer.Warnings)
	}
}

func TestProcess_ClassifierDegradedWarns(t *testing.T) {
	env := newTestEnv()
	result := onTopicResult("what causes global warming")
	result.Degraded = true
	env.classifier.result = result

	answer := mustProcess(t, env, "why is the planet warming?", "en")
	if !hasWarning(answer, "classifier degraded") {
		t.Errorf("Warnings = %v, want classifier degraded warning", answer.Warnings)
	}
}

func TestProcess_ClassifierFailureIsInternal(t *testing.T) {
	env := newTestEnv()
	env.classifier.err = errors.New("provider 500")
	_, err := env.run(t, "why is the planet warming?", "en")
	wantCode(t, err, CodeInternal)
}

func TestProcess_CancelledContextPassesThrough(t *testing.T) {
	env := newTestEnv()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.pipeline().Process(ctx, &Request{Query: "why is the planet warming?", Language: "en"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Process() error = %v, want context.Canceled", err)
	}
	var perr *Error
	if errors.As(err, &perr) {
		t.Errorf("cancellation mapped to taxonomy error %s", perr.Code)
	}
	if env.cache.sets != 0 {
		t.Errorf("cache writes = %d, want 0 after cancellation", env.cache.sets)
	}
}

func TestProcess_RequestIDFromContextIsKept(t *testing.T) {
	env := newTestEnv()
	ctx := protocol.WithRequestID(context.Background(), "req-fixed-123")

	answer, err := env.pipeline().Process(ctx, &Request{Query: "why is the planet warming?", Language: "en"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if answer.RequestID != "req-fixed-123" {
		t.Errorf("RequestID = %q, want req-fixed-123", answer.RequestID)
	}
}

func TestProcess_NoCacheConfigured(t *testing.T) {
	env := newTestEnv()
	router := llms.NewRouter(&llms.Providers{
		CommandA: stubProvider{model: "command-a-03-2025"},
		Nova:     stubProvider{model: "amazon.nova-lite-v1:0"},
	}, false)
	p := New(env.cfg, Deps{
		Classifier: env.classifier,
		Router:     router,
		Retriever:  env.retriever,
		Generator:  env.generator,
		Judge:      env.judge,
	})

	answer, err := p.Process(context.Background(), &Request{Query: "why is the planet warming?", Language: "en"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if _, ok := answer.StepTimesMS[stageCacheLookup]; ok {
		t.Error("StepTimesMS contains cache_lookup without a cache")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("boom")
	wrapped := WrapError(CodeInternal, "stage failed", cause)
	if !errors.Is(wrapped, cause) {
		t.Error("WrapError does not unwrap to its cause")
	}
	if got := wrapped.Error(); !strings.Contains(got, "stage failed") || !strings.Contains(got, "boom") {
		t.Errorf("Error() = %q", got)
	}

	plain := NewError(CodeOffTopic, refusalMessages[CodeOffTopic])
	if plain.Unwrap() != nil {
		t.Error("NewError carries an unexpected cause")
	}

	for _, code := range []ErrorCode{
		CodeEmptyQuery, CodeTooLongQuery, CodeOffTopic, CodeHarmfulQuery,
		CodeLanguageMismatch, CodeRetrievalEmpty,
	} {
		if refusalMessages[code] == "" {
			t.Errorf("refusalMessages[%s] is empty", code)
		}
	}
}
