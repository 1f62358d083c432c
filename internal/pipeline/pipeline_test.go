package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/digest/internal/dedup"
	"github.com/hyperjump/digest/internal/extract"
	"github.com/hyperjump/digest/internal/keyword"
	"github.com/hyperjump/digest/internal/models"
	"github.com/hyperjump/digest/internal/publish"
	"github.com/hyperjump/digest/internal/tagging"
)

var fixedNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func writeDoc(t *testing.T, name, content string) models.Document {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return models.NewDocument(path, "", "")
}

// paragraph returns a paragraph of n words starting with "dragon", unique per tag.
func paragraph(tag string, n int) string {
	words := []string{"dragon"}
	for i := 1; i < n; i++ {
		words = append(words, fmt.Sprintf("%s%d", tag, i))
	}
	return strings.Join(words, " ")
}

func settings(budget int) Settings {
	return Settings{
		Budget:           budget,
		WarningThreshold: 0.8,
		TokensPerWord:    1,
		MaxSegmentChars:  2000,
	}
}

type memPrior struct {
	ids   []string
	reads int
	err   error
}

func (m *memPrior) KnownIDs(context.Context) ([]string, error) {
	m.reads++
	return append([]string(nil), m.ids...), m.err
}

type recorder struct {
	NopObserver
	states    []models.State
	warnings  int
	exceeded  int
	processed int
}

func (r *recorder) StateChanged(_, to models.State) { r.states = append(r.states, to) }
func (r *recorder) BudgetWarning(models.TokenEstimate) { r.warnings++ }
func (r *recorder) BudgetExceeded(models.TokenEstimate) { r.exceeded++ }
func (r *recorder) SegmentProcessed(models.Segment, bool) { r.processed++ }

func TestRun_liveBudgetStopsBeforeCrossingSegment(t *testing.T) {
	doc := writeDoc(t, "costs.txt", strings.Join([]string{
		paragraph("a", 30), paragraph("b", 30), paragraph("c", 50),
	}, "\n\n"))
	rec := &recorder{}
	p := New(settings(100), WithGate(LiveGate{}), WithObserver(rec), WithClock(clock))

	res, err := p.Run(context.Background(), Request{Document: doc, Keywords: []string{"dragon"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary.Status != models.StatusBudgetExceeded {
		t.Errorf("status = %s, want budget_exceeded", res.Summary.Status)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(res.Entries))
	}
	for _, e := range res.Entries {
		if strings.Contains(e.Content, "c1") {
			t.Error("entry from the halted segment was committed")
		}
	}
	est := res.Summary.FinalTokenEstimate
	if est.Cumulative != 60 || est.Recommendation != models.RecommendBlock {
		t.Errorf("estimate = %+v", est)
	}
	if _, ok := est.PerSegment[2]; ok {
		t.Error("halted segment cost must not be committed")
	}
	if rec.exceeded != 1 || rec.warnings != 0 || rec.processed != 2 {
		t.Errorf("observer: exceeded=%d warnings=%d processed=%d", rec.exceeded, rec.warnings, rec.processed)
	}
	if len(res.Summary.Warnings) != 1 {
		t.Errorf("warnings = %v", res.Summary.Warnings)
	}
}

func TestRun_budgetBoundaryIsInclusive(t *testing.T) {
	doc := writeDoc(t, "exact.txt", paragraph("a", 50)+"\n\n"+paragraph("b", 50))
	p := New(settings(100), WithGate(LiveGate{}), WithClock(clock))
	res, err := p.Run(context.Background(), Request{Document: doc, Keywords: []string{"dragon"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary.Status != models.StatusBudgetExceeded {
		t.Errorf("status = %s, want budget_exceeded", res.Summary.Status)
	}
	if len(res.Entries) != 1 {
		t.Errorf("entries = %d, want 1", len(res.Entries))
	}
}

func TestRun_warningCrossedOnce(t *testing.T) {
	doc := writeDoc(t, "warn.txt", strings.Join([]string{
		paragraph("a", 45), paragraph("b", 40), paragraph("c", 5),
	}, "\n\n"))
	rec := &recorder{}
	p := New(settings(100), WithGate(LiveGate{}), WithObserver(rec), WithClock(clock))
	res, err := p.Run(context.Background(), Request{Document: doc, Keywords: []string{"dragon"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary.Status != models.StatusCompleted {
		t.Errorf("status = %s", res.Summary.Status)
	}
	if rec.warnings != 1 {
		t.Errorf("warnings = %d, want 1", rec.warnings)
	}
	want := []models.State{models.StateLoading, models.StateEstimating, models.StateExtracting,
		models.StateTagging, models.StateDeduplicating, models.StateDone}
	if fmt.Sprint(rec.states) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", rec.states, want)
	}
}

func TestRun_dragonExample(t *testing.T) {
	doc := writeDoc(t, "tale.txt", "The Dragon awoke.\n\nNothing else happened.")
	rules := []tagging.Rule{{Name: "Creatures", Keywords: []string{"dragon"}, Tags: []string{"myth"}}}
	s := settings(1000)
	s.Rules = rules
	p := New(s, WithClock(clock))

	res, err := p.Run(context.Background(), Request{Document: doc, Keywords: []string{"dragon"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(res.Entries))
	}
	e := res.Entries[0]
	if e.Title != "Dragon" || e.Category != "Creatures" || e.Content != "The Dragon awoke." {
		t.Errorf("entry = %+v", e)
	}
	if strings.Join(e.Tags, ",") != "dragon,myth" {
		t.Errorf("tags = %v", e.Tags)
	}
	if e.Source != "tale.txt" || e.DateAdded != "2026-03-14" || len(e.UniqueID) != 32 {
		t.Errorf("entry metadata = %+v", e)
	}
	if res.Summary.TotalSegments != 2 || res.Summary.MatchedSegments != 1 {
		t.Errorf("summary = %+v", res.Summary)
	}

	p = New(settings(1000), WithClock(clock))
	res, err = p.Run(context.Background(), Request{Document: doc, Keywords: []string{"dragon"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Entries[0].Category != tagging.DefaultCategory {
		t.Errorf("category without rules = %q", res.Entries[0].Category)
	}
}

func TestRun_entriesRankedByScore(t *testing.T) {
	doc := writeDoc(t, "rank.txt", "a long paragraph that mentions the dragon only once among many words\n\nDragon fire.")
	p := New(settings(1000), WithClock(clock))
	res, err := p.Run(context.Background(), Request{Document: doc, Keywords: []string{"dragon"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 2 || res.Entries[0].Content != "Dragon fire." {
		t.Errorf("entries not ranked: %+v", res.Entries)
	}
}

func TestRun_dedupDeterministicAndIdempotent(t *testing.T) {
	doc := writeDoc(t, "repeat.txt", "The dragon slept.\n\nThe dragon woke.\n\nThe dragon slept.")
	p := New(settings(1000), WithClock(clock))
	req := Request{Document: doc, Keywords: []string{"dragon"}}

	first, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Entries) != 2 || first.Summary.DuplicatesSkipped != 1 {
		t.Fatalf("first run: entries=%d duplicates=%d", len(first.Entries), first.Summary.DuplicatesSkipped)
	}
	second, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first.Entries {
		if first.Entries[i].UniqueID != second.Entries[i].UniqueID {
			t.Errorf("unique id %d differs between runs", i)
		}
	}

	var ids []string
	for _, e := range first.Entries {
		ids = append(ids, e.UniqueID)
	}
	prior := &memPrior{ids: ids}
	p = New(settings(1000), WithClock(clock), WithPriorState(prior))
	third, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(third.Entries) != 0 || third.Summary.DuplicatesSkipped != 3 {
		t.Errorf("re-extraction kept %d entries, skipped %d", len(third.Entries), third.Summary.DuplicatesSkipped)
	}
	if len(prior.ids) != 2 {
		t.Error("prior state was mutated")
	}
	if first.Summary.RunID == second.Summary.RunID {
		t.Error("run ids should be unique")
	}
}

func TestRun_estimateOnly(t *testing.T) {
	doc := writeDoc(t, "est.txt", paragraph("a", 30)+"\n\n"+paragraph("b", 30))
	prior := &memPrior{ids: []string{"x"}}
	rec := &recorder{}
	p := New(settings(50), WithGate(LiveGate{}), WithPriorState(prior), WithObserver(rec), WithClock(clock))

	res, err := p.Run(context.Background(), Request{Document: doc, Keywords: []string{"dragon"}, EstimateOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary.Status != models.StatusEstimated || res.Summary.State != models.StateEstimating {
		t.Errorf("status=%s state=%s", res.Summary.Status, res.Summary.State)
	}
	if len(res.Entries) != 0 || prior.reads != 0 || rec.processed != 0 {
		t.Errorf("estimate-only produced entries=%d reads=%d processed=%d", len(res.Entries), prior.reads, rec.processed)
	}
	est := res.Summary.FinalTokenEstimate
	if est.Cumulative != 60 || est.Recommendation != models.RecommendBlock || res.Summary.TotalSegments != 2 {
		t.Errorf("estimate = %+v", est)
	}
}

func TestRun_prePassHaltsWhenDeclined(t *testing.T) {
	doc := writeDoc(t, "big.txt", paragraph("a", 60)+"\n\n"+paragraph("b", 60))
	asked := 0
	gate := PrePassGate{Approver: ApproverFunc(func(_ context.Context, est models.TokenEstimate) (bool, error) {
		asked++
		if est.Cumulative != 120 {
			t.Errorf("approver saw %d tokens", est.Cumulative)
		}
		return false, nil
	})}
	prior := &memPrior{}
	p := New(settings(100), WithGate(gate), WithPriorState(prior), WithClock(clock))
	res, err := p.Run(context.Background(), Request{Document: doc, Keywords: []string{"dragon"}})
	if err != nil {
		t.Fatal(err)
	}
	if asked != 1 || res.Summary.Status != models.StatusHalted || res.Summary.State != models.StateHalted {
		t.Errorf("asked=%d status=%s state=%s", asked, res.Summary.Status, res.Summary.State)
	}
	if len(res.Entries) != 0 || prior.reads != 0 {
		t.Error("halted run must not produce entries or read prior state")
	}
}

func TestRun_prePassApprovedStillMetersLive(t *testing.T) {
	doc := writeDoc(t, "big.txt", strings.Join([]string{
		paragraph("a", 30), paragraph("b", 30), paragraph("c", 50),
	}, "\n\n"))
	gate := PrePassGate{Approver: ApproverFunc(func(context.Context, models.TokenEstimate) (bool, error) {
		return true, nil
	})}
	p := New(settings(100), WithGate(gate), WithClock(clock))
	res, err := p.Run(context.Background(), Request{Document: doc, Keywords: []string{"dragon"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary.Status != models.StatusBudgetExceeded || len(res.Entries) != 2 {
		t.Errorf("status=%s entries=%d", res.Summary.Status, len(res.Entries))
	}
}

func TestRun_prePassWithinBudgetSkipsApprover(t *testing.T) {
	doc := writeDoc(t, "small.txt", "The dragon slept.")
	gate := PrePassGate{Approver: ApproverFunc(func(context.Context, models.TokenEstimate) (bool, error) {
		t.Error("approver should not be asked")
		return false, nil
	})}
	p := New(settings(100), WithGate(gate), WithClock(clock))
	res, err := p.Run(context.Background(), Request{Document: doc, Keywords: []string{"dragon"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary.Status != models.StatusCompleted || len(res.Entries) != 1 {
		t.Errorf("status=%s entries=%d", res.Summary.Status, len(res.Entries))
	}
}

func TestRun_stageErrors(t *testing.T) {
	t.Run("invalid keywords", func(t *testing.T) {
		doc := writeDoc(t, "a.txt", "text")
		_, err := New(settings(100)).Run(context.Background(), Request{Document: doc, Keywords: []string{" "}})
		var serr *StageError
		if !errors.As(err, &serr) || serr.Stage != models.StateInit {
			t.Fatalf("err = %v", err)
		}
		var kerr *keyword.InvalidKeywordsError
		if !errors.As(err, &kerr) {
			t.Error("expected wrapped InvalidKeywordsError")
		}
		if !strings.HasPrefix(err.Error(), "init: validate keywords:") {
			t.Errorf("error should name the failing stage, got %q", err)
		}
	})
	t.Run("unsupported format", func(t *testing.T) {
		doc := writeDoc(t, "a.docx", "text")
		res, err := New(settings(100)).Run(context.Background(), Request{Document: doc, Keywords: []string{"text"}})
		var serr *StageError
		if !errors.As(err, &serr) || serr.Stage != models.StateLoading {
			t.Fatalf("err = %v", err)
		}
		var uerr *extract.UnsupportedFormatError
		if !errors.As(err, &uerr) {
			t.Error("expected wrapped UnsupportedFormatError")
		}
		if res == nil || len(res.Entries) != 0 {
			t.Error("failed run must carry a summary and no entries")
		}
	})
	t.Run("prior state failure", func(t *testing.T) {
		doc := writeDoc(t, "a.txt", "The dragon slept.")
		p := New(settings(100), WithPriorState(&memPrior{err: errors.New("sheet unavailable")}))
		res, err := p.Run(context.Background(), Request{Document: doc, Keywords: []string{"dragon"}})
		var serr *StageError
		if !errors.As(err, &serr) || serr.Stage != models.StateDeduplicating {
			t.Fatalf("err = %v", err)
		}
		if len(res.Entries) != 0 {
			t.Error("no entries on stage error")
		}
	})
}

// flakyPrior fails its first reads, or blocks until cancelled when hang is set.
type flakyPrior struct {
	ids   []string
	fails int
	hang  bool
	calls int
}

func (f *flakyPrior) Name() string { return "google-sheets" }

func (f *flakyPrior) KnownIDs(ctx context.Context) ([]string, error) {
	f.calls++
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.calls <= f.fails {
		return nil, errors.New("transient 503")
	}
	return f.ids, nil
}

func TestRun_priorReadRetriedOnce(t *testing.T) {
	doc := writeDoc(t, "a.txt", "The dragon slept.\n\nThe dragon woke.")
	known := dedup.Fingerprint("The dragon slept.", "a.txt")
	src := &flakyPrior{ids: []string{known}, fails: 1}
	pub := publish.New(nil, nil, publish.WithRetryDelay(0))

	p := New(settings(100), WithClock(clock), WithPriorState(pub.Prior(src)))
	res, err := p.Run(context.Background(), Request{Document: doc, Keywords: []string{"dragon"}})
	if err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Errorf("reads = %d, want 2", src.calls)
	}
	if len(res.Entries) != 1 || res.Entries[0].Content != "The dragon woke." {
		t.Errorf("entries = %+v", res.Entries)
	}
	if res.Summary.DuplicatesSkipped != 1 {
		t.Errorf("duplicates = %d", res.Summary.DuplicatesSkipped)
	}
}

func TestRun_priorReadIsBounded(t *testing.T) {
	doc := writeDoc(t, "a.txt", "The dragon slept.")
	src := &flakyPrior{hang: true}
	pub := publish.New(nil, nil, publish.WithTimeout(20*time.Millisecond), publish.WithRetryDelay(0))

	p := New(settings(100), WithPriorState(pub.Prior(src)))
	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), Request{Document: doc, Keywords: []string{"dragon"}})
		done <- err
	}()
	select {
	case err := <-done:
		var serr *StageError
		if !errors.As(err, &serr) || serr.Stage != models.StateDeduplicating {
			t.Fatalf("err = %v", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want deadline exceeded", err)
		}
		if src.calls != 2 {
			t.Errorf("reads = %d, want 2", src.calls)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("prior-state read was not bounded")
	}
}

func TestNotes(t *testing.T) {
	sm := models.SegmentMatches{
		Segment: models.Segment{Block: 4},
		Matches: []models.Match{{Keyword: "dragon", Type: models.MatchExact}, {Keyword: "castle", Type: models.MatchFuzzy}},
	}
	if got := notes(models.FormatPDF, sm); got != "page 4; fuzzy: castle" {
		t.Errorf("pdf notes = %q", got)
	}
	if got := notes(models.FormatTXT, models.SegmentMatches{}); got != "" {
		t.Errorf("txt notes = %q", got)
	}
}
