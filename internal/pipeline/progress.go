package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/store"
)

// Progress checkpoints. Question progress is interpolated between
// progressQuerying and progressQuerying+querySpan.
const (
	progressCrawling        = 5
	progressAnalyzing       = 15
	progressQuestions       = 25
	progressQuerying        = 35
	querySpan               = 35
	progressCompetitors     = 75
	progressScoring         = 85
	progressRecommendations = 92
	progressDone            = 100
)

const (
	stepCrawling        = "Crawling website..."
	stepAnalyzing       = "Analyzing website content..."
	stepQuestions       = "Generating questions..."
	stepQuerying        = "Querying AI providers..."
	stepCompetitors     = "Extracting competitors..."
	stepScoring         = "Calculating scores..."
	stepRecommendations = "Generating recommendations..."
	stepDone            = "Analysis complete"
)

const maxFailureRunes = 200

// excerptBudget bounds the site excerpt handed to competitor extraction.
const excerptBudget = 1000

// questionProgress is the progress after question i (0-based) of n.
func questionProgress(i, n int) int {
	if n <= 0 {
		return progressQuerying
	}
	return progressQuerying + int(float64(i)/float64(n)*querySpan+0.5)
}

// tracker writes progress updates and never lets the value go backwards.
type tracker struct {
	mu    sync.Mutex
	store store.Store
	id    string
	last  int
}

func newTracker(st store.Store, id string, start int) *tracker {
	return &tracker{store: st, id: id, last: start}
}

func (t *tracker) update(ctx context.Context, u model.ProgressUpdate) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if u.Progress < t.last {
		u.Progress = t.last
	}
	if err := t.store.UpdateProgress(ctx, t.id, u); err != nil {
		return eris.Wrapf(err, "pipeline: update progress to %d", u.Progress)
	}
	t.last = u.Progress
	return nil
}

// fail marks the analysis failed, keeping the last recorded progress.
func (t *tracker) fail(ctx context.Context, msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.UpdateProgress(ctx, t.id, model.ProgressUpdate{
		Status:      model.AnalysisStatusFailed,
		Progress:    t.last,
		CurrentStep: msg,
	})
}

// failureMessage renders err for current_step.
func failureMessage(err error) string {
	var msg string
	switch {
	case eris.Is(err, context.Canceled):
		msg = "analysis cancelled"
	case eris.Is(err, context.DeadlineExceeded):
		msg = "analysis timed out"
	case eris.Is(err, ErrNoPages):
		msg = "unable to crawl the website"
	default:
		msg = err.Error()
	}
	msg = "Error: " + msg
	if r := []rune(msg); len(r) > maxFailureRunes {
		msg = string(r[:maxFailureRunes])
	}
	return msg
}
