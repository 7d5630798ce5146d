// Package classifier is the remote side of the match pipeline: it answers
// MatchRequests with a language model.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrJamesThe3rd/grouper/internal/broker"
	"github.com/MrJamesThe3rd/grouper/internal/classify"
)

type Classifier struct {
	model Model
}

func New(model Model) *Classifier {
	return &Classifier{model: model}
}

// Classify asks the model for label -> category pairs. Pairs naming a label
// that was not requested or a category outside the known set are dropped.
func (c *Classifier) Classify(ctx context.Context, req classify.MatchRequest) (map[string]string, error) {
	if len(req.Labels) == 0 {
		return map[string]string{}, nil
	}

	if len(req.KnownCategoryLabels) == 0 {
		return nil, fmt.Errorf("no categories to choose from")
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = classify.BuildPrompt(req.Labels, req.KnownCategoryLabels)
	}

	raw, err := c.model.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var answer map[string]string
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &answer); err != nil {
		return nil, fmt.Errorf("decoding model answer: %w", err)
	}

	return restrict(answer, req.Labels, req.KnownCategoryLabels), nil
}

func restrict(answer map[string]string, labels, categories []string) map[string]string {
	wantLabel := make(map[string]bool, len(labels))
	for _, l := range labels {
		wantLabel[strings.TrimSpace(l)] = true
	}

	knownCategory := make(map[string]bool, len(categories))
	for _, c := range categories {
		knownCategory[strings.TrimSpace(c)] = true
	}

	out := make(map[string]string, len(answer))

	for label, cat := range answer {
		label = strings.TrimSpace(label)
		cat = strings.TrimSpace(cat)

		if wantLabel[label] && knownCategory[cat] {
			out[label] = cat
		}
	}

	return out
}

// cleanModelJSON strips Markdown fences and anything outside the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}

	return s
}

// Worker consumes MatchRequests and publishes MatchResults.
type Worker struct {
	classifier  *Classifier
	results     broker.Sender
	maxAttempts int64
	logger      *slog.Logger
}

// NewWorker returns a worker that lets a failing request be redelivered
// until it has been tried maxAttempts times, then answers with a failure.
func NewWorker(c *Classifier, results broker.Sender, maxAttempts int64, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}

	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	return &Worker{classifier: c, results: results, maxAttempts: maxAttempts, logger: logger}
}

// Handle is a broker.Handler for the request queue.
func (w *Worker) Handle(ctx context.Context, msg broker.Message) error {
	var req classify.MatchRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		w.logger.Error("discarding undecodable match request", "message_id", msg.ID, "error", err)
		return nil
	}

	if err := req.Validate(); err != nil {
		w.logger.Error("discarding invalid match request", "message_id", msg.ID, "error", err)
		return nil
	}

	logger := w.logger.With("correlation_id", req.CorrelationID, "user_id", req.UserID)

	var result classify.MatchResult

	matches, err := w.classifier.Classify(ctx, req)
	switch {
	case err == nil:
		result = classify.Succeeded(req, matches)
		logger.Info("classified labels", "requested", len(req.Labels), "matched", len(matches))
	case msg.DequeueCount < w.maxAttempts:
		logger.Warn("classification attempt failed", "attempt", msg.DequeueCount, "error", err)
		return err
	default:
		result = classify.Failed(req, err.Error())
		logger.Error("classification failed", "error", err)
	}

	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling match result: %w", err)
	}

	return w.results.Send(ctx, body)
}
