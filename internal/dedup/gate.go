// Package dedup decides whether inbound media needs a fresh visual analysis.
package dedup

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/conversation"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/mediaproxy"
)

// analysisMarkers is vision-output vocabulary. A prior assistant turn
// containing any one of these counts as evidence it described an image.
// Used only for histories that predate hash tracking.
var analysisMarkers = []string{
	"studio", "venue", "stage", "lighting", "instrument", "guitar",
	"drum", "microphone", "mixer", "crowd", "audience", "performance",
	"rehearsal", "acoustic", "backdrop", "soundcheck",
}

// AnalyzedMediaStore persists which media a conversation has already had
// analyzed, keyed by content hash of the resolved media URL.
type AnalyzedMediaStore interface {
	ListAnalyzedMedia(ctx context.Context, userID string) ([]string, error)
	MarkMediaAnalyzed(ctx context.Context, userID string, hashes []string) error
}

// Decision is the gate's verdict for one turn's candidate images.
type Decision struct {
	Analyze bool
	// NewHashes are the content hashes to mark analyzed once analysis runs.
	NewHashes []string
}

// Gate suppresses redundant visual analysis within one conversation.
// Membership in the persisted hash set is authoritative; keyword evidence in
// prior assistant turns is a fallback for conversations without markers.
type Gate struct {
	store  AnalyzedMediaStore
	logger *slog.Logger
}

// NewGate creates the dedup gate. store may be nil; the gate then relies on
// keyword evidence alone.
func NewGate(log *slog.Logger, store AnalyzedMediaStore) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		store:  store,
		logger: log.With(slog.String("service", "dedup_gate")),
	}
}

// ShouldAnalyze decides whether the candidate image URLs need analysis. The
// decision is deterministic for unchanged history and candidates.
func (g *Gate) ShouldAnalyze(ctx context.Context, userID string, imageURLs []string, history []conversation.Turn) Decision {
	if len(imageURLs) == 0 {
		return Decision{Analyze: false}
	}

	hashes := make([]string, 0, len(imageURLs))
	for _, u := range imageURLs {
		hashes = append(hashes, mediaproxy.CacheKey(u))
	}

	if g.store != nil {
		known, err := g.store.ListAnalyzedMedia(ctx, userID)
		if err != nil {
			g.logger.Warn("analyzed media lookup failed",
				slog.String("user_id", userID), slog.Any("error", err))
		} else if len(known) > 0 {
			knownSet := make(map[string]bool, len(known))
			for _, h := range known {
				knownSet[h] = true
			}
			fresh := make([]string, 0, len(hashes))
			for _, h := range hashes {
				if !knownSet[h] {
					fresh = append(fresh, h)
				}
			}
			if len(fresh) == 0 {
				return Decision{Analyze: false}
			}
			return Decision{Analyze: true, NewHashes: fresh}
		}
	}

	if hasAnalysisEvidence(history) {
		return Decision{Analyze: false}
	}
	return Decision{Analyze: true, NewHashes: hashes}
}

// MarkAnalyzed records hashes after a completed analysis. Best-effort; a
// failed write only means a future turn may re-analyze.
func (g *Gate) MarkAnalyzed(ctx context.Context, userID string, hashes []string) {
	if g.store == nil || len(hashes) == 0 {
		return
	}
	if err := g.store.MarkMediaAnalyzed(ctx, userID, hashes); err != nil {
		g.logger.Warn("mark media analyzed failed",
			slog.String("user_id", userID), slog.Any("error", err))
	}
}

// hasAnalysisEvidence scans prior assistant turns for vision vocabulary.
func hasAnalysisEvidence(history []conversation.Turn) bool {
	for _, turn := range history {
		if !turn.IsAssistant() {
			continue
		}
		text := strings.ToLower(turn.AssistantText)
		for _, marker := range analysisMarkers {
			if strings.Contains(text, marker) {
				return true
			}
		}
	}
	return false
}
