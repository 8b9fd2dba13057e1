package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hebbianmem/hebbianmem/internal/activation"
)

// BeforeAgentStartResult carries the only data a host callback returns.
type BeforeAgentStartResult struct {
	PrependContext string
}

// BeforeAgentStart runs retrieval against prompt and returns context to
// prepend to the agent's turn. This is the only callback that returns data.
func (s *Service) BeforeAgentStart(ctx context.Context, prompt string) (*BeforeAgentStartResult, error) {
	result, err := s.Retrieve(ctx, prompt, nil)
	if err != nil {
		return &BeforeAgentStartResult{}, nil
	}
	var prepend string
	for _, hit := range result.Hits {
		if prepend != "" {
			prepend += "\n"
		}
		prepend += hit.Memory.Title + ": " + hit.Memory.Detail
	}
	return &BeforeAgentStartResult{PrependContext: prepend}, nil
}

// AfterToolCall is a fire-and-forget hook invoked after each tool call. It
// refreshes the memories the most recent retrieval surfaced with the
// smaller tool-triggered bump, keeping in-use patterns warm between turns.
func (s *Service) AfterToolCall(ctx context.Context, toolName string) {
	s.mu.Lock()
	ids := append([]string(nil), s.lastSelected...)
	s.mu.Unlock()
	if len(ids) == 0 {
		return
	}
	n, err := s.activation.Bump(ctx, ids, activation.ToolRefreshBump)
	if err != nil {
		s.logger.Warn("tool-triggered refresh failed", zap.String("tool", toolName), zap.Error(err))
		return
	}
	s.logger.Debug("after tool call", zap.String("tool", toolName), zap.Int64("refreshed", n))
}

// BeforeCompaction spawns a detached goroutine bounded by a 120s deadline
// that logs the session-mining trigger point for sessionFile. It does not
// mine the session itself and writes nothing to the store.
func (s *Service) BeforeCompaction(sessionFile string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()
		s.logger.Info("before compaction session-mining trigger fired", zap.String("session_file", sessionFile))
		_ = ctx // session mining is an external collaborator; this records the trigger point only.
	}()
}

// SessionEnd is a fire-and-forget hook logging session completion.
func (s *Service) SessionEnd(sessionID string, messageCount int, durationMs int64) {
	s.logger.Info("session end",
		zap.String("session_id", sessionID),
		zap.Int("message_count", messageCount),
		zap.Int64("duration_ms", durationMs),
	)
}

// GatewayStart is a fire-and-forget hook logging process start.
func (s *Service) GatewayStart() {
	s.logger.Info("gateway start")
}

// GatewayStop is a fire-and-forget hook logging process stop.
func (s *Service) GatewayStop() {
	s.logger.Info("gateway stop")
}
