package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// fetchSequencer tracks the newest dashboard fetch per user and screen.
// Clients number their fetches; a response for a fetch that has since been
// overtaken by a newer one is refused so it cannot overwrite fresher data.
type fetchSequencer struct {
	mu     sync.Mutex
	latest map[string]int64
}

func newFetchSequencer() *fetchSequencer {
	return &fetchSequencer{latest: make(map[string]int64)}
}

func sequenceKey(userID int64, screen string) string {
	return fmt.Sprintf("%d:%s", userID, screen)
}

// begin records seq as the newest fetch for key. It returns false when a
// newer fetch was already seen. A zero seq means the client does not
// sequence its fetches and is always admitted.
func (q *fetchSequencer) begin(key string, seq int64) bool {
	if seq <= 0 {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if seq < q.latest[key] {
		return false
	}
	q.latest[key] = seq
	return true
}

// current reports whether seq is still the newest fetch for key.
func (q *fetchSequencer) current(key string, seq int64) bool {
	if seq <= 0 {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return seq >= q.latest[key]
}

func parseSeq(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("seq"))
	if raw == "" {
		return 0, nil
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("seq must be a non-negative integer")
	}
	return seq, nil
}

func respondStale(w http.ResponseWriter, seq int64) {
	respondJSON(w, http.StatusConflict, map[string]any{"stale": true, "seq": seq})
}
