package scheduler

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
)

// LoadHistory loads poll history from a JSON file. A missing file yields an
// empty history.
func LoadHistory(path string) (map[string]*PollHistory, error) {
	history := make(map[string]*PollHistory)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("INFO: Poll history file not found at %s, starting with empty history", path)
		return history, nil
	}
	if err != nil {
		return nil, err
	}

	var historyList []PollHistory
	if err := json.Unmarshal(data, &historyList); err != nil {
		return nil, err
	}
	for i := range historyList {
		history[historyList[i].Link] = &historyList[i]
	}

	log.Printf("INFO: Loaded poll history for %d link(s) from %s", len(history), path)
	return history, nil
}

// SaveHistory writes poll history to a JSON file, ordered by link.
func SaveHistory(path string, history map[string]*PollHistory) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	historyList := make([]PollHistory, 0, len(history))
	for _, h := range history {
		historyList = append(historyList, *h)
	}
	sort.Slice(historyList, func(i, j int) bool { return historyList[i].Link < historyList[j].Link })

	data, err := json.MarshalIndent(historyList, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	log.Printf("DEBUG: Saved poll history for %d link(s) to %s", len(history), path)
	return nil
}

// updateHistory folds a completed poll into the history.
func (s *Scheduler) updateHistory(result PollResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.history[result.Link]
	if !exists {
		h = &PollHistory{Link: result.Link}
		s.history[result.Link] = h
	}

	h.LastRun = result.EndTime
	h.LastDuration = result.EndTime.Sub(result.StartTime).Milliseconds()
	h.LastSpooled = result.Spooled
	h.RunCount++

	switch {
	case result.Success:
		h.LastStatus = "success"
		h.SuccessCount++
	case result.TimedOut:
		h.LastStatus = "timeout"
		h.FailureCount++
	default:
		h.LastStatus = "failure"
		h.FailureCount++
	}

	log.Printf("DEBUG: Updated poll history for %s: status=%s, duration=%dms, runs=%d, success=%d, failures=%d",
		result.Link, h.LastStatus, h.LastDuration, h.RunCount, h.SuccessCount, h.FailureCount)
}
