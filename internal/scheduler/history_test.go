package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoadHistory(t *testing.T) {
	historyPath := filepath.Join(t.TempDir(), "nested", "poll_history.json")

	history := map[string]*PollHistory{
		"2:5020/1": {
			Link:         "2:5020/1",
			LastRun:      time.Now(),
			LastStatus:   "success",
			LastDuration: 1234,
			LastSpooled:  2,
			RunCount:     5,
			SuccessCount: 4,
			FailureCount: 1,
		},
		"2:5020/2": {
			Link:         "2:5020/2",
			LastRun:      time.Now().Add(-1 * time.Hour),
			LastStatus:   "timeout",
			LastDuration: 5678,
			RunCount:     10,
			SuccessCount: 8,
			FailureCount: 2,
		},
	}

	if err := SaveHistory(historyPath, history); err != nil {
		t.Fatalf("Failed to save history: %v", err)
	}
	if _, err := os.Stat(historyPath); os.IsNotExist(err) {
		t.Fatal("History file was not created")
	}

	loadedHistory, err := LoadHistory(historyPath)
	if err != nil {
		t.Fatalf("Failed to load history: %v", err)
	}
	if len(loadedHistory) != len(history) {
		t.Errorf("Expected %d history entries, got %d", len(history), len(loadedHistory))
	}
	for link, expected := range history {
		loaded, exists := loadedHistory[link]
		if !exists {
			t.Errorf("Link %s not found in loaded history", link)
			continue
		}
		if loaded.LastStatus != expected.LastStatus {
			t.Errorf("LastStatus mismatch for %s: expected %s, got %s", link, expected.LastStatus, loaded.LastStatus)
		}
		if loaded.RunCount != expected.RunCount || loaded.LastSpooled != expected.LastSpooled {
			t.Errorf("counters mismatch for %s: got %+v", link, loaded)
		}
	}
}

func TestLoadHistory_FileNotExists(t *testing.T) {
	history, err := LoadHistory(filepath.Join(t.TempDir(), "nonexistent.json"))
	if err != nil {
		t.Fatalf("Expected no error for missing file, got: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected empty history, got %d entries", len(history))
	}
}

func TestLoadHistory_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poll_history.json")
	os.WriteFile(path, []byte("{"), 0644)
	if _, err := LoadHistory(path); err == nil {
		t.Error("Expected error for corrupt history")
	}
}

func TestUpdateHistory(t *testing.T) {
	s := &Scheduler{history: make(map[string]*PollHistory)}
	start := time.Now()

	results := []struct {
		result     PollResult
		wantStatus string
	}{
		{PollResult{Link: "2:5020/2", StartTime: start, EndTime: start.Add(time.Second), Success: true, Spooled: 3}, "success"},
		{PollResult{Link: "2:5020/2", StartTime: start, EndTime: start.Add(time.Second), ExitCode: 1}, "failure"},
		{PollResult{Link: "2:5020/2", StartTime: start, EndTime: start.Add(time.Second), TimedOut: true, ExitCode: -1}, "timeout"},
	}
	for i, r := range results {
		s.updateHistory(r.result)
		if got := s.history["2:5020/2"].LastStatus; got != r.wantStatus {
			t.Errorf("result %d: got %s, want %s", i, got, r.wantStatus)
		}
	}

	h := s.history["2:5020/2"]
	if h.RunCount != 3 || h.SuccessCount != 1 || h.FailureCount != 2 {
		t.Errorf("counters: got runs=%d success=%d failures=%d", h.RunCount, h.SuccessCount, h.FailureCount)
	}
	if h.LastDuration != 1000 {
		t.Errorf("Expected LastDuration 1000, got %d", h.LastDuration)
	}
	if h.LastSpooled != 0 {
		t.Errorf("Expected LastSpooled 0, got %d", h.LastSpooled)
	}
}
