package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/typerace/internal/model"
)

func TestWPM(t *testing.T) {
	if got := WPM(250, time.Minute); got != 50 {
		t.Fatalf("expected 50 WPM, got %d", got)
	}
	if got := WPM(100, 0); got != 0 {
		t.Fatalf("expected 0 WPM for zero elapsed, got %d", got)
	}
	if got := WPM(100, -time.Second); got != 0 {
		t.Fatalf("expected 0 WPM for negative elapsed, got %d", got)
	}
	if got := WPM(0, time.Minute); got != 0 {
		t.Fatalf("expected 0 WPM without correct chars, got %d", got)
	}
	// 12 chars in 30s = 2.4 words / 0.5 min = 4.8 -> 5
	if got := WPM(12, 30*time.Second); got != 5 {
		t.Fatalf("expected rounded 5 WPM, got %d", got)
	}
}

func TestAccuracy(t *testing.T) {
	if got := Accuracy(0, 0); got != 100 {
		t.Fatalf("expected 100 with nothing typed, got %d", got)
	}
	if got := Accuracy(2, 3); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
	if got := Accuracy(0, 4); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestProgressPercent(t *testing.T) {
	if got := ProgressPercent(1, 3); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
	if got := ProgressPercent(5, 0); got != 0 {
		t.Fatalf("expected 0 for empty passage, got %d", got)
	}
	if got := ProgressPercent(9, 3); got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
}

func TestStandingsOrder(t *testing.T) {
	roster := []model.RoomPlayer{
		{Identity: "a", Progress: 80},
		{Identity: "b", Progress: 42, Finished: true},
		{Identity: "c", Progress: 80, WPM: 90},
	}
	got := Standings(roster)
	order := []string{got[0].Identity, got[1].Identity, got[2].Identity}
	if strings.Join(order, ",") != "b,c,a" {
		t.Fatalf("unexpected order: %v", order)
	}
	if roster[0].Identity != "a" {
		t.Fatalf("expected input roster untouched")
	}
}

func TestRenderStandingsShowsReportedNumbers(t *testing.T) {
	room := model.Room{
		HostIdentity: "h",
		Roster: []model.RoomPlayer{
			{Identity: "h", DisplayName: "host", Progress: 42, WPM: 61, Finished: true},
			{Identity: "p", DisplayName: "guest", Progress: 80, WPM: 70, Mistakes: 3},
		},
	}
	var buf bytes.Buffer
	if err := RenderStandings(&buf, room); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"host", "42%", "guest", "80%", "done, host"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	err := RenderSummary(&buf, []model.SessionAggregate{
		{WPM: 40, Accuracy: 90, DurationMs: 30000},
		{WPM: 60, Accuracy: 100, DurationMs: 30000},
	})
	if err != nil {
		t.Fatalf("render summary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Sessions: 2", "Avg WPM: 50.00", "Best WPM: 60", "Avg Accuracy: 95.00%", "Time typed: 1m0s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
