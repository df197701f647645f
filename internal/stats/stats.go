// Package stats contains typing metric calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/verte-zerg/typerace/internal/model"
)

// charsPerWord is the conventional word length for WPM.
const charsPerWord = 5.0

// WPM returns round((correct/5) / minutes), or 0 when no time has elapsed.
func WPM(correct int, elapsed time.Duration) int {
	if elapsed <= 0 || correct <= 0 {
		return 0
	}
	minutes := elapsed.Minutes()
	return int(math.Round((float64(correct) / charsPerWord) / minutes))
}

// Accuracy returns round(100*correct/typed), or 100 when nothing was typed.
func Accuracy(correct, typed int) int {
	if typed <= 0 {
		return 100
	}
	acc := int(math.Round(float64(correct) / float64(typed) * 100))
	return clamp(acc, 0, 100)
}

// ProgressPercent returns floor(100*cursor/total) clamped to [0, 100].
func ProgressPercent(cursor, total int) int {
	if total <= 0 {
		return 0
	}
	return clamp(cursor*100/total, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Standings orders a roster for display: finished players first, then by
// progress, then by WPM. Roster order breaks ties.
func Standings(roster []model.RoomPlayer) []model.RoomPlayer {
	out := make([]model.RoomPlayer, len(roster))
	copy(out, roster)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Finished != b.Finished {
			return a.Finished
		}
		if a.Progress != b.Progress {
			return a.Progress > b.Progress
		}
		return a.WPM > b.WPM
	})
	return out
}

// RenderStandings prints the ranked roster of a room.
func RenderStandings(w io.Writer, room model.Room) error {
	if len(room.Roster) == 0 {
		_, err := fmt.Fprintln(w, "No players.")
		return err
	}
	cols := []column{right("#"), left("Player", 24), right("Progress"), right("WPM"), right("Mistakes"), left("", 0)}
	rows := make([][]string, 0, len(room.Roster))
	for i, p := range Standings(room.Roster) {
		mark := ""
		if p.Finished {
			mark = "done"
		}
		if p.Identity == room.HostIdentity {
			if mark != "" {
				mark += ", "
			}
			mark += "host"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			p.DisplayName,
			fmt.Sprintf("%d%%", p.Progress),
			fmt.Sprintf("%d", p.WPM),
			fmt.Sprintf("%d", p.Mistakes),
			mark,
		})
	}
	return writeTable(w, cols, rows)
}

// RenderRoomList prints public room summaries.
func RenderRoomList(w io.Writer, rooms []model.RoomSummary) error {
	if len(rooms) == 0 {
		_, err := fmt.Fprintln(w, "No open rooms.")
		return err
	}
	cols := []column{left("Code", 0), left("Name", 32), right("Players"), left("Locked", 0), left("Created", 0)}
	rows := make([][]string, 0, len(rooms))
	for _, r := range rooms {
		locked := ""
		if r.HasPassword {
			locked = "yes"
		}
		rows = append(rows, []string{
			r.JoinCode,
			r.Name,
			fmt.Sprintf("%d/%d", r.PlayerCount, r.Capacity),
			locked,
			r.CreatedAt.Local().Format("15:04:05"),
		})
	}
	return writeTable(w, cols, rows)
}

// RenderSummary prints a summary of stored practice sessions.
func RenderSummary(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	var totalWPM, totalAcc float64
	bestWPM := 0
	var totalDuration int64
	for _, s := range sessions {
		totalWPM += float64(s.WPM)
		totalAcc += float64(s.Accuracy)
		totalDuration += s.DurationMs
		if s.WPM > bestWPM {
			bestWPM = s.WPM
		}
	}
	count := float64(len(sessions))
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", len(sessions)),
		fmt.Sprintf("Avg WPM: %.2f", totalWPM/count),
		fmt.Sprintf("Best WPM: %d", bestWPM),
		fmt.Sprintf("Avg Accuracy: %.2f%%", totalAcc/count),
		fmt.Sprintf("Time typed: %s", (time.Duration(totalDuration) * time.Millisecond).Round(time.Second)),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderHistory prints one line per stored session, oldest first.
func RenderHistory(w io.Writer, sessions []model.SessionAggregate) error {
	cols := []column{left("Ended", 0), left("Difficulty", 0), right("WPM"), right("Accuracy"), right("Mistakes"), right("Time")}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.EndedAt.Local().Format("2006-01-02 15:04"),
			string(s.Difficulty),
			fmt.Sprintf("%d", s.WPM),
			fmt.Sprintf("%d%%", s.Accuracy),
			fmt.Sprintf("%d", s.Mistakes),
			(time.Duration(s.DurationMs) * time.Millisecond).Round(time.Second).String(),
		})
	}
	return writeTable(w, cols, rows)
}
