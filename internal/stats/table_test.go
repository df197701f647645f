package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	cols := []column{left("Player", 0), right("WPM"), right("Mistakes")}
	rows := [][]string{
		{"a", "97", "12"},
		{"<long>", "8", "3"},
	}

	lines := formatTable(cols, rows)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Player WPM Mistakes" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "a       97       12" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "<long>   8        3" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestFormatTableTruncatesAndMeasuresWideRunes(t *testing.T) {
	cols := []column{left("Name", 6), right("N")}
	lines := formatTable(cols, [][]string{
		{"abcdefghij", "1"},
		{"日本", "2"},
	})
	if lines[1] != "abc... 1" {
		t.Fatalf("expected truncated name, got %q", lines[1])
	}
	if lines[2] != "日本   2" {
		t.Fatalf("expected wide runes padded by cell width, got %q", lines[2])
	}
}
