package ui

import (
	"context"
	"strings"
	"testing"
)

func render(t *testing.T, rows []Row) string {
	t.Helper()
	var sb strings.Builder
	if err := QueueTable(rows).Render(context.Background(), &sb); err != nil {
		t.Fatal(err)
	}
	return sb.String()
}

func TestQueueTable_Empty(t *testing.T) {
	out := render(t, nil)
	if !strings.Contains(out, "No tasks yet") {
		t.Fatalf("out=%q", out)
	}
}

func TestQueueTable_EscapesUserContent(t *testing.T) {
	out := render(t, []Row{{
		ID:       "task-1",
		Status:   "downloading",
		Filename: `<script>alert(1)</script>.mp4`,
	}})
	if strings.Contains(out, "<script>alert") {
		t.Fatalf("filename not escaped: %q", out)
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Fatalf("expected escaped filename: %q", out)
	}
}

func TestQueueTable_ShowsErrorDetail(t *testing.T) {
	out := render(t, []Row{{
		ID:     "task-2",
		Status: "error",
		Detail: "download failed: boom",
	}})
	if !strings.Contains(out, `class="status-error"`) {
		t.Fatalf("missing status class: %q", out)
	}
	if !strings.Contains(out, "download failed: boom") {
		t.Fatalf("missing detail: %q", out)
	}
}

func TestDashboard_WrapsTable(t *testing.T) {
	var sb strings.Builder
	if err := Dashboard([]Row{{ID: "abc", Status: "pending"}}).Render(context.Background(), &sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	if !strings.Contains(out, "<!DOCTYPE html>") || !strings.Contains(out, "</html>") {
		t.Fatalf("not a full page: %q", out)
	}
	if !strings.Contains(out, `hx-get="/dashboard/rows"`) {
		t.Fatalf("missing polling attribute: %q", out)
	}
}

func TestShortID(t *testing.T) {
	if got := ShortID("abcd"); got != "abcd" {
		t.Errorf("short input: %q", got)
	}
	if got := ShortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("long input: %q", got)
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	if got := TruncateWithEllipsis("short", 10); got != "short" {
		t.Errorf("unchanged: %q", got)
	}
	if got := TruncateWithEllipsis("abcdefgh", 4); got != "abcd…" {
		t.Errorf("truncated: %q", got)
	}
	if got := TruncateWithEllipsis("x", 0); got != "" {
		t.Errorf("zero budget: %q", got)
	}
}
