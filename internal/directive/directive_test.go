package directive

import (
	"strings"
	"testing"
)

func TestParseTaskCreate(t *testing.T) {
	t.Parallel()

	reply := "Done! I set up a reminder for Friday.\n\n" +
		`[ACTION]{"intent":"task.create","entities":{"title":"Finish the mix","due_date":"Friday"},"deep_link":"https://app.nickloop.com/dashboard/tasks"}[/ACTION]`

	d, ok := Parse(reply)
	if !ok {
		t.Fatal("expected a directive")
	}
	if d.Intent != "task.create" {
		t.Fatalf("intent = %q", d.Intent)
	}
	if d.Entities["title"] != "Finish the mix" {
		t.Fatalf("entities = %v", d.Entities)
	}
	if d.DeepLink != "https://app.nickloop.com/dashboard/tasks" {
		t.Fatalf("deep link = %q", d.DeepLink)
	}
}

func TestParseRepairsSloppyJSON(t *testing.T) {
	t.Parallel()

	// Trailing comma and single quotes, the way models sometimes emit it.
	reply := `Sure. [ACTION]{'intent': 'moodboard.add', 'deep_link': 'https://x.test/m',}[/ACTION]`
	d, ok := Parse(reply)
	if !ok {
		t.Fatal("expected repaired directive")
	}
	if d.Intent != "moodboard.add" {
		t.Fatalf("intent = %q", d.Intent)
	}
}

func TestParseSwallowsGarbage(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"no block here",
		"[ACTION][/ACTION]",
		"[ACTION]not json at all ::: }{[/ACTION]",
		"[ACTION]{}[/ACTION]",
	} {
		if d, ok := Parse(text); ok {
			t.Fatalf("text %q produced directive %+v", text, d)
		}
	}
}

func TestStripRemovesBlocks(t *testing.T) {
	t.Parallel()

	text := "Hey!\n\n[ACTION]{\"intent\":\"chat.generic\"}[/ACTION]"
	got := Strip(text)
	if got != "Hey!" {
		t.Fatalf("got %q", got)
	}
	if strings.Contains(got, "[ACTION]") {
		t.Fatal("block survived stripping")
	}
}

func TestStripSpansNewlines(t *testing.T) {
	t.Parallel()

	text := "Reply.\n[ACTION]{\n  \"intent\": \"task.create\"\n}\n[/ACTION]"
	if got := Strip(text); got != "Reply." {
		t.Fatalf("got %q", got)
	}
}

func TestMergePrefersToolCall(t *testing.T) {
	t.Parallel()

	tool := Directive{Intent: "task.create", Entities: map[string]any{"title": "a"}}
	parsed := Directive{Intent: "chat.generic", DeepLink: "https://x.test/d"}

	merged := Merge(tool, parsed)
	if merged.Intent != "task.create" {
		t.Fatalf("intent = %q", merged.Intent)
	}
	if merged.DeepLink != "https://x.test/d" {
		t.Fatalf("deep link = %q", merged.DeepLink)
	}
}

func TestAppendRoundTrips(t *testing.T) {
	t.Parallel()

	d := Directive{Intent: "network.suggest", DeepLink: "https://x.test/n"}
	text := Append("Try these venues.", d)

	got, ok := Parse(text)
	if !ok {
		t.Fatal("appended block did not parse")
	}
	if got.Intent != d.Intent || got.DeepLink != d.DeepLink {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if Strip(text) != "Try these venues." {
		t.Fatalf("body mangled: %q", Strip(text))
	}
}
