package intents

import (
	"context"
	"testing"
)

func TestIntentForFunction(t *testing.T) {
	t.Parallel()

	cases := []struct {
		fn   string
		want string
	}{
		{fn: "save_to_moodboard", want: IntentMoodboardAdd},
		{fn: "search_music_contacts", want: IntentNetworkSuggest},
		{fn: "create_reminder_task", want: IntentTaskCreate},
		{fn: "get_artist_analytics", want: IntentStrategyRecommend},
		{fn: "quick_music_tip", want: IntentChatGeneric},
		{fn: "identify_user_need", want: IntentNone},
		{fn: "some_future_function", want: IntentChatGeneric},
		{fn: "", want: IntentChatGeneric},
	}
	for _, tc := range cases {
		if got := IntentForFunction(tc.fn); got != tc.want {
			t.Fatalf("fn=%q want=%q got=%q", tc.fn, tc.want, got)
		}
	}
}

func TestStaticGuidanceDeepLinks(t *testing.T) {
	t.Parallel()

	g := NewStaticGuidance("https://app.nickloop.com/dashboard/")
	ctx := context.Background()

	got, err := g.ProcessIntent(ctx, IntentTaskCreate, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.DeepLink != "https://app.nickloop.com/dashboard/tasks" {
		t.Fatalf("deep link = %q", got.DeepLink)
	}

	none, err := g.ProcessIntent(ctx, IntentNone, nil)
	if err != nil {
		t.Fatal(err)
	}
	if none.DeepLink != "" {
		t.Fatalf("expected no deep link for none, got %q", none.DeepLink)
	}
}
