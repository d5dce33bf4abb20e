package orchestrator

import "github.com/nickloopdsp/MC-Instagram-sub000/internal/llm"

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// chatTools declares the functions the model may call. Their names resolve
// to intents in the intents package.
func chatTools() []llm.Tool {
	defs := []llm.FunctionDef{
		{
			Name:        "save_to_moodboard",
			Description: "Save a piece of content the user shared to their Nickloop moodboard.",
			Parameters: objectSchema(map[string]any{
				"url":   stringProp("URL of the content to save"),
				"title": stringProp("Short title for the moodboard entry"),
				"notes": stringProp("Why the user wants to keep it"),
			}, "url"),
		},
		{
			Name:        "search_music_contacts",
			Description: "Find venues, producers, or collaborators matching what the user needs.",
			Parameters: objectSchema(map[string]any{
				"query":    stringProp("What kind of contact the user is looking for"),
				"location": stringProp("City or region, if mentioned"),
				"genre":    stringProp("Musical genre, if mentioned"),
			}, "query"),
		},
		{
			Name:        "create_reminder_task",
			Description: "Create a task or reminder on the user's Nickloop dashboard.",
			Parameters: objectSchema(map[string]any{
				"title":    stringProp("Short task title"),
				"due_date": stringProp("Due date in natural language, if mentioned"),
				"details":  stringProp("Extra context for the task"),
			}, "title"),
		},
		{
			Name:        "get_artist_analytics",
			Description: "Point the user at their streaming and social analytics.",
			Parameters: objectSchema(map[string]any{
				"metric":   stringProp("Which metric the user asked about"),
				"platform": stringProp("Platform, e.g. spotify or instagram"),
			}),
		},
		{
			Name:        "quick_music_tip",
			Description: "Give a short actionable music-career tip inline, no dashboard needed.",
			Parameters: objectSchema(map[string]any{
				"topic": stringProp("Topic of the tip"),
			}),
		},
		{
			Name:        "identify_user_need",
			Description: "Record what the user is trying to achieve when it is still unclear.",
			Parameters: objectSchema(map[string]any{
				"need": stringProp("Best guess at the underlying need"),
			}),
		},
	}

	tools := make([]llm.Tool, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, llm.Tool{Type: "function", Function: d})
	}
	return tools
}
