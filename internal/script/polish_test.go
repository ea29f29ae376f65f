package script_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"loreforge/internal/fact"
	"loreforge/internal/script"
)

type fakeCompleter struct {
	reply   script.Script
	err     error
	lastReq string
}

func (f *fakeCompleter) Decode(_ context.Context, _ string, user string, target any) (string, error) {
	f.lastReq = user
	if f.err != nil {
		return "", f.err
	}
	data, _ := json.Marshal(f.reply)
	return string(data), json.Unmarshal(data, target)
}

var goblinDraft = script.Script{
	Hook: "Meet the Goblin.",
	Body: "The Goblin has AC 15 and HP 7. It hides with Nimble Escape.",
	CTA:  "Try it at your table.",
}

func draftWriter() script.Writer {
	return script.WriterFunc(func(context.Context, script.Input) (script.Script, error) {
		return goblinDraft, nil
	})
}

func goblinInput() script.Input {
	return script.Input{
		Day: "2024-01-01", Category: "monster_tactic", Angle: "how_it_wins",
		Fact: fact.Fact{Kind: "creature", PK: "1", Name: "Goblin", Fields: map[string]any{"name": "Goblin"}},
	}
}

func TestLockedTokens(t *testing.T) {
	got := script.LockedTokens(goblinDraft, "Goblin")
	want := []string{"15", "7", "AC", "Escape", "Goblin", "HP", "Nimble"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("LockedTokens = %v, want %v", got, want)
	}
}

func TestPolisherAcceptsGroundedRewrite(t *testing.T) {
	client := &fakeCompleter{reply: script.Script{
		Hook: "Say hello to the Goblin.",
		Body: "The Goblin has AC 15 and HP 7. It slips away with Nimble Escape.",
		CTA:  "Try it at your table tonight.",
	}}
	p := script.NewPolisher(draftWriter(), script.PolishOptions{Client: client}, nil)
	out, err := p.Write(context.Background(), goblinInput())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if out != client.reply {
		t.Fatalf("expected polished script, got %+v", out)
	}
	if !strings.Contains(client.lastReq, `"locked_tokens":["15","7","AC","Escape","Goblin","HP","Nimble"]`) {
		t.Fatalf("request should carry locked tokens: %s", client.lastReq)
	}
}

func TestPolisherFallsBackToDraft(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeCompleter
	}{
		{"call error", &fakeCompleter{err: errors.New("boom")}},
		{"dropped token", &fakeCompleter{reply: script.Script{
			Hook: "Meet the Goblin.", Body: "The Goblin has AC 15 and HP 7. It hides well.", CTA: "Try it at your table.",
		}}},
		{"blank field", &fakeCompleter{reply: script.Script{Hook: "Meet the Goblin.", Body: goblinDraft.Body}}},
		{"boilerplate", &fakeCompleter{reply: script.Script{
			Hook: "In this video, meet the Goblin.", Body: goblinDraft.Body, CTA: goblinDraft.CTA,
		}}},
		{"ungrounded name", &fakeCompleter{reply: script.Script{
			Hook: "Meet the Goblin.", Body: goblinDraft.Body + " Ask Strahd about it.", CTA: goblinDraft.CTA,
		}}},
		{"ungrounded number", &fakeCompleter{reply: script.Script{
			Hook: "Meet the Goblin.", Body: "The Goblin has AC 15 and HP 70. It hides with Nimble Escape.", CTA: goblinDraft.CTA,
		}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := script.NewPolisher(draftWriter(), script.PolishOptions{Client: tc.client}, nil)
			out, err := p.Write(context.Background(), goblinInput())
			if err != nil {
				t.Fatalf("polish failures must not surface: %v", err)
			}
			if out != goblinDraft {
				t.Fatalf("expected draft, got %+v", out)
			}
		})
	}
}

func TestPolisherGroundingWidensVocabulary(t *testing.T) {
	reply := script.Script{
		Hook: "Meet the Goblin.",
		Body: goblinDraft.Body + " Goblins often serve Hobgoblin warlords.",
		CTA:  goblinDraft.CTA,
	}
	without := script.NewPolisher(draftWriter(), script.PolishOptions{Client: &fakeCompleter{reply: reply}}, nil)
	out, _ := without.Write(context.Background(), goblinInput())
	if out != goblinDraft {
		t.Fatalf("ungrounded Hobgoblin should be rejected, got %+v", out)
	}

	with := script.NewPolisher(draftWriter(), script.PolishOptions{
		Client:    &fakeCompleter{reply: reply},
		Grounding: "Goblins are often found serving Hobgoblin or Bugbear warlords.",
	}, nil)
	out, _ = with.Write(context.Background(), goblinInput())
	if out != reply {
		t.Fatalf("grounded rewrite should pass, got %+v", out)
	}
}

func TestCheckPolishDrift(t *testing.T) {
	polished := script.Script{Hook: "Goblin.", Body: "Completely unrelated words entirely.", CTA: "Okay then."}
	err := script.CheckPolish(goblinDraft, polished, nil, goblinDraft.Narration(), 0.3)
	if err == nil || !strings.Contains(err.Error(), "drifted") {
		t.Fatalf("expected drift rejection, got %v", err)
	}
}
