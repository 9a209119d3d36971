package templates

import "testing"

func TestRenderSubstitutesAllVariables(t *testing.T) {
	body := "Hi {{name}} ({{email}}, {{phone}}), {{seller}} saw you are {{status}}."
	got := Render(body, Vars{
		Name:   "Maria",
		Status: "contacted",
		Phone:  "+31612345678",
		Email:  "maria@example.com",
		Seller: "Ana",
	})

	want := "Hi Maria (maria@example.com, +31612345678), Ana saw you are contacted."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderLeavesUnknownPlaceholdersUntouched(t *testing.T) {
	got := Render("Hi {{name}}, ref {{orderId}}", Vars{Name: "Jan"})
	if got != "Hi Jan, ref {{orderId}}" {
		t.Fatalf("unknown placeholders must stay literal, got %q", got)
	}
}

func TestRenderMissingVariablesRenderEmpty(t *testing.T) {
	got := Render("Seller: {{seller}}", Vars{})
	if got != "Seller: " {
		t.Fatalf("empty variables substitute empty strings, got %q", got)
	}
}
