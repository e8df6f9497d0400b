package textutil

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "［Ｌｉｌｉｔｈ－Ｒａｗｓ］ Ｆｒｉｅｒｅｎ － ０５", want: "[Lilith-Raws] Frieren - 05"},
		{in: "  葬送的芙莉莲   第二季 ", want: "葬送的芙莉莲 第二季"},
		{in: "ｶﾀｶﾅ", want: "カタカナ"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFoldKeyIgnoresCaseAndWidth(t *testing.T) {
	if FoldKey("ＦＲＩＥＲＥＮ") != FoldKey("frieren") {
		t.Fatalf("expected folded keys to match: %q vs %q", FoldKey("ＦＲＩＥＲＥＮ"), FoldKey("frieren"))
	}
}

func TestTitleCase(t *testing.T) {
	if got := TitleCase("sousou no frieren"); got != "Sousou No Frieren" {
		t.Fatalf("unexpected title case %q", got)
	}
	if got := TitleCase("Sousou no Frieren"); got != "Sousou no Frieren" {
		t.Fatalf("expected mixed-case input untouched, got %q", got)
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("Sousou no Frieren", "sousou no frieren"); math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected identical names to score 1, got %v", got)
	}
	if got := Similarity("葬送的芙莉莲", "葬送的芙莉蓮"); got < 0.5 {
		t.Fatalf("expected close CJK names to score high, got %v", got)
	}
	if got := Similarity("Frieren", "Bocchi the Rock"); got != 0 {
		t.Fatalf("expected unrelated names to score 0, got %v", got)
	}
	if got := Similarity("", "Frieren"); got != 0 {
		t.Fatalf("expected empty name to score 0, got %v", got)
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Re:Zero", want: "Re：Zero"},
		{in: "Fate/stay night", want: "Fate stay night"},
		{in: "  What?  ", want: "What？"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
