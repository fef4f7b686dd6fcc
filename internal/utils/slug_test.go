package utils

import "testing"

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Consultation initiale":        "consultation-initiale",
		"Séance de suivi":              "seance-de-suivi",
		"  Atelier  stratégique ":      "atelier-strategique",
		"Commission acquisition/vente": "commission-acquisition-vente",
		"Q&A":                          "q-and-a",
		"L'été":                        "lete",
		"???":                          "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
