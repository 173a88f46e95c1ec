package vocab

import "testing"

func TestNormalize_BrandToGeneric(t *testing.T) {
	cases := map[string]string{
		"Tylenol":  "acetaminophen",
		"advil":    "ibuprofen",
		"Lipitor,": "atorvastatin",
		"xanax":    "alprazolam",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize_MisheardForms(t *testing.T) {
	if got := Normalize("lysinopril"); got != "lisinopril" {
		t.Errorf("expected lisinopril, got %q", got)
	}
	if got := Normalize("asprin"); got != "aspirin" {
		t.Errorf("expected aspirin, got %q", got)
	}
}

func TestNormalize_PassThrough(t *testing.T) {
	if got := Normalize("radiates"); got != "radiates" {
		t.Errorf("expected pass-through, got %q", got)
	}
}

func TestExpand(t *testing.T) {
	if got := Expand("SOB"); got != "shortness of breath" {
		t.Errorf("expected expansion, got %q", got)
	}
	if got := Expand("pain"); got != "pain" {
		t.Errorf("expected pass-through, got %q", got)
	}
}

func TestIsCritical(t *testing.T) {
	for _, term := range []string{"chest pain", "warfarin", "stroke"} {
		if !IsCritical(term) {
			t.Errorf("expected %q critical", term)
		}
	}
	if IsCritical("fatigue") {
		t.Error("fatigue should not be critical")
	}
}
