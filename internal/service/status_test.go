package service

import "testing"

func TestStatusRoundTrip(t *testing.T) {
	for _, st := range Statuses {
		got, err := ParseStatus(st.Uzbek())
		if err != nil || got != st {
			t.Errorf("ParseStatus(%q) = %v, %v; want %v", st.Uzbek(), got, err, st)
		}
		if got, _ := ParseStatus(string(st)); got != st {
			t.Errorf("ParseStatus(%q) = %v", st, got)
		}
	}
}

func TestStatusUzbekValues(t *testing.T) {
	want := map[Status]string{
		StatusApproved:   "tasdiqlangan",
		StatusRejected:   "tasdiqlanmagan",
		StatusChecked:    "tekshirilgan",
		StatusInProgress: "jarayonda",
	}
	for st, uz := range want {
		if st.Uzbek() != uz {
			t.Errorf("%s.Uzbek() = %q, want %q", st, st.Uzbek(), uz)
		}
	}
}

func TestLocale(t *testing.T) {
	if LocaleOrDefault("uz-Latn") != LocaleUzLatn {
		t.Error("uz-Latn not accepted")
	}
	if LocaleOrDefault("en") != LocaleRu {
		t.Error("unknown locale did not fall back to ru")
	}
}

func TestToCyrillic(t *testing.T) {
	tests := map[string]string{
		"Chilonzor":    "Чилонзор",
		"G'uzor":       "Ғузор",
		"Shayxontohur": "Шайхонтоҳур",
		"Yangiyo'l":    "Йангийўл",
		"":             "",
	}
	for in, want := range tests {
		if got := ToCyrillic(in); got != want {
			t.Errorf("ToCyrillic(%q) = %q, want %q", in, got, want)
		}
	}
}
