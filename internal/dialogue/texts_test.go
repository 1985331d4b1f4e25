package dialogue

import (
	"testing"

	"github.com/m3rciful/couponbot/internal/validate"
)

func TestRejectionSubstitutesWord(t *testing.T) {
	texts := DefaultTexts()
	got := texts.rejection(&validate.RejectionError{Reason: validate.ReasonNoVowel, Word: "Ttt"})
	want := "Слово 'Ttt' выглядит некорректно. Пожалуйста, проверьте правильность написания." + texts.RetrySuffix
	if got != want {
		t.Fatalf("rejection = %q, want %q", got, want)
	}
}

func TestRejectionTemplateWithoutVerb(t *testing.T) {
	texts := DefaultTexts()
	texts.Rejections[validate.ReasonAllVowel] = "Проверьте написание ФИО."
	got := texts.rejection(&validate.RejectionError{Reason: validate.ReasonAllVowel, Word: "Аяя"})
	if want := "Проверьте написание ФИО." + texts.RetrySuffix; got != want {
		t.Fatalf("rejection = %q, want %q", got, want)
	}
}

func TestRejectionUnknownReason(t *testing.T) {
	texts := DefaultTexts()
	got := texts.rejection(&validate.RejectionError{Reason: "mystery", Word: "x"})
	if got != "mystery"+texts.RetrySuffix {
		t.Fatalf("rejection = %q", got)
	}
}
