package dialogue

import (
	"fmt"
	"strings"

	"github.com/m3rciful/couponbot/internal/validate"
)

// Texts holds every message the dialogue can send. Greeting takes the sender's
// display name; the vowel rejections take the offending word.
type Texts struct {
	Greeting       string
	AlreadyClaimed string
	InProgress     string
	Caption        string
	Congratulation string
	RenderFailed   string
	RetrySuffix    string
	Rejections     map[validate.Reason]string
}

// DefaultTexts returns the Russian message set.
func DefaultTexts() Texts {
	return Texts{
		Greeting:       "Здравствуйте, %s!\n\nЧтобы получить купон, напишите свое ФИО:",
		AlreadyClaimed: "Вы уже получили свой купон.",
		InProgress:     "Ваш купон готовится...",
		Caption:        "Вы можете использовать этот купон на скидку для совершения умры, через компанию Хадж Центр: @hajjcenter✨",
		Congratulation: "🎉 Поздравляем! Вы стали участником конкурса от Динислама Батталова — главный приз бесплатная умра! 🕋✨",
		RenderFailed:   "Произошла ошибка при создании изображения. Пожалуйста, попробуйте еще раз.",
		RetrySuffix:    "\n\nПожалуйста, попробуйте еще раз.",
		Rejections: map[validate.Reason]string{
			validate.ReasonLength:    "ФИО должно содержать от 5 до 60 символов.",
			validate.ReasonCharset:   "ФИО может содержать только буквы, пробелы и дефисы.",
			validate.ReasonWordCount: "Пожалуйста, введите полное ФИО, состоящее из трех слов (Фамилия Имя Отчество).",
			validate.ReasonNoVowel:   "Слово '%s' выглядит некорректно. Пожалуйста, проверьте правильность написания.",
			validate.ReasonAllVowel:  "Слово '%s' выглядит некорректно. Пожалуйста, проверьте правильность написания.",
		},
	}
}

func (t Texts) greeting(name string) string {
	return fmt.Sprintf(t.Greeting, name)
}

// rejection renders the reason for rej followed by the retry prompt. The
// offending word is substituted only where the template has a %s verb.
func (t Texts) rejection(rej *validate.RejectionError) string {
	msg, ok := t.Rejections[rej.Reason]
	if !ok {
		msg = string(rej.Reason)
	}
	if rej.Word != "" && strings.Contains(msg, "%s") {
		msg = fmt.Sprintf(msg, rej.Word)
	}
	return msg + t.RetrySuffix
}
