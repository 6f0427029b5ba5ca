package session

import "strings"

// Captcha is one challenge from the fixed pool.
type Captcha struct {
	Question string
	Answer   string
}

// DefaultCaptchaPool is the built-in challenge pool.
var DefaultCaptchaPool = []Captcha{
	{Question: "Чему равен корень из 9?", Answer: "3"},
	{Question: "Сколько будет 2 + 2 * 2?", Answer: "6"},
	{Question: "Столица Франции?", Answer: "париж"},
	{Question: "Сколько букв в слове 'ТЕЛЕГРАМ'?", Answer: "8"},
	{Question: "Напишите число 'пять' цифрой.", Answer: "5"},
}

// pickCaptcha returns a random challenge. When the pool has more than one
// entry the excluded question is never picked again, so a failed attempt
// always sees a different challenge.
func pickCaptcha(pool []Captcha, excludeQuestion string, intn func(int) int) Captcha {
	if len(pool) == 1 {
		return pool[0]
	}
	candidates := make([]Captcha, 0, len(pool))
	for _, c := range pool {
		if c.Question != excludeQuestion {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		candidates = pool
	}
	return candidates[intn(len(candidates))]
}

// captchaMatches compares a user answer against the expected one,
// case-insensitively and ignoring surrounding whitespace.
func captchaMatches(expected, input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), strings.TrimSpace(expected))
}
