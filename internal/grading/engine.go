// Package grading scores a learner's answers against an activity's content.
// Scores are integers in 0..100.
package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Strategy scores one activity kind.
type Strategy interface {
	Score(content, answers json.RawMessage, completed bool) (int, error)
}

// Grader routes by activity type to the matching Strategy.
type Grader struct {
	strategies map[string]Strategy
}

var ErrUnknownType = errors.New("no scoring strategy for activity type")

type Option func(*config)

type config struct {
	MaxEditDistance   int  // fill-in-the-blank fuzzy match
	AllowPartialMulti bool // partial credit on multi-answer quiz questions
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }
func WithPartialMulti(b bool) Option   { return func(c *config) { c.AllowPartialMulti = b } }

// NewGrader installs the built-in strategies.
func NewGrader(opts ...Option) *Grader {
	cfg := &config{
		MaxEditDistance:   1,
		AllowPartialMulti: true,
	}
	for _, o := range opts {
		o(cfg)
	}
	completion := completionStrategy{}
	return &Grader{
		strategies: map[string]Strategy{
			"quiz":       quizStrategy{allowPartial: cfg.AllowPartialMulti},
			"fill_blank": fillBlankStrategy{maxEdit: cfg.MaxEditDistance},
			"drag_drop":  dragDropStrategy{},
			"matching":   matchingStrategy{},
			"flip_cards": flipCardsStrategy{},
			"reading":    completion,
			"listening":  completion,
			"video":      completion,
		},
	}
}

func (g *Grader) Score(activityType string, content, answers json.RawMessage, completed bool) (int, error) {
	s, ok := g.strategies[activityType]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, activityType)
	}
	return s.Score(content, answers, completed)
}

// percent turns earned/possible credit into a 0..100 integer.
func percent(earned, possible float64) int {
	if possible <= 0 {
		return 0
	}
	v := int(math.Round(100 * earned / possible))
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func decode(raw json.RawMessage, v any, what string) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("bad %s: %w", what, err)
	}
	return nil
}

// --- completion-based kinds (reading, listening, video) ---

type completionStrategy struct{}

func (completionStrategy) Score(_, _ json.RawMessage, completed bool) (int, error) {
	if completed {
		return 100, nil
	}
	return 0, nil
}

// --- quiz ---

type quizContent struct {
	Questions []struct {
		ID      string    `json:"id"`
		Correct stringSet `json:"correct"`
	} `json:"questions"`
}

type quizStrategy struct{ allowPartial bool }

func (s quizStrategy) Score(content, answers json.RawMessage, _ bool) (int, error) {
	var c quizContent
	if err := decode(content, &c, "quiz content"); err != nil {
		return 0, err
	}
	var a map[string]stringSet
	if err := decode(answers, &a, "quiz answers"); err != nil {
		return 0, err
	}
	earned := 0.0
	for _, q := range c.Questions {
		earned += setCredit(q.Correct, a[q.ID], s.allowPartial)
	}
	return percent(earned, float64(len(c.Questions))), nil
}

// setCredit gives full credit for an exact set match and, when partial
// credit is on, the hit fraction for answers without false positives.
func setCredit(correct, given stringSet, allowPartial bool) float64 {
	if len(correct) == 0 || len(given) == 0 {
		return 0
	}
	want := toSet(correct)
	got := toSet(given)
	if setEqual(want, got) {
		return 1
	}
	if !allowPartial || len(want) == 1 {
		return 0
	}
	hits := 0
	for k := range got {
		if _, ok := want[k]; !ok {
			return 0
		}
		hits++
	}
	return float64(hits) / float64(len(want))
}

// --- fill in the blank ---

type fillBlankContent struct {
	Blanks []struct {
		ID      string    `json:"id"`
		Answers stringSet `json:"answers"`
	} `json:"blanks"`
}

type fillBlankStrategy struct{ maxEdit int }

func (s fillBlankStrategy) Score(content, answers json.RawMessage, _ bool) (int, error) {
	var c fillBlankContent
	if err := decode(content, &c, "fill_blank content"); err != nil {
		return 0, err
	}
	var a map[string]string
	if err := decode(answers, &a, "fill_blank answers"); err != nil {
		return 0, err
	}
	earned := 0.0
	for _, b := range c.Blanks {
		earned += textCredit(b.Answers, a[b.ID], s.maxEdit)
	}
	return percent(earned, float64(len(c.Blanks))), nil
}

// --- drag and drop ---

type dragDropContent struct {
	Items []struct {
		ID     string `json:"id"`
		Target string `json:"target"`
	} `json:"items"`
}

type dragDropStrategy struct{}

func (dragDropStrategy) Score(content, answers json.RawMessage, _ bool) (int, error) {
	var c dragDropContent
	if err := decode(content, &c, "drag_drop content"); err != nil {
		return 0, err
	}
	var a map[string]string
	if err := decode(answers, &a, "drag_drop answers"); err != nil {
		return 0, err
	}
	hits := 0
	for _, it := range c.Items {
		if got, ok := a[it.ID]; ok && got == it.Target {
			hits++
		}
	}
	return percent(float64(hits), float64(len(c.Items))), nil
}

// --- matching (cards or lines) ---

type matchingContent struct {
	Pairs []struct {
		Left  string `json:"left"`
		Right string `json:"right"`
	} `json:"pairs"`
}

type matchingStrategy struct{}

func (matchingStrategy) Score(content, answers json.RawMessage, _ bool) (int, error) {
	var c matchingContent
	if err := decode(content, &c, "matching content"); err != nil {
		return 0, err
	}
	var a map[string]string
	if err := decode(answers, &a, "matching answers"); err != nil {
		return 0, err
	}
	hits := 0
	for _, p := range c.Pairs {
		if got, ok := a[p.Left]; ok && got == p.Right {
			hits++
		}
	}
	return percent(float64(hits), float64(len(c.Pairs))), nil
}

// --- flip cards ---

type flipCardsContent struct {
	Cards []struct {
		ID string `json:"id"`
	} `json:"cards"`
}

type flipCardsAnswers struct {
	Flipped []string `json:"flipped"`
}

type flipCardsStrategy struct{}

func (flipCardsStrategy) Score(content, answers json.RawMessage, completed bool) (int, error) {
	var c flipCardsContent
	if err := decode(content, &c, "flip_cards content"); err != nil {
		return 0, err
	}
	if len(c.Cards) == 0 {
		return completionStrategy{}.Score(nil, nil, completed)
	}
	var a flipCardsAnswers
	if err := decode(answers, &a, "flip_cards answers"); err != nil {
		return 0, err
	}
	seen := toSet(a.Flipped)
	hits := 0
	for _, card := range c.Cards {
		if _, ok := seen[card.ID]; ok {
			hits++
		}
	}
	return percent(float64(hits), float64(len(c.Cards))), nil
}

// helpers

// stringSet decodes from either a JSON string or an array of strings.
type stringSet []string

func (s *stringSet) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*s = stringSet{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
