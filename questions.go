package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
)

//go:embed questions.json
var defaultCorpus []byte

type QuestionType string

const (
	QuestionFreeText       QuestionType = "free_text"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionMultiEntry     QuestionType = "multi_entry"
	QuestionNumeric        QuestionType = "numeric"
	QuestionOrderedList    QuestionType = "ordered_list"
)

// Question is the closed set of trivia question variants. Client views
// must never contain a secret field; reveal views carry everything needed
// to display the correct answer.
type Question interface {
	ID() string
	Type() QuestionType
	Category() string
	ClientView() map[string]any
	RevealView() map[string]any
}

// Verdict is the result of evaluating a single submission. Matched holds
// the canonical form of whatever was matched, when there is one.
type Verdict struct {
	Correct bool
	Matched string
}

type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type baseQuestion struct {
	id       string
	qtype    QuestionType
	title    string
	content  string
	category string
}

func (b baseQuestion) ID() string         { return b.id }
func (b baseQuestion) Type() QuestionType { return b.qtype }
func (b baseQuestion) Category() string   { return b.category }

func (b baseQuestion) view() map[string]any {
	m := map[string]any{
		"id":    b.id,
		"type":  b.qtype,
		"title": b.title,
	}
	if b.content != "" {
		m["content"] = b.content
	}
	if b.category != "" {
		m["category"] = b.category
	}
	return m
}

// FreeTextQuestion is answered by typing; the accepted answers and their
// aliases are secret until reveal.
type FreeTextQuestion struct {
	baseQuestion
	Answers []AcceptedAnswer
	Mode    MatchMode
}

func (q *FreeTextQuestion) ClientView() map[string]any { return q.view() }

func (q *FreeTextQuestion) RevealView() map[string]any {
	m := q.view()
	m["answers"] = canonicalAnswers(q.Answers)
	return m
}

// Evaluate matches raw text against the accepted answers under the
// question's match mode.
func (q *FreeTextQuestion) Evaluate(raw string) Verdict {
	matched, ok := findMatchingAnswer(raw, q.Answers, q.Mode)
	return Verdict{Correct: ok, Matched: matched}
}

type MultipleChoiceQuestion struct {
	baseQuestion
	Choices         []Choice
	CorrectChoiceID string
}

func (q *MultipleChoiceQuestion) ClientView() map[string]any {
	m := q.view()
	m["choices"] = q.Choices
	return m
}

func (q *MultipleChoiceQuestion) RevealView() map[string]any {
	m := q.ClientView()
	m["correctChoiceId"] = q.CorrectChoiceID
	return m
}

func (q *MultipleChoiceQuestion) Evaluate(choiceID string) Verdict {
	if choiceID == q.CorrectChoiceID {
		return Verdict{Correct: true, Matched: choiceID}
	}
	return Verdict{}
}

type TrueFalseQuestion struct {
	baseQuestion
	CorrectValue bool
}

func (q *TrueFalseQuestion) ClientView() map[string]any { return q.view() }

func (q *TrueFalseQuestion) RevealView() map[string]any {
	m := q.view()
	m["correctValue"] = q.CorrectValue
	return m
}

func (q *TrueFalseQuestion) Evaluate(value bool) Verdict {
	if value == q.CorrectValue {
		return Verdict{Correct: true, Matched: fmt.Sprintf("%t", value)}
	}
	return Verdict{}
}

// NumericQuestion accepts either an exact value with a tolerance or an
// inclusive [AnswerMin, AnswerMax] range. DisplayMin/DisplayMax are
// non-secret hints for the client's input bounds.
type NumericQuestion struct {
	baseQuestion
	CorrectValue float64
	Tolerance    float64
	AnswerMin    *float64
	AnswerMax    *float64
	DisplayMin   *float64
	DisplayMax   *float64
}

func (q *NumericQuestion) ClientView() map[string]any {
	m := q.view()
	if q.DisplayMin != nil {
		m["min"] = *q.DisplayMin
	}
	if q.DisplayMax != nil {
		m["max"] = *q.DisplayMax
	}
	return m
}

func (q *NumericQuestion) RevealView() map[string]any {
	m := q.ClientView()
	if q.AnswerMin != nil && q.AnswerMax != nil {
		m["answerMin"] = *q.AnswerMin
		m["answerMax"] = *q.AnswerMax
	} else {
		m["correctValue"] = q.CorrectValue
		if q.Tolerance > 0 {
			m["tolerance"] = q.Tolerance
		}
	}
	return m
}

func (q *NumericQuestion) Evaluate(value float64) Verdict {
	ok := false
	if q.AnswerMin != nil && q.AnswerMax != nil {
		ok = value >= *q.AnswerMin && value <= *q.AnswerMax
	} else {
		diff := value - q.CorrectValue
		if diff < 0 {
			diff = -diff
		}
		ok = diff <= q.Tolerance
	}
	if ok {
		return Verdict{Correct: true, Matched: strconv.FormatFloat(value, 'f', -1, 64)}
	}
	return Verdict{}
}

// OrderedListQuestion asks the client to sort Items; only the exact
// CorrectOrder sequence counts.
type OrderedListQuestion struct {
	baseQuestion
	Items        []Choice
	CorrectOrder []string
}

func (q *OrderedListQuestion) ClientView() map[string]any {
	m := q.view()

	// Shuffled copy, so the presented order never leaks the answer.
	items := make([]Choice, len(q.Items))
	copy(items, q.Items)
	rand.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	m["items"] = items

	return m
}

func (q *OrderedListQuestion) RevealView() map[string]any {
	m := q.view()
	m["items"] = q.Items
	m["correctOrder"] = q.CorrectOrder
	return m
}

func (q *OrderedListQuestion) Evaluate(order []string) Verdict {
	if len(order) != len(q.CorrectOrder) {
		return Verdict{}
	}
	for i := range order {
		if order[i] != q.CorrectOrder[i] {
			return Verdict{}
		}
	}
	return Verdict{Correct: true, Matched: strings.Join(order, ", ")}
}

// MultiEntryQuestion requires every answer in Answers to be found, one
// guess at a time, within MaxGuesses total guesses. The caller tracks the
// found-set and the guess count; evaluation itself is pure.
type MultiEntryQuestion struct {
	baseQuestion
	Answers    []AcceptedAnswer
	MaxGuesses int
	Mode       MatchMode
}

func (q *MultiEntryQuestion) TotalAnswers() int { return len(q.Answers) }

func (q *MultiEntryQuestion) ClientView() map[string]any {
	m := q.view()
	m["totalAnswers"] = q.TotalAnswers()
	m["maxGuesses"] = q.MaxGuesses
	return m
}

func (q *MultiEntryQuestion) RevealView() map[string]any {
	m := q.ClientView()
	m["answers"] = canonicalAnswers(q.Answers)
	return m
}

// Evaluate checks one guess against the answers not yet in found. A guess
// that re-matches an already-found answer is not correct.
func (q *MultiEntryQuestion) Evaluate(raw string, found map[string]bool) Verdict {
	matched, ok := findMatchingAnswer(raw, q.Answers, q.Mode)
	if !ok || found[matched] {
		return Verdict{}
	}
	return Verdict{Correct: true, Matched: matched}
}

func canonicalAnswers(accepted []AcceptedAnswer) []string {
	out := make([]string, 0, len(accepted))
	for _, a := range accepted {
		out = append(out, a.Answer)
	}
	return out
}

// questionRecord is the on-disk superset of every variant's fields.
type questionRecord struct {
	ID              string           `json:"id"`
	Type            QuestionType     `json:"type"`
	Title           string           `json:"title"`
	Content         string           `json:"content"`
	Category        string           `json:"category"`
	MatchMode       string           `json:"matchMode"`
	Answers         []AcceptedAnswer `json:"answers"`
	Choices         []Choice         `json:"choices"`
	CorrectChoiceID string           `json:"correctChoiceId"`
	CorrectValue    *float64         `json:"correctValue"`
	CorrectBool     *bool            `json:"correctBool"`
	Tolerance       float64          `json:"tolerance"`
	AnswerMin       *float64         `json:"answerMin"`
	AnswerMax       *float64         `json:"answerMax"`
	DisplayMin      *float64         `json:"displayMin"`
	DisplayMax      *float64         `json:"displayMax"`
	Items           []Choice         `json:"items"`
	CorrectOrder    []string         `json:"correctOrder"`
	MaxGuesses      int              `json:"maxGuesses"`
}

type corpusFile struct {
	Questions []questionRecord `json:"questions"`
}

// QuestionSet is the immutable question corpus, loaded once at startup.
// "Used" tracking lives with each lobby, never here.
type QuestionSet struct {
	byID  map[string]Question
	order []string
}

// loadQuestionSet parses a corpus. Malformed entries are skipped with a
// warning; only an unreadable or empty corpus is an error.
func loadQuestionSet(data []byte) (*QuestionSet, error) {
	var file corpusFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing question corpus: %w", err)
	}

	set := &QuestionSet{byID: make(map[string]Question)}

	for i, rec := range file.Questions {
		q, err := buildQuestion(rec)
		if err != nil {
			warnf("skipping question %d (%q): %v", i, rec.ID, err)
			continue
		}
		if _, dup := set.byID[q.ID()]; dup {
			warnf("skipping question %d: duplicate id %q", i, rec.ID)
			continue
		}
		set.byID[q.ID()] = q
		set.order = append(set.order, q.ID())
	}

	if len(set.order) == 0 {
		return nil, fmt.Errorf("question corpus contains no usable questions")
	}

	return set, nil
}

// loadQuestionSetFromConfig loads the corpus at cfg.questions, or the
// embedded default when no override is set.
func loadQuestionSetFromConfig(cfg *Config) (*QuestionSet, error) {
	data := defaultCorpus
	if cfg.questions != "" {
		var err error
		data, err = os.ReadFile(cfg.questions)
		if err != nil {
			return nil, fmt.Errorf("reading question corpus: %w", err)
		}
	}
	return loadQuestionSet(data)
}

func buildQuestion(rec questionRecord) (Question, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	if rec.Title == "" {
		return nil, fmt.Errorf("missing title")
	}

	base := baseQuestion{
		id:       rec.ID,
		qtype:    rec.Type,
		title:    rec.Title,
		content:  rec.Content,
		category: rec.Category,
	}

	mode := MatchMode(rec.MatchMode)
	if rec.MatchMode == "" {
		mode = getRecommendedMatchMode(rec.Category)
	}

	switch rec.Type {
	case QuestionFreeText:
		if len(rec.Answers) == 0 {
			return nil, fmt.Errorf("free_text question needs answers")
		}
		return &FreeTextQuestion{baseQuestion: base, Answers: rec.Answers, Mode: mode}, nil

	case QuestionMultipleChoice:
		if len(rec.Choices) < 2 {
			return nil, fmt.Errorf("multiple_choice question needs at least two choices")
		}
		found := false
		for _, c := range rec.Choices {
			if c.ID == rec.CorrectChoiceID {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("correctChoiceId %q not among choices", rec.CorrectChoiceID)
		}
		return &MultipleChoiceQuestion{baseQuestion: base, Choices: rec.Choices, CorrectChoiceID: rec.CorrectChoiceID}, nil

	case QuestionTrueFalse:
		if rec.CorrectBool == nil {
			return nil, fmt.Errorf("true_false question needs correctBool")
		}
		return &TrueFalseQuestion{baseQuestion: base, CorrectValue: *rec.CorrectBool}, nil

	case QuestionNumeric:
		ranged := rec.AnswerMin != nil && rec.AnswerMax != nil
		if !ranged && rec.CorrectValue == nil {
			return nil, fmt.Errorf("numeric question needs correctValue or answerMin/answerMax")
		}
		q := &NumericQuestion{
			baseQuestion: base,
			Tolerance:    rec.Tolerance,
			AnswerMin:    rec.AnswerMin,
			AnswerMax:    rec.AnswerMax,
			DisplayMin:   rec.DisplayMin,
			DisplayMax:   rec.DisplayMax,
		}
		if rec.CorrectValue != nil {
			q.CorrectValue = *rec.CorrectValue
		}
		return q, nil

	case QuestionOrderedList:
		if len(rec.Items) < 2 || len(rec.CorrectOrder) != len(rec.Items) {
			return nil, fmt.Errorf("ordered_list question needs matching items and correctOrder")
		}
		ids := make(map[string]bool, len(rec.Items))
		for _, it := range rec.Items {
			ids[it.ID] = true
		}
		for _, id := range rec.CorrectOrder {
			if !ids[id] {
				return nil, fmt.Errorf("correctOrder references unknown item %q", id)
			}
		}
		return &OrderedListQuestion{baseQuestion: base, Items: rec.Items, CorrectOrder: rec.CorrectOrder}, nil

	case QuestionMultiEntry:
		if len(rec.Answers) == 0 {
			return nil, fmt.Errorf("multi_entry question needs answers")
		}
		guesses := rec.MaxGuesses
		// A cap below the answer count would make the question unwinnable.
		if guesses < len(rec.Answers) {
			warnf("question %q: maxGuesses %d below answer count %d, raising", rec.ID, guesses, len(rec.Answers))
			guesses = len(rec.Answers)
		}
		return &MultiEntryQuestion{baseQuestion: base, Answers: rec.Answers, MaxGuesses: guesses, Mode: mode}, nil

	default:
		return nil, fmt.Errorf("unknown question type %q", rec.Type)
	}
}

// Get returns the question with the given id, or nil.
func (s *QuestionSet) Get(id string) Question {
	return s.byID[id]
}

// IDs returns all question ids in corpus order.
func (s *QuestionSet) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// matchesFilter reports whether q passes a comma-separated list of
// question types and/or categories. An empty filter passes everything;
// unknown tokens are ignored.
func matchesFilter(q Question, filter string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	for _, token := range strings.Split(filter, ",") {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		if token == string(q.Type()) || token == strings.ToLower(q.Category()) {
			return true
		}
	}
	return false
}

// PickUnused returns a random question passing the filter that is not in
// used, or nil when every candidate has been used.
func (s *QuestionSet) PickUnused(filter string, used map[string]bool) Question {
	candidates := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if used[id] {
			continue
		}
		if matchesFilter(s.byID[id], filter) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return s.byID[candidates[rand.Intn(len(candidates))]]
}
