// Package prompt asks the user for values, on a terminal through survey or
// from a scripted list of answers.
package prompt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/openfroyo/archetype/pkg/engine"
)

// ErrInterrupted is returned when the user aborts a prompt with Ctrl-C.
var ErrInterrupted = errors.New("prompt interrupted")

// ErrNoAnswer is returned by a scripted prompter that ran out of answers.
var ErrNoAnswer = errors.New("no scripted answer left")

// Survey prompts on the terminal.
type Survey struct {
	opts []survey.AskOpt
}

// NewSurvey returns a terminal prompter. opts are passed to every question
// (e.g., survey.WithStdio).
func NewSurvey(opts ...survey.AskOpt) *Survey {
	return &Survey{opts: opts}
}

var _ engine.Prompter = (*Survey)(nil)

func (s *Survey) ask(p survey.Prompt, response interface{}) error {
	err := survey.AskOne(p, response, s.opts...)
	if errors.Is(err, terminal.InterruptErr) {
		return ErrInterrupted
	}
	return err
}

// Input asks for a free-form value.
func (s *Survey) Input(message, defaultValue string) (string, error) {
	var answer string
	if err := s.ask(&survey.Input{Message: message, Default: defaultValue}, &answer); err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// Select asks for one of options and returns its index.
func (s *Survey) Select(message string, options []string, defaultIndex int) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("%s: nothing to choose from", message)
	}
	p := &survey.Select{Message: message, Options: options, PageSize: 15}
	if defaultIndex >= 0 && defaultIndex < len(options) {
		p.Default = options[defaultIndex]
	}
	var index int
	if err := s.ask(p, &index); err != nil {
		return -1, err
	}
	return index, nil
}

// Confirm asks a yes/no question.
func (s *Survey) Confirm(message string, defaultValue bool) (bool, error) {
	var answer bool
	if err := s.ask(&survey.Confirm{Message: message, Default: defaultValue}, &answer); err != nil {
		return false, err
	}
	return answer, nil
}

// Scripted answers prompts from a fixed list, in order. An empty answer
// takes the default. It records every message it was asked.
type Scripted struct {
	answers []string
	Asked   []string
}

// NewScripted returns a prompter that replays answers.
func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

var _ engine.Prompter = (*Scripted)(nil)

func (s *Scripted) next(message string) (string, error) {
	s.Asked = append(s.Asked, message)
	if len(s.answers) == 0 {
		return "", fmt.Errorf("%s: %w", message, ErrNoAnswer)
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return strings.TrimSpace(a), nil
}

// Remaining returns how many answers are left.
func (s *Scripted) Remaining() int {
	return len(s.answers)
}

// Input returns the next answer or the default.
func (s *Scripted) Input(message, defaultValue string) (string, error) {
	a, err := s.next(message)
	if err != nil {
		return "", err
	}
	if a == "" {
		return defaultValue, nil
	}
	return a, nil
}

// Select accepts a 1-based number or the option text.
func (s *Scripted) Select(message string, options []string, defaultIndex int) (int, error) {
	a, err := s.next(message)
	if err != nil {
		return -1, err
	}
	if a == "" {
		if defaultIndex < 0 || defaultIndex >= len(options) {
			return -1, fmt.Errorf("%s: no default choice", message)
		}
		return defaultIndex, nil
	}
	if n, err := strconv.Atoi(a); err == nil && n >= 1 && n <= len(options) {
		return n - 1, nil
	}
	for i, o := range options {
		if o == a {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%s: %q is not a valid choice", message, a)
}

// Confirm accepts y/yes/true and n/no/false, case-insensitively.
func (s *Scripted) Confirm(message string, defaultValue bool) (bool, error) {
	a, err := s.next(message)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(a) {
	case "":
		return defaultValue, nil
	case "y", "yes", "true":
		return true, nil
	case "n", "no", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%s: %q is not yes or no", message, a)
	}
}
