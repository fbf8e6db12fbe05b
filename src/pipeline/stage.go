package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StageKind identifies what one LLM step does.
type StageKind int

const (
	StageOCR StageKind = iota + 1
	StageDescribe
	StageTranslate
	StageExplain
	StageCombineQuery
	StageFreeQuery
)

var stageNames = map[StageKind]string{
	StageOCR:          "ocr",
	StageDescribe:     "describe",
	StageTranslate:    "translate",
	StageExplain:      "explain",
	StageCombineQuery: "combine-query",
	StageFreeQuery:    "free-query",
}

func (k StageKind) String() string {
	if n, ok := stageNames[k]; ok {
		return n
	}
	return "stage(" + strconv.Itoa(int(k)) + ")"
}

// NeedsImage reports whether the stage reads the captured image.
func (k StageKind) NeedsImage() bool { return k == StageOCR || k == StageDescribe }

// Streaming reports whether the stage is a streamed text-model call.
func (k StageKind) Streaming() bool {
	switch k {
	case StageTranslate, StageExplain, StageCombineQuery, StageFreeQuery:
		return true
	}
	return false
}

// NeedsQuery reports whether the stage needs a user question.
func (k StageKind) NeedsQuery() bool { return k == StageCombineQuery || k == StageFreeQuery }

// Stage is one step of a Definition.
//
// Prompt is a template. Placeholders: {language}, {query}, {text} (input of
// the stage: the previous output, or the captured text for the first stage),
// and {text.N} (output of stage N).
type Stage struct {
	Kind   StageKind
	Status string
	Prompt string
}

// InputKind is what a Definition captures before it runs.
type InputKind int

const (
	InputText InputKind = iota + 1
	InputImage
)

func (k InputKind) String() string {
	switch k {
	case InputText:
		return "text"
	case InputImage:
		return "image"
	}
	return "unknown"
}

// Definition is a fixed, ordered list of stages.
type Definition struct {
	Name   string
	Title  string
	Input  InputKind
	Stages []Stage
}

// NeedsQuery reports whether any stage needs a user question.
func (d Definition) NeedsQuery() bool {
	for _, s := range d.Stages {
		if s.Kind.NeedsQuery() {
			return true
		}
	}
	return false
}

// Validate checks that the stages can be threaded from the declared input.
func (d Definition) Validate() error {
	if d.Name == "" {
		return errors.New("pipeline: definition has no name")
	}
	if len(d.Stages) == 0 {
		return fmt.Errorf("pipeline %s: no stages", d.Name)
	}
	for i, s := range d.Stages {
		if _, ok := stageNames[s.Kind]; !ok {
			return fmt.Errorf("pipeline %s: stage %d has unknown kind %d", d.Name, i, s.Kind)
		}
		if s.Prompt == "" {
			return fmt.Errorf("pipeline %s: stage %d (%s) has no prompt", d.Name, i, s.Kind)
		}
		if s.Kind.NeedsImage() && d.Input != InputImage {
			return fmt.Errorf("pipeline %s: stage %d (%s) needs an image input", d.Name, i, s.Kind)
		}
		if i == 0 && !s.Kind.NeedsImage() && d.Input != InputText {
			return fmt.Errorf("pipeline %s: first stage (%s) needs a text input", d.Name, s.Kind)
		}
		if s.Kind == StageCombineQuery && i == 0 {
			return fmt.Errorf("pipeline %s: combine stage has nothing to combine", d.Name)
		}
	}
	return nil
}

// Input is what the presentation context captured for a run. Image holds PNG
// bytes; the engine drops them as soon as they are encoded.
type Input struct {
	Text  string
	Image []byte
	Query string
}

func (d Definition) checkInput(in Input) error {
	switch d.Input {
	case InputText:
		if strings.TrimSpace(in.Text) == "" {
			return fmt.Errorf("pipeline %s: empty text input", d.Name)
		}
	case InputImage:
		if len(in.Image) == 0 {
			return fmt.Errorf("pipeline %s: empty image input", d.Name)
		}
	}
	if d.NeedsQuery() && strings.TrimSpace(in.Query) == "" {
		return fmt.Errorf("pipeline %s: a question is required", d.Name)
	}
	return nil
}

// Render fills a prompt template. Substituted values are not scanned again, so
// captured text containing placeholders is passed through verbatim.
func Render(prompt, language, text, query string, outputs []string) string {
	pairs := []string{"{language}", language, "{query}", query, "{text}", text}
	for i, out := range outputs {
		pairs = append(pairs, "{text."+strconv.Itoa(i)+"}", out)
	}
	return strings.NewReplacer(pairs...).Replace(prompt)
}
