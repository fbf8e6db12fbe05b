package operation

import (
	"fmt"
	"sort"
	"strconv"

	"llm-assistant/src/dispatcher"
	"llm-assistant/src/hotkey"
	"llm-assistant/src/pipeline"
)

// ID names one of the built-in operations. It doubles as the dispatcher action.
type ID string

const (
	TranslateClipboard ID = "translate-clipboard"
	ExplainClipboard   ID = "explain-clipboard"
	OCRTranslate       ID = "ocr-translate"
	ExplainImage       ID = "explain-image"
	OCRExplain         ID = "ocr-explain"
	QueryImage         ID = "query-image"
	QueryText          ID = "query-text"
)

// Source is where an operation takes its input from.
type Source int

const (
	SourceClipboard Source = iota + 1
	SourceScreen
)

// Confirmation is the dialog shown before the run starts.
type Confirmation int

const (
	// ConfirmText lets the user edit the clipboard text.
	ConfirmText Confirmation = iota + 1
	// ConfirmImage previews the captured region.
	ConfirmImage
	// AskTextQuery offers preset questions about the clipboard text.
	AskTextQuery
	// AskImageQuery asks a free question about the captured region.
	AskImageQuery
)

// Operation is a catalog entry: how to capture input and what to run.
type Operation struct {
	ID           ID
	Label        string
	Digit        int
	Source       Source
	Confirmation Confirmation
	Definition   pipeline.Definition
}

// TextQueryPresets are offered by the text query dialog.
var TextQueryPresets = []string{
	"Summarize the provided text.",
	"Explain the text concisely and simply.",
	"Tell me if this information is accurate and why or why not?",
}

var catalog = []Operation{
	{
		ID: TranslateClipboard, Label: "Translate Text", Digit: 1,
		Source: SourceClipboard, Confirmation: ConfirmText,
		Definition: pipeline.Definition{
			Name: string(TranslateClipboard), Title: "Translation", Input: pipeline.InputText,
			Stages: []pipeline.Stage{
				{Kind: pipeline.StageTranslate, Status: pipeline.StatusTranslating, Prompt: pipeline.PromptTranslate},
			},
		},
	},
	{
		ID: ExplainClipboard, Label: "Explain Text", Digit: 2,
		Source: SourceClipboard, Confirmation: ConfirmText,
		Definition: pipeline.Definition{
			Name: string(ExplainClipboard), Title: "Explanation", Input: pipeline.InputText,
			Stages: []pipeline.Stage{
				{Kind: pipeline.StageExplain, Status: pipeline.StatusExplaining, Prompt: pipeline.PromptExplain},
			},
		},
	},
	{
		ID: OCRTranslate, Label: "OCR + Translate", Digit: 3,
		Source: SourceScreen, Confirmation: ConfirmImage,
		Definition: pipeline.Definition{
			Name: string(OCRTranslate), Title: "OCR + Translation", Input: pipeline.InputImage,
			Stages: []pipeline.Stage{
				{Kind: pipeline.StageOCR, Status: pipeline.StatusExtracting, Prompt: pipeline.PromptOCR},
				{Kind: pipeline.StageTranslate, Status: pipeline.StatusTranslating, Prompt: pipeline.PromptTranslateExtracted},
			},
		},
	},
	{
		ID: ExplainImage, Label: "Explain Image", Digit: 4,
		Source: SourceScreen, Confirmation: ConfirmImage,
		Definition: pipeline.Definition{
			Name: string(ExplainImage), Title: "Image Analysis", Input: pipeline.InputImage,
			Stages: []pipeline.Stage{
				{Kind: pipeline.StageDescribe, Status: pipeline.StatusAnalyzing, Prompt: pipeline.PromptExplainImage},
			},
		},
	},
	{
		ID: OCRExplain, Label: "OCR + Explain", Digit: 5,
		Source: SourceScreen, Confirmation: ConfirmImage,
		Definition: pipeline.Definition{
			Name: string(OCRExplain), Title: "OCR + Explanation", Input: pipeline.InputImage,
			Stages: []pipeline.Stage{
				{Kind: pipeline.StageOCR, Status: pipeline.StatusExtracting, Prompt: pipeline.PromptOCRExplain},
				{Kind: pipeline.StageExplain, Status: pipeline.StatusExplaining, Prompt: pipeline.PromptExplain},
			},
		},
	},
	{
		ID: QueryImage, Label: "Query Image", Digit: 6,
		Source: SourceScreen, Confirmation: AskImageQuery,
		Definition: pipeline.Definition{
			Name: string(QueryImage), Title: "Query Result", Input: pipeline.InputImage,
			Stages: []pipeline.Stage{
				{Kind: pipeline.StageOCR, Status: pipeline.StatusExtracting, Prompt: pipeline.PromptOCRQuery},
				{Kind: pipeline.StageDescribe, Status: pipeline.StatusAnalyzingVisual, Prompt: pipeline.PromptDescribeImage},
				{Kind: pipeline.StageCombineQuery, Status: pipeline.StatusAnswering, Prompt: pipeline.PromptCombineQuery},
			},
		},
	},
	{
		ID: QueryText, Label: "Query Text", Digit: 7,
		Source: SourceClipboard, Confirmation: AskTextQuery,
		Definition: pipeline.Definition{
			Name: string(QueryText), Title: "Query Result", Input: pipeline.InputText,
			Stages: []pipeline.Stage{
				{Kind: pipeline.StageFreeQuery, Status: pipeline.StatusAnswering, Prompt: pipeline.PromptFreeQuery},
			},
		},
	},
}

var byID = func() map[ID]Operation {
	m := make(map[ID]Operation, len(catalog))
	for _, op := range catalog {
		m[op.ID] = op
	}
	return m
}()

// All returns the operations in menu order. The slice is a copy; stage slices
// are shared and must not be modified.
func All() []Operation {
	out := make([]Operation, len(catalog))
	copy(out, catalog)
	return out
}

func Lookup(id ID) (Operation, bool) {
	op, ok := byID[id]
	return op, ok
}

// Parse accepts an operation ID or its digit.
func Parse(s string) (Operation, error) {
	if op, ok := byID[ID(s)]; ok {
		return op, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		for _, op := range catalog {
			if op.Digit == n {
				return op, nil
			}
		}
	}
	return Operation{}, fmt.Errorf("unknown operation %q (known: %v)", s, IDs())
}

// IDs returns every operation ID, sorted.
func IDs() []string {
	ids := make([]string, 0, len(catalog))
	for _, op := range catalog {
		ids = append(ids, string(op.ID))
	}
	sort.Strings(ids)
	return ids
}

// Chord returns the chord of op for the given modifiers.
func (op Operation) Chord(mods hotkey.Modifier) hotkey.Chord {
	return hotkey.Chord{Mods: mods, Key: strconv.Itoa(op.Digit)}
}

// Bindings returns the fixed chord table: modifiers plus the digit of each operation.
func Bindings(mods hotkey.Modifier) []dispatcher.Binding {
	out := make([]dispatcher.Binding, 0, len(catalog))
	for _, op := range catalog {
		out = append(out, dispatcher.Binding{Chord: op.Chord(mods), Action: string(op.ID)})
	}
	return out
}
