package pipeline

// Prompt templates for the built-in operations. See Stage for placeholders.
const (
	PromptTranslate = "Translate the following text to {language}. Respond in Markdown format. " +
		"Only provide the translation, no explanations:\n\n{text}"

	PromptTranslateExtracted = "Translate the following text to {language}. Respond in Markdown format. " +
		"Only provide the translation:\n\n{text}"

	PromptExplain = "Provide more information and context about the following text. " +
		"Respond in {language} using Markdown format:\n\n{text}"

	PromptOCR        = "Extract all text from this image. Only provide the extracted text, no explanations."
	PromptOCRExplain = "Extract all text from this image. Only provide the extracted text."

	PromptOCRQuery = "Extract all text from this image. Only provide the extracted text, no explanations. " +
		"If there is no text, respond with 'No text found'."

	PromptExplainImage = "Describe and explain what you see in this image. Provide detailed information. " +
		"Respond in {language} using Markdown format."

	PromptDescribeImage = "Describe what you see in this image in detail. " +
		"Focus on the main elements, layout, and visual characteristics."

	PromptCombineQuery = "You are analyzing an image for a user. Here is the information extracted from the image:\n\n" +
		"TEXT EXTRACTED FROM IMAGE:\n{text.0}\n\n" +
		"VISUAL DESCRIPTION OF IMAGE:\n{text.1}\n\n" +
		"USER'S QUESTION:\n{query}\n\n" +
		"Please answer the user's question based on both the extracted text and visual description of the image. " +
		"Respond in {language} using Markdown format."

	PromptFreeQuery = "Here is some text that the user has provided:\n\n" +
		"TEXT:\n{text}\n\n" +
		"USER'S QUESTION:\n{query}\n\n" +
		"Please answer the user's question based on the provided text. Respond in {language} using Markdown format."
)

// Status lines shown while a stage runs.
const (
	StatusExtracting      = "Extracting text from image..."
	StatusTranslating     = "Translating text..."
	StatusAnalyzing       = "Analyzing image..."
	StatusAnalyzingVisual = "Analyzing image visually..."
	StatusExplaining      = "Generating explanation..."
	StatusAnswering       = "Generating answer..."
)
