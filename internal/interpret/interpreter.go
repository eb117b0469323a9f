// Package interpret turns the raw text of a bill into structured fields using
// a language model. Its output is a best guess and is not validated here.
package interpret

import "context"

// Fields contains the bill details read from a document's text
type Fields struct {
	Provider    string  `json:"provider"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
}

// Interpreter defines the interface for reading bill fields out of text
type Interpreter interface {
	// Interpret reads the provider, date, amount and category from a bill's text
	Interpret(ctx context.Context, text string) (*Fields, error)

	// Close closes the interpreter and releases resources
	Close() error
}

// billPrompt is the shared prompt used by all LLM providers for reading bills
const billPrompt = `You are reading the text of a healthcare bill or statement. Extract the following information:

1. **Provider**: The provider, practice, pharmacy or facility that issued the bill.
2. **Date**: The date of service or statement date, in ISO 8601 format (YYYY-MM-DD).
3. **Amount**: The amount owed or paid. Look for "Amount Due", "Total", "Balance", "Patient Responsibility". Extract only the numeric value (e.g., 42.75 for $42.75).
4. **Category**: One of medical, dental, vision, prescription, pharmacy, or another short lower-case word if none fit.
5. **Description**: A short description of the service.

Return ONLY valid JSON in this exact format:
{
  "provider": "Provider Name",
  "date": "YYYY-MM-DD",
  "amount": 0.00,
  "category": "medical",
  "description": "Brief description"
}

Important:
- The amount must be a number (not a string), representing dollars and cents
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks

Bill text:
`
