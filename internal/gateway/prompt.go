package gateway

import (
	"fmt"
	"strings"
)

// BuildExtractionPrompt is the system prompt for LLM extraction.
func BuildExtractionPrompt(keywords []string) string {
	var b strings.Builder
	b.WriteString("You extract patient vitals from a doctor's dictation.\n\n")
	b.WriteString("Return a single JSON object with these keys:\n")
	b.WriteString("- name: the patient's name\n")
	b.WriteString("- age: the patient's age\n")
	b.WriteString("- gender: the patient's gender\n")
	b.WriteString("- heart_rate: heart rate in beats per minute, digits only\n")
	b.WriteString("- SpO2: oxygen saturation in percent, digits only\n")
	b.WriteString("\nRules:\n")
	b.WriteString("- All values are strings\n")
	b.WriteString("- Use null for anything the dictation does not state\n")
	b.WriteString("- Do not guess or infer values\n")
	b.WriteString("- Output ONLY the JSON object, nothing else\n")

	if len(keywords) > 0 {
		b.WriteString(fmt.Sprintf("\nContext keywords (use correct spelling for these terms): %s\n", strings.Join(keywords, ", ")))
	}
	return b.String()
}
