package compare

// Strategy names one of the two prompting approaches.
type Strategy string

const (
	StrategySimple  Strategy = "simple"
	StrategyContext Strategy = "context"
)

// Input is the text shared by both strategies plus each strategy's prompt.
type Input struct {
	BaseText      string `json:"base_text"`
	SimplePrompt  string `json:"simple_prompt"`
	ContextPrompt string `json:"context_prompt"`
}

// Prompt returns the prompt text used by s.
func (in Input) Prompt(s Strategy) string {
	if s == StrategyContext {
		return in.ContextPrompt
	}
	return in.SimplePrompt
}

// ComposePrompt joins a prompt and the base text into the single message sent
// for generation.
func ComposePrompt(prompt, base string) string {
	return "\n" + prompt + "\n\n---\nDATA:\n" + base + "\n"
}

const defaultBaseText = `Starlink is a satellite internet constellation operated by American aerospace company SpaceX, providing coverage to over 60 countries. It also aims for global mobile phone service after 2023. SpaceX started launching Starlink satellites in 2019. As of early 2024, it consists of over 5,500 mass-produced small satellites in low Earth orbit (LEO), which communicate with designated ground transceivers. In total, nearly 12,000 satellites are planned to be deployed, with a possible later extension to 42,000. SpaceX announced reaching more than 2 million subscribers in September 2023.

The LEO orbit of the satellites allows for lower latency (25-50ms) compared to geostationary satellites (600ms+), making it suitable for real-time applications like video calls and gaming. However, astronomers have raised concerns about the constellation's effect on ground-based astronomy and the potential for orbital debris.`

const defaultSimplePrompt = "Summarize this text."

const defaultContextPrompt = `You are a skeptical technology investment analyst evaluating SpaceX.

Your goal is to summarize the provided text for a potential investor who is concerned about risks.
- Focus on potential downsides or operational challenges mentioned (or implied).
- Use a professional, slightly critical tone.
- Format the output as a Markdown table comparing "Features" vs "Potential Risks".
- Keep the summary under 150 words.`

// DefaultInput is the scenario loaded at startup.
func DefaultInput() Input {
	return Input{
		BaseText:      defaultBaseText,
		SimplePrompt:  defaultSimplePrompt,
		ContextPrompt: defaultContextPrompt,
	}
}
